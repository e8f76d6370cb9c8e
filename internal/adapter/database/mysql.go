package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/semmidev/arca/internal/config"
	"github.com/semmidev/arca/internal/domain"
)

type MySQLDatabase struct {
	config *config.DatabaseConfig
}

func NewMySQL(cfg *config.DatabaseConfig) *MySQLDatabase {
	return &MySQLDatabase{config: cfg}
}

func (m *MySQLDatabase) GetName() string {
	return m.config.Name
}

func (m *MySQLDatabase) GetType() string {
	return "mysql"
}

func (m *MySQLDatabase) DumpFilename() string {
	return m.config.Name + ".sql"
}

// Dump writes a mysqldump of the database to outputPath. ok is false when
// the tool ran but exited non-zero.
func (m *MySQLDatabase) Dump(ctx context.Context, outputPath string) (bool, error) {
	args := m.credentialArgs()
	args = append(args, "--databases")
	if !m.config.NamePattern {
		args = append(args, m.config.Name)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return false, fmt.Errorf("unable to create dump file %q: %w", outputPath, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	cmd.Stdout = out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, &domain.CommandError{Command: "mysqldump", ExitCode: -1, Err: err}
	}

	return true, nil
}

func (m *MySQLDatabase) Drop(ctx context.Context) error {
	statement := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", m.config.Name)
	return m.runMySQL(ctx, append(m.credentialArgs(), "-e", statement), nil)
}

func (m *MySQLDatabase) Create(ctx context.Context) error {
	statement := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", m.config.Name)
	return m.runMySQL(ctx, append(m.credentialArgs(), "-e", statement), nil)
}

func (m *MySQLDatabase) Import(ctx context.Context, dump io.Reader) error {
	return m.runMySQL(ctx, append(m.credentialArgs(), m.config.Name), dump)
}

func (m *MySQLDatabase) credentialArgs() []string {
	var args []string
	if m.config.Username != "" {
		args = append(args, "-u", m.config.Username)
		if m.config.Password != "" {
			args = append(args, "-p"+m.config.Password)
		}
	}
	return args
}

func (m *MySQLDatabase) runMySQL(ctx context.Context, args []string, stdin io.Reader) error {
	cmd := exec.CommandContext(ctx, "mysql", args...)
	cmd.Stdin = stdin

	output, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &domain.CommandError{
			Command:  "mysql",
			ExitCode: code,
			Err:      fmt.Errorf("%w, output: %s", err, string(output)),
		}
	}

	return nil
}
