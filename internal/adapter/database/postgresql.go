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

type PostgreSQLDatabase struct {
	config *config.DatabaseConfig
}

func NewPostgreSQL(cfg *config.DatabaseConfig) *PostgreSQLDatabase {
	return &PostgreSQLDatabase{config: cfg}
}

func (p *PostgreSQLDatabase) GetName() string {
	return p.config.Name
}

func (p *PostgreSQLDatabase) GetType() string {
	return "postgresql"
}

func (p *PostgreSQLDatabase) DumpFilename() string {
	return p.config.Name + ".sql"
}

// Dump writes a plain-text pg_dump of the database to outputPath. The
// password travels via PGPASSWORD, which pg_dump expects.
func (p *PostgreSQLDatabase) Dump(ctx context.Context, outputPath string) (bool, error) {
	var args []string
	if p.config.Username != "" {
		args = append(args, fmt.Sprintf("--username=%s", p.config.Username))
	}
	args = append(args, "--host=localhost", fmt.Sprintf("--dbname=%s", p.config.Name))

	out, err := os.Create(outputPath)
	if err != nil {
		return false, fmt.Errorf("unable to create dump file %q: %w", outputPath, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	cmd.Stdout = out
	cmd.Env = p.env()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, &domain.CommandError{Command: "pg_dump", ExitCode: -1, Err: err}
	}

	return true, nil
}

func (p *PostgreSQLDatabase) Drop(ctx context.Context) error {
	args := []string{"--if-exists"}
	if p.config.Username != "" {
		args = append(args, fmt.Sprintf("--username=%s", p.config.Username))
	}
	args = append(args, "--host=localhost", p.config.Name)
	return p.run(ctx, "dropdb", args, nil)
}

func (p *PostgreSQLDatabase) Create(ctx context.Context) error {
	var args []string
	if p.config.Username != "" {
		args = append(args, fmt.Sprintf("--username=%s", p.config.Username))
	}
	args = append(args, "--host=localhost", p.config.Name)
	return p.run(ctx, "createdb", args, nil)
}

func (p *PostgreSQLDatabase) Import(ctx context.Context, dump io.Reader) error {
	var args []string
	if p.config.Username != "" {
		args = append(args, fmt.Sprintf("--username=%s", p.config.Username))
	}
	args = append(args, "--host=localhost", fmt.Sprintf("--dbname=%s", p.config.Name))
	return p.run(ctx, "psql", args, dump)
}

func (p *PostgreSQLDatabase) env() []string {
	env := os.Environ()
	if p.config.Password != "" {
		env = append(env, "PGPASSWORD="+p.config.Password)
	}
	return env
}

func (p *PostgreSQLDatabase) run(ctx context.Context, name string, args []string, stdin io.Reader) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Env = p.env()

	output, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &domain.CommandError{
			Command:  name,
			ExitCode: code,
			Err:      fmt.Errorf("%w, output: %s", err, string(output)),
		}
	}

	return nil
}
