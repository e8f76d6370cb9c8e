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

type MongoDBDatabase struct {
	config *config.DatabaseConfig
}

func NewMongoDB(cfg *config.DatabaseConfig) *MongoDBDatabase {
	return &MongoDBDatabase{config: cfg}
}

func (m *MongoDBDatabase) GetName() string {
	return m.config.Name
}

func (m *MongoDBDatabase) GetType() string {
	return "mongodb"
}

func (m *MongoDBDatabase) DumpFilename() string {
	return m.config.Name + ".bson"
}

// Dump writes a mongodump archive stream to outputPath. A name of "*"
// dumps all databases.
func (m *MongoDBDatabase) Dump(ctx context.Context, outputPath string) (bool, error) {
	args := []string{"--archive"}
	if m.config.Name != "*" && !m.config.NamePattern {
		args = append(args, fmt.Sprintf("--db=%s", m.config.Name))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return false, fmt.Errorf("unable to create dump file %q: %w", outputPath, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, "mongodump", args...)
	cmd.Stdout = out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, &domain.CommandError{Command: "mongodump", ExitCode: -1, Err: err}
	}

	return true, nil
}

// Drop is a no-op: mongorestore --drop replaces collections during import.
func (m *MongoDBDatabase) Drop(ctx context.Context) error {
	return nil
}

// Create is a no-op: mongodb creates databases on first write.
func (m *MongoDBDatabase) Create(ctx context.Context) error {
	return nil
}

func (m *MongoDBDatabase) Import(ctx context.Context, dump io.Reader) error {
	cmd := exec.CommandContext(ctx, "mongorestore", "--archive", "--drop", "--preserveUUID")
	cmd.Stdin = dump

	output, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &domain.CommandError{
			Command:  "mongorestore",
			ExitCode: code,
			Err:      fmt.Errorf("%w, output: %s", err, string(output)),
		}
	}

	return nil
}
