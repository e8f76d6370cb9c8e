package domain

import (
	"context"
	"io"
)

// Database wraps the external dump/restore tooling for one configured
// database. Implementations construct the tool invocations; they never
// speak the wire protocol themselves.
type Database interface {
	GetName() string
	GetType() string

	// DumpFilename is the archive entry name for this database's dump,
	// name plus the kind extension (".sql" or ".bson").
	DumpFilename() string

	// Dump runs the dump tool with stdout redirected into outputPath.
	// ok reports whether the tool exited with code 0; a non-zero exit is
	// not an error, the caller skips the append and moves on. err is
	// reserved for spawn/wait failures.
	Dump(ctx context.Context, outputPath string) (ok bool, err error)

	// Drop and Create are expected to be idempotent-safe ("if exists" /
	// "if not exists" semantics in the underlying tool).
	Drop(ctx context.Context) error
	Create(ctx context.Context) error

	// Import feeds a dump to the restore tool's standard input.
	Import(ctx context.Context, dump io.Reader) error
}
