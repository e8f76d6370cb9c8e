package domain

import "context"

// Destination is the storage back-end an archive is written to or read
// from. One concrete variant is constructed from configuration and passed
// through the pipeline by reference.
type Destination interface {
	// Store places the finished archive files at the destination. Local
	// directory failures are fatal to the run; remote implementations log
	// and skip per-file failures instead.
	Store(ctx context.Context, files []string) error

	// FetchLatest locates the most recently produced archive matching the
	// given archive's name template and makes it available locally. It
	// returns the local path with compression/encryption suffixes stripped
	// back to the archive's base name, or "" when no candidate exists
	// (not an error: the archive is skipped).
	FetchLatest(ctx context.Context, archive *Archive) (string, error)
}

// Encryptor is the reversible file transform applied after compression.
type Encryptor interface {
	// Encrypt produces path+Extension() and returns the new path.
	Encrypt(ctx context.Context, path string) (string, error)
	// Decrypt strips Extension() from path and returns the new path.
	Decrypt(ctx context.Context, path string) (string, error)
	Extension() string
}
