package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/semmidev/arca/internal/domain"
	"github.com/semmidev/arca/internal/naming"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Local stores archives in a directory on the same host. Unlike the remote
// destinations, a store failure here is fatal to the run.
type Local struct {
	path   string
	logger Logger
}

func NewLocal(path string, logger Logger) *Local {
	return &Local{path: path, logger: logger}
}

// Store moves each file into the target directory, creating it first.
// When an atomic rename is not possible (cross-device), it falls back to
// copy-then-delete; a leftover source after a successful copy is ignored.
func (l *Local) Store(ctx context.Context, files []string) error {
	if err := os.MkdirAll(l.path, 0o755); err != nil {
		return fmt.Errorf("unable to create archive path %q: %w", l.path, err)
	}

	for _, file := range files {
		target := filepath.Join(l.path, filepath.Base(file))

		if err := os.Rename(file, target); err == nil {
			continue
		}

		if err := copyFile(file, target); err != nil {
			return fmt.Errorf("unable to rename and copy %q to %q: %w", file, target, err)
		}
		if err := os.Remove(file); err != nil {
			l.logger.Warnf("unable to remove %q after copy: %v", file, err)
		}
	}

	return nil
}

// FetchLatest expands the archive's name template into restore candidates,
// looks for candidate files carrying the archive's suffix chain, and
// returns the base path of the newest one. "" means no candidate exists.
func (l *Local) FetchLatest(ctx context.Context, archive *domain.Archive) (string, error) {
	suffix := archive.Compression.Extension()
	if archive.Encryption != nil {
		suffix += archive.Encryption.Extension()
	}

	var newestBase string
	var newestTime time.Time

	for _, candidate := range naming.Candidates(archive.Name) {
		info, err := os.Stat(filepath.Join(l.path, candidate+suffix))
		if err != nil {
			continue
		}
		if newestBase == "" || info.ModTime().After(newestTime) {
			newestBase = candidate
			newestTime = info.ModTime()
		}
	}

	if newestBase == "" {
		return "", nil
	}
	return filepath.Join(l.path, newestBase), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
