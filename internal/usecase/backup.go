package usecase

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/semmidev/arca/internal/adapter/archiver"
	"github.com/semmidev/arca/internal/domain"
	"github.com/semmidev/arca/internal/naming"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Backup runs the archive pipeline: resolve the name template, build the
// tar, compress, encrypt, hand the result to the destination, and clean up
// the intermediates. Archives are processed strictly one at a time; the
// first build or encryption error aborts the whole run.
type Backup struct {
	archives []domain.Archive
	builder  *archiver.Builder
	logger   Logger
	now      func() time.Time
}

func NewBackup(archives []domain.Archive, builder *archiver.Builder, logger Logger) *Backup {
	return &Backup{
		archives: archives,
		builder:  builder,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *Backup) Execute(ctx context.Context) error {
	for i := range uc.archives {
		if err := uc.runArchive(ctx, &uc.archives[i]); err != nil {
			return err
		}
	}
	return nil
}

func (uc *Backup) runArchive(ctx context.Context, archive *domain.Archive) error {
	start := time.Now()
	name := naming.Resolve(archive.Name, uc.now())
	uc.logger.Infof("creating archive: %s", name)

	var filesToStore []string
	var temporaryFiles []string

	switch archive.Compression {
	case domain.CompressionTar, domain.CompressionTarBZ2:
		tarPath, err := uc.builder.Build(ctx, name, archive.Directories, archive.Databases)
		if err != nil {
			return err
		}

		if archive.Compression == domain.CompressionTar {
			filesToStore = append(filesToStore, tarPath)
			break
		}

		// the tar is only a stepping stone to the bz2 file
		temporaryFiles = append(temporaryFiles, tarPath)
		bz2Path, err := uc.builder.CompressBZ2(tarPath)
		if err != nil {
			return err
		}
		filesToStore = append(filesToStore, bz2Path)
	}

	if archive.Encryption != nil {
		for i, file := range filesToStore {
			encPath, err := archive.Encryption.Encrypt(ctx, file)
			if err != nil {
				return err
			}
			temporaryFiles = append(temporaryFiles, file)
			filesToStore[i] = encPath
		}
	}

	if len(filesToStore) > 0 {
		if err := archive.Destination.Store(ctx, filesToStore); err != nil {
			return err
		}
	}

	for _, file := range temporaryFiles {
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("unable to remove temporary file %q: %w", file, err)
		}
	}

	uc.logger.Infof("archive %s completed in %s", name, time.Since(start).Round(time.Second))
	return nil
}
