package usecase

import (
	"context"
	"os"
	"path/filepath"

	"github.com/semmidev/arca/internal/adapter/archiver"
	"github.com/semmidev/arca/internal/domain"
)

// Restore reverses the pipeline per archive: locate the most applicable
// stored archive through the destination, walk the suffix chain backwards
// (decrypt, then decompress), and dispatch the extracted entries. A fetch,
// decrypt or decompress failure aborts the whole run; per-entry failures
// inside the tar are logged and skipped by the extractor.
type Restore struct {
	archives []domain.Archive
	builder  *archiver.Builder
	workDir  string
	logger   Logger
}

func NewRestore(archives []domain.Archive, builder *archiver.Builder, workDir string, logger Logger) *Restore {
	return &Restore{
		archives: archives,
		builder:  builder,
		workDir:  workDir,
		logger:   logger,
	}
}

func (uc *Restore) Execute(ctx context.Context) error {
	for i := range uc.archives {
		if err := uc.runArchive(ctx, &uc.archives[i]); err != nil {
			return err
		}
	}
	return nil
}

func (uc *Restore) runArchive(ctx context.Context, archive *domain.Archive) error {
	uc.logger.Infof("restoring archive: %s", archive.Name)

	basePath, err := archive.Destination.FetchLatest(ctx, archive)
	if err != nil {
		return err
	}
	if basePath == "" {
		uc.logger.Warnf("no archive found for %q, skipping", archive.Name)
		return nil
	}

	var temporaryFiles []string
	defer func() {
		for _, file := range temporaryFiles {
			if err := os.Remove(file); err != nil {
				uc.logger.Warnf("temporary file %q could not be removed: %v", file, err)
			}
		}
	}()

	archivePath := basePath + archive.Compression.Extension()

	// with no compression stage the fetched (or decrypted) file is the
	// final artifact of the run, never an intermediate
	payloadIsFinal := archive.Compression == domain.CompressionNone

	if archive.Encryption != nil {
		encryptedPath := archivePath + archive.Encryption.Extension()
		if uc.isTemporary(encryptedPath) {
			temporaryFiles = append(temporaryFiles, encryptedPath)
		}

		if _, err := archive.Encryption.Decrypt(ctx, encryptedPath); err != nil {
			return err
		}
		if !payloadIsFinal {
			temporaryFiles = append(temporaryFiles, archivePath)
		}
	} else if !payloadIsFinal && uc.isTemporary(archivePath) {
		temporaryFiles = append(temporaryFiles, archivePath)
	}

	var tarPath string
	switch archive.Compression {
	case domain.CompressionNone:
		// nothing to extract, the fetched file is the payload
		return nil
	case domain.CompressionTar:
		tarPath = archivePath
	case domain.CompressionTarBZ2:
		tarPath, err = uc.builder.DecompressBZ2(archivePath)
		if err != nil {
			return err
		}
		temporaryFiles = append(temporaryFiles, tarPath)
	}

	return uc.builder.Extract(ctx, tarPath, archive.Directories, archive.Databases)
}

// isTemporary reports whether a file lives in the working directory.
// Downloads land there and are per-run temporaries; anything else (a
// stored archive in a local destination directory) must survive the run.
func (uc *Restore) isTemporary(path string) bool {
	return filepath.Dir(path) == filepath.Clean(uc.workDir)
}
