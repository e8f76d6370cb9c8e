package archiver

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/semmidev/arca/internal/domain"
)

// copyBufferSize bounds the memory used by the streaming stages.
const copyBufferSize = 32576

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Builder produces tar containers from directories and database dumps.
// Intermediate dump files live in workDir; their lifecycle ends inside
// Build except for dumps whose tool exited non-zero, which are left in
// place on purpose.
type Builder struct {
	workDir string
	logger  Logger
}

func NewBuilder(workDir string, logger Logger) *Builder {
	return &Builder{workDir: workDir, logger: logger}
}

// Build creates <name>.tar in the working directory, appends every
// directory recursively under its leaf name and every database dump that
// succeeds, and returns the tar path.
func (b *Builder) Build(ctx context.Context, name string, directories []domain.Directory, databases []domain.Database) (string, error) {
	tarPath := filepath.Join(b.workDir, name+".tar")

	file, err := os.OpenFile(tarPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return "", fmt.Errorf("unable to create %q: already exists", tarPath)
		case errors.Is(err, fs.ErrPermission):
			return "", fmt.Errorf("unable to create %q: permission denied", tarPath)
		default:
			return "", fmt.Errorf("unable to create %q: %w", tarPath, err)
		}
	}
	defer file.Close()

	tw := tar.NewWriter(file)

	for _, directory := range directories {
		if err := b.appendDirectory(tw, directory); err != nil {
			return "", err
		}
	}

	for _, database := range databases {
		if err := b.appendDatabase(ctx, tw, database); err != nil {
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("unable to finish tar stream %q: %w", tarPath, err)
	}

	return tarPath, nil
}

// appendDirectory walks the directory tree and stores every entry under an
// archive-relative name rooted at the leaf directory name, so restoring
// does not depend on the backup host's path layout.
func (b *Builder) appendDirectory(tw *tar.Writer, directory domain.Directory) error {
	root := filepath.Clean(directory.Path)
	leaf := filepath.Base(root)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entryName := leaf
		if rel != "." {
			entryName = filepath.ToSlash(filepath.Join(leaf, rel))
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = entryName
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		buf := make([]byte, copyBufferSize)
		_, err = io.CopyBuffer(tw, src, buf)
		return err
	})
	if err != nil {
		return fmt.Errorf("unable to append directory %q: %w", directory.Path, err)
	}

	return nil
}

// appendDatabase dumps the database into <name>.<ext> in the working
// directory. Only an exact exit code 0 leads to append-and-delete; any
// other exit status leaves the partial dump behind and the build moves on.
func (b *Builder) appendDatabase(ctx context.Context, tw *tar.Writer, database domain.Database) error {
	dumpName := database.DumpFilename()
	dumpPath := filepath.Join(b.workDir, dumpName)

	ok, err := database.Dump(ctx, dumpPath)
	if err != nil {
		return err
	}
	if !ok {
		b.logger.Warnf("dump of %s did not exit cleanly, skipping append", database.GetName())
		return nil
	}

	b.logger.Infof("tar file: %q ...", dumpName)

	dump, err := os.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("unable to open dump file %q: %w", dumpPath, err)
	}
	defer dump.Close()

	info, err := dump.Stat()
	if err != nil {
		return fmt.Errorf("unable to stat dump file %q: %w", dumpPath, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("unable to append dump file %q: %w", dumpPath, err)
	}
	header.Name = dumpName

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("unable to append dump file %q: %w", dumpPath, err)
	}
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(tw, dump, buf); err != nil {
		return fmt.Errorf("unable to append dump file %q: %w", dumpPath, err)
	}
	dump.Close()

	if err := os.Remove(dumpPath); err != nil {
		return fmt.Errorf("unable to remove dump file %q: %w", dumpPath, err)
	}

	return nil
}
