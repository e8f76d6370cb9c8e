package archiver

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/semmidev/arca/internal/domain"
)

// Extract walks the tar stream at tarPath and dispatches every entry:
// entries under a configured directory's leaf name are unpacked beneath
// that directory's parent (ownership applied best-effort), entries
// matching a database dump name are imported into that database, anything
// else is ignored. Per-entry failures are logged and skipped; only a
// broken tar stream is fatal.
func (b *Builder) Extract(ctx context.Context, tarPath string, directories []domain.Directory, databases []domain.Database) error {
	file, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("unable to open tar file %q: %w", tarPath, err)
	}
	defer file.Close()

	b.logger.Infof("extracting tar file: %q", tarPath)

	tr := tar.NewReader(file)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("unable to read tar file %q: %w", tarPath, err)
		}

		entryName := filepath.ToSlash(filepath.Clean(header.Name))
		if b.restoreDirectoryEntry(tr, header, entryName, directories) {
			continue
		}
		b.restoreDatabaseEntry(ctx, tr, header, entryName, databases)
	}

	return nil
}

// restoreDirectoryEntry unpacks the entry when its leading path segment
// matches a configured directory's leaf name. Returns true when the entry
// was claimed by a directory, even if unpacking failed.
func (b *Builder) restoreDirectoryEntry(tr *tar.Reader, header *tar.Header, entryName string, directories []domain.Directory) bool {
	for _, directory := range directories {
		root := filepath.Clean(directory.Path)
		leaf := filepath.Base(root)
		if entryName != leaf && !strings.HasPrefix(entryName, leaf+"/") {
			continue
		}

		dst := filepath.Join(filepath.Dir(root), filepath.FromSlash(entryName))
		if err := unpackEntry(tr, header, dst); err != nil {
			b.logger.Errorf("unable to unpack %q: %v", entryName, err)
			return true
		}

		// chown failures are not fatal: the files are restored, only
		// their ownership may be off.
		if uid, gid, ok := lookupOwnership(directory); ok {
			if err := os.Lchown(dst, uid, gid); err != nil {
				b.logger.Warnf("unable to chown %q: %v", dst, err)
			}
		}
		return true
	}

	return false
}

// restoreDatabaseEntry imports the entry when it exactly matches a
// configured database's dump filename: the dump is unpacked to the working
// directory, the database dropped and recreated, the dump streamed into
// the import tool, and the temporary file removed. Any sub-step failing
// abandons this database and moves on.
func (b *Builder) restoreDatabaseEntry(ctx context.Context, tr *tar.Reader, header *tar.Header, entryName string, databases []domain.Database) {
	for _, database := range databases {
		if entryName != database.DumpFilename() {
			continue
		}

		dumpPath := filepath.Join(b.workDir, entryName)
		if err := unpackEntry(tr, header, dumpPath); err != nil {
			b.logger.Errorf("unable to unpack dump %q: %v", entryName, err)
			continue
		}
		if err := database.Drop(ctx); err != nil {
			b.logger.Errorf("db-error: %v", err)
			continue
		}
		if err := database.Create(ctx); err != nil {
			b.logger.Errorf("db-error: %v", err)
			continue
		}

		dump, err := os.Open(dumpPath)
		if err != nil {
			b.logger.Errorf("file-error: %v", err)
			continue
		}
		err = database.Import(ctx, dump)
		dump.Close()
		if err != nil {
			b.logger.Errorf("db-error: %v", err)
			continue
		}

		if err := os.Remove(dumpPath); err != nil {
			b.logger.Errorf("error removing temporary file %q: %v", dumpPath, err)
		}
	}
}

func unpackEntry(tr *tar.Reader, header *tar.Header, dst string) error {
	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(dst, os.FileMode(header.Mode).Perm())
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		_ = os.Remove(dst)
		return os.Symlink(header.Linkname, dst)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		file, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(header.Mode).Perm())
		if err != nil {
			return err
		}
		buf := make([]byte, copyBufferSize)
		_, err = io.CopyBuffer(file, tr, buf)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		return err
	default:
		// device nodes and the like are not expected in these archives
		return nil
	}
}

// lookupOwnership resolves the configured user/group names to ids;
// -1 leaves the respective id unchanged in chown.
func lookupOwnership(directory domain.Directory) (int, int, bool) {
	uid, gid := -1, -1

	if directory.User != "" {
		if u, err := user.Lookup(directory.User); err == nil {
			if id, err := strconv.Atoi(u.Uid); err == nil {
				uid = id
			}
		}
	}
	if directory.Group != "" {
		if g, err := user.LookupGroup(directory.Group); err == nil {
			if id, err := strconv.Atoi(g.Gid); err == nil {
				gid = id
			}
		}
	}

	return uid, gid, uid != -1 || gid != -1
}
