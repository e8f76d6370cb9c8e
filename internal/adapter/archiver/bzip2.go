package archiver

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	dbzip2 "github.com/dsnet/compress/bzip2"
)

// CompressBZ2 streams tarPath through a bzip2 encoder into <tarPath>.bz2
// and returns the new path. The source tar stays on disk; the pipeline's
// temp-file bookkeeping decides when it goes away.
func (b *Builder) CompressBZ2(tarPath string) (string, error) {
	bz2Path := tarPath + ".bz2"

	src, err := os.Open(tarPath)
	if err != nil {
		return "", fmt.Errorf("unable to open tar file %q: %w", tarPath, err)
	}
	defer src.Close()

	dst, err := os.Create(bz2Path)
	if err != nil {
		return "", fmt.Errorf("unable to create file %q: %w", bz2Path, err)
	}
	defer dst.Close()

	enc, err := dbzip2.NewWriter(dst, &dbzip2.WriterConfig{Level: dbzip2.BestCompression})
	if err != nil {
		return "", fmt.Errorf("unable to create bzip2 encoder: %w", err)
	}

	b.logger.Infof("bzip file: %q ...", tarPath)

	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := enc.Write(buf[:n]); err != nil {
				return "", fmt.Errorf("unable to write bz2 file %q: %w", bz2Path, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("unable to read tar file %q: %w", tarPath, readErr)
		}
	}

	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("unable to finish bz2 stream: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("unable to finish bz2 file %q: %w", bz2Path, err)
	}

	return bz2Path, nil
}

// DecompressBZ2 inflates bz2Path into the working directory under the
// same name without the ".bz2" suffix and returns the tar path. The
// stored archive may live on a read-only share, so the tar never lands
// next to it.
func (b *Builder) DecompressBZ2(bz2Path string) (string, error) {
	tarPath := filepath.Join(b.workDir, strings.TrimSuffix(filepath.Base(bz2Path), ".bz2"))

	src, err := os.Open(bz2Path)
	if err != nil {
		return "", fmt.Errorf("unable to open bz2 file %q: %w", bz2Path, err)
	}
	defer src.Close()

	dst, err := os.Create(tarPath)
	if err != nil {
		return "", fmt.Errorf("unable to create tar file %q: %w", tarPath, err)
	}
	defer dst.Close()

	b.logger.Infof("extracting bz2 file: %q", bz2Path)

	dec := bzip2.NewReader(src)
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(dst, dec, buf); err != nil {
		return "", fmt.Errorf("unable to write tar file %q: %w", tarPath, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("unable to finish tar file %q: %w", tarPath, err)
	}

	return tarPath, nil
}
