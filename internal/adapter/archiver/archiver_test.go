package archiver

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/semmidev/arca/internal/domain"
)

func testLogger() Logger {
	return zap.NewNop().Sugar()
}

// fakeDatabase satisfies domain.Database without spawning external tools.
type fakeDatabase struct {
	name      string
	dumpOK    bool
	dumpErr   error
	importErr error

	dropped  bool
	created  bool
	imported []byte
}

func (f *fakeDatabase) GetName() string      { return f.name }
func (f *fakeDatabase) GetType() string      { return "fake" }
func (f *fakeDatabase) DumpFilename() string { return f.name + ".sql" }

func (f *fakeDatabase) Dump(ctx context.Context, outputPath string) (bool, error) {
	if f.dumpErr != nil {
		return false, f.dumpErr
	}
	if err := os.WriteFile(outputPath, []byte("-- dump of "+f.name), 0o644); err != nil {
		return false, err
	}
	return f.dumpOK, nil
}

func (f *fakeDatabase) Drop(ctx context.Context) error {
	f.dropped = true
	return nil
}

func (f *fakeDatabase) Create(ctx context.Context) error {
	f.created = true
	return nil
}

func (f *fakeDatabase) Import(ctx context.Context, dump io.Reader) error {
	if f.importErr != nil {
		return f.importErr
	}
	data, err := io.ReadAll(dump)
	if err != nil {
		return err
	}
	f.imported = data
	return nil
}

type testTarEntry struct {
	name string
	body string
	dir  bool
}

func writeTestTar(t *testing.T, path string, entries []testTarEntry) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create tar: %v", err)
	}
	defer file.Close()

	tw := tar.NewWriter(file)
	for _, entry := range entries {
		header := &tar.Header{Name: entry.name, Mode: 0o644, Size: int64(len(entry.body)), Typeflag: tar.TypeReg}
		if entry.dir {
			header.Typeflag = tar.TypeDir
			header.Mode = 0o755
			header.Size = 0
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("write tar header: %v", err)
		}
		if !entry.dir {
			if _, err := tw.Write([]byte(entry.body)); err != nil {
				t.Fatalf("write tar body: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
}

func tarEntryNames(t *testing.T, tarPath string) []string {
	t.Helper()

	file, err := os.Open(tarPath)
	if err != nil {
		t.Fatalf("open tar: %v", err)
	}
	defer file.Close()

	var names []string
	tr := tar.NewReader(file)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		names = append(names, header.Name)
	}
	return names
}

func TestBuild(t *testing.T) {
	Convey("Given a Builder", t, func() {
		workDir, err := os.MkdirTemp("", "archiver_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(workDir)

		builder := NewBuilder(workDir, testLogger())
		ctx := context.Background()

		Convey("When building from a directory tree", func() {
			dataDir := filepath.Join(workDir, "source", "app")
			So(os.MkdirAll(filepath.Join(dataDir, "sub"), 0o755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dataDir, "file.txt"), []byte("hello"), 0o644), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dataDir, "sub", "nested.txt"), []byte("world"), 0o644), ShouldBeNil)

			tarPath, err := builder.Build(ctx, "myarchive", []domain.Directory{{Path: dataDir}}, nil)

			Convey("It should create <name>.tar with entries under the leaf name", func() {
				So(err, ShouldBeNil)
				So(tarPath, ShouldEqual, filepath.Join(workDir, "myarchive.tar"))

				names := tarEntryNames(t, tarPath)
				So(names, ShouldContain, "app/")
				So(names, ShouldContain, "app/file.txt")
				So(names, ShouldContain, "app/sub/nested.txt")
			})
		})

		Convey("When the tar file already exists", func() {
			So(os.WriteFile(filepath.Join(workDir, "dup.tar"), []byte("x"), 0o644), ShouldBeNil)

			_, err := builder.Build(ctx, "dup", nil, nil)

			Convey("It should report the conflict distinctly", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "already exists")
			})
		})

		Convey("When a database dump exits cleanly", func() {
			db := &fakeDatabase{name: "shop", dumpOK: true}

			tarPath, err := builder.Build(ctx, "withdb", nil, []domain.Database{db})

			Convey("The dump should be appended and its file removed", func() {
				So(err, ShouldBeNil)
				So(tarEntryNames(t, tarPath), ShouldContain, "shop.sql")

				_, statErr := os.Stat(filepath.Join(workDir, "shop.sql"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When a database dump exits non-zero", func() {
			db := &fakeDatabase{name: "flaky", dumpOK: false}

			tarPath, err := builder.Build(ctx, "partial", nil, []domain.Database{db})

			Convey("The build should continue without appending, leaving the partial dump", func() {
				So(err, ShouldBeNil)
				So(tarEntryNames(t, tarPath), ShouldNotContain, "flaky.sql")

				_, statErr := os.Stat(filepath.Join(workDir, "flaky.sql"))
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When a database dump fails to spawn", func() {
			db := &fakeDatabase{name: "broken", dumpErr: errors.New("no such binary")}

			_, err := builder.Build(ctx, "aborted", nil, []domain.Database{db})

			Convey("The whole build should abort", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestBZ2RoundTrip(t *testing.T) {
	Convey("Given a Builder", t, func() {
		workDir, err := os.MkdirTemp("", "archiver_bz2_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(workDir)

		builder := NewBuilder(workDir, testLogger())

		Convey("When compressing and decompressing a payload", func() {
			payload := bytes.Repeat([]byte("tar payload for compression "), 4096)
			tarPath := filepath.Join(workDir, "payload.tar")
			So(os.WriteFile(tarPath, payload, 0o644), ShouldBeNil)

			bz2Path, err := builder.CompressBZ2(tarPath)
			So(err, ShouldBeNil)
			So(bz2Path, ShouldEqual, tarPath+".bz2")

			// the source tar stays: the pipeline owns its lifecycle
			_, statErr := os.Stat(tarPath)
			So(statErr, ShouldBeNil)

			So(os.Remove(tarPath), ShouldBeNil)
			restoredPath, err := builder.DecompressBZ2(bz2Path)

			Convey("The result should be byte-identical to the original", func() {
				So(err, ShouldBeNil)
				So(restoredPath, ShouldEqual, tarPath)

				restored, err := os.ReadFile(restoredPath)
				So(err, ShouldBeNil)
				So(bytes.Equal(restored, payload), ShouldBeTrue)
			})
		})

		Convey("When the bz2 file lives outside the working directory", func() {
			storeDir, err := os.MkdirTemp("", "archiver_bz2_store")
			So(err, ShouldBeNil)
			defer os.RemoveAll(storeDir)

			payload := bytes.Repeat([]byte("stored archive "), 1024)
			storedTar := filepath.Join(storeDir, "stored.tar")
			So(os.WriteFile(storedTar, payload, 0o644), ShouldBeNil)

			bz2Path, err := builder.CompressBZ2(storedTar)
			So(err, ShouldBeNil)
			So(os.Remove(storedTar), ShouldBeNil)

			restoredPath, err := builder.DecompressBZ2(bz2Path)

			Convey("The tar should land in the working directory, not beside the archive", func() {
				So(err, ShouldBeNil)
				So(restoredPath, ShouldEqual, filepath.Join(workDir, "stored.tar"))

				restored, readErr := os.ReadFile(restoredPath)
				So(readErr, ShouldBeNil)
				So(bytes.Equal(restored, payload), ShouldBeTrue)

				_, statErr := os.Stat(storedTar)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the source file does not exist", func() {
			_, err := builder.CompressBZ2(filepath.Join(workDir, "missing.tar"))

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unable to open tar file")
			})
		})
	})
}

func TestExtract(t *testing.T) {
	Convey("Given a built archive", t, func() {
		workDir, err := os.MkdirTemp("", "archiver_extract_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(workDir)

		builder := NewBuilder(workDir, testLogger())
		ctx := context.Background()

		dataDir := filepath.Join(workDir, "source", "app")
		So(os.MkdirAll(filepath.Join(dataDir, "sub"), 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dataDir, "file.txt"), []byte("hello"), 0o644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dataDir, "sub", "nested.txt"), []byte("world"), 0o644), ShouldBeNil)

		db := &fakeDatabase{name: "shop", dumpOK: true}
		tarPath, err := builder.Build(ctx, "full", []domain.Directory{{Path: dataDir}}, []domain.Database{db})
		So(err, ShouldBeNil)

		Convey("When extracting with a matching directory", func() {
			restoreParent, err := os.MkdirTemp("", "restore_target")
			So(err, ShouldBeNil)
			defer os.RemoveAll(restoreParent)

			directories := []domain.Directory{{Path: filepath.Join(restoreParent, "app")}}
			err = builder.Extract(ctx, tarPath, directories, nil)

			Convey("The tree should be reproduced under the directory's parent", func() {
				So(err, ShouldBeNil)

				content, err := os.ReadFile(filepath.Join(restoreParent, "app", "file.txt"))
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "hello")

				content, err = os.ReadFile(filepath.Join(restoreParent, "app", "sub", "nested.txt"))
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "world")
			})
		})

		Convey("When extracting with a matching database", func() {
			restored := &fakeDatabase{name: "shop"}
			err := builder.Extract(ctx, tarPath, nil, []domain.Database{restored})

			Convey("The database should be dropped, created and re-imported", func() {
				So(err, ShouldBeNil)
				So(restored.dropped, ShouldBeTrue)
				So(restored.created, ShouldBeTrue)
				So(string(restored.imported), ShouldEqual, "-- dump of shop")
			})

			Convey("The temporary dump file should be removed", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(filepath.Join(workDir, "shop.sql"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When a database import fails before a directory entry", func() {
			restoreParent, err := os.MkdirTemp("", "restore_target")
			So(err, ShouldBeNil)
			defer os.RemoveAll(restoreParent)

			// handcraft an archive with the dump entry first so the failure
			// happens before the directory entry is reached
			mixedPath := filepath.Join(workDir, "mixed.tar")
			writeTestTar(t, mixedPath, []testTarEntry{
				{name: "shop.sql", body: "-- dump of shop"},
				{name: "app/", dir: true},
				{name: "app/file.txt", body: "hello"},
			})

			failing := &fakeDatabase{name: "shop", importErr: errors.New("import exited with code 1")}
			directories := []domain.Directory{{Path: filepath.Join(restoreParent, "app")}}

			err = builder.Extract(ctx, mixedPath, directories, []domain.Database{failing})

			Convey("The run should continue and later entries should still extract", func() {
				So(err, ShouldBeNil)
				So(failing.dropped, ShouldBeTrue)
				So(failing.created, ShouldBeTrue)
				So(failing.imported, ShouldBeNil)

				content, readErr := os.ReadFile(filepath.Join(restoreParent, "app", "file.txt"))
				So(readErr, ShouldBeNil)
				So(string(content), ShouldEqual, "hello")
			})
		})

		Convey("When entries match neither directories nor databases", func() {
			err := builder.Extract(ctx, tarPath, nil, nil)

			Convey("They should be silently ignored", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
