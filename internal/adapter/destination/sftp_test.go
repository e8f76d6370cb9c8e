package destination

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeRemoteFile struct {
	buf    bytes.Buffer
	mode   os.FileMode
	closed bool
}

func (f *fakeRemoteFile) Write(p []byte) (int, error)  { return f.buf.Write(p) }
func (f *fakeRemoteFile) Chmod(mode os.FileMode) error { f.mode = mode; return nil }
func (f *fakeRemoteFile) Close() error                 { f.closed = true; return nil }

type fakeRemoteConn struct {
	failPaths map[string]bool
	files     map[string]*fakeRemoteFile
}

func (c *fakeRemoteConn) Create(path string) (remoteFile, error) {
	if c.failPaths[path] {
		return nil, errors.New("permission denied")
	}
	f := &fakeRemoteFile{}
	c.files[path] = f
	return f, nil
}

func TestSFTPUpload(t *testing.T) {
	Convey("Given an sftp destination with an open session", t, func() {
		workDir, err := os.MkdirTemp("", "sftp_store_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(workDir)

		rejected := filepath.Join(workDir, "daily-2024-03-07.tar.bz2")
		So(os.WriteFile(rejected, []byte("first"), 0o644), ShouldBeNil)
		accepted := filepath.Join(workDir, "weekly-Thu.tar.bz2")
		So(os.WriteFile(accepted, []byte("second"), 0o644), ShouldBeNil)

		dest := &SFTP{remoteDir: "backups", workDir: workDir, logger: testLogger()}
		conn := &fakeRemoteConn{
			failPaths: map[string]bool{"backups/" + filepath.Base(rejected): true},
			files:     make(map[string]*fakeRemoteFile),
		}

		Convey("When one remote create fails", func() {
			dest.uploadFiles(conn, []string{rejected, accepted})

			Convey("The remaining files should still be uploaded with mode 0644", func() {
				remote := conn.files["backups/"+filepath.Base(accepted)]
				So(remote, ShouldNotBeNil)
				So(remote.buf.String(), ShouldEqual, "second")
				So(remote.mode, ShouldEqual, os.FileMode(0o644))
				So(remote.closed, ShouldBeTrue)
			})

			Convey("The local files should stay in place", func() {
				for _, file := range []string{rejected, accepted} {
					_, statErr := os.Stat(file)
					So(statErr, ShouldBeNil)
				}
			})
		})
	})
}
