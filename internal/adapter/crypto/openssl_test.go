package crypto

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/semmidev/arca/internal/domain"
)

func TestOpenSSL(t *testing.T) {
	Convey("Given an OpenSSL encryptor", t, func() {
		enc := NewOpenSSL("aes-256-cbc", "hunter2", zap.NewNop().Sugar())

		Convey("Its extension should mark the encrypted state", func() {
			So(enc.Extension(), ShouldEqual, ".enc")
		})

		Convey("Encrypt arguments should carry cipher, key derivation and passphrase", func() {
			args := enc.encryptArgs("/work/daily.tar.bz2", "/work/daily.tar.bz2.enc")

			So(args, ShouldResemble, []string{
				"aes-256-cbc", "-pbkdf2",
				"-in", "/work/daily.tar.bz2",
				"-out", "/work/daily.tar.bz2.enc",
				"-k", "hunter2",
			})
		})

		Convey("Decrypt arguments should add the -d flag", func() {
			args := enc.decryptArgs("/work/daily.tar.bz2.enc", "/work/daily.tar.bz2")

			So(args, ShouldResemble, []string{
				"aes-256-cbc", "-d", "-pbkdf2",
				"-in", "/work/daily.tar.bz2.enc",
				"-out", "/work/daily.tar.bz2",
				"-k", "hunter2",
			})
		})

		Convey("When encrypting and decrypting a real file", func() {
			if _, lookErr := exec.LookPath("openssl"); lookErr != nil {
				SkipConvey("openssl is not installed", func() {})
				return
			}

			workDir, err := os.MkdirTemp("", "openssl_test")
			So(err, ShouldBeNil)
			defer os.RemoveAll(workDir)

			plainPath := filepath.Join(workDir, "daily.tar")
			payload := []byte("tar payload to protect")
			So(os.WriteFile(plainPath, payload, 0o644), ShouldBeNil)

			ctx := context.Background()
			encPath, err := enc.Encrypt(ctx, plainPath)
			So(err, ShouldBeNil)
			So(encPath, ShouldEqual, plainPath+".enc")

			encrypted, err := os.ReadFile(encPath)
			So(err, ShouldBeNil)
			So(bytes.Equal(encrypted, payload), ShouldBeFalse)

			So(os.Remove(plainPath), ShouldBeNil)
			plainAgain, err := enc.Decrypt(ctx, encPath)

			Convey("The round trip should restore the original bytes", func() {
				So(err, ShouldBeNil)
				So(plainAgain, ShouldEqual, plainPath)

				restored, readErr := os.ReadFile(plainAgain)
				So(readErr, ShouldBeNil)
				So(bytes.Equal(restored, payload), ShouldBeTrue)
			})
		})

		Convey("When the tool exits non-zero", func() {
			enc.binary = "false"

			_, err := enc.Encrypt(context.Background(), "/work/daily.tar")

			Convey("The failure should surface as a command error with the exit code", func() {
				So(err, ShouldNotBeNil)

				var cmdErr *domain.CommandError
				So(errors.As(err, &cmdErr), ShouldBeTrue)
				So(cmdErr.ExitCode, ShouldEqual, 1)
			})
		})

		Convey("When the tool cannot be spawned", func() {
			enc.binary = "definitely-not-a-binary"

			_, err := enc.Decrypt(context.Background(), "/work/daily.tar.enc")

			Convey("The exit code should be unknown", func() {
				So(err, ShouldNotBeNil)

				var cmdErr *domain.CommandError
				So(errors.As(err, &cmdErr), ShouldBeTrue)
				So(cmdErr.ExitCode, ShouldEqual, -1)
			})
		})
	})
}
