package crypto

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/semmidev/arca/internal/domain"
)

// encExtension marks the encrypted state in the filename chain.
const encExtension = ".enc"

type Logger interface {
	Infof(template string, args ...interface{})
}

// OpenSSL encrypts and decrypts files by spawning the openssl binary with
// a configured cipher. The passphrase travels as a command argument, which
// mirrors the tool contract this was built against; it is visible in
// process listings on shared hosts.
type OpenSSL struct {
	cipher     string
	passphrase string
	binary     string
	logger     Logger
}

func NewOpenSSL(cipher, passphrase string, logger Logger) *OpenSSL {
	return &OpenSSL{
		cipher:     cipher,
		passphrase: passphrase,
		binary:     "openssl",
		logger:     logger,
	}
}

func (o *OpenSSL) Extension() string {
	return encExtension
}

// Encrypt produces <path>.enc and returns the new path.
func (o *OpenSSL) Encrypt(ctx context.Context, path string) (string, error) {
	outputPath := path + encExtension
	if err := o.run(ctx, o.encryptArgs(path, outputPath)); err != nil {
		return "", err
	}
	o.logger.Infof("encryption of %q finished", path)
	return outputPath, nil
}

// Decrypt reverses Encrypt, stripping the ".enc" suffix.
func (o *OpenSSL) Decrypt(ctx context.Context, path string) (string, error) {
	outputPath := strings.TrimSuffix(path, encExtension)
	if err := o.run(ctx, o.decryptArgs(path, outputPath)); err != nil {
		return "", err
	}
	o.logger.Infof("decryption of %q finished", path)
	return outputPath, nil
}

func (o *OpenSSL) encryptArgs(in, out string) []string {
	return []string{o.cipher, "-pbkdf2", "-in", in, "-out", out, "-k", o.passphrase}
}

func (o *OpenSSL) decryptArgs(in, out string) []string {
	return []string{o.cipher, "-d", "-pbkdf2", "-in", in, "-out", out, "-k", o.passphrase}
}

func (o *OpenSSL) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, o.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &domain.CommandError{
			Command:  o.binary + " " + o.cipher,
			ExitCode: code,
			Err:      fmt.Errorf("%w, output: %s", err, string(output)),
		}
	}
	return nil
}
