package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	appconfig "github.com/semmidev/arca/internal/config"
	"github.com/semmidev/arca/internal/domain"
	"github.com/semmidev/arca/internal/naming"
)

// transferChunkSize is the fixed transfer chunk. Larger writes have been
// observed to truncate transfers over this transport, so keep it at 32KiB.
const transferChunkSize = 32 * 1024

const defaultSFTPPort = 22

// SFTP stores archives on a remote host over an SSH session with password
// authentication.
type SFTP struct {
	server    string
	port      int
	username  string
	password  string
	remoteDir string
	workDir   string
	logger    Logger
}

func NewSFTP(cfg *appconfig.DestinationConfig, workDir string, logger Logger) *SFTP {
	port := cfg.Port
	if port == 0 {
		port = defaultSFTPPort
	}
	remoteDir := cfg.Path
	if remoteDir == "" {
		remoteDir = "."
	}

	return &SFTP{
		server:    cfg.Server,
		port:      port,
		username:  cfg.Username,
		password:  cfg.Password,
		remoteDir: remoteDir,
		workDir:   workDir,
		logger:    logger,
	}
}

func (s *SFTP) connect() (*ssh.Client, *sftp.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.server, s.port)

	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            s.username,
		Auth:            []ssh.AuthMethod{ssh.Password(s.password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	})
	if err != nil {
		return nil, nil, &domain.TransferError{Op: "dial", Target: addr, Err: err}
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, &domain.TransferError{Op: "open sftp session", Target: addr, Err: err}
	}

	return conn, client, nil
}

// remoteFile is the write surface of one uploaded file.
type remoteFile interface {
	io.WriteCloser
	Chmod(mode os.FileMode) error
}

// remoteConn is the subset of the sftp session the upload loop needs.
type remoteConn interface {
	Create(path string) (remoteFile, error)
}

type sftpConn struct {
	client *sftp.Client
}

func (c sftpConn) Create(path string) (remoteFile, error) {
	return c.client.Create(path)
}

// Store opens one session for the archive run and uploads each file in
// fixed chunks with remote mode 0644. Per-file failures are logged and
// skipped; only a failed session is an error.
func (s *SFTP) Store(ctx context.Context, files []string) error {
	conn, client, err := s.connect()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	s.uploadFiles(sftpConn{client: client}, files)
	return nil
}

func (s *SFTP) uploadFiles(conn remoteConn, files []string) {
	for _, file := range files {
		if err := s.storeFile(conn, file); err != nil {
			s.logger.Errorf("failed to upload %q: %v", file, err)
		}
	}
}

func (s *SFTP) storeFile(conn remoteConn, file string) error {
	src, err := os.Open(file)
	if err != nil {
		return err
	}
	defer src.Close()

	remotePath := path.Join(s.remoteDir, filepath.Base(file))
	s.logger.Infof("uploading file: %s", file)

	dst, err := conn.Create(remotePath)
	if err != nil {
		return err
	}
	if err := dst.Chmod(0o644); err != nil {
		dst.Close()
		return err
	}

	buf := make([]byte, transferChunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				dst.Close()
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			return readErr
		}
	}

	return dst.Close()
}

// FetchLatest lists the remote directory, filters entries by the name
// template's literal prefix, downloads the newest by modification time
// with progress reporting, and strips the suffix chain.
func (s *SFTP) FetchLatest(ctx context.Context, archive *domain.Archive) (string, error) {
	conn, client, err := s.connect()
	if err != nil {
		return "", err
	}
	defer conn.Close()
	defer client.Close()

	entries, err := client.ReadDir(s.remoteDir)
	if err != nil {
		return "", &domain.TransferError{Op: "list remote directory", Target: s.remoteDir, Err: err}
	}

	prefix := naming.LiteralPrefix(archive.Name)

	var newest os.FileInfo
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if newest == nil || entry.ModTime().After(newest.ModTime()) {
			newest = entry
		}
	}
	if newest == nil {
		s.logger.Warnf("no remote file found for archive %q", archive.Name)
		return "", nil
	}

	remotePath := path.Join(s.remoteDir, newest.Name())
	s.logger.Infof("found latest file: %q", remotePath)

	src, err := client.Open(remotePath)
	if err != nil {
		return "", &domain.TransferError{Op: "open remote file", Target: remotePath, Err: err}
	}
	defer src.Close()

	localPath := filepath.Join(s.workDir, newest.Name())
	if err := downloadWithProgress(localPath, src, newest.Size()); err != nil {
		return "", &domain.TransferError{Op: "download remote file", Target: remotePath, Err: err}
	}

	return stripArchiveSuffixes(localPath, archive), nil
}
