package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/semmidev/arca/internal/config"
	"github.com/semmidev/arca/internal/domain"
	"github.com/semmidev/arca/internal/naming"
	"github.com/semmidev/arca/internal/progress"
)

// downloadChunkSize is the read size for streamed fetches.
const downloadChunkSize = 32 * 1024

// uploader is the subset of the manager uploader the store loop needs.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3 stores archives as objects in a bucket, one key per final filename.
type S3 struct {
	client   *s3.Client
	uploader uploader
	bucket   string
	workDir  string
	logger   Logger
}

// NewS3 builds the client from the destination config; when no static
// keys are configured the default AWS credential chain applies.
func NewS3(cfg *appconfig.DestinationConfig, workDir string, logger Logger) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: s3manager.NewUploader(client),
		bucket:   cfg.Bucket,
		workDir:  workDir,
		logger:   logger,
	}, nil
}

// Store uploads each file independently with AES-256 server-side
// encryption. A failed upload is logged and leaves the local file in
// place; a successful one removes it.
func (s *S3) Store(ctx context.Context, files []string) error {
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			s.logger.Errorf("stat %q: %v", file, err)
			continue
		}

		body, err := os.Open(file)
		if err != nil {
			s.logger.Errorf("open %q: %v", file, err)
			continue
		}

		key := filepath.Base(file)
		s.logger.Infof("uploading file: %s", file)

		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:               aws.String(s.bucket),
			Key:                  aws.String(key),
			Body:                 body,
			ContentLength:        aws.Int64(info.Size()),
			ServerSideEncryption: types.ServerSideEncryptionAes256,
		})
		body.Close()
		if err != nil {
			s.logger.Errorf("failed to upload %q to s3: %v", file, err)
			continue
		}

		if err := os.Remove(file); err != nil {
			s.logger.Warnf("unable to remove %q after upload: %v", file, err)
		}
	}

	return nil
}

// FetchLatest lists objects under the template's literal prefix, picks the
// newest by last-modified timestamp (objects without one are skipped) and
// downloads it into the working directory with progress reporting.
func (s *S3) FetchLatest(ctx context.Context, archive *domain.Archive) (string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix := naming.LiteralPrefix(archive.Name); prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	resp, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return "", &domain.TransferError{Op: "list s3 bucket", Target: s.bucket, Err: err}
	}

	var newestKey string
	var newestTime time.Time
	for _, obj := range resp.Contents {
		if obj.Key == nil || obj.LastModified == nil {
			continue
		}
		if newestKey == "" || obj.LastModified.After(newestTime) {
			newestKey = *obj.Key
			newestTime = *obj.LastModified
		}
	}
	if newestKey == "" {
		s.logger.Warnf("no s3 object found for archive %q", archive.Name)
		return "", nil
	}

	s.logger.Infof("found latest key: %q", newestKey)

	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(newestKey),
	})
	if err != nil {
		return "", &domain.TransferError{Op: "get s3 object", Target: newestKey, Err: err}
	}
	defer object.Body.Close()

	localPath := filepath.Join(s.workDir, filepath.Base(newestKey))
	var total int64
	if object.ContentLength != nil {
		total = *object.ContentLength
	}

	if err := downloadWithProgress(localPath, object.Body, total); err != nil {
		return "", &domain.TransferError{Op: "download s3 object", Target: newestKey, Err: err}
	}

	return stripArchiveSuffixes(localPath, archive), nil
}

// downloadWithProgress copies body into localPath in fixed chunks while a
// reporting loop renders the shared tracker every 250ms.
func downloadWithProgress(localPath string, body io.Reader, totalLength int64) error {
	file, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	tracker := progress.NewTracker(totalLength)
	reporter := progress.NewReporter(tracker, "downloading...")

	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				tracker.Finish()
				reporter.Wait()
				return err
			}
			tracker.Record(int64(n))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			tracker.Finish()
			reporter.Wait()
			return readErr
		}
	}

	tracker.Finish()
	reporter.Wait()
	return file.Close()
}

// stripArchiveSuffixes walks the filename chain backwards: encryption
// suffix first, then the compression suffix.
func stripArchiveSuffixes(path string, archive *domain.Archive) string {
	if archive.Encryption != nil {
		path = strings.TrimSuffix(path, archive.Encryption.Extension())
	}
	return strings.TrimSuffix(path, archive.Compression.Extension())
}
