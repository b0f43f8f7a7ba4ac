package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mpetrovs/scribebot/internal/common"
)

// ObjectStore holds audio objects in the bucket the recognizer reads from.
type ObjectStore interface {
	Upload(ctx context.Context, path string) (key string, err error)
	Delete(ctx context.Context, key string) error
}

// S3Config configures the S3-compatible object storage backend.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store implements ObjectStore on top of aws-sdk-go-v2 with static
// credentials and a custom endpoint.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// storageKey builds a date-partitioned unique object key, keeping the
// source file's extension so the recognizer can infer the container.
func storageKey(path string) string {
	d := time.Now()
	return fmt.Sprintf("audio/%d/%d/%d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), filepath.Ext(path))
}

func (s *S3Store) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w: %v", path, common.ErrFileAccess, err)
	}
	defer f.Close()

	key := storageKey(path)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w: %v", key, common.ErrNetwork, err)
	}

	return key, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w: %v", key, common.ErrNetwork, err)
	}
	return nil
}
