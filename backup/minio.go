package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	Insecure bool
}

// MinioTarget stores backups in an S3-compatible bucket
type MinioTarget struct {
	Client *minio.Client
	Bucket string
}

// NewMinioTarget connects and verifies that the bucket exists
func NewMinioTarget(ctx context.Context, c *MinioConfig) (*MinioTarget, error) {
	if c == nil {
		return nil, errors.New("must provide config")
	}
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return nil, errors.New("must provide all fields in config")
	}
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &MinioTarget{
		Client: mc,
		Bucket: c.Bucket,
	}, nil
}

func contentTypeFor(remotePath string) string {
	switch filepath.Ext(remotePath) {
	case ".br":
		return "application/x-brotli"
	case ".zst":
		return "application/zstd"
	case ".csv":
		return "text/csv"
	}
	if ct := mime.TypeByExtension(filepath.Ext(remotePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (t *MinioTarget) Upload(ctx context.Context, remotePath string, data []byte) error {
	opts := minio.PutObjectOptions{
		ContentType: contentTypeFor(remotePath),
	}
	r := bytes.NewReader(data)
	_, err := t.Client.PutObject(ctx, t.Bucket, remotePath, r, int64(len(data)), opts)
	return err
}

func (t *MinioTarget) String() string {
	return fmt.Sprintf("minio bucket '%s'", t.Bucket)
}
