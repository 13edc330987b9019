// Package archive keeps a copy of every submitted contract's source bytes in
// S3-compatible object storage, keyed by fingerprint.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ericksa/lexiguard/internal/config"
)

// Archiver stores source documents.
type Archiver interface {
	// Put stores data under the fingerprint and returns the object key.
	Put(ctx context.Context, hash, filename string, data []byte) (string, error)
}

// Nop discards everything. It is used when archiving is disabled.
type Nop struct{}

func (Nop) Put(_ context.Context, hash, filename string, _ []byte) (string, error) {
	return ObjectKey(hash, filename), nil
}

// ObjectKey is contracts/<hash><ext>, where ext comes from filename.
func ObjectKey(hash, filename string) string {
	ext := ""
	if i := strings.LastIndexByte(filename, '.'); i >= 0 && !strings.ContainsAny(filename[i:], "/\\") {
		ext = strings.ToLower(filename[i:])
	}
	return "contracts/" + hash + ext
}

type MinIOArchive struct {
	client *minio.Client
	bucket string
}

func NewMinIOArchive(cfg config.MinIOConfig) (*MinIOArchive, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIOArchive{client: minioClient, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (a *MinIOArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (a *MinIOArchive) Put(ctx context.Context, hash, filename string, data []byte) (string, error) {
	key := ObjectKey(hash, filename)
	contentType := "application/octet-stream"
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		if t := mime.TypeByExtension(key[i:]); t != "" {
			contentType = t
		}
	}
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"filename": filename},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload: %w", err)
	}
	return key, nil
}
