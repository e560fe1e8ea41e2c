package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sierra-preorder/config"
)

// ImageStore saves a menu image and returns the URL it is served from.
type ImageStore interface {
	Put(ctx context.Context, itemID, filename, contentType string, r io.Reader, size int64) (string, error)
}

// MinioImages stores menu images in a MinIO (S3 compatible) bucket.
type MinioImages struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioImages connects to MinIO and creates the bucket when it is missing.
func NewMinioImages(ctx context.Context, cfg config.MinioConfig) (*MinioImages, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &MinioImages{client: client, bucket: cfg.Bucket, publicURL: strings.TrimRight(public, "/")}, nil
}

func (s *MinioImages) Put(ctx context.Context, itemID, filename, contentType string, r io.Reader, size int64) (string, error) {
	name := ImageObjectName(itemID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return s.publicURL + "/" + name, nil
}

// ImageObjectName builds a unique object key under the item's prefix, keeping the extension.
func ImageObjectName(itemID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("menu/%s/%s%s", itemID, uuid.NewString(), ext)
}
