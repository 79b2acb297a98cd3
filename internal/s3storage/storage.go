// Package s3storage keeps media files in a MinIO/S3 bucket. Storage satisfies
// objectstore.BucketStore.
package s3storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/CaptureVault/internal/config"
	"github.com/dharsanguruparan/CaptureVault/internal/objectstore"
)

// Storage wraps MinIO/S3 interactions for the media bucket.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client: client,
		bucket: cfg.MediaBucket,
		region: cfg.S3Region,
	}, nil
}

// Bucket returns the media bucket name.
func (s *Storage) Bucket() string { return s.bucket }

// EnsureBucket makes sure the media bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put uploads a media payload. The returned size and ETag come from the
// server's upload response.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*objectstore.Object, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, opts)
	if err != nil {
		return nil, fmt.Errorf("upload media object: %w", err)
	}
	return &objectstore.Object{
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		ETag:        strings.Trim(info.ETag, `"`),
	}, nil
}

// Stat fetches the current size, content type and ETag of an object.
func (s *Storage) Stat(ctx context.Context, key string) (*objectstore.Object, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, objectstore.ErrNotFound
		}
		return nil, fmt.Errorf("stat media object: %w", err)
	}
	return &objectstore.Object{
		Key:         key,
		Size:        info.Size,
		ContentType: info.ContentType,
		ETag:        strings.Trim(info.ETag, `"`),
	}, nil
}

// Delete removes an object; removing a missing object is not an error in S3.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove media object: %w", err)
	}
	return nil
}

// URL returns the unsigned path-style URL of an object. It only works for
// publicly readable buckets; AccessURL prefers PresignedURL.
func (s *Storage) URL(key string) string {
	u := *s.client.EndpointURL()
	u.Path = "/" + s.bucket + "/" + strings.TrimLeft(key, "/")
	return u.String()
}

// PresignedURL returns a signed GET URL. params become response-* overrides
// such as response-content-disposition.
func (s *Storage) PresignedURL(ctx context.Context, key string, expiry time.Duration, params url.Values) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign media object: %w", err)
	}
	return u.String(), nil
}

var _ objectstore.BucketStore = (*Storage)(nil)
