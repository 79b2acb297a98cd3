// Package objectstore describes the file storage collaborator used for media
// payloads and provides a local-disk implementation. Capabilities beyond the
// basic Backend (a bucket, pre-signed URLs) are discovered with type
// assertions, so callers degrade gracefully on simpler backends.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// ErrNotFound is returned by Stat when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a stored file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
	// ETag is the backend checksum, empty when the backend has none.
	ETag string
}

// Backend stores byte payloads under keys.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error)
	Stat(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// URL returns a plain, non-expiring URL for key.
	URL(key string) string
}

// BucketStore is a Backend backed by an object-storage bucket that can issue
// pre-signed URLs.
type BucketStore interface {
	Backend
	Bucket() string
	PresignedURL(ctx context.Context, key string, expiry time.Duration, params url.Values) (string, error)
}

// UploadKey generates the storage path for a new media file:
// captures/<kind>/<year>/<month>/<uuid>.<ext>.
func UploadKey(kind model.Kind, filename string, now time.Time) string {
	name := uuid.NewString()
	if ext := strings.ToLower(path.Ext(path.Base(filename))); ext != "" && ext != "." {
		name += ext
	}
	now = now.UTC()
	return fmt.Sprintf("captures/%s/%04d/%02d/%s", strings.ToLower(string(kind)), now.Year(), int(now.Month()), name)
}
