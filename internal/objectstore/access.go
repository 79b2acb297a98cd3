package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
)

// DefaultAccessExpiry is used when AccessURL is given no positive expiry.
const DefaultAccessExpiry = time.Hour

// AccessURL returns a URL for the object at key. Bucket stores get a
// pre-signed URL that renders inline under the file's base name; any presign
// failure is logged and the plain URL is returned instead. AccessURL never
// fails: callers always get a URL, possibly without expiry enforcement.
func AccessURL(ctx context.Context, backend Backend, key string, expiry time.Duration, logger *zap.Logger) string {
	if expiry <= 0 {
		expiry = DefaultAccessExpiry
	}
	bs, ok := backend.(BucketStore)
	if !ok {
		return backend.URL(key)
	}
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", path.Base(key)))
	signed, err := bs.PresignedURL(ctx, key, expiry, params)
	if err != nil {
		if logger != nil {
			logger.Warn("presign failed, falling back to plain url",
				zap.String("bucket", bs.Bucket()),
				zap.String("key", key),
				zap.Error(err))
		}
		return backend.URL(key)
	}
	return signed
}
