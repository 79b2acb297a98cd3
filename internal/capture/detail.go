package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/model"
	"github.com/dharsanguruparan/CaptureVault/internal/objectstore"
)

// SaveText writes the body of a TEXT capture, then merges word_count and
// reading_time into the parent metadata and persists the parent.
func (s *Service) SaveText(ctx context.Context, id, content string) (*model.Capture, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &model.TextDetail{Content: content}
	if !detail.Accepts(c.Kind) {
		return nil, ErrDetailMismatch
	}
	base, err := s.baseMetadata(c)
	if err != nil {
		return nil, err
	}
	derived := metadata.TextStats(content)
	md := metadata.Merge(base, derived)
	if err := metadata.Validate(c.Kind, md); err != nil {
		return nil, err
	}
	if err := s.repo.SaveDetail(ctx, c.ID, detail); err != nil {
		return nil, fmt.Errorf("save text detail: %w", err)
	}
	next := c.Clone()
	next.Detail = detail
	next.Metadata = md
	if err := s.persist(ctx, next, false); err != nil {
		return nil, err
	}
	s.logger.Debug("text metadata derived",
		zap.String("capture_id", c.ID),
		zap.Any("word_count", derived[metadata.FieldWordCount]))
	return next, nil
}

// Upload is a file payload attached to a media write.
type Upload struct {
	Filename    string
	ContentType string
	// Size is the payload length when known, -1 otherwise.
	Size int64
	Body io.Reader
}

// MediaInput is the input of SaveMedia. Nil fields keep their stored values.
type MediaInput struct {
	Upload      *Upload
	Duration    *time.Duration
	Description *string
}

// SaveMedia writes the media detail of an AUDIO or VIDEO capture. An attached
// upload is stored first and its byte length becomes the file size. The
// parent metadata then receives file_size, duration_seconds and, for bucket
// backends, the storage location fields.
func (s *Service) SaveMedia(ctx context.Context, id string, in MediaInput) (*model.Capture, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &model.MediaDetail{}
	if current, ok := c.Media(); ok {
		detail = model.CloneDetail(current).(*model.MediaDetail)
	}
	if !detail.Accepts(c.Kind) {
		return nil, ErrDetailMismatch
	}
	replacedKey := ""
	if in.Upload != nil {
		key := objectstore.UploadKey(c.Kind, in.Upload.Filename, s.now())
		obj, err := s.files.Put(ctx, key, in.Upload.Body, in.Upload.Size, in.Upload.ContentType)
		if err != nil {
			return nil, fmt.Errorf("store media file: %w", err)
		}
		replacedKey = detail.FileKey
		size := obj.Size
		detail.FileKey = obj.Key
		detail.FileName = path.Base(in.Upload.Filename)
		detail.ContentType = obj.ContentType
		detail.ETag = obj.ETag
		detail.FileSize = &size
	}
	if in.Duration != nil {
		dur := *in.Duration
		detail.Duration = &dur
	}
	if in.Description != nil {
		detail.Description = *in.Description
	}
	next, err := s.applyMedia(ctx, c, detail)
	switch {
	case errors.Is(err, errParentWrite):
		// The detail names the new file while the parent metadata may still
		// name the replaced one. Both stay until RefreshMedia repairs the parent.
		if replacedKey != "" && replacedKey != detail.FileKey {
			s.logger.Warn("keeping replaced media file after failed parent write",
				zap.String("capture_id", c.ID),
				zap.String("file_key", replacedKey))
		}
		return nil, err
	case err != nil:
		// The detail still points at the previous file.
		if in.Upload != nil {
			s.removeFile(ctx, detail.FileKey)
		}
		return nil, err
	}
	if replacedKey != "" && replacedKey != detail.FileKey {
		s.removeFile(ctx, replacedKey)
	}
	return next, nil
}

// RefreshMedia re-reads the stored file of a media capture and rewrites the
// derived metadata from what the backend reports now.
func (s *Service) RefreshMedia(ctx context.Context, id string) (*model.Capture, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current, ok := c.Media()
	if !ok || current.FileKey == "" {
		return nil, ErrNoMedia
	}
	obj, err := s.files.Stat(ctx, current.FileKey)
	if err != nil {
		return nil, fmt.Errorf("stat media file: %w", err)
	}
	detail := model.CloneDetail(current).(*model.MediaDetail)
	size := obj.Size
	detail.FileSize = &size
	detail.ETag = obj.ETag
	if obj.ContentType != "" {
		detail.ContentType = obj.ContentType
	}
	return s.applyMedia(ctx, c, detail)
}

// errParentWrite marks failures after the detail was already written; the
// uploaded file is then referenced and must be kept.
var errParentWrite = errors.New("parent write failed")

func (s *Service) applyMedia(ctx context.Context, c *model.Capture, detail *model.MediaDetail) (*model.Capture, error) {
	base, err := s.baseMetadata(c)
	if err != nil {
		return nil, err
	}
	stats := metadata.MediaStats{FileSize: detail.FileSize, Duration: detail.Duration}
	if bs, ok := s.files.(objectstore.BucketStore); ok && detail.FileKey != "" {
		stats.Storage = &metadata.StorageAttrs{
			Bucket:      bs.Bucket(),
			Key:         detail.FileKey,
			ContentType: detail.ContentType,
			ETag:        detail.ETag,
		}
	}
	md := metadata.Merge(base, stats.Derive())
	if err := metadata.Validate(c.Kind, md); err != nil {
		return nil, err
	}
	if err := s.repo.SaveDetail(ctx, c.ID, detail); err != nil {
		return nil, fmt.Errorf("save media detail: %w", err)
	}
	next := c.Clone()
	next.Detail = detail
	next.Metadata = md
	if err := s.persist(ctx, next, false); err != nil {
		return nil, fmt.Errorf("%w: %w", errParentWrite, err)
	}
	return next, nil
}

// AccessURL returns a time-limited URL for the capture's media file when the
// backend can sign one, and the plain file URL otherwise.
func (s *Service) AccessURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	media, ok := c.Media()
	if !ok || media.FileKey == "" {
		return "", ErrNoMedia
	}
	return objectstore.AccessURL(ctx, s.files, media.FileKey, expiry, s.logger), nil
}
