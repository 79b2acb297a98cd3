package metadata

import (
	"strings"
	"time"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// WordsPerMinute is the reading speed used for reading_time.
const WordsPerMinute = 200

// TextStats derives word_count and reading_time from text content.
// reading_time is whole minutes at WordsPerMinute, never less than one.
func TextStats(content string) model.Metadata {
	words := len(strings.Fields(content))
	return model.Metadata{
		FieldWordCount:   words,
		FieldReadingTime: max(1, words/WordsPerMinute),
	}
}

// StorageAttrs describes where a media file lives in a bucket-capable store.
type StorageAttrs struct {
	Bucket      string
	Key         string
	ContentType string
	// ETag is empty when the backend supplies no checksum.
	ETag string
}

// MediaStats holds what is known about a media payload. Nil fields are unknown
// and are not written.
type MediaStats struct {
	FileSize *int64
	Duration *time.Duration
	Storage  *StorageAttrs
}

// Derive turns the stats into metadata fields.
func (s MediaStats) Derive() model.Metadata {
	out := model.Metadata{}
	if s.FileSize != nil {
		out[FieldFileSize] = *s.FileSize
	}
	if s.Duration != nil {
		out[FieldDurationSeconds] = s.Duration.Seconds()
	}
	if s.Storage != nil {
		out[FieldStorageBucket] = s.Storage.Bucket
		out[FieldStorageKey] = s.Storage.Key
		out[FieldETag] = s.Storage.ETag
		if s.Storage.ContentType != "" {
			out[FieldContentType] = s.Storage.ContentType
		}
	}
	return out
}

// Merge returns a new mapping holding base overlaid with derived. base is not
// modified.
func Merge(base, derived model.Metadata) model.Metadata {
	out := make(model.Metadata, len(base)+len(derived))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range derived {
		out[k] = v
	}
	return out
}
