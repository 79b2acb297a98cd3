// Package metadata owns the per-kind metadata schema of captures: which fields
// are required, their defaults, validation, and the fields derived from text
// and media payloads.
package metadata

import (
	"sort"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// FieldType is the scalar type a schema field must hold.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "integer"
	TypeFloat  FieldType = "float"
)

// Field names written by the engine.
const (
	FieldLanguage        = "language"
	FieldSourceDevice    = "source_device"
	FieldWordCount       = "word_count"
	FieldReadingTime     = "reading_time"
	FieldSampleRate      = "sample_rate"
	FieldChannels        = "channels"
	FieldCodec           = "codec"
	FieldBitRate         = "bit_rate"
	FieldResolution      = "resolution"
	FieldFrameRate       = "frame_rate"
	FieldStorageBucket   = "storage_bucket"
	FieldStorageKey      = "storage_key"
	FieldContentType     = "content_type"
	FieldETag            = "etag"
	FieldFileSize        = "file_size"
	FieldDurationSeconds = "duration_seconds"
)

// Schema maps required field names to their type.
type Schema map[string]FieldType

// Fields returns the field names in sorted order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var baseSchema = Schema{
	FieldLanguage:     TypeString,
	FieldSourceDevice: TypeString,
}

var storageSchema = Schema{
	FieldStorageBucket: TypeString,
	FieldStorageKey:    TypeString,
	FieldContentType:   TypeString,
	FieldETag:          TypeString,
}

var kindSchemas = map[model.Kind][]Schema{
	model.KindText: {{
		FieldWordCount:   TypeInt,
		FieldReadingTime: TypeInt,
	}},
	model.KindAudio: {{
		FieldSampleRate: TypeInt,
		FieldChannels:   TypeInt,
		FieldCodec:      TypeString,
		FieldBitRate:    TypeInt,
	}, storageSchema},
	model.KindVideo: {{
		FieldResolution: TypeString,
		FieldFrameRate:  TypeFloat,
		FieldCodec:      TypeString,
		FieldBitRate:    TypeInt,
	}, storageSchema},
}

var baseDefaults = model.Metadata{
	FieldLanguage:     "en",
	FieldSourceDevice: "web",
}

var kindDefaults = map[model.Kind]model.Metadata{
	model.KindText: {
		FieldWordCount:   0,
		FieldReadingTime: 0,
	},
	model.KindAudio: {
		FieldSampleRate: 44100,
		FieldChannels:   2,
		FieldCodec:      "aac",
		FieldBitRate:    128000,
	},
	model.KindVideo: {
		FieldResolution: "1920x1080",
		FieldFrameRate:  30.0,
		FieldCodec:      "h264",
		FieldBitRate:    5000000,
	},
}

// SchemaFor returns the required fields for kind: the base fields plus the
// kind-specific ones. Media kinds also carry the storage fields.
func SchemaFor(kind model.Kind) (Schema, error) {
	parts, ok := kindSchemas[kind]
	if !ok {
		return nil, &UnknownCaptureKindError{Kind: kind}
	}
	out := make(Schema, len(baseSchema)+8)
	for name, typ := range baseSchema {
		out[name] = typ
	}
	for _, part := range parts {
		for name, typ := range part {
			out[name] = typ
		}
	}
	return out, nil
}

// Registry produces default metadata. It only exists because the storage
// bucket default depends on deployment configuration.
type Registry struct {
	bucket string
}

// NewRegistry builds a Registry. bucket may be empty when media is not kept in
// an object store.
func NewRegistry(bucket string) *Registry {
	return &Registry{bucket: bucket}
}

// DefaultsFor returns a fresh default mapping for kind. Every schema field
// has a value, so the result always validates.
func (r *Registry) DefaultsFor(kind model.Kind) (model.Metadata, error) {
	kd, ok := kindDefaults[kind]
	if !ok {
		return nil, &UnknownCaptureKindError{Kind: kind}
	}
	out := make(model.Metadata, len(baseDefaults)+len(kd)+len(storageSchema))
	for k, v := range baseDefaults {
		out[k] = v
	}
	for k, v := range kd {
		out[k] = v
	}
	if kind.IsMedia() {
		for name := range storageSchema {
			out[name] = ""
		}
		out[FieldStorageBucket] = r.bucket
	}
	return out, nil
}
