package model

import "time"

// Detail is the kind-specific payload of a capture. The interface is sealed:
// only TextDetail and MediaDetail implement it, so a capture holds exactly one
// payload variant and the variant must agree with the capture kind.
type Detail interface {
	// Accepts reports whether the payload may be attached to a capture of kind.
	Accepts(kind Kind) bool
	detail()
}

// TextDetail holds the rich-text body of a TEXT capture.
type TextDetail struct {
	Content string `json:"content"`
}

func (*TextDetail) Accepts(kind Kind) bool { return kind == KindText }
func (*TextDetail) detail()                {}

// MediaDetail references the stored file of an AUDIO or VIDEO capture.
type MediaDetail struct {
	FileKey     string         `json:"fileKey,omitempty"`
	FileName    string         `json:"fileName,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	ETag        string         `json:"etag,omitempty"`
	FileSize    *int64         `json:"fileSize,omitempty"`
	Duration    *time.Duration `json:"duration,omitempty"`
	Description string         `json:"description,omitempty"`
}

func (*MediaDetail) Accepts(kind Kind) bool { return kind.IsMedia() }
func (*MediaDetail) detail()                {}

// CloneDetail deep copies either payload variant.
func CloneDetail(d Detail) Detail {
	switch v := d.(type) {
	case *TextDetail:
		if v == nil {
			return nil
		}
		out := *v
		return &out
	case *MediaDetail:
		if v == nil {
			return nil
		}
		out := *v
		if v.FileSize != nil {
			size := *v.FileSize
			out.FileSize = &size
		}
		if v.Duration != nil {
			dur := *v.Duration
			out.Duration = &dur
		}
		return &out
	}
	return nil
}
