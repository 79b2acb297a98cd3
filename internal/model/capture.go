// Package model contains the records shared across packages: captures, their
// kind-specific detail payloads, tags and integration sync records.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates capture behavior and metadata schema. A named string type
// keeps the value readable in JSON and SQL while still being type checked.
type Kind string

const (
	KindText  Kind = "TEXT"
	KindAudio Kind = "AUDIO"
	KindVideo Kind = "VIDEO"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindText, KindAudio, KindVideo}

// ParseKind accepts any casing ("audio", "Audio", "AUDIO").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown capture kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindAudio, KindVideo:
		return true
	}
	return false
}

// IsMedia reports whether captures of this kind carry a stored file.
func (k Kind) IsMedia() bool {
	return k == KindAudio || k == KindVideo
}

// Metadata is the free-form key/value mapping stored on a capture. Values are
// scalars: strings, integers and floats.
type Metadata map[string]any

// Clone returns a shallow copy; values are scalars so this is a full copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Capture is the root record for one note, audio or video item.
type Capture struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId" validate:"required"`
	Title     string    `json:"title" validate:"required,max=200"`
	Kind      Kind      `json:"kind" validate:"required,oneof=TEXT AUDIO VIDEO"`
	TagIDs    []string  `json:"tagIds,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	// Detail is nil until a text or media payload has been written.
	Detail Detail `json:"detail,omitempty"`
}

// Clone returns a deep copy so stores and callers never share maps or slices.
func (c *Capture) Clone() *Capture {
	if c == nil {
		return nil
	}
	out := *c
	out.Metadata = c.Metadata.Clone()
	if c.TagIDs != nil {
		out.TagIDs = append([]string(nil), c.TagIDs...)
	}
	out.Detail = CloneDetail(c.Detail)
	return &out
}

// Text returns the text payload, if the capture has one.
func (c *Capture) Text() (*TextDetail, bool) {
	d, ok := c.Detail.(*TextDetail)
	return d, ok
}

// Media returns the media payload, if the capture has one.
func (c *Capture) Media() (*MediaDetail, bool) {
	d, ok := c.Detail.(*MediaDetail)
	return d, ok
}

// CaptureFilter narrows listings. Results are always newest first.
type CaptureFilter struct {
	UserID     string
	Kind       Kind
	TitleQuery string
	Limit      int
	Offset     int
}

// Matches applies the filter to a single capture; stores without a query
// language use it directly.
func (f CaptureFilter) Matches(c *Capture) bool {
	if f.UserID != "" && c.UserID != f.UserID {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.TitleQuery != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.TitleQuery)) {
		return false
	}
	return true
}
