package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/model"
	"github.com/dharsanguruparan/CaptureVault/internal/objectstore"
	"github.com/dharsanguruparan/CaptureVault/internal/processing"
	"github.com/dharsanguruparan/CaptureVault/internal/storage"
)

var validate = validator.New()

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if err := writeJSON(w, status, payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorBody{Error: msg})
}

// fail maps a service error to its status code. Unexpected errors are logged
// and reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		s.respondError(w, status, "internal server error")
		return
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var unknownKind *metadata.UnknownCaptureKindError
	switch {
	case metadata.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, objectstore.ErrNotFound),
		errors.Is(err, capture.ErrNoMedia):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrKindImmutable),
		errors.Is(err, storage.ErrTagExists):
		return http.StatusConflict
	case errors.Is(err, capture.ErrInvalid),
		errors.Is(err, capture.ErrDetailMismatch),
		errors.Is(err, capture.ErrForeignTag),
		errors.As(err, &unknownKind):
		return http.StatusBadRequest
	case errors.Is(err, processing.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a request body and validates it. Numbers stay integers
// where they were written as integers.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return errors.New("validation error: " + err.Error())
	}
	return nil
}

type textResponse struct {
	Content string `json:"content"`
}

type mediaResponse struct {
	FileKey         string   `json:"fileKey,omitempty"`
	FileName        string   `json:"fileName,omitempty"`
	ContentType     string   `json:"contentType,omitempty"`
	ETag            string   `json:"etag,omitempty"`
	FileSize        *int64   `json:"fileSize,omitempty"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Description     string   `json:"description,omitempty"`
}

type captureResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Title     string         `json:"title"`
	Kind      model.Kind     `json:"kind"`
	TagIDs    []string       `json:"tagIds"`
	Metadata  model.Metadata `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Text      *textResponse  `json:"text,omitempty"`
	Media     *mediaResponse `json:"media,omitempty"`
}

func toResponse(c *model.Capture) captureResponse {
	out := captureResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		Kind:      c.Kind,
		TagIDs:    c.TagIDs,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if out.TagIDs == nil {
		out.TagIDs = []string{}
	}
	if t, ok := c.Text(); ok {
		out.Text = &textResponse{Content: t.Content}
	}
	if m, ok := c.Media(); ok {
		out.Media = &mediaResponse{
			FileKey:     m.FileKey,
			FileName:    m.FileName,
			ContentType: m.ContentType,
			ETag:        m.ETag,
			FileSize:    m.FileSize,
			Description: m.Description,
		}
		if m.Duration != nil {
			secs := m.Duration.Seconds()
			out.Media.DurationSeconds = &secs
		}
	}
	return out
}

func toResponses(cs []*model.Capture) []captureResponse {
	out := make([]captureResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toResponse(c))
	}
	return out
}
