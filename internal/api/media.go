package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	pdfutil "github.com/dharsanguruparan/CaptureVault/internal/pdf"
)

const (
	// maxFieldBytes bounds the non-file multipart fields.
	maxFieldBytes = 4 << 10
	// maxURLExpiry is the longest lifetime S3 accepts for a presigned URL.
	maxURLExpiry = 7 * 24 * time.Hour
)

var (
	errTooLarge    = errors.New("file exceeds size limit")
	errEmptyFile   = errors.New("empty file")
	errUnsupported = errors.New("file type not allowed")
)

// handleSaveMedia streams a multipart body with an optional "file" part and
// optional "duration" and "description" fields.
func (s *Server) handleSaveMedia(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64<<10)
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	var (
		in  capture.MediaInput
		tmp *tempUpload
	)
	defer func() {
		if tmp != nil {
			tmp.remove()
		}
	}()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.uploadError(w, err)
			return
		}
		switch part.FormName() {
		case "file":
			if tmp != nil {
				part.Close()
				continue
			}
			if tmp, err = s.persistTemp(part); err != nil {
				s.uploadError(w, err)
				return
			}
		case "duration":
			v, err := readField(part)
			if err != nil {
				s.uploadError(w, err)
				return
			}
			d, err := parseDuration(v)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			in.Duration = &d
		case "description":
			v, err := readField(part)
			if err != nil {
				s.uploadError(w, err)
				return
			}
			in.Description = &v
		default:
			part.Close()
		}
	}
	if tmp != nil {
		in.Upload = &capture.Upload{
			Filename:    tmp.filename,
			ContentType: tmp.contentType,
			Size:        tmp.size,
			Body:        tmp.f,
		}
	}
	updated, err := s.svc.SaveMedia(r.Context(), c.ID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(updated))
}

// handleImportPDF extracts the text of an uploaded PDF into a TEXT capture.
func (s *Server) handleImportPDF(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64<<10)
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		s.uploadError(w, err)
		return
	}
	defer part.Close()
	text, err := pdfutil.ExtractFromReader(part, s.cfg.MaxFileSize)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.Is(err, pdfutil.ErrTooLarge) || errors.As(err, &maxErr) {
			s.uploadError(w, err)
			return
		}
		s.respondError(w, http.StatusBadRequest, "unreadable pdf: "+err.Error())
		return
	}
	updated, err := s.svc.SaveText(r.Context(), c.ID, text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handleMediaURL(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	expiry := s.cfg.SignedURLTTL
	if v := r.URL.Query().Get("expires"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.respondError(w, http.StatusBadRequest, "expires must be a positive duration such as 15m")
			return
		}
		expiry = d
	}
	if expiry > maxURLExpiry {
		expiry = maxURLExpiry
	}
	url, err := s.svc.AccessURL(r.Context(), c.ID, expiry)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"url":       url,
		"expiresIn": int64(expiry.Seconds()),
	})
}

// handleReconcile rewrites derived media metadata from the stored file, on
// the queue when one is configured.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	if s.opts.Reconciler == nil {
		updated, err := s.svc.RefreshMedia(r.Context(), c.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toResponse(updated))
		return
	}
	if m, ok := c.Media(); !ok || m.FileKey == "" {
		s.fail(w, r, capture.ErrNoMedia)
		return
	}
	if err := s.opts.Reconciler.EnqueueReconcile(r.Context(), c.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": c.ID, "status": "queued"})
}

func (s *Server) uploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errTooLarge), errors.Is(err, pdfutil.ErrTooLarge), errors.As(err, &maxErr):
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize))
	case errors.Is(err, errUnsupported):
		s.respondError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		s.logger.Debug("bad upload", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
	}
}

type tempUpload struct {
	f           *os.File
	size        int64
	contentType string
	filename    string
}

func (t *tempUpload) remove() {
	t.f.Close()
	os.Remove(t.f.Name())
}

// persistTemp spools a file part to disk, enforcing the size limit and the
// allowed content types. The returned file is positioned at its start.
func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	defer part.Close()
	tmpFile, err := os.CreateTemp("", "capture-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmp := &tempUpload{f: tmpFile, filename: part.FileName()}
	var sniff []byte
	buf := make([]byte, 32*1024)
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			tmp.size += int64(n)
			if tmp.size > s.cfg.MaxFileSize {
				tmp.remove()
				return nil, errTooLarge
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				tmp.remove()
				return nil, fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			tmp.remove()
			return nil, fmt.Errorf("read file: %w", readErr)
		}
	}
	if tmp.size == 0 {
		tmp.remove()
		return nil, errEmptyFile
	}
	if tmp.filename == "" {
		tmp.filename = "upload"
	}
	tmp.contentType = resolveType(http.DetectContentType(sniff), part.Header.Get("Content-Type"), tmp.filename)
	if !s.cfg.AllowsType(tmp.contentType) {
		tmp.remove()
		return nil, fmt.Errorf("%w: %s", errUnsupported, tmp.contentType)
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		tmp.remove()
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return tmp, nil
}

// resolveType prefers the sniffed type, then the declared part type, then the
// file extension.
func resolveType(sniffed, declared, filename string) string {
	if sniffed != "" && sniffed != "application/octet-stream" {
		return sniffed
	}
	if declared != "" {
		return declared
	}
	if t := mime.TypeByExtension(path.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func readField(part *multipart.Part) (string, error) {
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", fmt.Errorf("read field %s: %w", part.FormName(), err)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseDuration accepts seconds ("90.5") or a Go duration ("1m30s").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		switch {
		case math.IsNaN(secs), math.IsInf(secs, 0):
			return 0, fmt.Errorf("invalid duration %q", v)
		case secs < 0:
			return 0, errors.New("duration must not be negative")
		case secs*float64(time.Second) >= float64(math.MaxInt64):
			return 0, fmt.Errorf("duration %q is too long", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	if d < 0 {
		return 0, errors.New("duration must not be negative")
	}
	return d, nil
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing file part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}
