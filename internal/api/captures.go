package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type createCaptureRequest struct {
	Title    string         `json:"title" validate:"required,max=200"`
	Kind     string         `json:"kind" validate:"required"`
	TagIDs   []string       `json:"tagIds" validate:"omitempty,max=50,dive,required"`
	Metadata model.Metadata `json:"metadata"`
	Text     *string        `json:"text"`
}

type updateCaptureRequest struct {
	Title    *string        `json:"title" validate:"omitempty,max=200"`
	Kind     *string        `json:"kind"`
	TagIDs   *[]string      `json:"tagIds" validate:"omitempty,max=50,dive,required"`
	Metadata model.Metadata `json:"metadata"`
}

type saveTextRequest struct {
	Content string `json:"content"`
}

type recordSyncRequest struct {
	IntegrationID string `json:"integrationId" validate:"required"`
	ExternalID    string `json:"externalId" validate:"required,max=255"`
	Status        string `json:"status"`
}

type createIntegrationRequest struct {
	Kind        string         `json:"kind" validate:"required"`
	Credentials map[string]any `json:"credentials"`
}

type createTagRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

func (s *Server) handleCreateCapture(w http.ResponseWriter, r *http.Request) {
	var req createCaptureRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.svc.Create(r.Context(), capture.NewCapture{
		UserID:   userFrom(r.Context()),
		Title:    req.Title,
		Kind:     kind,
		TagIDs:   req.TagIDs,
		Metadata: metadata.Normalize(req.Metadata),
		Text:     req.Text,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toResponse(c))
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.CaptureFilter{
		UserID:     userFrom(r.Context()),
		TitleQuery: q.Get("q"),
		Limit:      defaultPageSize,
	}
	if v := q.Get("kind"); v != "" {
		kind, err := model.ParseKind(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Kind = kind
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), defaultPageSize); err != nil || f.Limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset, err = intParam(q.Get("offset"), 0); err != nil || f.Offset < 0 {
		s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	captures, err := s.svc.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"captures": toResponses(captures),
		"limit":    f.Limit,
		"offset":   f.Offset,
	})
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// owned loads the capture named in the path for the acting user. It writes
// the error response itself and reports whether the handler may continue.
func (s *Server) owned(w http.ResponseWriter, r *http.Request) (*model.Capture, bool) {
	c, err := s.svc.Owned(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return c, true
}

func (s *Server) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(c))
}

func (s *Server) handleUpdateCapture(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	var req updateCaptureRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch := capture.CaptureUpdate{
		Title:    req.Title,
		TagIDs:   req.TagIDs,
		Metadata: metadata.Normalize(req.Metadata),
	}
	if req.Kind != nil {
		kind, err := model.ParseKind(*req.Kind)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Kind = &kind
	}
	updated, err := s.svc.Update(r.Context(), c.ID, patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), c.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveText(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	var req saveTextRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := s.svc.SaveText(r.Context(), c.ID, req.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handleListSyncs(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	syncs, err := s.svc.ListSyncs(r.Context(), c.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"syncs": syncs})
}

func (s *Server) handleRecordSync(w http.ResponseWriter, r *http.Request) {
	c, ok := s.owned(w, r)
	if !ok {
		return
	}
	var req recordSyncRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := model.ParseSyncStatus(req.Status)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sync := &model.CaptureSync{
		CaptureID:     c.ID,
		IntegrationID: req.IntegrationID,
		ExternalID:    req.ExternalID,
		Status:        status,
	}
	if err := s.svc.RecordSync(r.Context(), sync); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sync)
}

func (s *Server) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var req createIntegrationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := model.ParseIntegrationKind(req.Kind)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := s.svc.CreateIntegration(r.Context(), userFrom(r.Context()), kind, req.Credentials)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, in)
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := s.svc.ListIntegrations(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"integrations": integrations})
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tag, err := s.svc.CreateTag(r.Context(), userFrom(r.Context()), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.svc.ListTags(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
}
