// Package capture coordinates capture writes: it fills default metadata,
// validates it against the kind schema, and folds metadata derived from text
// and media payloads back into the parent capture.
//
// Every write is a plain sequence of blocking calls. A detail write and the
// following parent write are two separate repository calls; a crash between
// them leaves derived metadata stale until RefreshMedia or the next write.
// Concurrent writers to one capture are last-write-wins.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/model"
	"github.com/dharsanguruparan/CaptureVault/internal/objectstore"
	"github.com/dharsanguruparan/CaptureVault/internal/storage"
)

// Repository is the persistence collaborator. Implementations return
// storage.ErrNotFound for missing records.
type Repository interface {
	CreateCapture(ctx context.Context, c *model.Capture) error
	UpdateCapture(ctx context.Context, c *model.Capture) error
	GetCapture(ctx context.Context, id string) (*model.Capture, error)
	ListCaptures(ctx context.Context, f model.CaptureFilter) ([]*model.Capture, error)
	DeleteCapture(ctx context.Context, id string) error
	SaveDetail(ctx context.Context, captureID string, d model.Detail) error

	CreateTag(ctx context.Context, t *model.Tag) error
	ListTags(ctx context.Context, userID string) ([]*model.Tag, error)
	GetTags(ctx context.Context, ids []string) ([]*model.Tag, error)

	CreateIntegration(ctx context.Context, in *model.Integration) error
	ListIntegrations(ctx context.Context, userID string) ([]*model.Integration, error)
	GetIntegration(ctx context.Context, id string) (*model.Integration, error)

	SaveSync(ctx context.Context, s *model.CaptureSync) error
	ListSyncs(ctx context.Context, captureID string) ([]*model.CaptureSync, error)
}

// Service is the metadata lifecycle coordinator.
type Service struct {
	repo     Repository
	files    objectstore.Backend
	registry *metadata.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the coordinator. logger may be nil.
func NewService(repo Repository, files objectstore.Backend, registry *metadata.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		files:    files,
		registry: registry,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewCapture is the input of Create.
type NewCapture struct {
	UserID   string
	Title    string
	Kind     model.Kind
	TagIDs   []string
	Metadata model.Metadata
	// Text optionally writes the body of a TEXT capture right after creation.
	Text *string
}

// Create persists a new capture. Empty metadata is replaced by the kind
// defaults; non-empty metadata must already satisfy the schema.
func (s *Service) Create(ctx context.Context, in NewCapture) (*model.Capture, error) {
	now := s.now()
	c := &model.Capture{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     strings.TrimSpace(in.Title),
		Kind:      in.Kind,
		Metadata:  in.Metadata.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateStruct(c); err != nil {
		return nil, err
	}
	if in.Text != nil && c.Kind != model.KindText {
		return nil, ErrDetailMismatch
	}
	tags, err := s.ownedTags(ctx, c.UserID, in.TagIDs)
	if err != nil {
		return nil, err
	}
	c.TagIDs = tags
	if err := s.persist(ctx, c, true); err != nil {
		return nil, err
	}
	s.logger.Info("capture created",
		zap.String("capture_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.String("kind", string(c.Kind)))
	if in.Text != nil {
		return s.SaveText(ctx, c.ID, *in.Text)
	}
	return c, nil
}

// Save runs the capture persist contract for c: defaults when metadata is
// empty, schema validation, then a create or update. An existing capture
// cannot change kind or owner. On failure nothing is written and c keeps its
// original metadata.
func (s *Service) Save(ctx context.Context, c *model.Capture) error {
	if err := validateStruct(c); err != nil {
		return err
	}
	existing, err := s.repo.GetCapture(ctx, c.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
		return s.persist(ctx, c, true)
	case err != nil:
		return fmt.Errorf("load capture: %w", err)
	}
	if existing.Kind != c.Kind {
		return ErrKindImmutable
	}
	if existing.UserID != c.UserID {
		return storage.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	return s.persist(ctx, c, false)
}

// persist fills defaults, validates, then writes. c is only modified once
// validation has passed.
func (s *Service) persist(ctx context.Context, c *model.Capture, create bool) error {
	md := c.Metadata
	if len(md) == 0 {
		defaults, err := s.registry.DefaultsFor(c.Kind)
		if err != nil {
			return err
		}
		md = defaults
	}
	if err := metadata.Validate(c.Kind, md); err != nil {
		return err
	}
	c.Metadata = md
	c.UpdatedAt = s.now()
	if create {
		if err := s.repo.CreateCapture(ctx, c); err != nil {
			return fmt.Errorf("create capture: %w", err)
		}
		return nil
	}
	if err := s.repo.UpdateCapture(ctx, c); err != nil {
		return fmt.Errorf("update capture: %w", err)
	}
	return nil
}

// CaptureUpdate patches the mutable fields of a capture. Nil fields are left
// alone. Metadata is merged key by key; a nil value removes the key.
type CaptureUpdate struct {
	Title    *string
	Kind     *model.Kind
	TagIDs   *[]string
	Metadata model.Metadata
}

// Update applies patch to the capture and persists it.
func (s *Service) Update(ctx context.Context, id string, patch CaptureUpdate) (*model.Capture, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Kind != nil && *patch.Kind != current.Kind {
		return nil, ErrKindImmutable
	}
	next := current.Clone()
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if err := validateStruct(next); err != nil {
		return nil, err
	}
	if patch.TagIDs != nil {
		tags, err := s.ownedTags(ctx, next.UserID, *patch.TagIDs)
		if err != nil {
			return nil, err
		}
		next.TagIDs = tags
	}
	if len(patch.Metadata) > 0 {
		md := metadata.Merge(next.Metadata, patch.Metadata)
		for k, v := range patch.Metadata {
			if v == nil {
				delete(md, k)
			}
		}
		next.Metadata = md
	}
	if err := s.persist(ctx, next, false); err != nil {
		return nil, err
	}
	return next, nil
}

// Get loads a capture with its detail.
func (s *Service) Get(ctx context.Context, id string) (*model.Capture, error) {
	c, err := s.repo.GetCapture(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get capture %s: %w", id, err)
	}
	return c, nil
}

// Owned loads a capture only if it belongs to userID; captures of other users
// are reported as not found.
func (s *Service) Owned(ctx context.Context, userID, id string) (*model.Capture, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("get capture %s: %w", id, storage.ErrNotFound)
	}
	return c, nil
}

// List returns captures matching f, newest first.
func (s *Service) List(ctx context.Context, f model.CaptureFilter) ([]*model.Capture, error) {
	out, err := s.repo.ListCaptures(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	return out, nil
}

// Delete removes the capture, its detail and sync records, then its stored
// file. A failure to remove the file is logged, not returned.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCapture(ctx, id); err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	if media, ok := c.Media(); ok && media.FileKey != "" {
		s.removeFile(ctx, media.FileKey)
	}
	s.logger.Info("capture deleted", zap.String("capture_id", id))
	return nil
}

func (s *Service) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("remove stored file", zap.String("key", key), zap.Error(err))
	}
}

// baseMetadata is the mapping derived fields are merged into: the current
// metadata, or the kind defaults when it is empty.
func (s *Service) baseMetadata(c *model.Capture) (model.Metadata, error) {
	if len(c.Metadata) > 0 {
		return c.Metadata, nil
	}
	return s.registry.DefaultsFor(c.Kind)
}
