package capture

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// CreateIntegration registers a connection to an external service for userID.
// Credentials are stored as given and never returned.
func (s *Service) CreateIntegration(ctx context.Context, userID string, kind model.IntegrationKind, credentials map[string]any) (*model.Integration, error) {
	now := s.now()
	in := &model.Integration{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Active:      true,
		Credentials: credentials,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Credentials == nil {
		in.Credentials = map[string]any{}
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateIntegration(ctx, in); err != nil {
		return nil, fmt.Errorf("create integration: %w", err)
	}
	return in, nil
}

// ListIntegrations returns the integrations of userID.
func (s *Service) ListIntegrations(ctx context.Context, userID string) ([]*model.Integration, error) {
	out, err := s.repo.ListIntegrations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	return out, nil
}

// RecordSync stores the outcome of pushing a capture to an integration. The
// push itself happens elsewhere. The integration must belong to the capture
// owner.
func (s *Service) RecordSync(ctx context.Context, sync *model.CaptureSync) error {
	if sync.ID == "" {
		sync.ID = uuid.NewString()
	}
	if sync.LastSynced.IsZero() {
		sync.LastSynced = s.now()
	}
	if sync.Status == "" {
		sync.Status = model.SyncPending
	}
	if err := validateStruct(sync); err != nil {
		return err
	}
	c, err := s.repo.GetCapture(ctx, sync.CaptureID)
	if err != nil {
		return fmt.Errorf("load capture: %w", err)
	}
	in, err := s.repo.GetIntegration(ctx, sync.IntegrationID)
	if err != nil {
		return fmt.Errorf("load integration: %w", err)
	}
	if in.UserID != c.UserID {
		return ErrForeignIntegration
	}
	if err := s.repo.SaveSync(ctx, sync); err != nil {
		return fmt.Errorf("save sync: %w", err)
	}
	return nil
}

// ListSyncs returns the sync records of a capture.
func (s *Service) ListSyncs(ctx context.Context, captureID string) ([]*model.CaptureSync, error) {
	syncs, err := s.repo.ListSyncs(ctx, captureID)
	if err != nil {
		return nil, fmt.Errorf("list syncs: %w", err)
	}
	return syncs, nil
}
