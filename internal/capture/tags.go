package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// CreateTag adds a tag for userID. Names are unique per user.
func (s *Service) CreateTag(ctx context.Context, userID, name string) (*model.Tag, error) {
	t := &model.Tag{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		CreatedAt: s.now(),
	}
	if err := validateStruct(t); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTag(ctx, t); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return t, nil
}

// ListTags returns the tags of userID.
func (s *Service) ListTags(ctx context.Context, userID string) ([]*model.Tag, error) {
	tags, err := s.repo.ListTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// ownedTags deduplicates ids and checks every one is a tag of userID.
func (s *Service) ownedTags(ctx context.Context, userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	tags, err := s.repo.GetTags(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	if len(tags) != len(unique) {
		return nil, ErrForeignTag
	}
	for _, t := range tags {
		if t.UserID != userID {
			return nil, ErrForeignTag
		}
	}
	return unique, nil
}
