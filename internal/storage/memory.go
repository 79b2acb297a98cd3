// Package storage contains the in-memory persistence layer used by the
// development server and tests. Its errors are shared with the Postgres
// repository so callers compare against one set of sentinels.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

var (
	// ErrNotFound is returned when a capture, tag, integration or sync record
	// is missing.
	ErrNotFound = errors.New("record not found")
	// ErrTagExists is returned when a user already has a tag with that name.
	ErrTagExists = errors.New("tag already exists")
	// ErrExists is returned when creating a record whose id is taken.
	ErrExists = errors.New("record already exists")
)

// MemoryStore keeps records in maps guarded by an RWMutex. Records are copied
// on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	captures     map[string]*model.Capture
	details      map[string]model.Detail
	tags         map[string]*model.Tag
	integrations map[string]*model.Integration
	syncs        map[string]*model.CaptureSync
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		captures:     make(map[string]*model.Capture),
		details:      make(map[string]model.Detail),
		tags:         make(map[string]*model.Tag),
		integrations: make(map[string]*model.Integration),
		syncs:        make(map[string]*model.CaptureSync),
	}
}

// CreateCapture inserts a capture and, when set, its detail.
func (m *MemoryStore) CreateCapture(ctx context.Context, c *model.Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.captures[c.ID]; ok {
		return ErrExists
	}
	rec := c.Clone()
	if rec.Detail != nil {
		m.details[c.ID] = rec.Detail
	}
	rec.Detail = nil
	m.captures[c.ID] = rec
	return nil
}

// UpdateCapture replaces the capture row. The detail is written separately
// through SaveDetail.
func (m *MemoryStore) UpdateCapture(ctx context.Context, c *model.Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.captures[c.ID]; !ok {
		return ErrNotFound
	}
	rec := c.Clone()
	rec.Detail = nil
	m.captures[c.ID] = rec
	return nil
}

// GetCapture returns a copy of the capture with its detail attached.
func (m *MemoryStore) GetCapture(ctx context.Context, id string) (*model.Capture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.captures[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withDetail(rec), nil
}

func (m *MemoryStore) withDetail(rec *model.Capture) *model.Capture {
	out := rec.Clone()
	out.Detail = model.CloneDetail(m.details[rec.ID])
	return out
}

// ListCaptures returns matching captures, newest first.
func (m *MemoryStore) ListCaptures(ctx context.Context, f model.CaptureFilter) ([]*model.Capture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Capture, 0)
	for _, rec := range m.captures {
		if f.Matches(rec) {
			out = append(out, m.withDetail(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, f.Offset, f.Limit), nil
}

func paginate(in []*model.Capture, offset, limit int) []*model.Capture {
	if offset > len(in) {
		return in[:0]
	}
	if offset > 0 {
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// DeleteCapture removes the capture with its detail and sync records.
func (m *MemoryStore) DeleteCapture(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.captures[id]; !ok {
		return ErrNotFound
	}
	delete(m.captures, id)
	delete(m.details, id)
	for sid, s := range m.syncs {
		if s.CaptureID == id {
			delete(m.syncs, sid)
		}
	}
	return nil
}

// SaveDetail inserts or replaces the detail of an existing capture.
func (m *MemoryStore) SaveDetail(ctx context.Context, captureID string, d model.Detail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.captures[captureID]; !ok {
		return ErrNotFound
	}
	m.details[captureID] = model.CloneDetail(d)
	return nil
}

// CreateTag inserts a tag; names are unique per user.
func (m *MemoryStore) CreateTag(ctx context.Context, t *model.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tags {
		if existing.UserID == t.UserID && existing.Name == t.Name {
			return ErrTagExists
		}
	}
	rec := *t
	m.tags[t.ID] = &rec
	return nil
}

// ListTags returns a user's tags ordered by name.
func (m *MemoryStore) ListTags(ctx context.Context, userID string) ([]*model.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Tag, 0)
	for _, t := range m.tags {
		if t.UserID == userID {
			rec := *t
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// GetTags returns the tags with the given ids; unknown ids are skipped.
func (m *MemoryStore) GetTags(ctx context.Context, ids []string) ([]*model.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Tag, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.tags[id]; ok {
			rec := *t
			out = append(out, &rec)
		}
	}
	return out, nil
}

// CreateIntegration inserts an integration.
func (m *MemoryStore) CreateIntegration(ctx context.Context, in *model.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.integrations[in.ID]; ok {
		return ErrExists
	}
	m.integrations[in.ID] = cloneIntegration(in)
	return nil
}

// ListIntegrations returns a user's integrations, oldest first.
func (m *MemoryStore) ListIntegrations(ctx context.Context, userID string) ([]*model.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Integration, 0)
	for _, in := range m.integrations {
		if in.UserID == userID {
			out = append(out, cloneIntegration(in))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetIntegration returns a copy of the integration.
func (m *MemoryStore) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.integrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIntegration(in), nil
}

func cloneIntegration(in *model.Integration) *model.Integration {
	out := *in
	if in.Credentials != nil {
		out.Credentials = make(map[string]any, len(in.Credentials))
		for k, v := range in.Credentials {
			out.Credentials[k] = v
		}
	}
	return &out
}

// SaveSync inserts or replaces a sync record of an existing capture and
// integration.
func (m *MemoryStore) SaveSync(ctx context.Context, s *model.CaptureSync) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.captures[s.CaptureID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.integrations[s.IntegrationID]; !ok {
		return ErrNotFound
	}
	rec := *s
	m.syncs[s.ID] = &rec
	return nil
}

// ListSyncs returns the sync records of a capture, most recent first.
func (m *MemoryStore) ListSyncs(ctx context.Context, captureID string) ([]*model.CaptureSync, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.CaptureSync, 0)
	for _, s := range m.syncs {
		if s.CaptureID == captureID {
			rec := *s
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSynced.After(out[j].LastSynced) })
	return out, nil
}
