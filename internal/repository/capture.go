package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/model"
	"github.com/dharsanguruparan/CaptureVault/internal/storage"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// CaptureRepository wraps all SQL used by the API and the worker.
type CaptureRepository struct {
	pool *pgxpool.Pool
}

var _ capture.Repository = (*CaptureRepository)(nil)

// NewCaptureRepository constructs a repository.
func NewCaptureRepository(pool *pgxpool.Pool) *CaptureRepository {
	return &CaptureRepository{pool: pool}
}

// CreateCapture inserts the capture row, its tag links and its detail if set.
func (r *CaptureRepository) CreateCapture(ctx context.Context, c *model.Capture) error {
	md, err := encodeMetadata(c.Metadata)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO captures (id, user_id, title, kind, metadata, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, c.ID, c.UserID, c.Title, string(c.Kind), md, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			if hasCode(err, codeUniqueViolation) {
				return storage.ErrExists
			}
			return fmt.Errorf("insert capture: %w", err)
		}
		if err := linkTags(ctx, tx, c.ID, c.TagIDs); err != nil {
			return err
		}
		if c.Detail != nil {
			return saveDetail(ctx, tx, c.ID, c.Detail)
		}
		return nil
	})
}

// UpdateCapture rewrites the capture row and replaces its tag links. The
// detail is written separately through SaveDetail.
func (r *CaptureRepository) UpdateCapture(ctx context.Context, c *model.Capture) error {
	md, err := encodeMetadata(c.Metadata)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE captures
			SET title=$1, metadata=$2, updated_at=$3
			WHERE id=$4
		`, c.Title, md, c.UpdatedAt, c.ID)
		if err != nil {
			return fmt.Errorf("update capture: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM capture_tags WHERE capture_id=$1`, c.ID); err != nil {
			return fmt.Errorf("clear capture tags: %w", err)
		}
		return linkTags(ctx, tx, c.ID, c.TagIDs)
	})
}

func linkTags(ctx context.Context, tx pgx.Tx, captureID string, tagIDs []string) error {
	for _, id := range tagIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO capture_tags (capture_id, tag_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING
		`, captureID, id)
		if err != nil {
			if hasCode(err, codeForeignKeyViolation) {
				return fmt.Errorf("link tag %s: %w", id, storage.ErrNotFound)
			}
			return fmt.Errorf("link tag: %w", err)
		}
	}
	return nil
}

// captureColumns selects a capture with both detail tables joined; at most one
// side is non-null.
const captureColumns = `
	SELECT c.id, c.user_id, c.title, c.kind, c.metadata, c.created_at, c.updated_at,
		COALESCE((SELECT array_agg(ct.tag_id ORDER BY ct.tag_id) FROM capture_tags ct WHERE ct.capture_id = c.id), '{}'::text[]),
		t.content,
		m.capture_id IS NOT NULL, m.file_key, m.file_name, m.content_type, m.etag, m.file_size, m.duration_us, m.description
	FROM captures c
	LEFT JOIN text_details t ON t.capture_id = c.id
	LEFT JOIN media_details m ON m.capture_id = c.id`

// GetCapture returns a capture with its detail and tag ids.
func (r *CaptureRepository) GetCapture(ctx context.Context, id string) (*model.Capture, error) {
	row := r.pool.QueryRow(ctx, captureColumns+` WHERE c.id=$1`, id)
	c, err := scanCapture(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select capture: %w", err)
	}
	return c, nil
}

// ListCaptures returns matching captures, newest first.
func (r *CaptureRepository) ListCaptures(ctx context.Context, f model.CaptureFilter) ([]*model.Capture, error) {
	query, args := listQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()
	out := make([]*model.Capture, 0)
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	return out, nil
}

func listQuery(f model.CaptureFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("c.user_id=$%d", f.UserID)
	}
	if f.Kind != "" {
		add("c.kind=$%d", string(f.Kind))
	}
	if f.TitleQuery != "" {
		add(`c.title ILIKE '%%' || $%d || '%%' ESCAPE '\'`, escapeLike(f.TitleQuery))
	}
	var b strings.Builder
	b.WriteString(captureColumns)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY c.created_at DESC, c.id DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes q match literally inside a LIKE pattern.
func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}

func scanCapture(row pgx.Row) (*model.Capture, error) {
	var (
		c           model.Capture
		kind        string
		rawMetadata []byte
		tagIDs      []string
		content     *string
		hasMedia    bool
		fileKey     *string
		fileName    *string
		contentType *string
		etag        *string
		fileSize    *int64
		durationUS  *int64
		description *string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &kind, &rawMetadata, &c.CreatedAt, &c.UpdatedAt,
		&tagIDs, &content,
		&hasMedia, &fileKey, &fileName, &contentType, &etag, &fileSize, &durationUS, &description)
	if err != nil {
		return nil, err
	}
	c.Kind = model.Kind(kind)
	if len(tagIDs) > 0 {
		c.TagIDs = tagIDs
	}
	md, err := decodeMetadata(rawMetadata)
	if err != nil {
		return nil, err
	}
	c.Metadata = md
	switch {
	case content != nil:
		c.Detail = &model.TextDetail{Content: *content}
	case hasMedia:
		d := &model.MediaDetail{
			FileKey:     deref(fileKey),
			FileName:    deref(fileName),
			ContentType: deref(contentType),
			ETag:        deref(etag),
			FileSize:    fileSize,
			Description: deref(description),
		}
		if durationUS != nil {
			dur := time.Duration(*durationUS) * time.Microsecond
			d.Duration = &dur
		}
		c.Detail = d
	}
	return &c, nil
}

// DeleteCapture removes the capture; detail, tag link and sync rows cascade.
func (r *CaptureRepository) DeleteCapture(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM captures WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveDetail upserts the detail row of an existing capture.
func (r *CaptureRepository) SaveDetail(ctx context.Context, captureID string, d model.Detail) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return saveDetail(ctx, tx, captureID, d)
	})
}

func saveDetail(ctx context.Context, tx pgx.Tx, captureID string, d model.Detail) error {
	var err error
	switch v := d.(type) {
	case *model.TextDetail:
		_, err = tx.Exec(ctx, `
			INSERT INTO text_details (capture_id, content) VALUES ($1,$2)
			ON CONFLICT (capture_id) DO UPDATE SET content = EXCLUDED.content
		`, captureID, v.Content)
	case *model.MediaDetail:
		var durationUS *int64
		if v.Duration != nil {
			us := int64(*v.Duration / time.Microsecond)
			durationUS = &us
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO media_details (capture_id, file_key, file_name, content_type, etag, file_size, duration_us, description)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (capture_id) DO UPDATE SET
				file_key = EXCLUDED.file_key,
				file_name = EXCLUDED.file_name,
				content_type = EXCLUDED.content_type,
				etag = EXCLUDED.etag,
				file_size = EXCLUDED.file_size,
				duration_us = EXCLUDED.duration_us,
				description = EXCLUDED.description
		`, captureID, v.FileKey, v.FileName, v.ContentType, v.ETag, v.FileSize, durationUS, v.Description)
	default:
		return fmt.Errorf("unsupported detail %T", d)
	}
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("save detail: %w", err)
	}
	return nil
}

// CreateTag inserts a tag; a duplicate name for the user is ErrTagExists.
func (r *CaptureRepository) CreateTag(ctx context.Context, t *model.Tag) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tags (id, user_id, name, created_at) VALUES ($1,$2,$3,$4)
	`, t.ID, t.UserID, t.Name, t.CreatedAt)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return storage.ErrTagExists
		}
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// ListTags returns a user's tags ordered by name.
func (r *CaptureRepository) ListTags(ctx context.Context, userID string) ([]*model.Tag, error) {
	return r.queryTags(ctx, `
		SELECT id, user_id, name, created_at FROM tags
		WHERE user_id=$1 ORDER BY lower(name)
	`, userID)
}

// GetTags returns the tags with the given ids; unknown ids are skipped.
func (r *CaptureRepository) GetTags(ctx context.Context, ids []string) ([]*model.Tag, error) {
	return r.queryTags(ctx, `
		SELECT id, user_id, name, created_at FROM tags WHERE id = ANY($1)
	`, ids)
}

func (r *CaptureRepository) queryTags(ctx context.Context, query string, arg any) ([]*model.Tag, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select tags: %w", err)
	}
	defer rows.Close()
	out := make([]*model.Tag, 0)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// CreateIntegration inserts an integration with its opaque credentials.
func (r *CaptureRepository) CreateIntegration(ctx context.Context, in *model.Integration) error {
	creds, err := json.Marshal(in.Credentials)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if in.Credentials == nil {
		creds = []byte("{}")
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO integrations (id, user_id, kind, is_active, credentials, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, in.ID, in.UserID, string(in.Kind), in.Active, string(creds), in.CreatedAt, in.UpdatedAt)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return storage.ErrExists
		}
		return fmt.Errorf("insert integration: %w", err)
	}
	return nil
}

const integrationColumns = `SELECT id, user_id, kind, is_active, credentials, created_at, updated_at FROM integrations`

// ListIntegrations returns a user's integrations, oldest first.
func (r *CaptureRepository) ListIntegrations(ctx context.Context, userID string) ([]*model.Integration, error) {
	rows, err := r.pool.Query(ctx, integrationColumns+` WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select integrations: %w", err)
	}
	defer rows.Close()
	out := make([]*model.Integration, 0)
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetIntegration returns one integration.
func (r *CaptureRepository) GetIntegration(ctx context.Context, id string) (*model.Integration, error) {
	in, err := scanIntegration(r.pool.QueryRow(ctx, integrationColumns+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select integration: %w", err)
	}
	return in, nil
}

func scanIntegration(row pgx.Row) (*model.Integration, error) {
	var (
		in    model.Integration
		kind  string
		creds []byte
	)
	if err := row.Scan(&in.ID, &in.UserID, &kind, &in.Active, &creds, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	in.Kind = model.IntegrationKind(kind)
	if len(creds) > 0 {
		if err := json.Unmarshal(creds, &in.Credentials); err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
	}
	return &in, nil
}

// SaveSync upserts a sync record of an existing capture.
func (r *CaptureRepository) SaveSync(ctx context.Context, s *model.CaptureSync) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO capture_syncs (id, capture_id, integration_id, external_id, last_synced, sync_status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			last_synced = EXCLUDED.last_synced,
			sync_status = EXCLUDED.sync_status
	`, s.ID, s.CaptureID, s.IntegrationID, s.ExternalID, s.LastSynced, string(s.Status))
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("save sync: %w", err)
	}
	return nil
}

// ListSyncs returns the sync records of a capture, most recent first.
func (r *CaptureRepository) ListSyncs(ctx context.Context, captureID string) ([]*model.CaptureSync, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, capture_id, integration_id, external_id, last_synced, sync_status
		FROM capture_syncs WHERE capture_id=$1 ORDER BY last_synced DESC
	`, captureID)
	if err != nil {
		return nil, fmt.Errorf("select syncs: %w", err)
	}
	defer rows.Close()
	out := make([]*model.CaptureSync, 0)
	for rows.Next() {
		var (
			s      model.CaptureSync
			status string
		)
		if err := rows.Scan(&s.ID, &s.CaptureID, &s.IntegrationID, &s.ExternalID, &s.LastSynced, &status); err != nil {
			return nil, fmt.Errorf("scan sync: %w", err)
		}
		s.Status = model.SyncStatus(status)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func encodeMetadata(md model.Metadata) (string, error) {
	if md == nil {
		return "{}", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

// decodeMetadata keeps integers as int64 so integer fields still validate
// after a round trip through JSONB.
func decodeMetadata(raw []byte) (model.Metadata, error) {
	md := model.Metadata{}
	if len(raw) == 0 {
		return md, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return metadata.Normalize(md), nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
