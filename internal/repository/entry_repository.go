package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weaveui/dataset-manager/internal/domain"
)

type entryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository returns a Postgres-backed implementation.
func NewEntryRepository(pool *pgxpool.Pool) EntryRepository {
	return &entryRepository{pool: pool}
}

func (r *entryRepository) Upsert(ctx context.Context, entry *domain.Entry) error {
	const query = `
        INSERT INTO entries (id, title, url, creator_name, creator_handle, creator_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            title = COALESCE(NULLIF(EXCLUDED.title, ''), entries.title),
            url = COALESCE(NULLIF(EXCLUDED.url, ''), entries.url),
            creator_name = COALESCE(NULLIF(EXCLUDED.creator_name, ''), entries.creator_name),
            creator_handle = COALESCE(NULLIF(EXCLUDED.creator_handle, ''), entries.creator_handle),
            creator_id = COALESCE(NULLIF(EXCLUDED.creator_id, ''), entries.creator_id),
            updated_at = NOW()
        RETURNING title, url, creator_name, creator_handle, creator_id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.Title,
		entry.URL,
		entry.CreatorName,
		entry.CreatorHandle,
		entry.CreatorID,
	).Scan(
		&entry.Title,
		&entry.URL,
		&entry.CreatorName,
		&entry.CreatorHandle,
		&entry.CreatorID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
}

func (r *entryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	const query = `
        SELECT id, title, url, creator_name, creator_handle, creator_id, created_at, updated_at
        FROM entries WHERE id=$1`

	var entry domain.Entry
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.Title,
		&entry.URL,
		&entry.CreatorName,
		&entry.CreatorHandle,
		&entry.CreatorID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *entryRepository) List(ctx context.Context, filter EntryFilter) ([]domain.EntryRecord, error) {
	query, args, err := entryListQuery(filter, sq.Dollar)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.EntryRecord, 0)
	for rows.Next() {
		var (
			rec       domain.EntryRecord
			consentID *string
			sentAt    *time.Time
			granted   *bool
			scope     *string
			evidence  *string
			decidedAt *time.Time
			downloads int64
		)
		if err := rows.Scan(
			&rec.Entry.ID,
			&rec.Entry.Title,
			&rec.Entry.URL,
			&rec.Entry.CreatorName,
			&rec.Entry.CreatorHandle,
			&rec.Entry.CreatorID,
			&rec.Entry.CreatedAt,
			&rec.Entry.UpdatedAt,
			&consentID,
			&sentAt,
			&granted,
			&scope,
			&evidence,
			&decidedAt,
			&downloads,
		); err != nil {
			return nil, err
		}
		if consentID != nil {
			rec.Consent = &domain.Consent{
				EntryID:   *consentID,
				SentAt:    sentAt,
				Granted:   granted,
				Scope:     deref(scope),
				Evidence:  deref(evidence),
				DecidedAt: decidedAt,
			}
		}
		rec.DownloadCount = int(downloads)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
