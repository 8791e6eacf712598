package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weaveui/dataset-manager/internal/domain"
)

type downloadRepository struct {
	pool *pgxpool.Pool
}

// NewDownloadRepository returns a Postgres-backed implementation.
func NewDownloadRepository(pool *pgxpool.Pool) DownloadRepository {
	return &downloadRepository{pool: pool}
}

func (r *downloadRepository) Create(ctx context.Context, download *domain.Download) error {
	if download.ID == "" {
		download.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO downloads (id, entry_id, shot_id, image_url, file_path, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		download.ID,
		download.EntryID,
		download.ShotID,
		download.ImageURL,
		download.FilePath,
		download.Status,
	).Scan(&download.CreatedAt)
}

func (r *downloadRepository) ListByEntry(ctx context.Context, entryID string) ([]domain.Download, error) {
	const query = `
        SELECT id, entry_id, shot_id, image_url, file_path, status, created_at
        FROM downloads WHERE entry_id=$1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	downloads := make([]domain.Download, 0)
	for rows.Next() {
		var d domain.Download
		if err := rows.Scan(&d.ID, &d.EntryID, &d.ShotID, &d.ImageURL, &d.FilePath, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// NewPostgresSet builds all Postgres repositories over one pool.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Entries:   NewEntryRepository(pool),
		Consents:  NewConsentRepository(pool),
		Downloads: NewDownloadRepository(pool),
	}
}
