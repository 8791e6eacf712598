package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/weaveui/dataset-manager/internal/domain"
)

// sqliteTimeLayout sorts lexically in chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

type sqliteEntryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteEntryRepository returns a SQLite-backed implementation.
func NewSQLiteEntryRepository(db *sql.DB) EntryRepository {
	return &sqliteEntryRepository{db: db, now: time.Now}
}

func (r *sqliteEntryRepository) Upsert(ctx context.Context, entry *domain.Entry) error {
	now := formatTime(r.now())
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO entries (id, title, url, creator_name, creator_handle, creator_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     title = COALESCE(NULLIF(excluded.title, ''), entries.title),
		     url = COALESCE(NULLIF(excluded.url, ''), entries.url),
		     creator_name = COALESCE(NULLIF(excluded.creator_name, ''), entries.creator_name),
		     creator_handle = COALESCE(NULLIF(excluded.creator_handle, ''), entries.creator_handle),
		     creator_id = COALESCE(NULLIF(excluded.creator_id, ''), entries.creator_id),
		     updated_at = excluded.updated_at
		 RETURNING title, url, creator_name, creator_handle, creator_id, created_at, updated_at`,
		entry.ID, entry.Title, entry.URL, entry.CreatorName, entry.CreatorHandle, entry.CreatorID, now, now,
	)

	var createdAt, updatedAt string
	if err := row.Scan(&entry.Title, &entry.URL, &entry.CreatorName, &entry.CreatorHandle, &entry.CreatorID, &createdAt, &updatedAt); err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	var err error
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return err
	}
	return nil
}

func (r *sqliteEntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, url, creator_name, creator_handle, creator_id, created_at, updated_at
		 FROM entries WHERE id = ?`, id,
	)

	var (
		entry                domain.Entry
		createdAt, updatedAt string
	)
	if err := row.Scan(&entry.ID, &entry.Title, &entry.URL, &entry.CreatorName, &entry.CreatorHandle, &entry.CreatorID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *sqliteEntryRepository) List(ctx context.Context, filter EntryFilter) ([]domain.EntryRecord, error) {
	query, args, err := entryListQuery(filter, sq.Question)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]domain.EntryRecord, 0)
	for rows.Next() {
		var (
			rec                  domain.EntryRecord
			createdAt, updatedAt string
			consentID            sql.NullString
			sentAt, decidedAt    sql.NullString
			granted              sql.NullBool
			scope, evidence      sql.NullString
			downloads            int64
		)
		if err := rows.Scan(
			&rec.Entry.ID, &rec.Entry.Title, &rec.Entry.URL, &rec.Entry.CreatorName,
			&rec.Entry.CreatorHandle, &rec.Entry.CreatorID, &createdAt, &updatedAt,
			&consentID, &sentAt, &granted, &scope, &evidence, &decidedAt, &downloads,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if rec.Entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if rec.Entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		if consentID.Valid {
			consent := &domain.Consent{EntryID: consentID.String, Scope: scope.String, Evidence: evidence.String}
			if granted.Valid {
				g := granted.Bool
				consent.Granted = &g
			}
			if consent.SentAt, err = parseNullTime(sentAt); err != nil {
				return nil, err
			}
			if consent.DecidedAt, err = parseNullTime(decidedAt); err != nil {
				return nil, err
			}
			rec.Consent = consent
		}
		rec.DownloadCount = int(downloads)
		records = append(records, rec)
	}
	return records, rows.Err()
}

type sqliteConsentRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteConsentRepository returns a SQLite-backed implementation.
func NewSQLiteConsentRepository(db *sql.DB) ConsentRepository {
	return &sqliteConsentRepository{db: db, now: time.Now}
}

func (r *sqliteConsentRepository) GetByEntryID(ctx context.Context, entryID string) (*domain.Consent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT entry_id, sent_at, granted, scope, evidence, decided_at
		 FROM consents WHERE entry_id = ?`, entryID,
	)

	var (
		consent           domain.Consent
		sentAt, decidedAt sql.NullString
		granted           sql.NullBool
	)
	if err := row.Scan(&consent.EntryID, &sentAt, &granted, &consent.Scope, &consent.Evidence, &decidedAt); err != nil {
		return nil, err
	}
	if granted.Valid {
		g := granted.Bool
		consent.Granted = &g
	}
	var err error
	if consent.SentAt, err = parseNullTime(sentAt); err != nil {
		return nil, err
	}
	if consent.DecidedAt, err = parseNullTime(decidedAt); err != nil {
		return nil, err
	}
	return &consent, nil
}

func (r *sqliteConsentRepository) MarkSent(ctx context.Context, entryID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO consents (entry_id, sent_at, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (entry_id) DO UPDATE SET sent_at = excluded.sent_at, updated_at = excluded.updated_at`,
		entryID, nullTime(&at), formatTime(r.now()),
	)
	if err != nil {
		return fmt.Errorf("mark consent sent: %w", err)
	}
	return nil
}

func (r *sqliteConsentRepository) RecordDecision(ctx context.Context, entryID string, decision domain.ConsentDecision) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO consents (entry_id, granted, scope, evidence, decided_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entry_id) DO UPDATE SET
		     granted = excluded.granted,
		     scope = excluded.scope,
		     evidence = excluded.evidence,
		     decided_at = excluded.decided_at,
		     updated_at = excluded.updated_at`,
		entryID, boolToInt(decision.Granted), decision.Scope, decision.Evidence,
		nullTime(&decision.DecidedAt), formatTime(r.now()),
	)
	if err != nil {
		return fmt.Errorf("record consent decision: %w", err)
	}
	return nil
}

type sqliteDownloadRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDownloadRepository returns a SQLite-backed implementation.
func NewSQLiteDownloadRepository(db *sql.DB) DownloadRepository {
	return &sqliteDownloadRepository{db: db, now: time.Now}
}

func (r *sqliteDownloadRepository) Create(ctx context.Context, download *domain.Download) error {
	if download.ID == "" {
		download.ID = uuid.NewString()
	}
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO downloads (id, entry_id, shot_id, image_url, file_path, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		download.ID, download.EntryID, download.ShotID, download.ImageURL, download.FilePath, download.Status, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	download.CreatedAt = now
	return nil
}

func (r *sqliteDownloadRepository) ListByEntry(ctx context.Context, entryID string) ([]domain.Download, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entry_id, shot_id, image_url, file_path, status, created_at
		 FROM downloads WHERE entry_id = ? ORDER BY created_at, id`, entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	downloads := make([]domain.Download, 0)
	for rows.Next() {
		var (
			d         domain.Download
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.EntryID, &d.ShotID, &d.ImageURL, &d.FilePath, &d.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// NewSQLiteSet builds all SQLite repositories over one database handle.
func NewSQLiteSet(db *sql.DB) Set {
	return Set{
		Entries:   NewSQLiteEntryRepository(db),
		Consents:  NewSQLiteConsentRepository(db),
		Downloads: NewSQLiteDownloadRepository(db),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
