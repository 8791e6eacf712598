package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/weaveui/dataset-manager/internal/domain"
)

// EntryFilter captures dashboard listing parameters.
type EntryFilter struct {
	Consent   domain.ConsentState
	CreatorID *string
	Limit     int
	Offset    int
}

// EntryRepository encapsulates entry persistence.
type EntryRepository interface {
	// Upsert inserts the entry or updates it. Empty fields never overwrite stored values.
	Upsert(ctx context.Context, entry *domain.Entry) error
	GetByID(ctx context.Context, id string) (*domain.Entry, error)
	List(ctx context.Context, filter EntryFilter) ([]domain.EntryRecord, error)
}

// ConsentRepository encapsulates consent persistence. The entry must exist.
type ConsentRepository interface {
	GetByEntryID(ctx context.Context, entryID string) (*domain.Consent, error)
	MarkSent(ctx context.Context, entryID string, at time.Time) error
	RecordDecision(ctx context.Context, entryID string, decision domain.ConsentDecision) error
}

// DownloadRepository encapsulates download records.
type DownloadRepository interface {
	Create(ctx context.Context, download *domain.Download) error
	ListByEntry(ctx context.Context, entryID string) ([]domain.Download, error)
}

// Set bundles the repositories of one store.
type Set struct {
	Entries   EntryRepository
	Consents  ConsentRepository
	Downloads DownloadRepository
}

// IsNotFound reports whether err is a missing-row error from either store.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// entryListQuery builds the listing query shared by both stores.
func entryListQuery(filter EntryFilter, placeholder sq.PlaceholderFormat) (string, []any, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	q := sq.Select(
		"e.id", "e.title", "e.url", "e.creator_name", "e.creator_handle", "e.creator_id",
		"e.created_at", "e.updated_at",
		"c.entry_id", "c.sent_at", "c.granted", "c.scope", "c.evidence", "c.decided_at",
		"(SELECT COUNT(*) FROM downloads d WHERE d.entry_id = e.id) AS download_count",
	).
		From("entries e").
		LeftJoin("consents c ON c.entry_id = e.id").
		OrderBy("e.updated_at DESC", "e.id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(placeholder)

	switch filter.Consent {
	case domain.ConsentGranted:
		q = q.Where(sq.Eq{"c.granted": true})
	case domain.ConsentDeclined:
		q = q.Where(sq.Eq{"c.granted": false})
	case domain.ConsentPending:
		q = q.Where(sq.Eq{"c.granted": nil})
	}
	if filter.CreatorID != nil {
		q = q.Where(sq.Eq{"e.creator_id": *filter.CreatorID})
	}
	return q.ToSql()
}
