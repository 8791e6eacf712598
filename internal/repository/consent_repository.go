package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/weaveui/dataset-manager/internal/domain"
)

type consentRepository struct {
	pool *pgxpool.Pool
}

// NewConsentRepository returns a Postgres-backed implementation.
func NewConsentRepository(pool *pgxpool.Pool) ConsentRepository {
	return &consentRepository{pool: pool}
}

func (r *consentRepository) GetByEntryID(ctx context.Context, entryID string) (*domain.Consent, error) {
	const query = `
        SELECT entry_id, sent_at, granted, scope, evidence, decided_at
        FROM consents WHERE entry_id=$1`

	var consent domain.Consent
	if err := r.pool.QueryRow(ctx, query, entryID).Scan(
		&consent.EntryID,
		&consent.SentAt,
		&consent.Granted,
		&consent.Scope,
		&consent.Evidence,
		&consent.DecidedAt,
	); err != nil {
		return nil, err
	}
	return &consent, nil
}

func (r *consentRepository) MarkSent(ctx context.Context, entryID string, at time.Time) error {
	const query = `
        INSERT INTO consents (entry_id, sent_at)
        VALUES ($1, $2)
        ON CONFLICT (entry_id) DO UPDATE SET sent_at = EXCLUDED.sent_at, updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query, entryID, at)
	return err
}

func (r *consentRepository) RecordDecision(ctx context.Context, entryID string, decision domain.ConsentDecision) error {
	const query = `
        INSERT INTO consents (entry_id, granted, scope, evidence, decided_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (entry_id) DO UPDATE SET
            granted = EXCLUDED.granted,
            scope = EXCLUDED.scope,
            evidence = EXCLUDED.evidence,
            decided_at = EXCLUDED.decided_at,
            updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		entryID,
		decision.Granted,
		decision.Scope,
		decision.Evidence,
		decision.DecidedAt,
	)
	return err
}
