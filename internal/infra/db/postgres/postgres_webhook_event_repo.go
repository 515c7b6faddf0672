package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

// Insert relies on the unique index over provider_event_id: a replayed
// delivery collides and surfaces as ErrDuplicateWebhookEvent, which
// aborts the enclosing transaction before any account mutation.
func (r *webhookEventRepo) Insert(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	const q = `
INSERT INTO webhook_events (id, provider_event_id, event_type, applied_at)
VALUES ($1,$2,$3,$4);`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, e.ID, e.ProviderEventID, e.EventType, e.AppliedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateWebhookEvent
		}
		return err
	}
	return nil
}

func (r *webhookEventRepo) FindByProviderEventID(ctx context.Context, tx repository.Tx, providerEventID string) (*model.WebhookEvent, error) {
	const q = `
SELECT id, provider_event_id, event_type, applied_at
  FROM webhook_events
 WHERE provider_event_id=$1;`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var e model.WebhookEvent
	if err := ex.QueryRow(ctx, q, providerEventID).Scan(&e.ID, &e.ProviderEventID, &e.EventType, &e.AppliedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}
