package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
)

var _ repository.UsageEventRepository = (*usageEventRepo)(nil)

type usageEventRepo struct {
	pool *pgxpool.Pool
}

func NewUsageEventRepo(pool *pgxpool.Pool) *usageEventRepo {
	return &usageEventRepo{pool: pool}
}

func (r *usageEventRepo) Append(ctx context.Context, tx repository.Tx, e *model.UsageEvent) error {
	const q = `
INSERT INTO usage_events (id, account_id, action_kind, credits_charged, result, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, e.ID, e.AccountID, string(e.ActionKind), e.CreditsCharged, string(e.Result), e.CreatedAt)
	return err
}

func (r *usageEventRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.UsageEvent, error) {
	const q = `
SELECT id, account_id, action_kind, credits_charged, result, created_at
  FROM usage_events
 WHERE account_id=$1
 ORDER BY id DESC
 LIMIT $2;`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, accountID, limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	var out []*model.UsageEvent
	for rows.Next() {
		var e model.UsageEvent
		var kind, result string
		if err := rows.Scan(&e.ID, &e.AccountID, &kind, &e.CreditsCharged, &result, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActionKind = model.ActionKind(kind)
		e.Result = model.UsageResult(result)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *usageEventRepo) CountByResult(ctx context.Context, tx repository.Tx, accountID string, result model.UsageResult) (int, error) {
	const q = `SELECT COUNT(*) FROM usage_events WHERE account_id=$1 AND result=$2;`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, q, accountID, string(result)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
