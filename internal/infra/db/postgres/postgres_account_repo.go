package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountCols = `
id, user_id, tier, subscription_status, credits_used_this_period,
purchased_credits, period_start, period_end, external_subscription_ref,
created_at, updated_at`

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO billing_accounts (
  id, user_id, tier, subscription_status, credits_used_this_period,
  purchased_credits, period_start, period_end, external_subscription_ref,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  tier=$3, subscription_status=$4, credits_used_this_period=$5,
  purchased_credits=$6, period_start=$7, period_end=$8,
  external_subscription_ref=$9, updated_at=$11;`

	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		a.ID, a.UserID, string(a.Tier), string(a.SubscriptionStatus),
		a.CreditsUsedThisPeriod, a.PurchasedCredits, a.PeriodStart, a.PeriodEnd,
		a.ExternalSubscriptionRef, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return r.queryOne(ctx, tx, `SELECT `+accountCols+` FROM billing_accounts WHERE id=$1;`, id)
}

func (r *accountRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Account, error) {
	return r.queryOne(ctx, tx, `SELECT `+accountCols+` FROM billing_accounts WHERE user_id=$1;`, userID)
}

func (r *accountRepo) FindBySubscriptionRef(ctx context.Context, tx repository.Tx, ref string) (*model.Account, error) {
	return r.queryOne(ctx, tx, `SELECT `+accountCols+` FROM billing_accounts WHERE external_subscription_ref=$1;`, ref)
}

// Lock takes a transaction-scoped advisory lock for the account. It is the
// serialization point for Reserve, webhook application, and rollover; the
// lock releases automatically at commit/rollback.
func (r *accountRepo) Lock(ctx context.Context, tx repository.Tx, id string) error {
	t, ok := tx.(pgx.Tx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	_, err := t.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(id))
	return err
}

func (r *accountRepo) FindDueForRollover(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Account, error) {
	const q = `
SELECT ` + accountCols + `
  FROM billing_accounts
 WHERE period_end <= $1
 ORDER BY period_end ASC
 LIMIT $2;`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *accountRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Account, error) {
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	a, err := scanAccount(ex.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var tier, status string
	if err := row.Scan(
		&a.ID, &a.UserID, &tier, &status, &a.CreditsUsedThisPeriod,
		&a.PurchasedCredits, &a.PeriodStart, &a.PeriodEnd,
		&a.ExternalSubscriptionRef, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Tier = model.Tier(tier)
	a.SubscriptionStatus = model.SubscriptionStatus(status)
	return &a, nil
}
