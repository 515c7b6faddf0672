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

var _ repository.RefundRepository = (*refundRepo)(nil)

type refundRepo struct {
	pool *pgxpool.Pool
}

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

// Insert relies on the unique index over receipt_id: a replayed receipt
// collides and surfaces as ErrDuplicateRefund, which aborts the enclosing
// transaction before the balance is touched.
func (r *refundRepo) Insert(ctx context.Context, tx repository.Tx, ref *model.Refund) error {
	const q = `
INSERT INTO credit_refunds (id, receipt_id, account_id, action_kind, amount, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, ref.ID, ref.ReceiptID, ref.AccountID, string(ref.Action), ref.Amount, ref.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateRefund
		}
		return err
	}
	return nil
}

func (r *refundRepo) FindByReceiptID(ctx context.Context, tx repository.Tx, receiptID string) (*model.Refund, error) {
	const q = `
SELECT id, receipt_id, account_id, action_kind, amount, created_at
  FROM credit_refunds
 WHERE receipt_id=$1;`
	ex, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var ref model.Refund
	var kind string
	if err := ex.QueryRow(ctx, q, receiptID).Scan(&ref.ID, &ref.ReceiptID, &ref.AccountID, &kind, &ref.Amount, &ref.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	ref.Action = model.ActionKind(kind)
	return &ref, nil
}
