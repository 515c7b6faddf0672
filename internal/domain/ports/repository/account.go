package repository

import (
	"context"
	"time"

	"jobhunt-billing/internal/domain/model"
)

// AccountRepository is the port for billing accounts.
type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Account, error)
	FindBySubscriptionRef(ctx context.Context, tx Tx, ref string) (*model.Account, error)

	// Lock serializes mutations for one account. The Postgres
	// implementation takes a pg_advisory_xact_lock inside tx; the
	// in-memory implementation holds a per-account mutex until the
	// enclosing WithTx callback returns.
	Lock(ctx context.Context, tx Tx, id string) error

	// FindDueForRollover returns accounts whose period_end has passed,
	// for the scheduled sweep. Paginated by limit to bound each batch.
	FindDueForRollover(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Account, error)
}
