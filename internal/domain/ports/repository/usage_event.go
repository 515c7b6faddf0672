package repository

import (
	"context"

	"jobhunt-billing/internal/domain/model"
)

// UsageEventRepository is the append-only metering log.
type UsageEventRepository interface {
	Append(ctx context.Context, tx Tx, e *model.UsageEvent) error
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit int) ([]*model.UsageEvent, error)
	CountByResult(ctx context.Context, tx Tx, accountID string, result model.UsageResult) (int, error)
}
