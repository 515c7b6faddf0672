package repository

import (
	"context"

	"jobhunt-billing/internal/domain/model"
)

// WebhookEventRepository is the idempotency log for provider deliveries.
type WebhookEventRepository interface {
	// Insert records a provider event id as applied. It returns
	// domain.ErrDuplicateWebhookEvent when the id was seen before; callers
	// treat that as "already applied, no-op".
	Insert(ctx context.Context, tx Tx, e *model.WebhookEvent) error
	FindByProviderEventID(ctx context.Context, tx Tx, providerEventID string) (*model.WebhookEvent, error)
}
