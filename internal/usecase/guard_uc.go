package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"jobhunt-billing/internal/catalog"
	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
	"jobhunt-billing/internal/infra/metrics"
)

// UsageGuard is the single gate the rest of the application calls before
// any credit-gated or tier-gated work.
type UsageGuard struct {
	ledger   *CreditLedger
	accounts repository.AccountRepository
	usage    repository.UsageEventRepository
	cat      *catalog.Catalog
	log      *zerolog.Logger
}

func NewUsageGuard(ledger *CreditLedger, accounts repository.AccountRepository, usage repository.UsageEventRepository, cat *catalog.Catalog, logger *zerolog.Logger) *UsageGuard {
	l := logger.With().Str("component", "UsageGuard").Logger()
	return &UsageGuard{ledger: ledger, accounts: accounts, usage: usage, cat: cat, log: &l}
}

// Authorize looks up the action's credit cost, reserves it, and records a
// UsageEvent for both outcomes. On success the caller keeps the receipt
// and presents it to Refund if the downstream action fails afterwards.
func (uc *UsageGuard) Authorize(ctx context.Context, accountID string, kind model.ActionKind) (*model.Receipt, error) {
	cost, err := uc.cat.Cost(kind)
	if err != nil {
		return nil, err
	}
	receipt, rerr := uc.ledger.Reserve(ctx, accountID, kind, cost)

	ev := &model.UsageEvent{
		ID:         ulid.Make().String(),
		AccountID:  accountID,
		ActionKind: kind,
		CreatedAt:  time.Now(),
	}
	switch {
	case rerr == nil:
		ev.Result = model.UsageCharged
		ev.CreditsCharged = receipt.Charged
		metrics.IncUsage(string(kind), "charged")
	case errors.Is(rerr, domain.ErrInsufficientCredits):
		ev.Result = model.UsageDenied
		metrics.IncUsage(string(kind), "denied")
	default:
		// infrastructure failure, not a metering decision
		return nil, rerr
	}
	if err := uc.usage.Append(ctx, repository.NoTX, ev); err != nil {
		// the metering decision already stands; losing one log row must
		// not turn a charged action into an error for the caller
		uc.log.Warn().Err(err).Str("account_id", accountID).Str("action", string(kind)).Msg("usage event append failed")
	}
	if rerr != nil {
		return nil, rerr
	}
	return receipt, nil
}

// Refund hands the receipt back to the ledger. Exposed here so callers
// integrate against one type.
func (uc *UsageGuard) Refund(ctx context.Context, receipt *model.Receipt) error {
	err := uc.ledger.Refund(ctx, receipt)
	if err == nil && receipt != nil && receipt.Charged > 0 {
		metrics.IncRefund(string(receipt.Action))
	}
	return err
}

// CheckTierAccess is the non-consuming gate: allow when the account's tier
// ranks at or above minTier. Denials carry the required tier for upgrade
// messaging.
func (uc *UsageGuard) CheckTierAccess(ctx context.Context, accountID string, minTier model.Tier) error {
	if !minTier.Valid() {
		return domain.ErrUnknownTier
	}
	acct, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return err
	}
	if acct.Tier.Rank() < minTier.Rank() {
		return &domain.TierAccessError{Have: string(acct.Tier), Required: string(minTier)}
	}
	return nil
}

// RecentUsage exposes the tail of the metering log for an account.
func (uc *UsageGuard) RecentUsage(ctx context.Context, accountID string, limit int) ([]*model.UsageEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.usage.ListByAccount(ctx, repository.NoTX, accountID, limit)
}
