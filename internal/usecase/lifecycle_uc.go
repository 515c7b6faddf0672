package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobhunt-billing/internal/catalog"
	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
	"jobhunt-billing/internal/infra/metrics"
)

// SubscriptionLifecycle applies validated provider webhook events to
// accounts. Each handler performs the idempotency insert and the state
// mutation in ONE transaction under the account lock: a replayed delivery
// hits the unique provider_event_id and the whole transaction no-ops, so
// providers can retry freely without double-granting credits.
type SubscriptionLifecycle struct {
	accounts repository.AccountRepository
	webhooks repository.WebhookEventRepository
	cat      *catalog.Catalog
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewSubscriptionLifecycle(accounts repository.AccountRepository, webhooks repository.WebhookEventRepository, cat *catalog.Catalog, tm repository.TransactionManager, logger *zerolog.Logger) *SubscriptionLifecycle {
	l := logger.With().Str("component", "SubscriptionLifecycle").Logger()
	return &SubscriptionLifecycle{accounts: accounts, webhooks: webhooks, cat: cat, tm: tm, log: &l}
}

// markApplied inserts the idempotency row. domain.ErrDuplicateWebhookEvent
// aborts the transaction without touching the account.
func (uc *SubscriptionLifecycle) markApplied(ctx context.Context, tx repository.Tx, providerEventID, eventType string) error {
	return uc.webhooks.Insert(ctx, tx, &model.WebhookEvent{
		ID:              uuid.NewString(),
		ProviderEventID: providerEventID,
		EventType:       eventType,
		AppliedAt:       time.Now(),
	})
}

// HandleCheckoutCompleted upgrades the account (subscription mode) or adds
// pack credits (payment mode). none|cancelled -> active.
func (uc *SubscriptionLifecycle) HandleCheckoutCompleted(ctx context.Context, providerEventID string, ev model.CheckoutCompleted) error {
	err := uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.markApplied(ctx, tx, providerEventID, model.EventCheckoutCompleted); err != nil {
			return err
		}
		if err := uc.accounts.Lock(ctx, tx, ev.AccountID); err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, ev.AccountID)
		if err != nil {
			return err
		}
		now := time.Now()
		switch ev.Mode {
		case model.CheckoutModePayment:
			pack, err := uc.cat.Pack(ev.PackID)
			if err != nil {
				return err
			}
			acct.PurchasedCredits += pack.Credits
			acct.UpdatedAt = now
		case model.CheckoutModeSubscription:
			if _, err := uc.cat.Plan(ev.Tier); err != nil {
				return err
			}
			acct.Tier = ev.Tier
			acct.SubscriptionStatus = model.SubscriptionStatusActive
			if ev.SubscriptionRef != "" {
				ref := ev.SubscriptionRef
				acct.ExternalSubscriptionRef = &ref
			}
			period := ev.Period
			if period.End.IsZero() {
				period = model.BillingPeriod{Start: now, End: now.Add(model.DefaultBillingCycle)}
			}
			acct.ResetPeriod(period, now)
		default:
			return domain.ErrInvalidArgument
		}
		return uc.accounts.Save(ctx, tx, acct)
	})
	return uc.finish(providerEventID, model.EventCheckoutCompleted, err)
}

// HandleInvoicePaid re-grants the monthly allotment for the new period.
// active -> active; past_due recovers to active.
func (uc *SubscriptionLifecycle) HandleInvoicePaid(ctx context.Context, providerEventID string, ev model.InvoicePaid) error {
	err := uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.markApplied(ctx, tx, providerEventID, model.EventInvoicePaid); err != nil {
			return err
		}
		if err := uc.accounts.Lock(ctx, tx, ev.AccountID); err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, ev.AccountID)
		if err != nil {
			return err
		}
		if acct.SubscriptionStatus != model.SubscriptionStatusActive &&
			acct.SubscriptionStatus != model.SubscriptionStatusPastDue {
			return domain.ErrNoActiveSubscription
		}
		now := time.Now()
		period := ev.Period
		if period.End.IsZero() {
			period = model.BillingPeriod{Start: acct.PeriodStart, End: acct.PeriodEnd}.NextFrom(model.DefaultBillingCycle)
		}
		acct.SubscriptionStatus = model.SubscriptionStatusActive
		acct.ResetPeriod(period, now)
		return uc.accounts.Save(ctx, tx, acct)
	})
	return uc.finish(providerEventID, model.EventInvoicePaid, err)
}

// HandleSubscriptionDeleted marks the subscription cancelled. Entitlements
// persist until period end; the rollover sweep demotes the tier later.
func (uc *SubscriptionLifecycle) HandleSubscriptionDeleted(ctx context.Context, providerEventID string, ev model.SubscriptionDeleted) error {
	err := uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.markApplied(ctx, tx, providerEventID, model.EventSubscriptionDeleted); err != nil {
			return err
		}
		if err := uc.accounts.Lock(ctx, tx, ev.AccountID); err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, ev.AccountID)
		if err != nil {
			return err
		}
		if acct.SubscriptionStatus == model.SubscriptionStatusActive ||
			acct.SubscriptionStatus == model.SubscriptionStatusPastDue {
			acct.SubscriptionStatus = model.SubscriptionStatusCancelled
			acct.UpdatedAt = time.Now()
		}
		return uc.accounts.Save(ctx, tx, acct)
	})
	return uc.finish(providerEventID, model.EventSubscriptionDeleted, err)
}

func (uc *SubscriptionLifecycle) finish(providerEventID, eventType string, err error) error {
	switch {
	case err == nil:
		metrics.IncWebhook(eventType, "applied")
		return nil
	case errors.Is(err, domain.ErrDuplicateWebhookEvent):
		metrics.IncWebhook(eventType, "duplicate")
		uc.log.Debug().Str("provider_event_id", providerEventID).Str("type", eventType).Msg("duplicate webhook delivery, no-op")
		return err
	default:
		metrics.IncWebhook(eventType, "error")
		return err
	}
}

// rolloverBatchSize bounds how many due accounts one sweep pass loads.
const rolloverBatchSize = 200

// PeriodRolloverSweep processes every account whose period has lapsed:
//
//	none      -> fresh free-tier window (monthly allotment re-granted)
//	active    -> past_due with one grace cycle (no invoice arrived in time)
//	past_due  -> demoted to free/none (grace lapsed)
//	cancelled -> demoted to free/none (ran out its paid period)
//
// Each account rolls over in its own transaction under the account lock,
// so the sweep cannot interleave with in-flight Reserve or webhook calls
// into an inconsistent state. Returns the number of accounts processed.
func (uc *SubscriptionLifecycle) PeriodRolloverSweep(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		due, err := uc.accounts.FindDueForRollover(ctx, repository.NoTX, now, rolloverBatchSize)
		if err != nil {
			return total, err
		}
		if len(due) == 0 {
			return total, nil
		}
		for _, stale := range due {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := uc.rolloverOne(ctx, stale.ID, now); err != nil {
				uc.log.Error().Err(err).Str("account_id", stale.ID).Msg("rollover failed")
				continue
			}
			total++
		}
		if len(due) < rolloverBatchSize {
			return total, nil
		}
	}
}

func (uc *SubscriptionLifecycle) rolloverOne(ctx context.Context, accountID string, now time.Time) error {
	return uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.accounts.Lock(ctx, tx, accountID); err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		// re-check inside the lock: a webhook may have extended the period
		if !acct.PeriodExpired(now) {
			return nil
		}
		next := model.BillingPeriod{Start: acct.PeriodStart, End: acct.PeriodEnd}.NextFrom(model.DefaultBillingCycle)
		// an account idle for several cycles still lands on a window
		// anchored to its original period boundary
		for !next.End.After(now) {
			next = next.NextFrom(model.DefaultBillingCycle)
		}
		switch acct.SubscriptionStatus {
		case model.SubscriptionStatusActive:
			acct.SubscriptionStatus = model.SubscriptionStatusPastDue
			acct.ResetPeriod(next, now)
			metrics.IncRollover("past_due")
		case model.SubscriptionStatusPastDue, model.SubscriptionStatusCancelled:
			acct.Tier = model.TierFree
			acct.SubscriptionStatus = model.SubscriptionStatusNone
			acct.ExternalSubscriptionRef = nil
			acct.ResetPeriod(next, now)
			metrics.IncRollover("demoted")
		default: // free tier window renewal
			acct.ResetPeriod(next, now)
			metrics.IncRollover("renewed")
		}
		return uc.accounts.Save(ctx, tx, acct)
	})
}
