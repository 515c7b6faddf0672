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
	"jobhunt-billing/internal/domain/ports/adapter"
	"jobhunt-billing/internal/domain/ports/repository"
)

// BillingSummary is the aggregated read served to the frontend. Remaining
// and total use the legacy -1 sentinel on the wire for unlimited tiers.
type BillingSummary struct {
	PlanName         string                   `json:"plan_name"`
	Status           model.SubscriptionStatus `json:"status"`
	Tier             model.Tier               `json:"tier"`
	CreditsRemaining int64                    `json:"credits_remaining"`
	CreditsTotal     int64                    `json:"credits_total"`
	PeriodEnd        time.Time                `json:"period_end"`
}

// BillingService is the frontend-facing surface: aggregated reads,
// checkout redirects, and cancellation. It performs no metering itself.
type BillingService struct {
	accounts repository.AccountRepository
	ledger   *CreditLedger
	cat      *catalog.Catalog
	gateway  adapter.CheckoutGateway
	tm       repository.TransactionManager
	log      *zerolog.Logger

	successURL string
	cancelURL  string
}

func NewBillingService(accounts repository.AccountRepository, ledger *CreditLedger, cat *catalog.Catalog, gateway adapter.CheckoutGateway, tm repository.TransactionManager, successURL, cancelURL string, logger *zerolog.Logger) *BillingService {
	l := logger.With().Str("component", "BillingService").Logger()
	return &BillingService{
		accounts:   accounts,
		ledger:     ledger,
		cat:        cat,
		gateway:    gateway,
		tm:         tm,
		successURL: successURL,
		cancelURL:  cancelURL,
		log:        &l,
	}
}

// Current aggregates plan, status, and balance for GET /billing/current.
func (uc *BillingService) Current(ctx context.Context, accountID string) (*BillingSummary, error) {
	acct, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	plan, err := uc.cat.Plan(acct.Tier)
	if err != nil {
		return nil, err
	}
	bal := acct.BalanceAgainst(plan)
	summary := &BillingSummary{
		PlanName:  plan.Name,
		Status:    acct.SubscriptionStatus,
		Tier:      acct.Tier,
		PeriodEnd: acct.PeriodEnd,
	}
	if bal.Unlimited {
		summary.CreditsRemaining = -1
		summary.CreditsTotal = -1
		return summary, nil
	}
	summary.CreditsRemaining = bal.Remaining
	summary.CreditsTotal = plan.MonthlyCredits.N + acct.PurchasedCredits
	return summary, nil
}

// Plans lists the catalog for GET /billing/plans.
func (uc *BillingService) Plans() ([]*model.PlanDefinition, []*model.CreditPack) {
	return uc.cat.Plans(), uc.cat.Packs()
}

// Checkout creates a hosted checkout session for a paid tier and returns
// the redirect URL.
func (uc *BillingService) Checkout(ctx context.Context, accountID string, tier model.Tier, interval model.BillingInterval) (string, error) {
	if !interval.Valid() {
		return "", domain.ErrInvalidArgument
	}
	plan, err := uc.cat.Plan(tier)
	if err != nil {
		return "", err
	}
	if plan.Price(interval) <= 0 {
		// free tier has no checkout
		return "", domain.ErrInvalidArgument
	}
	acct, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return "", err
	}
	url, err := uc.gateway.CreateCheckoutSession(ctx, adapter.CheckoutParams{
		AccountID:   acct.ID,
		Mode:        model.CheckoutModeSubscription,
		Plan:        plan,
		Interval:    interval,
		SuccessURL:  uc.successURL,
		CancelURL:   uc.cancelURL,
		CustomerRef: acct.UserID,
	})
	if err != nil {
		return "", err
	}
	uc.log.Info().Str("account_id", accountID).Str("tier", string(tier)).Str("interval", string(interval)).Msg("checkout session created")
	return url, nil
}

// PackCheckout creates a one-time checkout session for a credit pack.
func (uc *BillingService) PackCheckout(ctx context.Context, accountID, packID string) (string, error) {
	pack, err := uc.cat.Pack(packID)
	if err != nil {
		return "", err
	}
	acct, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return "", err
	}
	return uc.gateway.CreateCheckoutSession(ctx, adapter.CheckoutParams{
		AccountID:   acct.ID,
		Mode:        model.CheckoutModePayment,
		Pack:        pack,
		SuccessURL:  uc.successURL,
		CancelURL:   uc.cancelURL,
		CustomerRef: acct.UserID,
	})
}

// Cancel stops renewal at the provider and marks the subscription
// cancelled locally. Entitlements run until period end either way; the
// provider's subscription.deleted webhook applying later is a no-op for
// the status it already finds.
func (uc *BillingService) Cancel(ctx context.Context, accountID string) error {
	acct, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return err
	}
	if acct.SubscriptionStatus != model.SubscriptionStatusActive || acct.ExternalSubscriptionRef == nil {
		return domain.ErrNoActiveSubscription
	}
	if err := uc.gateway.CancelSubscription(ctx, *acct.ExternalSubscriptionRef); err != nil {
		return err
	}
	// re-read under the account lock: a webhook committing between the
	// pre-check and here (an invoice renewing the period, say) must not be
	// overwritten by the stale copy
	return uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.accounts.Lock(ctx, tx, accountID); err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		acct.SubscriptionStatus = model.SubscriptionStatusCancelled
		acct.UpdatedAt = time.Now()
		return uc.accounts.Save(ctx, tx, acct)
	})
}

// EnsureAccount returns the billing account for a user, creating the
// free-tier record on first touch (signup).
func (uc *BillingService) EnsureAccount(ctx context.Context, userID string) (*model.Account, error) {
	acct, err := uc.accounts.FindByUserID(ctx, repository.NoTX, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	acct, err = model.NewAccount(uuid.NewString(), userID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := uc.accounts.Save(ctx, repository.NoTX, acct); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// lost a first-touch race; the winner's row is the account
			return uc.accounts.FindByUserID(ctx, repository.NoTX, userID)
		}
		return nil, err
	}
	uc.log.Info().Str("account_id", acct.ID).Str("user_id", userID).Msg("billing account created")
	return acct, nil
}
