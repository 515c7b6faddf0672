package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobhunt-billing/internal/catalog"
	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
)

// GrantSource distinguishes the two additive paths into an account.
type GrantSource string

const (
	GrantMonthlyReset GrantSource = "monthly_reset"
	GrantPurchase     GrantSource = "purchase"
)

// CreditLedger owns the per-account credit counters. Every mutation runs
// inside one transaction holding the account lock, so concurrent Reserve
// calls for the same account serialize on the read-decrement-write and can
// never both spend the last credits. The lock is released before any
// downstream metered work happens.
type CreditLedger struct {
	accounts repository.AccountRepository
	refunds  repository.RefundRepository
	cat      *catalog.Catalog
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewCreditLedger(accounts repository.AccountRepository, refunds repository.RefundRepository, cat *catalog.Catalog, tm repository.TransactionManager, logger *zerolog.Logger) *CreditLedger {
	l := logger.With().Str("component", "CreditLedger").Logger()
	return &CreditLedger{accounts: accounts, refunds: refunds, cat: cat, tm: tm, log: &l}
}

// CurrentBalance is a pure read: tier allotment minus usage this period,
// plus purchased credits. Unlimited tiers report Unlimited=true.
func (uc *CreditLedger) CurrentBalance(ctx context.Context, accountID string) (model.Balance, error) {
	acct, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return model.Balance{}, err
	}
	plan, err := uc.cat.Plan(acct.Tier)
	if err != nil {
		return model.Balance{}, err
	}
	return acct.BalanceAgainst(plan), nil
}

// Reserve atomically checks and decrements. On success the returned
// receipt records exactly which buckets were drawn, so Refund can restore
// them. Unlimited accounts succeed without mutating state.
func (uc *CreditLedger) Reserve(ctx context.Context, accountID string, action model.ActionKind, amount int64) (*model.Receipt, error) {
	if amount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	var receipt *model.Receipt
	err := uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.accounts.Lock(ctx, tx, accountID); err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		plan, err := uc.cat.Plan(acct.Tier)
		if err != nil {
			return err
		}
		now := time.Now()
		if plan.MonthlyCredits.Unlimited {
			receipt = &model.Receipt{
				ID:        uuid.NewString(),
				AccountID: accountID,
				Action:    action,
				IssuedAt:  now,
			}
			return nil
		}
		bal := acct.BalanceAgainst(plan)
		if bal.Remaining < amount {
			return &domain.InsufficientCreditsError{Available: bal.Remaining, Requested: amount}
		}
		draw := acct.PlanDraw(plan, amount, uc.cat.DrawOrder())
		acct.ApplyDraw(draw, now)
		if err := uc.accounts.Save(ctx, tx, acct); err != nil {
			return err
		}
		receipt = &model.Receipt{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Action:    action,
			Charged:   amount,
			Draw:      draw,
			IssuedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Grant adds credits. GrantMonthlyReset zeroes the period usage and rolls
// the window forward; GrantPurchase adds to the non-expiring pack balance.
// The period argument is used only for monthly resets: nil means "roll one
// cycle forward from the previous period end".
func (uc *CreditLedger) Grant(ctx context.Context, accountID string, amount int64, source GrantSource, period *model.BillingPeriod) error {
	if amount < 0 {
		return domain.ErrInvalidArgument
	}
	return uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.accounts.Lock(ctx, tx, accountID); err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		now := time.Now()
		switch source {
		case GrantMonthlyReset:
			p := model.BillingPeriod{Start: acct.PeriodStart, End: acct.PeriodEnd}.NextFrom(model.DefaultBillingCycle)
			if period != nil {
				p = *period
			}
			acct.ResetPeriod(p, now)
		case GrantPurchase:
			acct.PurchasedCredits += amount
			acct.UpdatedAt = now
		default:
			return domain.ErrInvalidArgument
		}
		if err := uc.accounts.Save(ctx, tx, acct); err != nil {
			return err
		}
		uc.log.Debug().Str("account_id", accountID).Str("source", string(source)).Int64("amount", amount).Msg("credits granted")
		return nil
	})
}

// Refund reverses a Reserve. It restores exactly the buckets recorded in
// the receipt, and the refund log's unique receipt_id makes receipts
// single-use: a replayed receipt (a caller retrying on timeout) returns
// ErrDuplicateRefund without touching the balance a second time.
func (uc *CreditLedger) Refund(ctx context.Context, receipt *model.Receipt) error {
	if receipt == nil || receipt.ID == "" || receipt.AccountID == "" {
		return domain.ErrInvalidArgument
	}
	if receipt.Charged == 0 {
		// unlimited-tier receipt, nothing was drawn
		return nil
	}
	return uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.accounts.Lock(ctx, tx, receipt.AccountID); err != nil {
			return err
		}
		now := time.Now()
		// log first: a duplicate aborts before any balance change
		err := uc.refunds.Insert(ctx, tx, &model.Refund{
			ID:        uuid.NewString(),
			ReceiptID: receipt.ID,
			AccountID: receipt.AccountID,
			Action:    receipt.Action,
			Amount:    receipt.Charged,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		acct, err := uc.accounts.FindByID(ctx, tx, receipt.AccountID)
		if err != nil {
			return err
		}
		acct.ApplyRefund(receipt.Draw, now)
		return uc.accounts.Save(ctx, tx, acct)
	})
}
