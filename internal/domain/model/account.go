package model

import (
	"time"

	"jobhunt-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
)

// Account is the billing-owned record for one user. The rest of the
// application references it by ID and never mutates it directly.
type Account struct {
	ID                      string // UUID
	UserID                  string // UUID of the application user
	Tier                    Tier
	SubscriptionStatus      SubscriptionStatus
	CreditsUsedThisPeriod   int64
	PurchasedCredits        int64 // never expires, never resets
	PeriodStart             time.Time
	PeriodEnd               time.Time
	ExternalSubscriptionRef *string // provider subscription id, nil until checkout
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewAccount creates a fresh free-tier account with its first period window.
func NewAccount(id, userID string, now time.Time) (*Account, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Account{
		ID:                 id,
		UserID:             userID,
		Tier:               TierFree,
		SubscriptionStatus: SubscriptionStatusNone,
		PeriodStart:        now,
		PeriodEnd:          now.Add(DefaultBillingCycle),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Balance is the aggregated read of an account's spendable credits.
type Balance struct {
	Remaining int64
	Unlimited bool
}

// BalanceAgainst computes the spendable balance for the plan's allotment:
// monthly allotment minus usage this period, plus the purchased-pack
// balance. Unlimited plans never decrement.
func (a *Account) BalanceAgainst(plan *PlanDefinition) Balance {
	if plan.MonthlyCredits.Unlimited {
		return Balance{Unlimited: true}
	}
	monthly := plan.MonthlyCredits.N - a.CreditsUsedThisPeriod
	if monthly < 0 {
		monthly = 0
	}
	return Balance{Remaining: monthly + a.PurchasedCredits}
}

// DrawOrder decides which bucket a reservation decrements first.
type DrawOrder string

const (
	DrawMonthlyFirst   DrawOrder = "monthly_first"
	DrawPurchasedFirst DrawOrder = "purchased_first"
)

// Draw is the split of one reservation across the two credit buckets.
type Draw struct {
	FromMonthly   int64
	FromPurchased int64
}

// PlanDraw splits amount across monthly allotment and purchased credits
// according to order. It does not mutate the account; callers apply the
// returned draw only after the insufficient-balance check passed.
func (a *Account) PlanDraw(plan *PlanDefinition, amount int64, order DrawOrder) Draw {
	monthlyLeft := plan.MonthlyCredits.N - a.CreditsUsedThisPeriod
	if monthlyLeft < 0 {
		monthlyLeft = 0
	}
	if order == DrawPurchasedFirst {
		fromPurchased := min64(amount, a.PurchasedCredits)
		return Draw{FromPurchased: fromPurchased, FromMonthly: amount - fromPurchased}
	}
	fromMonthly := min64(amount, monthlyLeft)
	return Draw{FromMonthly: fromMonthly, FromPurchased: amount - fromMonthly}
}

// ApplyDraw decrements the account by a planned draw.
func (a *Account) ApplyDraw(d Draw, now time.Time) {
	a.CreditsUsedThisPeriod += d.FromMonthly
	a.PurchasedCredits -= d.FromPurchased
	a.UpdatedAt = now
}

// ApplyRefund reverses a draw. The caller caps it against the receipt so a
// refund can never exceed what was charged.
func (a *Account) ApplyRefund(d Draw, now time.Time) {
	a.CreditsUsedThisPeriod -= d.FromMonthly
	if a.CreditsUsedThisPeriod < 0 {
		a.CreditsUsedThisPeriod = 0
	}
	a.PurchasedCredits += d.FromPurchased
	a.UpdatedAt = now
}

// ResetPeriod starts a fresh allotment window. Usage is zeroed; purchased
// credits are untouched.
func (a *Account) ResetPeriod(period BillingPeriod, now time.Time) {
	a.CreditsUsedThisPeriod = 0
	a.PeriodStart = period.Start
	a.PeriodEnd = period.End
	a.UpdatedAt = now
}

// PeriodExpired reports whether the current window has lapsed.
func (a *Account) PeriodExpired(now time.Time) bool {
	return !a.PeriodEnd.IsZero() && now.After(a.PeriodEnd)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
