package model

import (
	"encoding/json"
	"time"
)

// Tier is a named subscription plan governing credit allotment and
// feature access.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Rank orders tiers for access checks: free < pro < enterprise.
// Unknown tiers rank below free.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPro:
		return 1
	case TierEnterprise:
		return 2
	default:
		return -1
	}
}

func (t Tier) Valid() bool { return t.Rank() >= 0 }

// Allotment is a credit quantity that may be unlimited. The wire format
// keeps the legacy -1 sentinel so existing API consumers keep working,
// but in-process code branches on Unlimited instead of comparing to -1.
type Allotment struct {
	N         int64
	Unlimited bool
}

func LimitedCredits(n int64) Allotment { return Allotment{N: n} }

func UnlimitedCredits() Allotment { return Allotment{Unlimited: true} }

// AllotmentFromSentinel converts the -1-means-unlimited convention used in
// config files and the JSON API.
func AllotmentFromSentinel(n int64) Allotment {
	if n < 0 {
		return UnlimitedCredits()
	}
	return LimitedCredits(n)
}

// Sentinel renders the legacy wire value.
func (a Allotment) Sentinel() int64 {
	if a.Unlimited {
		return -1
	}
	return a.N
}

func (a Allotment) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Sentinel())
}

func (a *Allotment) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = AllotmentFromSentinel(n)
	return nil
}

// PlanDefinition is an immutable tier definition seeded at deploy time.
type PlanDefinition struct {
	ID                    Tier      `json:"id" yaml:"id"`
	Name                  string    `json:"name" yaml:"name"`
	MonthlyCredits        Allotment `json:"monthly_credits" yaml:"monthly_credits"`
	DailyApplicationLimit Allotment `json:"daily_application_limit" yaml:"daily_application_limit"`
	MaxSavedJobs          Allotment `json:"max_saved_jobs" yaml:"max_saved_jobs"`
	PriceMonthlyCents     int64     `json:"price_monthly_cents" yaml:"price_monthly_cents"`
	PriceYearlyCents      int64     `json:"price_yearly_cents" yaml:"price_yearly_cents"`
	Features              []string  `json:"features" yaml:"features"`
}

// BillingInterval selects monthly vs yearly pricing at checkout.
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

func (i BillingInterval) Valid() bool { return i == IntervalMonth || i == IntervalYear }

// Price returns the plan price in cents for the interval.
func (p *PlanDefinition) Price(interval BillingInterval) int64 {
	if interval == IntervalYear {
		return p.PriceYearlyCents
	}
	return p.PriceMonthlyCents
}

// CreditPack is a one-time, non-expiring credit purchase independent of
// subscription tier.
type CreditPack struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Credits    int64  `json:"credits" yaml:"credits"`
	PriceCents int64  `json:"price_cents" yaml:"price_cents"`
}

// BillingPeriod bounds one monthly allotment window.
type BillingPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NextFrom anchors the following window at the previous end, not at "now",
// so repeated rollovers do not drift.
func (p BillingPeriod) NextFrom(cycle time.Duration) BillingPeriod {
	return BillingPeriod{Start: p.End, End: p.End.Add(cycle)}
}

// DefaultBillingCycle approximates one month; providers send exact period
// bounds with invoice events, this is only used for self-managed windows
// (free tier, rollover of accounts the provider no longer bills).
const DefaultBillingCycle = 30 * 24 * time.Hour
