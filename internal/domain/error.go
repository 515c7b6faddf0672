package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound                = errors.New("entity not found")
	ErrAlreadyExists           = errors.New("entity already exists")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrUnknownTier             = errors.New("unknown subscription tier")
	ErrUnknownAction           = errors.New("unknown metered action")
	ErrUnknownCreditPack       = errors.New("unknown credit pack")
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrDuplicateWebhookEvent   = errors.New("webhook event already applied")
	ErrDuplicateRefund         = errors.New("receipt already refunded")
	ErrNoActiveSubscription    = errors.New("no active subscription")
	ErrInvalidExecContext      = errors.New("invalid executor context")
	ErrLockNotAcquired         = errors.New("lock not acquired")
)

// ErrInsufficientCredits is the sentinel for errors.Is matching; concrete
// values are always *InsufficientCreditsError.
var ErrInsufficientCredits = errors.New("insufficient credits")

// InsufficientCreditsError carries the balance callers need for user
// messaging (HTTP 402-equivalent).
type InsufficientCreditsError struct {
	Available int64
	Requested int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: available=%d requested=%d", e.Available, e.Requested)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

var ErrTierAccessDenied = errors.New("tier access denied")

// TierAccessError denies a tier-gated action and names the tier required
// for upgrade messaging.
type TierAccessError struct {
	Have     string
	Required string
}

func (e *TierAccessError) Error() string {
	return fmt.Sprintf("tier %q required (current %q)", e.Required, e.Have)
}

func (e *TierAccessError) Is(target error) bool { return target == ErrTierAccessDenied }
