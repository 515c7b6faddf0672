package model

import "time"

// Webhook event types, normalized from the payment provider's vocabulary.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventInvoicePaid         = "invoice.paid"
	EventSubscriptionDeleted = "subscription.deleted"
)

// WebhookEvent is one row of the idempotency log. ProviderEventID is
// unique; a replayed delivery hits the constraint and is a no-op.
type WebhookEvent struct {
	ID              string // UUID
	ProviderEventID string
	EventType       string
	AppliedAt       time.Time
}

// CheckoutCompleted is the decoded payload of a checkout.completed event.
// Mode distinguishes subscription checkouts from one-time credit-pack
// purchases (both arrive as the same provider event type).
type CheckoutCompleted struct {
	AccountID       string
	Tier            Tier
	PackID          string
	Mode            CheckoutMode
	SubscriptionRef string
	Period          BillingPeriod
}

type CheckoutMode string

const (
	CheckoutModeSubscription CheckoutMode = "subscription"
	CheckoutModePayment      CheckoutMode = "payment"
)

// InvoicePaid carries the new period bounds for a renewing subscription.
type InvoicePaid struct {
	AccountID string
	Period    BillingPeriod
}

// SubscriptionDeleted signals provider-side cancellation. Entitlements
// persist until the account's period end.
type SubscriptionDeleted struct {
	AccountID string
}
