package adapter

import (
	"context"

	"jobhunt-billing/internal/domain/model"
)

// CheckoutParams describes one hosted-checkout session. Exactly one of
// Plan/Pack is set, matching Mode.
type CheckoutParams struct {
	AccountID   string
	Mode        model.CheckoutMode
	Plan        *model.PlanDefinition
	Interval    model.BillingInterval
	Pack        *model.CreditPack
	SuccessURL  string
	CancelURL   string
	CustomerRef string
}

// CheckoutGateway is the port to the hosted payment provider. The frontend
// is redirected to the returned URL; everything after that arrives as
// webhooks.
type CheckoutGateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (url string, err error)
	// CancelSubscription flags the provider-side subscription to stop
	// renewing at period end.
	CancelSubscription(ctx context.Context, subscriptionRef string) error
	// VerifySignature authenticates a raw webhook delivery before any
	// state mutation.
	VerifySignature(payload []byte, signatureHeader string) error
}
