package payment

import (
	"context"
	"fmt"
	"time"

	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*NoopGateway)(nil)

// NoopGateway stands in for the provider in dev mode and tests: checkout
// returns a fake URL and signatures verify against a fixed secret.
type NoopGateway struct {
	webhookSecret string
}

func NewNoopGateway(webhookSecret string) *NoopGateway {
	if webhookSecret == "" {
		webhookSecret = "whsec_dev"
	}
	return &NoopGateway{webhookSecret: webhookSecret}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateCheckoutSession(ctx context.Context, p adapter.CheckoutParams) (string, error) {
	if p.Mode == model.CheckoutModePayment {
		return fmt.Sprintf("https://checkout.example.invalid/pack/%s?account=%s", p.Pack.ID, p.AccountID), nil
	}
	return fmt.Sprintf("https://checkout.example.invalid/plan/%s/%s?account=%s", p.Plan.ID, p.Interval, p.AccountID), nil
}

func (g *NoopGateway) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	return nil
}

func (g *NoopGateway) VerifySignature(payload []byte, signatureHeader string) error {
	return VerifyStripeSignature(g.webhookSecret, payload, signatureHeader, time.Now(), DefaultSignatureTolerance)
}
