package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/adapter"
	"jobhunt-billing/internal/infra/metrics"
	"jobhunt-billing/internal/usecase"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 1 << 20
)

// webhookEnvelope is the provider delivery format. Period bounds are unix
// seconds, absent for one-time payments.
type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		AccountID       string `json:"account_id"`
		Mode            string `json:"mode"`
		Tier            string `json:"tier"`
		PackID          string `json:"pack_id"`
		SubscriptionRef string `json:"subscription_ref"`
		PeriodStart     int64  `json:"period_start"`
		PeriodEnd       int64  `json:"period_end"`
	} `json:"data"`
}

func (e *webhookEnvelope) period() model.BillingPeriod {
	var p model.BillingPeriod
	if e.Data.PeriodStart > 0 {
		p.Start = time.Unix(e.Data.PeriodStart, 0)
	}
	if e.Data.PeriodEnd > 0 {
		p.End = time.Unix(e.Data.PeriodEnd, 0)
	}
	return p
}

// WebhookHandler verifies, decodes, and applies provider deliveries.
// Responses: 200 only after successful (or duplicate) application, 400
// for unauthenticated or malformed payloads, 500 when persistence failed
// so the provider retries the delivery.
type WebhookHandler struct {
	gateway   adapter.CheckoutGateway
	lifecycle *usecase.SubscriptionLifecycle
	log       *zerolog.Logger
}

func NewWebhookHandler(gateway adapter.CheckoutGateway, lifecycle *usecase.SubscriptionLifecycle, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "WebhookHandler").Logger()
	return &WebhookHandler{gateway: gateway, lifecycle: lifecycle, log: &l}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	// signature first: nothing is trusted or mutated before this passes
	if err := h.gateway.VerifySignature(body, r.Header.Get(signatureHeader)); err != nil {
		metrics.IncWebhookSignatureFailure()
		h.log.Warn().Err(err).Msg("webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.ID == "" {
		h.log.Warn().Err(err).Msg("malformed webhook payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	err = h.apply(r, &env)
	switch {
	case err == nil, errors.Is(err, domain.ErrDuplicateWebhookEvent):
		// duplicates are expected: the provider retried a delivery we
		// already applied, and it must see a 2xx to stop
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnknownTier),
		errors.Is(err, domain.ErrUnknownCreditPack),
		errors.Is(err, domain.ErrNotFound):
		h.log.Error().Err(err).Str("event_id", env.ID).Str("type", env.Type).Msg("webhook rejected")
		http.Error(w, "unprocessable event", http.StatusBadRequest)
	default:
		// persistence failure after a valid signature: non-2xx makes the
		// provider redeliver, the idempotency log makes the retry safe
		h.log.Error().Err(err).Str("event_id", env.ID).Str("type", env.Type).Msg("webhook apply failed")
		http.Error(w, "apply failed", http.StatusInternalServerError)
	}
}

func (h *WebhookHandler) apply(r *http.Request, env *webhookEnvelope) error {
	ctx := r.Context()
	switch env.Type {
	case model.EventCheckoutCompleted:
		mode := model.CheckoutMode(env.Data.Mode)
		if mode == "" {
			mode = model.CheckoutModeSubscription
		}
		return h.lifecycle.HandleCheckoutCompleted(ctx, env.ID, model.CheckoutCompleted{
			AccountID:       env.Data.AccountID,
			Tier:            model.Tier(env.Data.Tier),
			PackID:          env.Data.PackID,
			Mode:            mode,
			SubscriptionRef: env.Data.SubscriptionRef,
			Period:          env.period(),
		})
	case model.EventInvoicePaid:
		return h.lifecycle.HandleInvoicePaid(ctx, env.ID, model.InvoicePaid{
			AccountID: env.Data.AccountID,
			Period:    env.period(),
		})
	case model.EventSubscriptionDeleted:
		return h.lifecycle.HandleSubscriptionDeleted(ctx, env.ID, model.SubscriptionDeleted{
			AccountID: env.Data.AccountID,
		})
	default:
		// providers send event types we never subscribed to; acknowledge
		// and move on
		h.log.Debug().Str("type", env.Type).Msg("ignoring unhandled webhook type")
		return nil
	}
}
