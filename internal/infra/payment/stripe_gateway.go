package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*StripeGateway)(nil)

// StripeGateway drives Stripe's hosted checkout over the form-encoded
// REST API. Only the two calls the billing service needs are implemented:
// session creation and cancel-at-period-end.
type StripeGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpc         *http.Client
}

func NewStripeGateway(secretKey, webhookSecret string) (*StripeGateway, error) {
	if secretKey == "" || webhookSecret == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &StripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       "https://api.stripe.com",
		httpc:         &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p adapter.CheckoutParams) (string, error) {
	form := url.Values{}
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("client_reference_id", p.AccountID)
	form.Set("metadata[account_id]", p.AccountID)

	switch p.Mode {
	case model.CheckoutModeSubscription:
		if p.Plan == nil || !p.Interval.Valid() {
			return "", domain.ErrInvalidArgument
		}
		form.Set("mode", "subscription")
		form.Set("metadata[tier]", string(p.Plan.ID))
		form.Set("line_items[0][quantity]", "1")
		form.Set("line_items[0][price_data][currency]", "usd")
		form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.Plan.Price(p.Interval), 10))
		form.Set("line_items[0][price_data][recurring][interval]", string(p.Interval))
		form.Set("line_items[0][price_data][product_data][name]", p.Plan.Name)
	case model.CheckoutModePayment:
		if p.Pack == nil {
			return "", domain.ErrInvalidArgument
		}
		form.Set("mode", "payment")
		form.Set("metadata[pack_id]", p.Pack.ID)
		form.Set("line_items[0][quantity]", "1")
		form.Set("line_items[0][price_data][currency]", "usd")
		form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.Pack.PriceCents, 10))
		form.Set("line_items[0][price_data][product_data][name]", p.Pack.Name)
	default:
		return "", domain.ErrInvalidArgument
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := g.post(ctx, "/v1/checkout/sessions", form, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("stripe: session created without url")
	}
	return out.URL, nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	if subscriptionRef == "" {
		return domain.ErrInvalidArgument
	}
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")
	return g.post(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionRef), form, nil)
}

func (g *StripeGateway) VerifySignature(payload []byte, signatureHeader string) error {
	return VerifyStripeSignature(g.webhookSecret, payload, signatureHeader, time.Now(), DefaultSignatureTolerance)
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		return fmt.Errorf("stripe: %s %s: %s (%s)", http.MethodPost, path, apiErr.Error.Message, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
