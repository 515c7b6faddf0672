package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/infra/logging"
	"jobhunt-billing/internal/infra/redis"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain taxonomy onto HTTP. Credit and tier denials
// keep their payloads so the frontend can render balance and upgrade
// messaging.
func writeError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":     "insufficient_credits",
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
		return
	}
	var tierErr *domain.TierAccessError
	if errors.As(err, &tierErr) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":         "tier_required",
			"current_tier":  tierErr.Have,
			"required_tier": tierErr.Required,
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUnknownAction),
		errors.Is(err, domain.ErrUnknownCreditPack):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
	case errors.Is(err, domain.ErrNoActiveSubscription):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no_active_subscription"})
	default:
		// ErrUnknownTier lands here on purpose: a tier we did not seed is
		// a config error, not something the client can fix
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	}
}

// ----- frontend routes (session-authenticated) -----

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans, packs := s.billing.Plans()
	writeJSON(w, http.StatusOK, struct {
		Plans       []*model.PlanDefinition `json:"plans"`
		CreditPacks []*model.CreditPack     `json:"credit_packs"`
	}{Plans: plans, CreditPacks: packs})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	accountID := logging.AccountID(r.Context())
	summary, err := s.billing.Current(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	accountID := logging.AccountID(r.Context())
	events, err := s.guard.RecentUsage(r.Context(), accountID, 50)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) allowCheckout(w http.ResponseWriter, r *http.Request, accountID string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(r.Context(), redis.CheckoutKey(accountID), s.checkoutPerMinute, time.Minute)
	if err != nil {
		// rate limiting is best-effort; a redis hiccup must not block checkout
		s.log.Warn().Err(err).Msg("checkout rate limit check failed")
		return true
	}
	if !ok {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
		return false
	}
	return true
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	accountID := logging.AccountID(r.Context())
	if !s.allowCheckout(w, r, accountID) {
		return
	}
	tier := model.Tier(r.URL.Query().Get("plan_id"))
	interval := model.BillingInterval(r.URL.Query().Get("interval"))
	if interval == "" {
		interval = model.IntervalMonth
	}
	url, err := s.billing.Checkout(r.Context(), accountID, tier, interval)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTier) {
			// here the tier came from the client, not config
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown_plan"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

func (s *Server) handlePackCheckout(w http.ResponseWriter, r *http.Request) {
	accountID := logging.AccountID(r.Context())
	if !s.allowCheckout(w, r, accountID) {
		return
	}
	packID := r.URL.Query().Get("pack_id")
	url, err := s.billing.PackCheckout(r.Context(), accountID, packID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	accountID := logging.AccountID(r.Context())
	if err := s.billing.Cancel(r.Context(), accountID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ----- internal integration routes (API-key guarded) -----

type authorizeRequest struct {
	AccountID string `json:"account_id"`
	Action    string `json:"action_kind"`
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" || req.Action == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	receipt, err := s.guard.Authorize(r.Context(), req.AccountID, model.ActionKind(req.Action))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ReceiptID string         `json:"receipt_id"`
		Charged   int64          `json:"charged"`
		Receipt   *model.Receipt `json:"receipt"`
	}{ReceiptID: receipt.ID, Charged: receipt.Charged, Receipt: receipt})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var receipt model.Receipt
	if err := json.NewDecoder(r.Body).Decode(&receipt); err != nil || receipt.AccountID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if err := s.guard.Refund(r.Context(), &receipt); err != nil {
		if errors.Is(err, domain.ErrDuplicateRefund) {
			// a retried delivery of a receipt we already honored; the
			// caller's intent is satisfied, answer as if it succeeded
			w.WriteHeader(http.StatusOK)
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type accessRequest struct {
	AccountID string `json:"account_id"`
	MinTier   string `json:"min_tier"`
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if err := s.guard.CheckTierAccess(r.Context(), req.AccountID, model.Tier(req.MinTier)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": true})
}

type ensureAccountRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleEnsureAccount(w http.ResponseWriter, r *http.Request) {
	var req ensureAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	acct, err := s.billing.EnsureAccount(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account_id": acct.ID,
		"tier":       string(acct.Tier),
	})
}
