package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jobhunt-billing/internal/infra/redis"
	"jobhunt-billing/internal/usecase"
)

// Server exposes the billing HTTP surface:
//
//	/billing/*   frontend routes, JWT session auth
//	/billing/webhook  provider callbacks, signature auth
//	/internal/*  integration routes for other backend services, API key
//	/healthz, /metrics  operational
type Server struct {
	billing *usecase.BillingService
	guard   *usecase.UsageGuard
	webhook *WebhookHandler
	auth    *AuthManager
	limiter *redis.RateLimiter
	apiKey  string
	log     *zerolog.Logger

	checkoutPerMinute int
}

func NewServer(
	billing *usecase.BillingService,
	guard *usecase.UsageGuard,
	webhook *WebhookHandler,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	apiKey string,
	checkoutPerMinute int,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		billing:           billing,
		guard:             guard,
		webhook:           webhook,
		auth:              auth,
		limiter:           limiter,
		apiKey:            apiKey,
		checkoutPerMinute: checkoutPerMinute,
		log:               &l,
	}
}

// Router builds the chi routing tree with the shared middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/billing", func(r chi.Router) {
		// webhook authenticates by signature, not session
		r.Post("/webhook", s.webhook.Handle)

		r.Group(func(r chi.Router) {
			r.Use(toChi(RequireSession(s.auth)))
			r.Get("/plans", s.handlePlans)
			r.Get("/current", s.handleCurrent)
			r.Get("/usage", s.handleUsage)
			r.Post("/checkout", s.handleCheckout)
			r.Post("/credits/checkout", s.handlePackCheckout)
			r.Post("/cancel", s.handleCancel)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(toChi(RequireAPIKey(s.apiKey)))
		r.Post("/authorize", s.handleAuthorize)
		r.Post("/refund", s.handleRefund)
		r.Post("/access", s.handleAccess)
		r.Post("/accounts", s.handleEnsureAccount)
	})

	return Chain(r, TraceID(), RequestLog(s.log), Recover(s.log))
}

func toChi(m Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return m(next) }
}

// NewHTTPServer wraps the router with sane timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
