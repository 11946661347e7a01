package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/subledger/pkg/billing"
	"github.com/dmitrymomot/subledger/pkg/catalog"
	"github.com/dmitrymomot/subledger/pkg/httpserver"
	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/stats"
	"github.com/dmitrymomot/subledger/pkg/subscription"
	"github.com/dmitrymomot/subledger/pkg/user"
	"github.com/dmitrymomot/subledger/pkg/webhook"
)

// Deps are the services the router exposes. WebhookSecret, Metrics and
// Checks are optional.
type Deps struct {
	Users         *user.Service
	Plans         *catalog.Service
	Subscriptions *subscription.Service
	Ledger        *ledger.Service
	Billing       *billing.Service
	Stats         *stats.Service

	// WebhookSecret signs POST /webhooks callbacks. Empty accepts unsigned
	// callbacks.
	WebhookSecret string
	// Metrics is served at GET /metrics.
	Metrics http.Handler
	// Checks back the readiness probe at GET /healthz.
	Checks []httpserver.Check
}

type handlers struct {
	Deps
	logger *slog.Logger
}

// Option configures the router.
type Option func(*handlers)

func WithLogger(l *slog.Logger) Option {
	return func(h *handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewRouter builds the HTTP API. Panics if a required service is nil.
func NewRouter(d Deps, opts ...Option) http.Handler {
	switch {
	case d.Users == nil:
		panic("api: users service is required")
	case d.Plans == nil:
		panic("api: plans service is required")
	case d.Subscriptions == nil:
		panic("api: subscriptions service is required")
	case d.Ledger == nil:
		panic("api: ledger service is required")
	case d.Billing == nil:
		panic("api: billing service is required")
	case d.Stats == nil:
		panic("api: stats service is required")
	}

	h := &handlers{Deps: d, logger: logger.Discard()}
	for _, opt := range opts {
		opt(h)
	}
	verifier := webhook.NewVerifier(d.WebhookSecret,
		webhook.WithLogger(h.logger),
		webhook.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			h.fail(w, r, err, "webhook rejected")
		}),
	)

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, r, ErrRouteNotFound, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, r, ErrMethodNotAllowed, "")
	})

	r.Get("/healthz", httpserver.HealthCheckHandler(h.logger, 2*time.Second, d.Checks...))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.createUser)
		r.Get("/", h.listUsers)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getUser)
			r.Patch("/", h.updateUser)
			r.Delete("/", h.deleteUser)
			r.Post("/activate", h.activateUser)
			r.Post("/deactivate", h.deactivateUser)
			r.Get("/subscriptions", h.userSubscriptions)
			r.Get("/subscriptions/active", h.userActiveSubscriptions)
			r.Get("/transactions", h.userTransactions)
		})
	})

	r.Route("/plans", func(r chi.Router) {
		r.Post("/", h.createPlan)
		r.Get("/", h.listPlans)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getPlan)
			r.Patch("/", h.updatePlan)
			r.Delete("/", h.deletePlan)
			r.Post("/activate", h.activatePlan)
			r.Post("/deactivate", h.deactivatePlan)
		})
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.createSubscription)
		r.Get("/", h.listSubscriptions)
		r.Post("/expire-due", h.expireDue)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSubscription)
			r.Get("/active", h.subscriptionActive)
			r.Get("/transactions", h.subscriptionTransactions)
			r.Post("/activate", h.activateSubscription)
			r.Post("/payment-failed", h.markPaymentFailed)
			r.Post("/cancel", h.cancelSubscription)
			r.Post("/renew", h.renewSubscription)
			r.Post("/expire", h.expireSubscription)
			r.Put("/auto-renew", h.setAutoRenew)
			r.Put("/payment-method", h.setPaymentMethod)
		})
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.recordTransaction)
		r.Get("/", h.listTransactions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getTransaction)
			r.Post("/complete", h.completeTransaction)
			r.Post("/fail", h.failTransaction)
			r.Post("/refund", h.refundTransaction)
			r.Post("/metadata", h.annotateTransaction)
		})
	})

	r.Route("/payment", func(r chi.Router) {
		r.Post("/simulate", h.simulatePayment)
		r.Post("/retry", h.retryPayment)
		r.Post("/renew", h.chargeRenewal)
	})

	r.With(verifier.Middleware).Post("/webhooks", h.handleWebhook)

	r.Route("/stats", func(r chi.Router) {
		r.Get("/", h.summary)
		r.Get("/monthly", h.monthlyRevenue)
		r.Get("/plans", h.planBreakdown)
		r.Get("/report", h.report)
	})

	return r
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	respondError(w, r, h.logger, err, message)
}
