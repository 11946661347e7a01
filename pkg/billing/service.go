package billing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/payment"
	"github.com/dmitrymomot/subledger/pkg/subscription"
)

// Subscriptions is the lifecycle engine surface billing drives.
type Subscriptions interface {
	Get(ctx context.Context, id string) (subscription.Subscription, error)
	Create(ctx context.Context, in subscription.CreateInput) (subscription.Subscription, error)
	Activate(ctx context.Context, id string) (subscription.Subscription, error)
	MarkPaymentFailed(ctx context.Context, id string) (subscription.Subscription, error)
	Cancel(ctx context.Context, id string) (subscription.Subscription, error)
	Renew(ctx context.Context, id string, n int) (subscription.Subscription, error)
	CanFire(ctx context.Context, sub subscription.Subscription, event subscription.Event) bool
}

// Ledger is the transaction ledger surface billing drives.
type Ledger interface {
	Get(ctx context.Context, id string) (ledger.Transaction, error)
	Record(ctx context.Context, in ledger.RecordInput) (ledger.Transaction, error)
	Finalize(ctx context.Context, id string, in ledger.FinalizeInput) (ledger.Transaction, error)
	LatestPending(ctx context.Context, subscriptionID string) (ledger.Transaction, error)
	FindByExternalRef(ctx context.Context, ref string) (ledger.Transaction, error)
}

// Service keeps subscriptions and the ledger consistent. Webhooks, checkout
// and renewal charges all settle through the intent journal.
type Service struct {
	subs      Subscriptions
	ledger    Ledger
	journal   *Journal
	attempter payment.Attempter
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time

	// mu serializes settlements so two deliveries of one event cannot both
	// pass the replay check.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithAttempter sets the payment strategy used by Checkout, RetryPayment and
// ChargeRenewal.
func WithAttempter(a payment.Attempter) Option {
	return func(s *Service) { s.attempter = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the reconciler. Panics if a dependency is nil.
func NewService(subs Subscriptions, l Ledger, journal *Journal, opts ...Option) *Service {
	if subs == nil {
		panic("billing: subscriptions are required")
	}
	if l == nil {
		panic("billing: ledger is required")
	}
	if journal == nil {
		panic("billing: journal is required")
	}
	s := &Service{
		subs:    subs,
		ledger:  l,
		journal: journal,
		metrics: noopMetrics{},
		logger:  logger.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
