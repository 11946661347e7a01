package stats

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/dmitrymomot/subledger/pkg/catalog"
	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/subscription"
)

// Transactions is the ledger read surface.
type Transactions interface {
	Query(ctx context.Context, f ledger.Filter) ([]ledger.Transaction, error)
}

// Subscriptions is the lifecycle read surface.
type Subscriptions interface {
	List(ctx context.Context) ([]subscription.Subscription, error)
}

// Plans is the catalog read surface.
type Plans interface {
	List(ctx context.Context, activeOnly bool) ([]catalog.Plan, error)
}

// Filter narrows a report. Zero fields are ignored; From and To bound
// transaction and subscription creation time as [From, To).
type Filter struct {
	UserID string    `json:"user_id,omitempty"`
	PlanID string    `json:"plan_id,omitempty"`
	From   time.Time `json:"from,omitzero"`
	To     time.Time `json:"to,omitzero"`
}

func (f Filter) matches(userID, planID string, createdAt time.Time) bool {
	switch {
	case f.UserID != "" && userID != f.UserID:
		return false
	case f.PlanID != "" && planID != f.PlanID:
		return false
	case !f.From.IsZero() && createdAt.Before(f.From):
		return false
	case !f.To.IsZero() && !createdAt.Before(f.To):
		return false
	}
	return true
}

// Summary aggregates payments. TotalTransactions counts payments of any
// status; AverageAmount is TotalRevenue over TotalTransactions, 0 when there
// are none.
type Summary struct {
	Currency          string                 `json:"currency"`
	TotalTransactions int                    `json:"total_transactions"`
	TotalRevenue      int64                  `json:"total_revenue"`
	SuccessCount      int                    `json:"success_count"`
	FailureCount      int                    `json:"failure_count"`
	PendingCount      int                    `json:"pending_count"`
	AverageAmount     int64                  `json:"average_amount"`
	SuccessRate       float64                `json:"success_rate"`
	RefundCount       int                    `json:"refund_count"`
	RefundedAmount    int64                  `json:"refunded_amount"`
	NetRevenue        int64                  `json:"net_revenue"`
	Display           map[string]money.Money `json:"display,omitempty"`
}

// MonthRevenue is one calendar month of completed payments.
type MonthRevenue struct {
	Month  string `json:"month"`
	Count  int    `json:"count"`
	Amount int64  `json:"amount"`
}

// PlanStats is one row of the per-plan breakdown.
type PlanStats struct {
	PlanID              string `json:"plan_id"`
	PlanName            string `json:"plan_name"`
	Subscriptions       int    `json:"subscriptions"`
	ActiveSubscriptions int    `json:"active_subscriptions"`
	Payments            int    `json:"payments"`
	Revenue             int64  `json:"revenue"`
}

// Report bundles every view for one filter.
type Report struct {
	Summary Summary        `json:"summary"`
	Monthly []MonthRevenue `json:"monthly"`
	Plans   []PlanStats    `json:"plans"`
}

// Service computes reports.
type Service struct {
	txs    Transactions
	subs   Subscriptions
	plans  Plans
	rates  money.Rates
	logger *slog.Logger
	now    func() time.Time
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

// WithRates sets the display rates. The base currency becomes the report
// currency.
func WithRates(r money.Rates) Option {
	return func(s *Service) { s.rates = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the aggregator. Panics if a dependency is nil.
func NewService(txs Transactions, subs Subscriptions, plans Plans, opts ...Option) *Service {
	if txs == nil {
		panic("stats: transactions are required")
	}
	if subs == nil {
		panic("stats: subscriptions are required")
	}
	if plans == nil {
		panic("stats: plans are required")
	}
	s := &Service{
		txs:    txs,
		subs:   subs,
		plans:  plans,
		rates:  money.DefaultRates(),
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary aggregates the payments and refunds matching f.
func (s *Service) Summary(ctx context.Context, f Filter) (Summary, error) {
	txs, err := s.query(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(txs)
}

// MonthlyRevenue groups completed payments by the month they completed in,
// oldest first.
func (s *Service) MonthlyRevenue(ctx context.Context, f Filter) ([]MonthRevenue, error) {
	txs, err := s.query(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.monthly(txs)
}

// PlanBreakdown counts subscriptions and completed payment revenue per plan.
// Plans missing from the catalog are listed with an empty name. The filter
// applies to subscriptions as well as payments: From and To bound their
// creation time. Catalog plans without activity are listed only when the
// breakdown is not narrowed to one user.
func (s *Service) PlanBreakdown(ctx context.Context, f Filter) ([]PlanStats, error) {
	txs, err := s.query(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.breakdown(ctx, f, txs)
}

// Report computes every view for the same filter.
func (s *Service) Report(ctx context.Context, f Filter) (Report, error) {
	txs, err := s.query(ctx, f)
	if err != nil {
		return Report{}, err
	}
	summary, err := s.summarize(txs)
	if err != nil {
		return Report{}, err
	}
	monthly, err := s.monthly(txs)
	if err != nil {
		return Report{}, err
	}
	plans, err := s.breakdown(ctx, f, txs)
	if err != nil {
		return Report{}, err
	}
	return Report{Summary: summary, Monthly: monthly, Plans: plans}, nil
}

func (s *Service) query(ctx context.Context, f Filter) ([]ledger.Transaction, error) {
	txs, err := s.txs.Query(ctx, ledger.Filter{UserID: f.UserID, PlanID: f.PlanID, From: f.From, To: f.To})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load transactions for report", logger.Error(err))
		return nil, err
	}
	return txs, nil
}

func (s *Service) breakdown(ctx context.Context, f Filter, txs []ledger.Transaction) ([]PlanStats, error) {
	plans, err := s.plans.List(ctx, false)
	if err != nil {
		return nil, err
	}
	subs, err := s.subs.List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make(map[string]*PlanStats, len(plans))
	row := func(id string) *PlanStats {
		r, ok := rows[id]
		if !ok {
			r = &PlanStats{PlanID: id}
			rows[id] = r
		}
		return r
	}

	for _, p := range plans {
		if f.PlanID != "" && p.ID != f.PlanID {
			continue
		}
		if f.UserID == "" {
			row(p.ID)
		}
	}
	now := s.now()
	for _, sub := range subs {
		if !f.matches(sub.UserID, sub.PlanID, sub.CreatedAt) {
			continue
		}
		r := row(sub.PlanID)
		r.Subscriptions++
		if sub.ActiveAt(now) {
			r.ActiveSubscriptions++
		}
	}
	for _, tx := range txs {
		if tx.Type != ledger.TypePayment || tx.Status != ledger.StatusCompleted {
			continue
		}
		amount, err := s.toBase(tx)
		if err != nil {
			return nil, err
		}
		r := row(tx.PlanID)
		r.Payments++
		r.Revenue += amount
	}

	names := make(map[string]string, len(plans))
	for _, p := range plans {
		names[p.ID] = p.Name
	}
	out := make([]PlanStats, 0, len(rows))
	for id, r := range rows {
		r.PlanName = names[id]
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b PlanStats) int {
		return cmp.Or(cmp.Compare(a.PlanName, b.PlanName), cmp.Compare(a.PlanID, b.PlanID))
	})
	return out, nil
}

func (s *Service) summarize(txs []ledger.Transaction) (Summary, error) {
	sum := Summary{Currency: s.rates.Base()}
	for _, tx := range txs {
		if tx.Type == ledger.TypeRefund {
			if tx.Status != ledger.StatusCompleted {
				continue
			}
			amount, err := s.toBase(tx)
			if err != nil {
				return Summary{}, err
			}
			sum.RefundCount++
			sum.RefundedAmount += amount
			continue
		}

		sum.TotalTransactions++
		switch tx.Status {
		case ledger.StatusCompleted:
			amount, err := s.toBase(tx)
			if err != nil {
				return Summary{}, err
			}
			sum.SuccessCount++
			sum.TotalRevenue += amount
		case ledger.StatusFailed:
			sum.FailureCount++
		default:
			sum.PendingCount++
		}
	}

	if sum.TotalTransactions > 0 {
		sum.AverageAmount = int64(math.Round(float64(sum.TotalRevenue) / float64(sum.TotalTransactions)))
		sum.SuccessRate = float64(sum.SuccessCount) / float64(sum.TotalTransactions)
	}
	sum.NetRevenue = sum.TotalRevenue - sum.RefundedAmount
	sum.Display = s.rates.ConvertAll(money.Money{Amount: sum.NetRevenue, Currency: sum.Currency})
	return sum, nil
}

func (s *Service) monthly(txs []ledger.Transaction) ([]MonthRevenue, error) {
	buckets := make(map[string]*MonthRevenue)
	for _, tx := range txs {
		if tx.Type != ledger.TypePayment || tx.Status != ledger.StatusCompleted || tx.CompletedAt == nil {
			continue
		}
		amount, err := s.toBase(tx)
		if err != nil {
			return nil, err
		}
		key := tx.CompletedAt.UTC().Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &MonthRevenue{Month: key}
			buckets[key] = b
		}
		b.Count++
		b.Amount += amount
	}

	out := make([]MonthRevenue, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	// YYYY-MM sorts chronologically as text.
	slices.SortFunc(out, func(a, b MonthRevenue) int { return cmp.Compare(a.Month, b.Month) })
	return out, nil
}

func (s *Service) toBase(tx ledger.Transaction) (int64, error) {
	converted, err := s.rates.Convert(tx.Money(), s.rates.Base())
	if err != nil {
		return 0, errors.Join(err, fmt.Errorf("transaction %s", tx.ID))
	}
	return converted.Amount, nil
}
