package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/statemachine"
	"github.com/dmitrymomot/subledger/pkg/validator"
)

const (
	eventComplete statemachine.StringEvent = "complete"
	eventFail     statemachine.StringEvent = "fail"
)

// transitions allows exactly one move out of pending.
var transitions = statemachine.MustNew(
	statemachine.WithTransition(StatusPending, StatusCompleted, eventComplete),
	statemachine.WithTransition(StatusPending, StatusFailed, eventFail),
)

// Service is the transaction ledger.
type Service struct {
	store      recordstore.Repository[Transaction]
	currency   string
	currencies []string
	now        func() time.Time
	logger     *slog.Logger
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultCurrency sets the currency recorded when an input omits one.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.currency = strings.ToUpper(code)
		}
	}
}

// WithCurrencies limits recorded payments to currencies the reports can convert.
func WithCurrencies(codes ...string) Option {
	return func(s *Service) {
		for _, code := range codes {
			s.currencies = append(s.currencies, strings.ToUpper(code))
		}
	}
}

// NewService creates a ledger Service. Panics if store is nil.
func NewService(store recordstore.Repository[Transaction], opts ...Option) *Service {
	if store == nil {
		panic("ledger: store is required")
	}
	s := &Service{
		store:    store,
		currency: money.DefaultBase,
		now:      time.Now,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores a pending payment.
func (s *Service) Record(ctx context.Context, in RecordInput) (Transaction, error) {
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}
	if err := validator.Apply(
		validator.RequiredString("subscription_id", in.SubscriptionID),
		validator.RequiredString("user_id", in.UserID),
		validator.RequiredString("plan_id", in.PlanID),
		validator.NonNegative("amount", in.Amount),
		validator.ValidCurrencyCode("currency", currency),
		validator.When(len(s.currencies) > 0, validator.OneOf("currency", currency, s.currencies)),
		validator.MaxLenString("payment_method", in.PaymentMethod, 50),
		validator.MaxLenString("description", in.Description, 500),
	); err != nil {
		return Transaction{}, err
	}

	tx, err := s.store.Create(ctx, Transaction{
		SubscriptionID: in.SubscriptionID,
		UserID:         in.UserID,
		PlanID:         in.PlanID,
		Type:           TypePayment,
		Status:         StatusPending,
		Amount:         in.Amount,
		Currency:       currency,
		PaymentMethod:  strings.TrimSpace(in.PaymentMethod),
		Description:    strings.TrimSpace(in.Description),
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return Transaction{}, err
	}

	s.logger.InfoContext(ctx, "payment recorded",
		logger.TransactionID(tx.ID),
		logger.SubscriptionID(tx.SubscriptionID),
		slog.Int64("amount", tx.Amount),
	)
	return tx, nil
}

// Complete marks a pending transaction completed.
func (s *Service) Complete(ctx context.Context, id string) (Transaction, error) {
	return s.Finalize(ctx, id, FinalizeInput{Status: StatusCompleted})
}

// Fail marks a pending transaction failed; a non-empty reason is kept in
// metadata under MetaFailureReason.
func (s *Service) Fail(ctx context.Context, id, reason string) (Transaction, error) {
	return s.Finalize(ctx, id, FinalizeInput{Status: StatusFailed, Reason: reason})
}

// Finalize moves a pending transaction to completed or failed and stamps
// CompletedAt. A final transaction returns ErrAlreadyFinalized and is left
// untouched.
func (s *Service) Finalize(ctx context.Context, id string, in FinalizeInput) (Transaction, error) {
	var event statemachine.Event
	switch in.Status {
	case StatusCompleted:
		event = eventComplete
	case StatusFailed:
		event = eventFail
	default:
		return Transaction{}, ErrInvalidOutcome
	}

	tx, err := s.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	to, err := transitions.Fire(ctx, tx.Status, event, tx)
	if err != nil {
		return Transaction{}, errors.Join(ErrAlreadyFinalized,
			fmt.Errorf("transaction %s is %s", id, tx.Status))
	}

	if in.ExternalRef != "" {
		if err := s.ensureRefFree(ctx, in.ExternalRef, id); err != nil {
			return Transaction{}, err
		}
		tx.ExternalRef = in.ExternalRef
	}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		tx.Metadata = maps.Clone(tx.Metadata)
		if tx.Metadata == nil {
			tx.Metadata = make(map[string]string, 1)
		}
		tx.Metadata[MetaFailureReason] = reason
	}

	now := s.now().UTC()
	tx.Status = Status(to.Name())
	tx.CompletedAt = &now

	saved, err := s.store.Replace(ctx, id, tx)
	if err != nil {
		return Transaction{}, mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "transaction finalized",
		logger.TransactionID(id),
		logger.SubscriptionID(saved.SubscriptionID),
		slog.String("status", string(saved.Status)),
	)
	return saved, nil
}

// Refund records a completed refund for a completed payment. A payment can
// be refunded once.
func (s *Service) Refund(ctx context.Context, paymentID, description string) (Transaction, error) {
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return Transaction{}, err
	}
	if payment.Type != TypePayment || payment.Status != StatusCompleted {
		return Transaction{}, ErrNotRefundable
	}

	existing, err := s.store.FindBy(ctx, recordstore.Criteria{"type": TypeRefund, "related_id": paymentID})
	if err != nil {
		return Transaction{}, err
	}
	if len(existing) > 0 {
		return Transaction{}, ErrAlreadyRefunded
	}

	description = strings.TrimSpace(description)
	if err := validator.Apply(validator.MaxLenString("description", description, 500)); err != nil {
		return Transaction{}, err
	}
	if description == "" {
		description = "refund of " + paymentID
	}

	now := s.now().UTC()
	refund, err := s.store.Create(ctx, Transaction{
		SubscriptionID: payment.SubscriptionID,
		UserID:         payment.UserID,
		PlanID:         payment.PlanID,
		Type:           TypeRefund,
		Status:         StatusCompleted,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		PaymentMethod:  payment.PaymentMethod,
		Description:    description,
		RelatedID:      payment.ID,
		CreatedAt:      now,
		CompletedAt:    &now,
	})
	if err != nil {
		return Transaction{}, err
	}

	s.logger.InfoContext(ctx, "payment refunded",
		logger.TransactionID(refund.ID),
		slog.String("payment_id", paymentID),
		slog.Int64("amount", refund.Amount),
	)
	return refund, nil
}

// Annotate adds a metadata entry. Existing keys are never overwritten.
func (s *Service) Annotate(ctx context.Context, id, key, value string) (Transaction, error) {
	key = strings.TrimSpace(key)
	if err := validator.Apply(
		validator.RequiredString("key", key),
		validator.MaxLenString("key", key, 64),
		validator.MaxLenString("value", value, 1000),
	); err != nil {
		return Transaction{}, err
	}

	tx, err := s.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if _, exists := tx.Metadata[key]; exists {
		return Transaction{}, errors.Join(ErrMetadataKeyExists, fmt.Errorf("key %q", key))
	}

	meta := maps.Clone(tx.Metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[key] = value

	updated, err := s.store.Update(ctx, id, recordstore.Patch{"metadata": meta})
	if err != nil {
		return Transaction{}, mapNotFound(err)
	}
	return updated, nil
}

// Get returns the transaction or ErrTransactionNotFound.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	tx, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Transaction{}, mapNotFound(err)
	}
	return tx, nil
}

// All returns the whole ledger in recording order.
func (s *Service) All(ctx context.Context) ([]Transaction, error) {
	return s.store.FindAll(ctx)
}

func (s *Service) ByUser(ctx context.Context, userID string) ([]Transaction, error) {
	return s.store.FindBy(ctx, recordstore.Criteria{"user_id": userID})
}

func (s *Service) BySubscription(ctx context.Context, subscriptionID string) ([]Transaction, error) {
	return s.store.FindBy(ctx, recordstore.Criteria{"subscription_id": subscriptionID})
}

// Query returns transactions matching f in recording order.
func (s *Service) Query(ctx context.Context, f Filter) ([]Transaction, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, tx := range all {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// LatestPending returns the most recently recorded pending payment of the
// subscription, or ErrTransactionNotFound.
func (s *Service) LatestPending(ctx context.Context, subscriptionID string) (Transaction, error) {
	pending, err := s.store.FindBy(ctx, recordstore.Criteria{
		"subscription_id": subscriptionID,
		"type":            TypePayment,
		"status":          StatusPending,
	})
	if err != nil {
		return Transaction{}, err
	}
	if len(pending) == 0 {
		return Transaction{}, ErrTransactionNotFound
	}
	latest := pending[0]
	for _, tx := range pending[1:] {
		if !tx.CreatedAt.Before(latest.CreatedAt) {
			latest = tx
		}
	}
	return latest, nil
}

// FindByExternalRef returns the transaction tied to a provider reference.
func (s *Service) FindByExternalRef(ctx context.Context, ref string) (Transaction, error) {
	if ref == "" {
		return Transaction{}, ErrTransactionNotFound
	}
	tx, err := s.store.FindOne(ctx, recordstore.Criteria{"external_ref": ref})
	if err != nil {
		return Transaction{}, mapNotFound(err)
	}
	return tx, nil
}

func (s *Service) ensureRefFree(ctx context.Context, ref, exceptID string) error {
	tx, err := s.FindByExternalRef(ctx, ref)
	if errors.Is(err, ErrTransactionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if tx.ID != exceptID {
		return errors.Join(ErrExternalRefTaken, fmt.Errorf("ref %q used by %s", ref, tx.ID))
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrTransactionNotFound
	}
	return err
}
