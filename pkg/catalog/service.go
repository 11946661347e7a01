package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/validator"
)

// ReferenceChecker reports whether subscriptions refer to a plan.
type ReferenceChecker func(ctx context.Context, planID string) (bool, error)

// Service manages the plan catalog.
type Service struct {
	store      recordstore.Repository[Plan]
	refs       ReferenceChecker
	live       ReferenceChecker
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

// WithDefaultCurrency sets the currency used when a plan omits one.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) {
		if code != "" {
			s.currency = strings.ToUpper(code)
		}
	}
}

// WithReferenceChecker blocks deletion of a plan any subscription refers to,
// ended ones included. Without WithLiveReferenceChecker it also freezes pricing.
func WithReferenceChecker(fn ReferenceChecker) Option {
	return func(s *Service) { s.refs = fn }
}

// WithLiveReferenceChecker freezes price, currency and interval while
// subscriptions that can still renew refer to the plan.
func WithLiveReferenceChecker(fn ReferenceChecker) Option {
	return func(s *Service) { s.live = fn }
}

// WithCurrencies restricts plan prices to the given currency codes.
func WithCurrencies(codes ...string) Option {
	return func(s *Service) {
		for _, code := range codes {
			s.currencies = append(s.currencies, strings.ToUpper(code))
		}
	}
}

// NewService creates a catalog Service. Panics if store is nil.
func NewService(store recordstore.Repository[Plan], opts ...Option) *Service {
	if store == nil {
		panic("catalog: store is required")
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

// Create adds an active plan. Plan names are unique.
func (s *Service) Create(ctx context.Context, in CreateInput) (Plan, error) {
	name := strings.TrimSpace(in.Name)
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}

	if err := validator.Apply(
		validator.RequiredString("name", name),
		validator.MaxLenString("name", name, 100),
		validator.MaxLenString("description", in.Description, 1000),
		validator.NonNegative("price", in.Amount),
		validator.ValidCurrencyCode("currency", currency),
		s.supportedCurrency(currency),
		validator.OneOf("billing_interval", in.Interval, Intervals),
		validator.UniqueStrings("features", in.Features),
	); err != nil {
		return Plan{}, err
	}

	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return Plan{}, err
	}

	now := s.now().UTC()
	p, err := s.store.Create(ctx, Plan{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Price:       money.Money{Amount: in.Amount, Currency: currency},
		Interval:    in.Interval,
		Features:    slices.Clone(in.Features),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Plan{}, err
	}

	s.logger.InfoContext(ctx, "plan created", logger.PlanID(p.ID), slog.String("name", p.Name))
	return p, nil
}

// Get returns the plan, active or not, or ErrPlanNotFound.
func (s *Service) Get(ctx context.Context, id string) (Plan, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Plan{}, mapNotFound(err)
	}
	return p, nil
}

// GetActive returns the plan only if it can be subscribed to.
func (s *Service) GetActive(ctx context.Context, id string) (Plan, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Plan{}, err
	}
	if !p.Active {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// GetByName looks a plan up by its exact name.
func (s *Service) GetByName(ctx context.Context, name string) (Plan, error) {
	p, err := s.store.FindOne(ctx, recordstore.Criteria{"name": strings.TrimSpace(name)})
	if err != nil {
		return Plan{}, mapNotFound(err)
	}
	return p, nil
}

// List returns plans in creation order; activeOnly hides deactivated ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Plan, error) {
	if activeOnly {
		return s.store.FindBy(ctx, recordstore.Criteria{"active": true})
	}
	return s.store.FindAll(ctx)
}

// ListByInterval returns active plans billed at the given interval.
func (s *Service) ListByInterval(ctx context.Context, interval Interval) ([]Plan, error) {
	if !interval.Valid() {
		return nil, ErrInvalidInterval
	}
	return s.store.FindBy(ctx, recordstore.Criteria{"billing_interval": interval, "active": true})
}

// Update applies descriptive and pricing changes. Existing subscriptions keep
// the price they were created with; still, price, currency and interval are
// frozen while the plan is referenced.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Plan, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Plan{}, err
	}

	patch := recordstore.Patch{}
	var rules []validator.Rule

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		rules = append(rules,
			validator.RequiredString("name", name),
			validator.MaxLenString("name", name, 100),
		)
		patch["name"] = name
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		rules = append(rules, validator.MaxLenString("description", desc, 1000))
		patch["description"] = desc
	}
	if in.Features != nil {
		rules = append(rules, validator.UniqueStrings("features", *in.Features))
		patch["features"] = slices.Clone(*in.Features)
	}

	price := current.Price
	if in.Amount != nil {
		price.Amount = *in.Amount
	}
	if in.Currency != nil {
		price.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
	}
	if price != current.Price {
		rules = append(rules,
			validator.NonNegative("price", price.Amount),
			validator.ValidCurrencyCode("currency", price.Currency),
			s.supportedCurrency(price.Currency),
		)
		patch["price"] = price
	}
	if in.Interval != nil && *in.Interval != current.Interval {
		rules = append(rules, validator.OneOf("billing_interval", *in.Interval, Intervals))
		patch["billing_interval"] = *in.Interval
	}

	if err := validator.Apply(rules...); err != nil {
		return Plan{}, err
	}

	if name, ok := patch["name"].(string); ok && name != current.Name {
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return Plan{}, err
		}
	}
	_, repriced := patch["price"]
	_, reinterval := patch["billing_interval"]
	if repriced || reinterval {
		check := s.live
		if check == nil {
			check = s.refs
		}
		if err := ensureUnreferenced(ctx, check, id); err != nil {
			return Plan{}, err
		}
	}
	if len(patch) == 0 {
		return current, nil
	}

	patch["updated_at"] = s.now().UTC()
	p, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return Plan{}, mapNotFound(err)
	}
	return p, nil
}

// Deactivate hides the plan from new subscriptions. Existing subscriptions
// are unaffected. Repeating it is a no-op.
func (s *Service) Deactivate(ctx context.Context, id string) (Plan, error) {
	return s.setActive(ctx, id, false)
}

// Activate makes a deactivated plan available again.
func (s *Service) Activate(ctx context.Context, id string) (Plan, error) {
	return s.setActive(ctx, id, true)
}

// Delete removes a plan no subscription has ever used. Referenced plans,
// including those behind cancelled or expired subscriptions, must be
// deactivated instead (ErrPlanInUse).
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := ensureUnreferenced(ctx, s.refs, id); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrPlanNotFound
	}
	s.logger.InfoContext(ctx, "plan deleted", logger.PlanID(id))
	return nil
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (Plan, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Plan{}, err
	}
	if p.Active == active {
		return p, nil
	}
	p, err = s.store.Update(ctx, id, recordstore.Patch{
		"active":     active,
		"updated_at": s.now().UTC(),
	})
	if err != nil {
		return Plan{}, mapNotFound(err)
	}
	s.logger.InfoContext(ctx, "plan availability changed", logger.PlanID(id), slog.Bool("active", active))
	return p, nil
}

func (s *Service) ensureNameFree(ctx context.Context, name, exceptID string) error {
	existing, err := s.store.FindBy(ctx, recordstore.Criteria{"name": name})
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.ID != exceptID {
			return ErrPlanNameTaken
		}
	}
	return nil
}

func (s *Service) supportedCurrency(code string) validator.Rule {
	return validator.When(len(s.currencies) > 0,
		validator.OneOf("currency", code, s.currencies),
	)
}

func ensureUnreferenced(ctx context.Context, check ReferenceChecker, id string) error {
	if check == nil {
		return nil
	}
	used, err := check(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrPlanInUse
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrPlanNotFound
	}
	return err
}
