package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/subledger/pkg/catalog"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/statemachine"
	"github.com/dmitrymomot/subledger/pkg/user"
	"github.com/dmitrymomot/subledger/pkg/validator"
)

// PlanSource resolves plans referenced by new subscriptions.
type PlanSource interface {
	Get(ctx context.Context, id string) (catalog.Plan, error)
}

// UserVerifier confirms that a user may hold a subscription.
type UserVerifier interface {
	Verify(ctx context.Context, id string) error
}

// Service is the subscription lifecycle engine. It is the only writer of
// subscription status.
type Service struct {
	store   recordstore.Repository[Subscription]
	plans   PlanSource
	users   UserVerifier
	machine statemachine.Machine
	now     func() time.Time
	logger  *slog.Logger
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

// WithClock replaces time.Now for period math and entitlement checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUsers makes Create verify the user reference.
func WithUsers(users UserVerifier) Option {
	return func(s *Service) { s.users = users }
}

// NewService creates the lifecycle engine. Panics if store or plans is nil.
func NewService(store recordstore.Repository[Subscription], plans PlanSource, opts ...Option) *Service {
	if store == nil {
		panic("subscription: store is required")
	}
	if plans == nil {
		panic("subscription: plan source is required")
	}
	s := &Service{
		store:  store,
		plans:  plans,
		now:    time.Now,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.machine = newMachine(s.periodEnded)
	return s
}

// Create inserts a pending subscription priced from the plan. The period runs
// one billing interval from now.
func (s *Service) Create(ctx context.Context, in CreateInput) (Subscription, error) {
	userID := strings.TrimSpace(in.UserID)
	planID := strings.TrimSpace(in.PlanID)
	method := strings.TrimSpace(in.PaymentMethod)

	if err := validator.Apply(
		validator.RequiredString("user_id", userID),
		validator.RequiredString("plan_id", planID),
		validator.MaxLenString("payment_method", method, 50),
	); err != nil {
		return Subscription{}, err
	}

	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		if errors.Is(err, catalog.ErrPlanNotFound) {
			return Subscription{}, ErrPlanNotFound
		}
		return Subscription{}, err
	}
	if !plan.Active {
		return Subscription{}, ErrPlanNotFound
	}

	if s.users != nil {
		if err := s.users.Verify(ctx, userID); err != nil {
			if errors.Is(err, user.ErrUserNotFound) || errors.Is(err, user.ErrUserInactive) {
				return Subscription{}, errors.Join(ErrUserNotFound, err)
			}
			return Subscription{}, err
		}
	}

	autoRenew := true
	if in.AutoRenew != nil {
		autoRenew = *in.AutoRenew
	}

	now := s.now().UTC()
	sub, err := s.store.Create(ctx, Subscription{
		UserID:           userID,
		PlanID:           plan.ID,
		Status:           StatusPending,
		StartDate:        now,
		CurrentPeriodEnd: plan.Interval.Advance(now, 1),
		Price:            plan.Price,
		Interval:         plan.Interval,
		AutoRenew:        autoRenew,
		PaymentMethod:    method,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return Subscription{}, err
	}

	s.logger.InfoContext(ctx, "subscription created",
		logger.SubscriptionID(sub.ID),
		logger.UserID(sub.UserID),
		logger.PlanID(sub.PlanID),
	)
	return sub, nil
}

// Get returns the subscription or ErrSubscriptionNotFound.
func (s *Service) Get(ctx context.Context, id string) (Subscription, error) {
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Subscription{}, mapNotFound(err)
	}
	return sub, nil
}

// List returns every subscription in creation order.
func (s *Service) List(ctx context.Context) ([]Subscription, error) {
	return s.store.FindAll(ctx)
}

// ListByUser returns the user's subscriptions in creation order.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	return s.store.FindBy(ctx, recordstore.Criteria{"user_id": userID})
}

// ListByStatus returns subscriptions currently in status.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Subscription, error) {
	return s.store.FindBy(ctx, recordstore.Criteria{"status": status})
}

// ActiveForUser returns the user's subscriptions that grant access now.
func (s *Service) ActiveForUser(ctx context.Context, userID string) ([]Subscription, error) {
	subs, err := s.store.FindBy(ctx, recordstore.Criteria{"user_id": userID, "status": StatusActive})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := subs[:0]
	for _, sub := range subs {
		if sub.ActiveAt(now) {
			out = append(out, sub)
		}
	}
	return out, nil
}

// IsActive is the entitlement check: status active and the period not over.
// A cancelled subscription is never active; an active one whose period has
// passed is not active even before an expiry sweep records it.
func (s *Service) IsActive(ctx context.Context, id string) (bool, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return sub.ActiveAt(s.now()), nil
}

// HasAccess reports whether the subscription still grants access: active or
// cancelled, with the paid period not over.
func (s *Service) HasAccess(ctx context.Context, id string) (bool, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return sub.EntitledAt(s.now()), nil
}

// Activate moves a pending or payment_failed subscription to active. On an
// active subscription it returns the record unchanged without writing; the
// period is never touched.
func (s *Service) Activate(ctx context.Context, id string) (Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status == StatusActive {
		return sub, nil
	}
	return s.apply(ctx, sub, EventActivate, nil)
}

// MarkPaymentFailed moves a pending or active subscription to payment_failed.
// Repeating it is a no-op.
func (s *Service) MarkPaymentFailed(ctx context.Context, id string) (Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status == StatusPaymentFailed {
		return sub, nil
	}
	return s.apply(ctx, sub, EventPaymentFailed, nil)
}

// Cancel stops a non-terminal subscription. The period end is kept, so
// IsActive turns false immediately while the paid-through date stays on
// record. Repeating it is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) (Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status == StatusCancelled {
		return sub, nil
	}
	return s.apply(ctx, sub, EventCancel, func(next *Subscription, now time.Time) {
		next.CancelledAt = &now
	})
}

// Renew extends the period by n intervals from its current end, not from
// now, and makes the subscription active.
func (s *Service) Renew(ctx context.Context, id string, n int) (Subscription, error) {
	if n < 1 {
		return Subscription{}, ErrInvalidIntervalCount
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	return s.apply(ctx, sub, EventRenew, func(next *Subscription, _ time.Time) {
		next.CurrentPeriodEnd = next.NextPeriodEnd(n)
	})
}

// Expire records that an active subscription's period has ended.
func (s *Service) Expire(ctx context.Context, id string) (Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status == StatusExpired {
		return sub, nil
	}
	return s.apply(ctx, sub, EventExpire, nil)
}

// ExpireDue expires every active subscription whose period has ended and
// returns them. It is an explicit sweep; nothing schedules it.
func (s *Service) ExpireDue(ctx context.Context) ([]Subscription, error) {
	active, err := s.ListByStatus(ctx, StatusActive)
	if err != nil {
		return nil, err
	}
	var expired []Subscription
	for _, sub := range active {
		if !s.periodEnded(ctx, sub.Status, EventExpire, sub) {
			continue
		}
		next, err := s.apply(ctx, sub, EventExpire, nil)
		if err != nil {
			return expired, err
		}
		expired = append(expired, next)
	}
	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "expired subscriptions", slog.Int("count", len(expired)))
	}
	return expired, nil
}

// SetAutoRenew toggles renewal on a non-terminal subscription.
func (s *Service) SetAutoRenew(ctx context.Context, id string, autoRenew bool) (Subscription, error) {
	return s.patch(ctx, id, recordstore.Patch{"auto_renew": autoRenew})
}

// UpdatePaymentMethod changes the payment method of a non-terminal subscription.
func (s *Service) UpdatePaymentMethod(ctx context.Context, id, method string) (Subscription, error) {
	method = strings.TrimSpace(method)
	if err := validator.Apply(validator.MaxLenString("payment_method", method, 50)); err != nil {
		return Subscription{}, err
	}
	return s.patch(ctx, id, recordstore.Patch{"payment_method": method})
}

// CanFire reports whether event may be applied to the subscription as it
// stands now, guards included.
func (s *Service) CanFire(ctx context.Context, sub Subscription, event Event) bool {
	return s.machine.CanFire(ctx, sub.Status, event, sub)
}

// CountByPlan returns the number of subscriptions per plan id.
func (s *Service) CountByPlan(ctx context.Context) (map[string]int, error) {
	subs, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, sub := range subs {
		counts[sub.PlanID]++
	}
	return counts, nil
}

// IsPlanReferenced reports whether any subscription, ended ones included,
// was created for the plan.
func (s *Service) IsPlanReferenced(ctx context.Context, planID string) (bool, error) {
	subs, err := s.store.FindBy(ctx, recordstore.Criteria{"plan_id": planID})
	if err != nil {
		return false, err
	}
	return len(subs) > 0, nil
}

// IsPlanInUse reports whether a non-terminal subscription uses the plan.
func (s *Service) IsPlanInUse(ctx context.Context, planID string) (bool, error) {
	subs, err := s.store.FindBy(ctx, recordstore.Criteria{"plan_id": planID})
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if !sub.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

// HasSubscriptions reports whether the user has any subscription, including
// ended ones kept for audit.
func (s *Service) HasSubscriptions(ctx context.Context, userID string) (bool, error) {
	subs, err := s.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(subs) > 0, nil
}

// apply runs event through the transition table and persists the new state
// together with any field changes made by mutate.
func (s *Service) apply(ctx context.Context, sub Subscription, event Event, mutate func(*Subscription, time.Time)) (Subscription, error) {
	to, err := s.machine.Fire(ctx, sub.Status, event, sub)
	if err != nil {
		return Subscription{}, errors.Join(ErrInvalidState,
			fmt.Errorf("subscription %s: %s from %s: %w", sub.ID, event, sub.Status, err))
	}

	now := s.now().UTC()
	next := sub
	next.Status = Status(to.Name())
	next.UpdatedAt = now
	if mutate != nil {
		mutate(&next, now)
	}

	saved, err := s.store.Replace(ctx, sub.ID, next)
	if err != nil {
		return Subscription{}, mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "subscription transitioned",
		logger.SubscriptionID(sub.ID),
		slog.String("event", string(event)),
		slog.String("from", string(sub.Status)),
		slog.String("to", string(saved.Status)),
	)
	return saved, nil
}

func (s *Service) patch(ctx context.Context, id string, patch recordstore.Patch) (Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status.Terminal() {
		return Subscription{}, errors.Join(ErrInvalidState, fmt.Errorf("subscription %s is %s", id, sub.Status))
	}
	patch["updated_at"] = s.now().UTC()
	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return Subscription{}, mapNotFound(err)
	}
	return updated, nil
}

func (s *Service) periodEnded(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	sub, ok := data.(Subscription)
	if !ok {
		return false
	}
	return !sub.CurrentPeriodEnd.After(s.now())
}

func mapNotFound(err error) error {
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrSubscriptionNotFound
	}
	return err
}
