package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/validator"
)

// ReferenceChecker reports whether anything still refers to the user.
type ReferenceChecker func(ctx context.Context, userID string) (bool, error)

// Service manages the user directory.
type Service struct {
	store  recordstore.Repository[User]
	refs   ReferenceChecker
	now    func() time.Time
	logger *slog.Logger
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

// WithReferenceChecker blocks Delete while the checker reports references.
func WithReferenceChecker(fn ReferenceChecker) Option {
	return func(s *Service) { s.refs = fn }
}

// NewService creates a user Service. Panics if store is nil.
func NewService(store recordstore.Repository[User], opts ...Option) *Service {
	if store == nil {
		panic("user: store is required")
	}
	s := &Service{
		store:  store,
		now:    time.Now,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a user. Emails are unique case-insensitively.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)

	if err := validator.Apply(
		validator.RequiredString("name", name),
		validator.MaxLenString("name", name, 200),
		validator.RequiredString("email", email),
		validator.ValidEmail("email", email),
	); err != nil {
		return User{}, err
	}

	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	u, err := s.store.Create(ctx, User{
		Name:      name,
		Email:     email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return User{}, err
	}

	s.logger.InfoContext(ctx, "user created", logger.UserID(u.ID))
	return u, nil
}

// Get returns the user or ErrUserNotFound.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return User{}, mapNotFound(err)
	}
	return u, nil
}

// GetByEmail looks a user up by email, ignoring case and surrounding spaces.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := s.store.FindOne(ctx, recordstore.Criteria{"email": normalizeEmail(email)})
	if err != nil {
		return User{}, mapNotFound(err)
	}
	return u, nil
}

// List returns all users in creation order.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.FindAll(ctx)
}

// Update changes the name and/or email of a user.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return User{}, err
	}

	patch := recordstore.Patch{}
	var errs validator.ValidationErrors

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validator.Apply(
			validator.RequiredString("name", name),
			validator.MaxLenString("name", name, 200),
		); err != nil {
			errs = append(errs, validator.ExtractValidationErrors(err)...)
		}
		patch["name"] = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validator.Apply(
			validator.RequiredString("email", email),
			validator.ValidEmail("email", email),
		); err != nil {
			errs = append(errs, validator.ExtractValidationErrors(err)...)
		}
		patch["email"] = email
	}
	if !errs.IsEmpty() {
		return User{}, errs
	}

	if email, ok := patch["email"].(string); ok {
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return User{}, err
		}
	}

	patch["updated_at"] = s.now().UTC()
	u, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return User{}, mapNotFound(err)
	}
	return u, nil
}

// Activate marks the user active. Repeating it is a no-op.
func (s *Service) Activate(ctx context.Context, id string) (User, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate marks the user inactive; inactive users cannot start subscriptions.
func (s *Service) Deactivate(ctx context.Context, id string) (User, error) {
	return s.setActive(ctx, id, false)
}

// Verify returns nil when the user exists and is active.
func (s *Service) Verify(ctx context.Context, id string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !u.Active {
		return ErrUserInactive
	}
	return nil
}

// Delete removes the user. It fails with ErrUserInUse while a reference
// checker reports the user is still referenced.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if s.refs != nil {
		used, err := s.refs(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrUserInUse
		}
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}
	s.logger.InfoContext(ctx, "user deleted", logger.UserID(id))
	return nil
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Active == active {
		return u, nil
	}
	u, err = s.store.Update(ctx, id, recordstore.Patch{
		"active":     active,
		"updated_at": s.now().UTC(),
	})
	if err != nil {
		return User{}, mapNotFound(err)
	}
	return u, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	existing, err := s.store.FindBy(ctx, recordstore.Criteria{"email": email})
	if err != nil {
		return err
	}
	for _, u := range existing {
		if u.ID != exceptID {
			return ErrEmailTaken
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapNotFound(err error) error {
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
