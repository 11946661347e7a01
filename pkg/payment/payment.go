package payment

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/dmitrymomot/subledger/pkg/money"
)

// ErrInvalidSuccessRate is returned for success rates outside [0, 1].
var ErrInvalidSuccessRate = errors.New("success rate must be between 0 and 1")

// Attempter charges a subscription and reports whether the charge went through.
// An error means the outcome is unknown; false means the charge was declined.
type Attempter interface {
	AttemptPayment(ctx context.Context, subscriptionID string, amount money.Money) (bool, error)
}

// Func adapts a function to Attempter.
type Func func(ctx context.Context, subscriptionID string, amount money.Money) (bool, error)

func (f Func) AttemptPayment(ctx context.Context, subscriptionID string, amount money.Money) (bool, error) {
	return f(ctx, subscriptionID, amount)
}

// Fixed always returns the same outcome.
type Fixed bool

func (f Fixed) AttemptPayment(ctx context.Context, _ string, _ money.Money) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(f), nil
}

// Random succeeds with a fixed probability. It simulates a gateway for demos.
type Random struct {
	rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a simulator that succeeds with probability rate.
// seed makes outcomes reproducible.
func NewRandom(rate float64, seed uint64) (*Random, error) {
	if rate < 0 || rate > 1 {
		return nil, ErrInvalidSuccessRate
	}
	return &Random{
		rate: rate,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// SuccessRate returns the configured probability of success.
func (r *Random) SuccessRate() float64 {
	return r.rate
}

func (r *Random) AttemptPayment(ctx context.Context, _ string, _ money.Money) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.rate, nil
}
