package billing

import "github.com/dmitrymomot/subledger/pkg/money"

// Outcomes reported to Metrics.EventHandled.
const (
	OutcomeApplied   = "applied"
	OutcomeNoop      = "noop"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Metrics receives billing counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	EventHandled(eventType EventType, outcome string)
	PaymentSettled(kind string, success bool, amount money.Money)
	IntentsRecovered(applied, abandoned int)
}

type noopMetrics struct{}

func (noopMetrics) EventHandled(EventType, string)           {}
func (noopMetrics) PaymentSettled(string, bool, money.Money) {}
func (noopMetrics) IntentsRecovered(int, int)                {}
