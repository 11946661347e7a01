package billing

import (
	"context"
	"errors"
	"log/slog"
)

// RecoveryReport counts what Recover did with open intents.
type RecoveryReport struct {
	Applied   int `json:"applied"`
	Abandoned int `json:"abandoned"`
	Failed    int `json:"failed"`
}

// Recover finishes settlements interrupted between their writes. It is run
// once at startup, before serving requests. Re-applying is idempotent;
// intents that no longer fit the recorded state are abandoned. Intents that
// hit store errors stay open and their errors are returned joined.
func (s *Service) Recover(ctx context.Context) (RecoveryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open, err := s.journal.Pending(ctx)
	if err != nil {
		return RecoveryReport{}, err
	}

	var (
		report RecoveryReport
		errs   []error
	)
	for _, in := range open {
		_, _, err := s.apply(ctx, in)
		switch {
		case err == nil:
			report.Applied++
		case errors.Is(err, ErrIntentConflict):
			report.Abandoned++
		default:
			report.Failed++
			errs = append(errs, err)
		}
	}

	s.metrics.IntentsRecovered(report.Applied, report.Abandoned)
	if len(open) > 0 {
		s.logger.InfoContext(ctx, "settlement intents recovered",
			slog.Int("applied", report.Applied),
			slog.Int("abandoned", report.Abandoned),
			slog.Int("failed", report.Failed),
		)
	}
	return report, errors.Join(errs...)
}
