package order

import (
	"context"
	"time"

	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
)

// SweepStaleCancelled physically deletes orders left in Cancelled
// status beyond the retention window. Stock was restored when each
// order was cancelled; the sweep never touches inventory. Returns the
// number of orders deleted.
func (s *Service) SweepStaleCancelled(ctx context.Context, retention time.Duration) (int, error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseSweep))

	cutoff := s.now().Add(-retention)
	stale, err := s.deps.Orders.ListCancelledBefore(ctx, cutoff)
	if err != nil {
		s.count(useCaseSweep, "error")
		return 0, err
	}

	deleted := 0
	for _, o := range stale {
		if err := s.deps.Orders.Delete(ctx, o.ID); err != nil {
			logger.Error("stale_order_delete_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		logger.Info("cancelled_order_sweep_done",
			observability.F("deleted", deleted),
			observability.F("cutoff", cutoff),
		)
	}
	s.count(useCaseSweep, "success")
	return deleted, nil
}
