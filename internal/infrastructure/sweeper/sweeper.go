package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
)

const componentSweeper = "sweeper"

// DiscountSweeper deactivates expired discounts.
type DiscountSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// OrderSweeper deletes cancelled orders past the retention window.
type OrderSweeper interface {
	SweepStaleCancelled(ctx context.Context, retention time.Duration) (int, error)
}

// Worker runs the scheduled sweeps: expired discounts on one interval,
// stale cancelled orders on another. Both sweeps also run
// opportunistically elsewhere; the schedule is the backstop.
type Worker struct {
	discounts        DiscountSweeper
	orders           OrderSweeper
	discountInterval time.Duration
	orderInterval    time.Duration
	retention        time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	log       observability.Logger
}

func New(
	discounts DiscountSweeper,
	orders OrderSweeper,
	discountInterval, orderInterval, retention time.Duration,
	logger observability.Logger,
) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		discounts:        discounts,
		orders:           orders,
		discountInterval: discountInterval,
		orderInterval:    orderInterval,
		retention:        retention,
		log:              logger.With(observability.F("component", componentSweeper)),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		w.cancel = cancel
		if w.discounts != nil && w.discountInterval > 0 {
			go w.loop(bg, w.discountInterval, w.sweepDiscounts)
		}
		if w.orders != nil && w.orderInterval > 0 {
			go w.loop(bg, w.orderInterval, w.sweepOrders)
		}
		logctx.FromOr(ctx, w.log).Info("sweeper_started",
			observability.F("discount_interval", w.discountInterval),
			observability.F("order_interval", w.orderInterval),
			observability.F("retention", w.retention),
		)
	})
}

func (w *Worker) Stop(ctx context.Context) {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		logctx.FromOr(ctx, w.log).Info("sweeper_stopped")
	})
}

func (w *Worker) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}

func (w *Worker) sweepDiscounts(ctx context.Context) {
	ctx = logctx.With(ctx, w.log)
	if _, err := w.discounts.SweepExpired(ctx); err != nil {
		w.log.Error("discount_sweep_failed", observability.F("error", err.Error()))
	}
}

func (w *Worker) sweepOrders(ctx context.Context) {
	ctx = logctx.With(ctx, w.log)
	if _, err := w.orders.SweepStaleCancelled(ctx, w.retention); err != nil {
		w.log.Error("order_sweep_failed", observability.F("error", err.Error()))
	}
}
