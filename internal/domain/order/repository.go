package order

import (
	"context"
	"time"
)

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id string) error

	// ListCancelledBefore returns orders in Cancelled status whose
	// cancellation time is before cutoff, for the retention sweep.
	ListCancelledBefore(ctx context.Context, cutoff time.Time) ([]*Order, error)
}

// SequenceSeries is the counter series producing order sequence numbers.
const SequenceSeries = "orderId"

// Counter produces monotonically increasing sequence numbers, one
// logical series per name. Next must increment with the same atomicity
// guarantee as the stock decrement; a number handed out is never
// reused, even when the order is later cancelled or deleted.
type Counter interface {
	Next(ctx context.Context, series string) (int64, error)
}
