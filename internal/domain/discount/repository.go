package discount

import (
	"context"
	"time"
)

type Repository interface {
	Save(ctx context.Context, d *Discount) error
	Get(ctx context.Context, id string) (*Discount, error)

	// FindActiveByProduct returns the product's active discount, or
	// ErrNotFound when none is attached.
	FindActiveByProduct(ctx context.Context, productID string) (*Discount, error)

	// ListActiveExpired returns every discount still flagged active whose
	// end date is before now.
	ListActiveExpired(ctx context.Context, now time.Time) ([]*Discount, error)

	Update(ctx context.Context, d *Discount) error
}
