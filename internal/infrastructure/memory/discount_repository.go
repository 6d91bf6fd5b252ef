package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/threadline/fulfillment/internal/domain/discount"
)

type DiscountRepository struct {
	mu        sync.RWMutex
	discounts map[string]*domain.Discount
}

func NewDiscountRepository() *DiscountRepository {
	return &DiscountRepository{
		discounts: make(map[string]*domain.Discount),
	}
}

func (r *DiscountRepository) Save(ctx context.Context, d *domain.Discount) error {
	_ = ctx
	if d == nil || d.ID == "" {
		return fmt.Errorf("discount repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.discounts[d.ID] = cloneDiscount(d)
	return nil
}

func (r *DiscountRepository) Get(ctx context.Context, id string) (*domain.Discount, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.discounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDiscount(d), nil
}

func (r *DiscountRepository) FindActiveByProduct(ctx context.Context, productID string) (*domain.Discount, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.discounts {
		if d.ProductID == productID && d.Active {
			return cloneDiscount(d), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *DiscountRepository) ListActiveExpired(ctx context.Context, now time.Time) ([]*domain.Discount, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Discount
	for _, d := range r.discounts {
		if d.Active && d.EndDate.Before(now) {
			out = append(out, cloneDiscount(d))
		}
	}
	return out, nil
}

func (r *DiscountRepository) Update(ctx context.Context, d *domain.Discount) error {
	_ = ctx
	if d == nil || d.ID == "" {
		return fmt.Errorf("discount repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.discounts[d.ID]; !exists {
		return domain.ErrNotFound
	}
	r.discounts[d.ID] = cloneDiscount(d)
	return nil
}

func cloneDiscount(d *domain.Discount) *domain.Discount {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}
