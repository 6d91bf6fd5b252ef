package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/threadline/fulfillment/internal/domain/catalog"
)

// ProductRepository is an in-memory product store. DecrementStock holds
// the store's write lock across the guard check and the mutation, which
// is what makes it the atomic conditional-update primitive the ledger
// relies on.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	_ = ctx
	if product == nil || product.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, size domain.Size, quantity int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	return p.Decrement(size, quantity)
}

func (r *ProductRepository) IncrementStock(ctx context.Context, productID string, size domain.Size, quantity int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	return p.Increment(size, quantity)
}

func (r *ProductRepository) ClearDiscountRef(ctx context.Context, productID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.DiscountID = ""
	return nil
}

func (r *ProductRepository) SetDiscountRef(ctx context.Context, productID, discountID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.DiscountID = discountID
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Sizes = append([]domain.SizeStock(nil), p.Sizes...)
	return &clone
}
