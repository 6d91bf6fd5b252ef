package catalog

import "context"

// Repository persists products. DecrementStock is the single atomic
// conditional-update primitive: the guard quantity >= requested and the
// decrement happen as one operation against the store, never as a
// separate read then write.
type Repository interface {
	Get(ctx context.Context, productID string) (*Product, error)
	Save(ctx context.Context, product *Product) error

	// DecrementStock atomically decrements (productID, size) when the
	// stored quantity is at least quantity, recomputing the product's
	// InStock flag. Returns *InsufficientStockError when the guard fails.
	DecrementStock(ctx context.Context, productID string, size Size, quantity int) error

	// IncrementStock unconditionally raises (productID, size) and
	// recomputes InStock.
	IncrementStock(ctx context.Context, productID string, size Size, quantity int) error

	// ClearDiscountRef detaches the product's discount reference.
	ClearDiscountRef(ctx context.Context, productID string) error

	// SetDiscountRef attaches a discount reference to the product.
	SetDiscountRef(ctx context.Context, productID, discountID string) error
}
