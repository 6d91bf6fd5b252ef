package catalog

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrUnknownSize     = errors.New("catalog: unknown size")
	ErrInvalidQuantity = errors.New("catalog: quantity must be greater than zero")
)

// Size is the closed set of garment sizes a product is stocked in.
type Size string

const (
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// Sizes lists every valid size in display order.
func Sizes() []Size {
	return []Size{SizeS, SizeM, SizeL, SizeXL, SizeXXL}
}

func ParseSize(s string) (Size, error) {
	switch Size(s) {
	case SizeS, SizeM, SizeL, SizeXL, SizeXXL:
		return Size(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSize, s)
}

// SizeStock is the on-hand quantity for one size of a product.
type SizeStock struct {
	Size     Size
	Quantity int
}

// Product is a catalog entry with its per-size stock pool. DiscountID
// references the currently attached promotion, empty when none.
type Product struct {
	ID         string
	Name       string
	BasePrice  float64
	Sizes      []SizeStock
	InStock    bool
	DiscountID string
	UpdatedAt  time.Time
}

func NewProduct(id, name string, basePrice float64, sizes []SizeStock) (*Product, error) {
	if id == "" {
		return nil, errors.New("catalog: product id is required")
	}
	if basePrice < 0 {
		return nil, errors.New("catalog: base price must be zero or greater")
	}
	for _, s := range sizes {
		if _, err := ParseSize(string(s.Size)); err != nil {
			return nil, err
		}
		if s.Quantity < 0 {
			return nil, errors.New("catalog: quantity must be zero or greater")
		}
	}
	p := &Product{
		ID:        id,
		Name:      name,
		BasePrice: basePrice,
		Sizes:     append([]SizeStock(nil), sizes...),
		UpdatedAt: time.Now().UTC(),
	}
	p.RecomputeInStock()
	return p, nil
}

// Quantity returns the on-hand count for the given size. A size the
// product is not stocked in reads as zero.
func (p *Product) Quantity(size Size) int {
	for _, s := range p.Sizes {
		if s.Size == size {
			return s.Quantity
		}
	}
	return 0
}

// RecomputeInStock derives InStock from the size quantities. It is the
// only way InStock changes; the flag is never set independently.
func (p *Product) RecomputeInStock() {
	for _, s := range p.Sizes {
		if s.Quantity > 0 {
			p.InStock = true
			return
		}
	}
	p.InStock = false
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// Decrement reduces stock of one size, guarded by quantity >= requested.
// Callers needing atomicity must hold the store's write lock; see the
// repository contract.
func (p *Product) Decrement(size Size, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range p.Sizes {
		if p.Sizes[i].Size != size {
			continue
		}
		if p.Sizes[i].Quantity < quantity {
			return &InsufficientStockError{
				ProductID: p.ID,
				Size:      size,
				Requested: quantity,
				Available: p.Sizes[i].Quantity,
			}
		}
		p.Sizes[i].Quantity -= quantity
		p.RecomputeInStock()
		p.touch()
		return nil
	}
	return &InsufficientStockError{ProductID: p.ID, Size: size, Requested: quantity}
}

// Increment raises stock of one size unconditionally, creating the size
// entry if the product was never stocked in it.
func (p *Product) Increment(size Size, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range p.Sizes {
		if p.Sizes[i].Size == size {
			p.Sizes[i].Quantity += quantity
			p.RecomputeInStock()
			p.touch()
			return nil
		}
	}
	p.Sizes = append(p.Sizes, SizeStock{Size: size, Quantity: quantity})
	p.RecomputeInStock()
	p.touch()
	return nil
}

// InsufficientStockError names the first line that could not be
// satisfied. It is user-correctable and never retried automatically.
type InsufficientStockError struct {
	ProductID string
	Size      Size
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("catalog: insufficient stock for product %s size %s (requested %d, available %d)",
		e.ProductID, e.Size, e.Requested, e.Available)
}

// IsInsufficientStock reports whether err carries an insufficient-stock
// failure, unwrapping as needed.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
