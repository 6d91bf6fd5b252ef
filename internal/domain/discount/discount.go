package discount

import (
	"errors"
	"time"

	"github.com/threadline/fulfillment/internal/pkg/money"
)

var (
	ErrNotFound      = errors.New("discount: not found")
	ErrAlreadyActive = errors.New("discount: product already has an active discount")
	ErrInvalidValue  = errors.New("discount: invalid value")
	ErrInvalidWindow = errors.New("discount: end date must be after start date")
)

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Discount is a time-bounded promotional price adjustment for one
// product. At most one active discount exists per product at a time.
type Discount struct {
	ID        string
	ProductID string
	Type      Type
	Value     float64
	StartDate time.Time
	EndDate   time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, productID string, typ Type, value float64, start, end time.Time) (*Discount, error) {
	if id == "" || productID == "" {
		return nil, errors.New("discount: id and product id are required")
	}
	switch typ {
	case TypePercentage:
		if value < 0 || value > 100 {
			return nil, ErrInvalidValue
		}
	case TypeFixed:
		if value < 0 {
			return nil, ErrInvalidValue
		}
	default:
		return nil, errors.New("discount: unknown type")
	}
	if !end.After(start) {
		return nil, ErrInvalidWindow
	}
	now := time.Now().UTC()
	return &Discount{
		ID:        id,
		ProductID: productID,
		Type:      typ,
		Value:     value,
		StartDate: start,
		EndDate:   end,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Expired reports whether the discount's window has passed at now.
func (d *Discount) Expired(now time.Time) bool {
	return d.EndDate.Before(now)
}

// Current reports whether the discount should be honored at now.
func (d *Discount) Current(now time.Time) bool {
	return d.Active && !d.Expired(now) && !d.StartDate.After(now)
}

// Deactivate clears the active flag.
func (d *Discount) Deactivate() {
	d.Active = false
	d.UpdatedAt = time.Now().UTC()
}

// Apply computes the effective price for the given base. The result is
// rounded to two decimals and never negative.
func (d *Discount) Apply(base float64) float64 {
	var price float64
	switch d.Type {
	case TypePercentage:
		price = money.Round2(base * (1 - d.Value/100))
	case TypeFixed:
		price = money.Round2(base - d.Value)
	default:
		price = base
	}
	if price < 0 {
		return 0
	}
	return price
}
