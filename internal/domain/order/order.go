package order

import (
	"errors"
	"time"

	"github.com/threadline/fulfillment/internal/domain/catalog"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount   = errors.New("order: amount must be zero or greater")
	ErrNoItems         = errors.New("order: at least one item is required")
)

// PaymentMethod selects how the order is paid for. COD is trusted
// immediately; the other two settle through a remote gateway and stay
// unpaid until confirmation.
type PaymentMethod string

const (
	// MethodCOD collects payment on delivery.
	MethodCOD PaymentMethod = "cod"
	// MethodCard settles through a redirect/session checkout.
	MethodCard PaymentMethod = "card"
	// MethodUPI settles through a payment object verified by lookup.
	MethodUPI PaymentMethod = "upi"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodCOD, MethodCard, MethodUPI:
		return PaymentMethod(s), nil
	}
	return "", errors.New("order: unknown payment method")
}

// Deferred reports whether stock commit waits for payment confirmation.
func (m PaymentMethod) Deferred() bool { return m != MethodCOD }

// Item is one order line, priced at the effective price captured when
// the order was placed.
type Item struct {
	ProductID string
	Size      catalog.Size
	Quantity  int
	UnitPrice float64
}

// ShipmentInfo carries the carrier booking attached to an order. Zero
// value means no shipment was booked (a non-fatal condition).
type ShipmentInfo struct {
	ShipmentID     string
	CarrierOrderID string
	TrackingCode   string
	CarrierName    string
	TrackingURL    string
	TrackingStatus string
}

// Booked reports whether a carrier booking exists for the order.
func (s ShipmentInfo) Booked() bool { return s.CarrierOrderID != "" }

// Order is the aggregate the state machine operates on. Amount is
// computed exactly once at placement and never silently recomputed.
type Order struct {
	ID                 string
	Sequence           int64
	UserID             string
	Items              []Item
	Amount             float64
	Address            Address
	Status             Status
	PaymentMethod      PaymentMethod
	PaymentRef         string
	Paid               bool
	Shipment           ShipmentInfo
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        time.Time
}

type Address struct {
	Name    string
	Line1   string
	Line2   string
	City    string
	State   string
	ZipCode string
	Country string
	Phone   string
}

func New(id string, sequence int64, userID string, items []Item, amount float64, addr Address, method PaymentMethod) (*Order, error) {
	if id == "" {
		return nil, errors.New("order: id is required")
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Order{
		ID:            id,
		Sequence:      sequence,
		UserID:        userID,
		Items:         append([]Item(nil), items...),
		Amount:        amount,
		Address:       addr,
		Status:        StatusPlaced,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkPaid records payment confirmation.
func (o *Order) MarkPaid() {
	o.Paid = true
	o.touch()
}

// AttachShipment records a successful carrier booking.
func (o *Order) AttachShipment(info ShipmentInfo) {
	o.Shipment = info
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy safe to hand across the repository boundary.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}
