package order

import "time"

// OrderPlacedEvent is emitted after an order is persisted and its stock
// handling resolved. Handled by the notification worker.
type OrderPlacedEvent struct {
	OrderID    string
	Sequence   int64
	UserID     string
	Amount     float64
	Method     PaymentMethod
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:    o.ID,
		Sequence:   o.Sequence,
		UserID:     o.UserID,
		Amount:     o.Amount,
		Method:     o.PaymentMethod,
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentConfirmedEvent is emitted once a remote gateway verifies
// payment for a pending order.
type PaymentConfirmedEvent struct {
	OrderID    string
	UserID     string
	Amount     float64
	OccurredAt time.Time
}

func (PaymentConfirmedEvent) EventName() string { return "order.payment_confirmed" }

func NewPaymentConfirmedEvent(o *Order) PaymentConfirmedEvent {
	return PaymentConfirmedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Amount:     o.Amount,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderPackedEvent is emitted when an order enters Packing.
type OrderPackedEvent struct {
	OrderID    string
	UserID     string
	OccurredAt time.Time
}

func (OrderPackedEvent) EventName() string { return "order.packed" }

func NewOrderPackedEvent(o *Order) OrderPackedEvent {
	return OrderPackedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after stock is restored and the order
// marked Cancelled.
type OrderCancelledEvent struct {
	OrderID    string
	UserID     string
	Reason     string
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Reason:     o.CancellationReason,
		OccurredAt: time.Now().UTC(),
	}
}
