package order

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidStateTransition = errors.New("order: invalid state transition")

type Status string

const (
	StatusPlaced         Status = "placed"
	StatusPacking        Status = "packing"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPlaced, StatusPacking, StatusShipped, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("order: unknown status %q", s)
}

// next encodes the linear happy path. Cancelled is reachable from any
// non-terminal state and is handled by Cancel, not Advance.
var next = map[Status]Status{
	StatusPlaced:         StatusPacking,
	StatusPacking:        StatusShipped,
	StatusShipped:        StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanAdvance reports whether to is the immediate successor of the
// order's current status.
func (o *Order) CanAdvance(to Status) bool {
	return !o.Status.Terminal() && next[o.Status] == to
}

// Advance moves the order one step along the happy path. Skipping
// states or mutating a terminal order is rejected.
func (o *Order) Advance(to Status) error {
	if !o.CanAdvance(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, o.Status, to)
	}
	o.Status = to
	o.touch()
	return nil
}

// Cancel moves the order to Cancelled, recording the reason. Status and
// reason are each assigned exactly once per call. Delivered and
// already-cancelled orders are rejected.
func (o *Order) Cancel(reason string) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, o.Status, StatusCancelled)
	}
	o.Status = StatusCancelled
	o.CancellationReason = reason
	o.CancelledAt = time.Now().UTC()
	o.touch()
	return nil
}
