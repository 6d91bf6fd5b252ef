package shipment

import (
	"context"
	"errors"

	"github.com/threadline/fulfillment/internal/domain/order"
)

var (
	// ErrCredential marks an authentication failure against the carrier
	// aggregator. It is fatal to the call in progress; callers treat the
	// shipment step as failed and keep the order.
	ErrCredential = errors.New("shipment: carrier authentication failed")
	// ErrBookingFailed wraps any non-auth failure from the aggregator.
	ErrBookingFailed = errors.New("shipment: booking failed")
)

// Booking is the carrier's answer to a create-shipment request.
type Booking struct {
	ShipmentID     string
	CarrierOrderID string
	TrackingCode   string
	CarrierName    string
	TrackingURL    string
}

// TrackingStatus is the live state of a shipment as reported by the
// carrier aggregator.
type TrackingStatus struct {
	TrackingCode  string
	Status        string
	StatusTime    string
	Location      string
	EstimatedDate string
}

// Gateway hides the carrier aggregator behind a stable interface. All
// methods share the credential lifecycle and retry discipline: one
// forced re-authentication plus one retry on an authorization failure,
// then the error surfaces unchanged.
type Gateway interface {
	CreateShipment(ctx context.Context, o *order.Order) (*Booking, error)
	CancelShipment(ctx context.Context, carrierOrderID string) error
	Tracking(ctx context.Context, trackingCode string) (*TrackingStatus, error)
}
