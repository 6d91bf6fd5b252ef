package payment

import (
	"context"
	"errors"

	"github.com/threadline/fulfillment/internal/domain/order"
)

// ErrVerificationFailed is terminal for the payment attempt. The caller
// compensates by deleting the unpaid order.
var ErrVerificationFailed = errors.New("payment: verification failed")

// Session is a redirect/session checkout handle returned to the client.
type Session struct {
	ID  string
	URL string
}

// Intent is a remote payment object the client settles against, later
// verified by lookup.
type Intent struct {
	ID       string
	Amount   float64
	Currency string
}

// RedirectGateway is the checkout-session mode: the remote side returns
// a session the user is redirected to.
type RedirectGateway interface {
	CreateSession(ctx context.Context, o *order.Order) (*Session, error)
	// Verify reports whether the session completed successfully.
	Verify(ctx context.Context, sessionID string) (bool, error)
}

// IntentGateway is the payment-object mode: the remote side returns an
// intent that is verified via a follow-up lookup call.
type IntentGateway interface {
	CreateIntent(ctx context.Context, o *order.Order) (*Intent, error)
	// Verify looks the payment up remotely and reports whether it was
	// captured for the expected amount.
	Verify(ctx context.Context, intentID string) (bool, error)
}
