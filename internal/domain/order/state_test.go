package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("o1", 1, "u1", []Item{{ProductID: "p1", Size: "M", Quantity: 1, UnitPrice: 100}}, 110, Address{}, MethodCOD)
	require.NoError(t, err)
	return o
}

func TestAdvanceHappyPath(t *testing.T) {
	o := newTestOrder(t)
	assert.Equal(t, StatusPlaced, o.Status)

	for _, to := range []Status{StatusPacking, StatusShipped, StatusOutForDelivery, StatusDelivered} {
		require.NoError(t, o.Advance(to))
		assert.Equal(t, to, o.Status)
	}
	assert.True(t, o.Status.Terminal())
}

func TestAdvanceRejectsSkips(t *testing.T) {
	o := newTestOrder(t)

	err := o.Advance(StatusShipped)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, StatusPlaced, o.Status, "failed advance leaves status untouched")

	assert.ErrorIs(t, o.Advance(StatusDelivered), ErrInvalidStateTransition)
	assert.ErrorIs(t, o.Advance(StatusPlaced), ErrInvalidStateTransition)
	// Cancellation goes through Cancel, never Advance.
	assert.ErrorIs(t, o.Advance(StatusCancelled), ErrInvalidStateTransition)
}

func TestAdvanceRejectsTerminal(t *testing.T) {
	o := newTestOrder(t)
	for _, to := range []Status{StatusPacking, StatusShipped, StatusOutForDelivery, StatusDelivered} {
		require.NoError(t, o.Advance(to))
	}
	assert.ErrorIs(t, o.Advance(StatusPacking), ErrInvalidStateTransition)
}

func TestCancelFromAnyNonTerminalState(t *testing.T) {
	stops := []Status{StatusPlaced, StatusPacking, StatusShipped, StatusOutForDelivery}
	for i, stop := range stops {
		o := newTestOrder(t)
		path := []Status{StatusPacking, StatusShipped, StatusOutForDelivery}
		for _, to := range path[:i] {
			require.NoError(t, o.Advance(to))
		}
		require.Equal(t, stop, o.Status)

		require.NoError(t, o.Cancel("changed my mind"))
		assert.Equal(t, StatusCancelled, o.Status)
		assert.Equal(t, "changed my mind", o.CancellationReason)
		assert.False(t, o.CancelledAt.IsZero())
	}
}

func TestCancelRejectsTerminal(t *testing.T) {
	delivered := newTestOrder(t)
	for _, to := range []Status{StatusPacking, StatusShipped, StatusOutForDelivery, StatusDelivered} {
		require.NoError(t, delivered.Advance(to))
	}
	assert.ErrorIs(t, delivered.Cancel("too late"), ErrInvalidStateTransition)

	cancelled := newTestOrder(t)
	require.NoError(t, cancelled.Cancel("first"))
	err := cancelled.Cancel("second")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, "first", cancelled.CancellationReason, "reason is written exactly once")
}

func TestNewValidation(t *testing.T) {
	_, err := New("", 1, "u1", []Item{{ProductID: "p1", Quantity: 1}}, 10, Address{}, MethodCOD)
	assert.Error(t, err)

	_, err = New("o1", 1, "u1", nil, 10, Address{}, MethodCOD)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = New("o1", 1, "u1", []Item{{ProductID: "p1", Quantity: 0}}, 10, Address{}, MethodCOD)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("o1", 1, "u1", []Item{{ProductID: "p1", Quantity: 1}}, -1, Address{}, MethodCOD)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPaymentMethodDeferred(t *testing.T) {
	assert.False(t, MethodCOD.Deferred())
	assert.True(t, MethodCard.Deferred())
	assert.True(t, MethodUPI.Deferred())

	_, err := ParsePaymentMethod("wallet")
	assert.Error(t, err)
}
