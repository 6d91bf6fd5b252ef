package trackingstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/fulfillment/internal/domain/shipment"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(5 * time.Minute)
	ctx := context.Background()
	in := &shipment.TrackingStatus{TrackingCode: "TRK1", Status: "In Transit", Location: "Delhi"}

	require.NoError(t, m.Set(ctx, "TRK1", in))
	out, ok, err := m.Get(ctx, "TRK1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *in, *out)

	// The store keeps its own copy.
	in.Status = "Delivered"
	out, ok, err = m.Get(ctx, "TRK1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "In Transit", out.Status)
}

func TestMemoryMiss(t *testing.T) {
	m := NewMemory(5 * time.Minute)
	_, ok, err := m.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLazyExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := NewMemory(5 * time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "TRK1", &shipment.TrackingStatus{TrackingCode: "TRK1", Status: "In Transit"}))

	now = base.Add(5*time.Minute - time.Second)
	_, ok, err := m.Get(ctx, "TRK1")
	require.NoError(t, err)
	assert.True(t, ok, "fresh until the boundary")

	now = base.Add(5 * time.Minute)
	_, ok, err = m.Get(ctx, "TRK1")
	require.NoError(t, err)
	assert.False(t, ok, "exactly at the boundary reads as miss")

	// A rewrite resets the clock for the code.
	require.NoError(t, m.Set(ctx, "TRK1", &shipment.TrackingStatus{TrackingCode: "TRK1", Status: "Out For Delivery"}))
	out, ok, err := m.Get(ctx, "TRK1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Out For Delivery", out.Status)
}

func TestMemoryNilPayloadIgnored(t *testing.T) {
	m := NewMemory(5 * time.Minute)
	require.NoError(t, m.Set(context.Background(), "TRK1", nil))
	_, ok, err := m.Get(context.Background(), "TRK1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDefaultTTL(t *testing.T) {
	m := NewMemory(0)
	assert.Equal(t, 5*time.Minute, m.ttl)
}
