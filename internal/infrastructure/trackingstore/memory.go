package trackingstore

import (
	"context"
	"sync"
	"time"

	"github.com/threadline/fulfillment/internal/domain/shipment"
)

type entry struct {
	payload  shipment.TrackingStatus
	storedAt time.Time
}

// Memory is a lazy-expiry tracking cache. Entries are never evicted in
// the background; staleness is checked at read time, so memory is
// bounded by distinct tracking codes seen.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Memory{
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(ctx context.Context, trackingCode string) (*shipment.TrackingStatus, bool, error) {
	_ = ctx

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[trackingCode]
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		return nil, false, nil
	}
	payload := e.payload
	return &payload, true, nil
}

func (m *Memory) Set(ctx context.Context, trackingCode string, status *shipment.TrackingStatus) error {
	_ = ctx
	if status == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[trackingCode] = entry{payload: *status, storedAt: m.now()}
	return nil
}
