package memory

import (
	"context"
	"sync"
)

// Counter hands out monotonically increasing sequence numbers per
// series. The increment happens under the store lock, matching the
// atomicity of the stock decrement; a number is never reused.
type Counter struct {
	mu     sync.Mutex
	series map[string]int64
}

func NewCounter() *Counter {
	return &Counter{series: make(map[string]int64)}
}

func (c *Counter) Next(ctx context.Context, series string) (int64, error) {
	_ = ctx

	c.mu.Lock()
	defer c.mu.Unlock()

	c.series[series]++
	return c.series[series], nil
}
