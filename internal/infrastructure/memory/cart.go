package memory

import (
	"context"
	"sync"
)

// Cart is a minimal in-memory cart adapter. Only clearing matters to
// the order pipeline; everything else about carts is outside the core.
type Cart struct {
	mu    sync.Mutex
	items map[string][]string
}

func NewCart() *Cart {
	return &Cart{items: make(map[string][]string)}
}

func (c *Cart) Put(ctx context.Context, userID, productID string) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[userID] = append(c.items[userID], productID)
}

func (c *Cart) Clear(ctx context.Context, userID string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
	return nil
}

func (c *Cart) Len(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items[userID])
}
