package order

import (
	"context"

	"github.com/threadline/fulfillment/internal/application/stock"
	"github.com/threadline/fulfillment/internal/domain/catalog"
)

type IDGenerator interface {
	NewID() string
}

// Cart clears the originating cart once stock is committed. The cart
// itself lives outside the core; only the clearing step participates
// in the ordering guarantees.
type Cart interface {
	Clear(ctx context.Context, userID string) error
}

// Pricer resolves the price a product currently sells at.
type Pricer interface {
	EffectivePrice(ctx context.Context, p *catalog.Product) (float64, error)
}

// StockLedger is the inventory authority the state machine drives.
type StockLedger interface {
	Validate(ctx context.Context, lines []stock.Line) error
	ReserveAndCommit(ctx context.Context, lines []stock.Line) error
	Restore(ctx context.Context, lines []stock.Line) error
}
