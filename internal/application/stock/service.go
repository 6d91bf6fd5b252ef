package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/threadline/fulfillment/internal/domain/catalog"
	"github.com/threadline/fulfillment/internal/domain/order"
	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
)

const componentStockLedger = "stock_ledger"

// Line is one (product, size, quantity) stock movement.
type Line struct {
	ProductID string
	Size      catalog.Size
	Quantity  int
}

// LinesFromItems converts order items to ledger lines.
func LinesFromItems(items []order.Item) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity})
	}
	return lines
}

// Ledger owns per-product, per-size available quantity. Validate is an
// optimistic pre-check only; ReserveAndCommit is the sole authority on
// whether stock is actually taken.
type Ledger struct {
	products catalog.Repository
	log      observability.Logger
}

func NewLedger(products catalog.Repository, logger observability.Logger) *Ledger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Ledger{
		products: products,
		log:      logger.With(observability.F("component", componentStockLedger)),
	}
}

// Validate checks every line against current quantities, failing fast
// on the first insufficient line with the product and size named. It
// has no side effects and must run before any persistent order write.
func (l *Ledger) Validate(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		if line.Quantity <= 0 {
			return catalog.ErrInvalidQuantity
		}
		p, err := l.products.Get(ctx, line.ProductID)
		if err != nil {
			return fmt.Errorf("stock: load product %s: %w", line.ProductID, err)
		}
		if available := p.Quantity(line.Size); available < line.Quantity {
			return &catalog.InsufficientStockError{
				ProductID: line.ProductID,
				Size:      line.Size,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}
	return nil
}

// ReserveAndCommit decrements each line through the store's atomic
// compare-and-decrement, closing the race between two validated but
// uncommitted checkouts. On a mid-sequence failure the lines that had
// already succeeded are restored before the error is returned, so the
// caller observes all-or-nothing.
func (l *Ledger) ReserveAndCommit(ctx context.Context, lines []Line) error {
	logger := logctx.FromOr(ctx, l.log)
	for i, line := range lines {
		if err := l.products.DecrementStock(ctx, line.ProductID, line.Size, line.Quantity); err != nil {
			if i > 0 {
				if restoreErr := l.Restore(ctx, lines[:i]); restoreErr != nil {
					logger.Error("stock_compensation_failed",
						observability.F("product_id", line.ProductID),
						observability.F("size", string(line.Size)),
						observability.F("error", restoreErr.Error()),
					)
				}
			}
			return err
		}
	}
	return nil
}

// Restore unconditionally increments every line, used on cancellation.
// Errors after the first line are collected so a single bad line does
// not leave the rest unrestored.
func (l *Ledger) Restore(ctx context.Context, lines []Line) error {
	var errs []error
	for _, line := range lines {
		if err := l.products.IncrementStock(ctx, line.ProductID, line.Size, line.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("stock: restore %s/%s: %w", line.ProductID, line.Size, err))
		}
	}
	return errors.Join(errs...)
}
