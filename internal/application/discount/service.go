package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/threadline/fulfillment/internal/domain/catalog"
	domdiscount "github.com/threadline/fulfillment/internal/domain/discount"
	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
)

const componentDiscountResolver = "discount_resolver"

type IDGenerator interface {
	NewID() string
}

// Resolver maps a product to its currently-active promotional price,
// lazily expiring stale promotions on read and in bulk on sweep.
type Resolver struct {
	discounts domdiscount.Repository
	products  catalog.Repository
	idGen     IDGenerator
	now       func() time.Time
	log       observability.Logger
}

func NewResolver(discounts domdiscount.Repository, products catalog.Repository, idGen IDGenerator, logger observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Resolver{
		discounts: discounts,
		products:  products,
		idGen:     idGen,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.With(observability.F("component", componentDiscountResolver)),
	}
}

type AddInput struct {
	ProductID string
	Type      domdiscount.Type
	Value     float64
	StartDate time.Time
	EndDate   time.Time
}

// Add creates a discount for a product. Rejected when an active,
// unexpired discount already exists for it.
func (r *Resolver) Add(ctx context.Context, in AddInput) (*domdiscount.Discount, error) {
	if _, err := r.products.Get(ctx, in.ProductID); err != nil {
		return nil, fmt.Errorf("discount: load product: %w", err)
	}

	existing, err := r.discounts.FindActiveByProduct(ctx, in.ProductID)
	switch {
	case err == nil:
		if !existing.Expired(r.now()) {
			return nil, domdiscount.ErrAlreadyActive
		}
		// Stale leftover; expire it in passing.
		if err := r.expire(ctx, existing); err != nil {
			return nil, err
		}
	case errors.Is(err, domdiscount.ErrNotFound):
		// no discount attached, continue
	default:
		return nil, fmt.Errorf("discount: lookup: %w", err)
	}

	d, err := domdiscount.New(r.idGen.NewID(), in.ProductID, in.Type, in.Value, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if err := r.discounts.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("discount: save: %w", err)
	}
	if err := r.products.SetDiscountRef(ctx, in.ProductID, d.ID); err != nil {
		return nil, fmt.Errorf("discount: attach: %w", err)
	}
	return d, nil
}

// Remove explicitly deactivates a discount and clears the product's
// reference to it.
func (r *Resolver) Remove(ctx context.Context, discountID string) error {
	d, err := r.discounts.Get(ctx, discountID)
	if err != nil {
		return err
	}
	return r.expire(ctx, d)
}

// EffectivePrice returns the price the product sells at right now. A
// missing or expired discount self-heals: the product's reference is
// cleared and the base price returned.
func (r *Resolver) EffectivePrice(ctx context.Context, p *catalog.Product) (float64, error) {
	if p.DiscountID == "" {
		return p.BasePrice, nil
	}

	d, err := r.discounts.Get(ctx, p.DiscountID)
	if errors.Is(err, domdiscount.ErrNotFound) {
		if clearErr := r.products.ClearDiscountRef(ctx, p.ID); clearErr != nil {
			return 0, fmt.Errorf("discount: clear dangling ref: %w", clearErr)
		}
		p.DiscountID = ""
		return p.BasePrice, nil
	}
	if err != nil {
		return 0, fmt.Errorf("discount: load: %w", err)
	}

	now := r.now()
	if d.Current(now) {
		return d.Apply(p.BasePrice), nil
	}
	if d.Active && !d.Expired(now) {
		// Scheduled ahead of its window; it sells at base price until
		// the start date and stays attached.
		return p.BasePrice, nil
	}
	if err := r.expire(ctx, d); err != nil {
		return 0, err
	}
	p.DiscountID = ""
	return p.BasePrice, nil
}

// SweepExpired deactivates every discount whose end date has passed and
// clears the owning products' references. Returns the number swept.
func (r *Resolver) SweepExpired(ctx context.Context) (int, error) {
	logger := logctx.FromOr(ctx, r.log)

	expired, err := r.discounts.ListActiveExpired(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("discount: list expired: %w", err)
	}

	count := 0
	for _, d := range expired {
		if err := r.expire(ctx, d); err != nil {
			logger.Error("discount_sweep_item_failed",
				observability.F("discount_id", d.ID),
				observability.F("product_id", d.ProductID),
				observability.F("error", err.Error()),
			)
			continue
		}
		count++
	}

	if count > 0 {
		logger.Info("discount_sweep_done", observability.F("expired", count))
	}
	return count, nil
}

func (r *Resolver) expire(ctx context.Context, d *domdiscount.Discount) error {
	d.Deactivate()
	if err := r.discounts.Update(ctx, d); err != nil {
		return fmt.Errorf("discount: deactivate: %w", err)
	}
	if err := r.products.ClearDiscountRef(ctx, d.ProductID); err != nil {
		return fmt.Errorf("discount: clear ref: %w", err)
	}
	return nil
}
