package discount

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/fulfillment/internal/domain/catalog"
	domdiscount "github.com/threadline/fulfillment/internal/domain/discount"
	"github.com/threadline/fulfillment/internal/infrastructure/id"
	"github.com/threadline/fulfillment/internal/infrastructure/memory"
)

func newResolver(t *testing.T) (*Resolver, *memory.ProductRepository, *memory.DiscountRepository) {
	t.Helper()
	products := memory.NewProductRepository()
	discounts := memory.NewDiscountRepository()
	r := NewResolver(discounts, products, id.NewUUIDGenerator(), nil)
	return r, products, discounts
}

func seedProduct(t *testing.T, products *memory.ProductRepository, productID string, basePrice float64) {
	t.Helper()
	p, err := catalog.NewProduct(productID, productID, basePrice, []catalog.SizeStock{{Size: catalog.SizeM, Quantity: 10}})
	require.NoError(t, err)
	require.NoError(t, products.Save(context.Background(), p))
}

func addDiscount(t *testing.T, r *Resolver, productID string, typ domdiscount.Type, value float64, start, end time.Time) *domdiscount.Discount {
	t.Helper()
	d, err := r.Add(context.Background(), AddInput{
		ProductID: productID,
		Type:      typ,
		Value:     value,
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(t, err)
	return d
}

func TestAddRejectsSecondActiveDiscount(t *testing.T) {
	r, products, _ := newResolver(t)
	seedProduct(t, products, "p1", 1000)
	now := time.Now().UTC()

	addDiscount(t, r, "p1", domdiscount.TypePercentage, 20, now.Add(-time.Hour), now.Add(24*time.Hour))

	_, err := r.Add(context.Background(), AddInput{
		ProductID: "p1",
		Type:      domdiscount.TypeFixed,
		Value:     50,
		StartDate: now,
		EndDate:   now.Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, domdiscount.ErrAlreadyActive)
}

func TestAddReplacesExpiredLeftover(t *testing.T) {
	r, products, discounts := newResolver(t)
	seedProduct(t, products, "p1", 1000)
	now := time.Now().UTC()

	old := addDiscount(t, r, "p1", domdiscount.TypePercentage, 20, now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	// The leftover is past its end date, so a new discount goes through
	// and the old one is deactivated in passing.
	fresh := addDiscount(t, r, "p1", domdiscount.TypePercentage, 10, now.Add(-time.Hour), now.Add(24*time.Hour))

	stored, err := discounts.Get(context.Background(), old.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	p, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, p.DiscountID)
}

func TestAddUnknownProduct(t *testing.T) {
	r, _, _ := newResolver(t)
	now := time.Now().UTC()
	_, err := r.Add(context.Background(), AddInput{
		ProductID: "ghost",
		Type:      domdiscount.TypePercentage,
		Value:     20,
		StartDate: now,
		EndDate:   now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestEffectivePriceAppliesActiveDiscount(t *testing.T) {
	r, products, _ := newResolver(t)
	seedProduct(t, products, "p1", 1000)
	now := time.Now().UTC()
	addDiscount(t, r, "p1", domdiscount.TypePercentage, 20, now.Add(-time.Hour), now.Add(24*time.Hour))

	p, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	price, err := r.EffectivePrice(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 800.0, price)
}

func TestEffectivePriceWithoutDiscount(t *testing.T) {
	r, products, _ := newResolver(t)
	seedProduct(t, products, "p1", 750)

	p, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	price, err := r.EffectivePrice(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 750.0, price)
}

func TestEffectivePriceKeepsScheduledDiscount(t *testing.T) {
	r, products, discounts := newResolver(t)
	seedProduct(t, products, "p1", 1000)
	now := time.Now().UTC()

	// Window opens tomorrow; until then the product sells at base price
	// and the discount stays attached and active.
	d := addDiscount(t, r, "p1", domdiscount.TypePercentage, 20, now.Add(24*time.Hour), now.Add(48*time.Hour))

	p, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	price, err := r.EffectivePrice(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, price)

	stored, err := discounts.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active, "a price read must not deactivate a scheduled discount")

	kept, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, d.ID, kept.DiscountID, "a price read must not detach a scheduled discount")

	// Once the window opens the same discount applies.
	r.now = func() time.Time { return now.Add(30 * time.Hour) }
	price, err = r.EffectivePrice(context.Background(), kept)
	require.NoError(t, err)
	assert.Equal(t, 800.0, price)
}

func TestEffectivePriceSelfHealsExpiredWithoutSweep(t *testing.T) {
	r, products, discounts := newResolver(t)
	seedProduct(t, products, "p1", 1000)
	now := time.Now().UTC()
	d := addDiscount(t, r, "p1", domdiscount.TypePercentage, 20, now.Add(-time.Hour), now.Add(24*time.Hour))

	// Move the resolver clock past the end date. No sweep has run.
	r.now = func() time.Time { return now.Add(48 * time.Hour) }

	p, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	price, err := r.EffectivePrice(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, price, "expired discount never leaks into pricing")

	stored, err := discounts.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	healed, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, healed.DiscountID)
}

func TestEffectivePriceSelfHealsDanglingRef(t *testing.T) {
	r, products, _ := newResolver(t)
	seedProduct(t, products, "p1", 500)
	require.NoError(t, products.SetDiscountRef(context.Background(), "p1", "gone"))

	p, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	price, err := r.EffectivePrice(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 500.0, price)

	healed, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, healed.DiscountID)
}

func TestSweepExpired(t *testing.T) {
	r, products, discounts := newResolver(t)
	seedProduct(t, products, "p1", 1000)
	seedProduct(t, products, "p2", 500)
	seedProduct(t, products, "p3", 200)
	now := time.Now().UTC()

	d1 := addDiscount(t, r, "p1", domdiscount.TypePercentage, 20, now.Add(-time.Hour), now.Add(time.Hour))
	d2 := addDiscount(t, r, "p2", domdiscount.TypeFixed, 50, now.Add(-time.Hour), now.Add(2*time.Hour))
	d3 := addDiscount(t, r, "p3", domdiscount.TypePercentage, 10, now.Add(-time.Hour), now.Add(72*time.Hour))

	r.now = func() time.Time { return now.Add(24 * time.Hour) }

	count, err := r.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, discountID := range []string{d1.ID, d2.ID} {
		stored, err := discounts.Get(context.Background(), discountID)
		require.NoError(t, err)
		assert.False(t, stored.Active)
	}
	survivor, err := discounts.Get(context.Background(), d3.ID)
	require.NoError(t, err)
	assert.True(t, survivor.Active)

	p3, err := products.Get(context.Background(), "p3")
	require.NoError(t, err)
	assert.Equal(t, d3.ID, p3.DiscountID)

	// Idempotent: a second sweep finds nothing.
	count, err = r.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRemove(t *testing.T) {
	r, products, discounts := newResolver(t)
	seedProduct(t, products, "p1", 1000)
	now := time.Now().UTC()
	d := addDiscount(t, r, "p1", domdiscount.TypePercentage, 20, now.Add(-time.Hour), now.Add(24*time.Hour))

	require.NoError(t, r.Remove(context.Background(), d.ID))

	stored, err := discounts.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	p, err := products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, p.DiscountID)

	assert.ErrorIs(t, r.Remove(context.Background(), "ghost"), domdiscount.ErrNotFound)
}
