package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/fulfillment/internal/domain/catalog"
)

func TestProductRepositoryClonesOnRead(t *testing.T) {
	repo := NewProductRepository()
	ctx := context.Background()

	p, err := catalog.NewProduct("p1", "tee", 100, []catalog.SizeStock{{Size: catalog.SizeM, Quantity: 3}})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	got.Sizes[0].Quantity = 999

	fresh, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Quantity(catalog.SizeM), "mutating a returned product never leaks into the store")
}

func TestDecrementStockNeverGoesNegative(t *testing.T) {
	repo := NewProductRepository()
	ctx := context.Background()

	p, err := catalog.NewProduct("p1", "tee", 100, []catalog.SizeStock{{Size: catalog.SizeM, Quantity: 50}})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, p))

	const workers = 100
	var wg sync.WaitGroup
	failures := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.DecrementStock(ctx, "p1", catalog.SizeM, 1); err != nil {
				failures <- err
			}
		}()
	}
	wg.Wait()
	close(failures)

	failed := 0
	for err := range failures {
		assert.True(t, catalog.IsInsufficientStock(err))
		failed++
	}
	assert.Equal(t, 50, failed)

	final, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, final.Quantity(catalog.SizeM))
	assert.False(t, final.InStock)
}

func TestDecrementStockUnknownProduct(t *testing.T) {
	repo := NewProductRepository()
	err := repo.DecrementStock(context.Background(), "ghost", catalog.SizeM, 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDiscountRefLifecycle(t *testing.T) {
	repo := NewProductRepository()
	ctx := context.Background()

	p, err := catalog.NewProduct("p1", "tee", 100, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, p))

	require.NoError(t, repo.SetDiscountRef(ctx, "p1", "d1"))
	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DiscountID)

	require.NoError(t, repo.ClearDiscountRef(ctx, "p1"))
	got, err = repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, got.DiscountID)

	assert.ErrorIs(t, repo.SetDiscountRef(ctx, "ghost", "d1"), catalog.ErrNotFound)
}

func TestCounterSeriesAreIndependent(t *testing.T) {
	c := NewCounter()
	ctx := context.Background()

	n, err := c.Next(ctx, "orderId")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = c.Next(ctx, "orderId")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = c.Next(ctx, "other")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCounterConcurrentNextIsUnique(t *testing.T) {
	c := NewCounter()
	ctx := context.Background()

	const workers = 100
	var wg sync.WaitGroup
	seen := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Next(ctx, "orderId")
			if err == nil {
				seen <- n
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for n := range seen {
		assert.False(t, unique[n], "sequence number handed out twice")
		unique[n] = true
	}
	assert.Len(t, unique, workers)
}
