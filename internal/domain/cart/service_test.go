package cart

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type memoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]string)}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

func setup(t *testing.T) (*Service, *gorm.DB, *memoryCache) {
	t.Helper()
	return setupDSN(t, "file:cart_"+uuid.NewString()+"?mode=memory&cache=shared")
}

// setupConcurrent uses a file database where every transaction begins
// IMMEDIATE, so concurrent writers queue on the busy timeout.
func setupConcurrent(t *testing.T) (*Service, *gorm.DB, *memoryCache) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cart.db")
	return setupDSN(t, "file:"+path+"?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL")
}

func setupDSN(t *testing.T, dsn string) (*Service, *gorm.DB, *memoryCache) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&product.Category{}, &product.Product{}, &Cart{}, &CartItem{}))

	cache := newMemoryCache()
	cfg := &config.Config{Cart: config.CartConfig{SummaryCacheTTL: time.Minute}}
	return NewService(db, cache, cfg, logger.Discard(), metrics.NewRecorder(nil)), db, cache
}

func seedProduct(t *testing.T, db *gorm.DB, sku, price string, stock int) *product.Product {
	t.Helper()
	p := &product.Product{
		SKU:    sku,
		Name:   sku,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: product.StatusPublished,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func countItems(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&CartItem{}).Count(&n).Error)
	return n
}

func TestCartTotals(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	a := seedProduct(t, db, "A", "100.00", 10)
	b := seedProduct(t, db, "B", "50.00", 10)

	_, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)

	view, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "250.00", view.TotalPrice)
	assert.Equal(t, 3, view.ItemCount)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "200.00", view.Items[0].LineTotal)
}

func TestEmptyCartTotalsZero(t *testing.T) {
	svc, _, _ := setup(t)

	view, err := svc.GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "0.00", view.TotalPrice)
	assert.Equal(t, 0, view.ItemCount)
	assert.Empty(t, view.Items)
}

func TestComputeTotalsUsesExactDecimals(t *testing.T) {
	items := []CartItem{
		{ID: 1, Quantity: 3, Product: &product.Product{Price: decimal.RequireFromString("0.10")}},
		{ID: 2, Quantity: 1, Product: &product.Product{Price: decimal.RequireFromString("0.20")}},
		{ID: 3, Quantity: 4},
	}
	totals := ComputeTotals(items)
	assert.Equal(t, "0.50", totals.TotalPrice.StringFixed(2))
	assert.True(t, totals.TotalPrice.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 8, totals.ItemCount)
	assert.Equal(t, []uint{3}, totals.Dangling)
}

func TestAddItemTwiceKeepsOneRow(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	p := seedProduct(t, db, "MUG", "9.99", 10)

	_, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, int64(1), countItems(t, db))
}

func TestAddItemInsufficientStock(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	p := seedProduct(t, db, "CAP", "15.00", 5)

	_, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 6})
	require.Error(t, err)
	typed := apperr.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperr.CodeInsufficientStock, typed.Code())
	assert.Equal(t, 5, typed.Details().(apperr.StockDetails).Available)
	assert.Equal(t, int64(0), countItems(t, db))

	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 4})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock), "existing quantity counts toward stock")

	var item CartItem
	require.NoError(t, db.First(&item).Error)
	assert.Equal(t, 4, item.Quantity)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	p := seedProduct(t, db, "PEN", "1.00", 5)

	_, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 0})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: 404, Quantity: 1})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	draft := &product.Product{SKU: "DRAFT", Name: "Draft", Price: decimal.RequireFromString("3.00"), Stock: 5, Status: product.StatusDraft}
	require.NoError(t, db.Create(draft).Error)
	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: draft.ID, Quantity: 1})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestSetQuantity(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	a := seedProduct(t, db, "A", "10.00", 5)
	b := seedProduct(t, db, "B", "10.00", 5)

	itemA, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)

	updated, err := svc.SetQuantity(ctx, 1, itemA.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	_, err = svc.SetQuantity(ctx, 1, itemA.ID, 6)
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))

	removed, err := svc.SetQuantity(ctx, 1, itemA.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, removed)

	view, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.ItemCount)
	assert.Equal(t, int64(1), countItems(t, db))
}

func TestItemOwnership(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	p := seedProduct(t, db, "A", "10.00", 5)

	item, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	err = svc.RemoveItem(ctx, 2, item.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
	_, err = svc.SetQuantity(ctx, 2, item.ID, 3)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
	assert.True(t, apperr.IsCode(svc.RemoveItem(ctx, 1, 999), apperr.CodeNotFound))

	require.NoError(t, svc.RemoveItem(ctx, 1, item.ID))
	assert.Equal(t, int64(0), countItems(t, db))
}

func TestClearKeepsCart(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	p := seedProduct(t, db, "A", "10.00", 5)

	_, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, 1))

	assert.Equal(t, int64(0), countItems(t, db))
	var carts int64
	require.NoError(t, db.Model(&Cart{}).Count(&carts).Error)
	assert.Equal(t, int64(1), carts)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, 3)
	require.NoError(t, err)
	second, err := svc.GetOrCreate(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var carts int64
	require.NoError(t, db.Model(&Cart{}).Where("user_id = ?", 3).Count(&carts).Error)
	assert.Equal(t, int64(1), carts)
}

func TestDeletedProductContributesZero(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	a := seedProduct(t, db, "A", "10.00", 5)
	b := seedProduct(t, db, "B", "7.50", 5)

	_, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: b.ID, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, db.Delete(&product.Product{}, a.ID).Error)

	view, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "15.00", view.TotalPrice)
	assert.Equal(t, 3, view.ItemCount)
}

func TestSummaryCacheInvalidation(t *testing.T) {
	svc, db, cache := setup(t)
	ctx := context.Background()
	p := seedProduct(t, db, "A", "10.00", 5)

	_, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	cart, err := svc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	key := SummaryKey(cart.ID)

	summary, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "20.00", summary.TotalPrice)
	assert.True(t, cache.has(key))

	// A price change behind the cache is only visible after invalidation.
	require.NoError(t, db.Model(&product.Product{}).Where("id = ?", p.ID).Update("price", decimal.RequireFromString("12.00")).Error)
	stale, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "20.00", stale.TotalPrice)

	require.NoError(t, svc.InvalidateProduct(ctx, p.ID))
	assert.False(t, cache.has(key))

	fresh, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "24.00", fresh.TotalPrice)
	assert.Equal(t, 2, fresh.ItemCount)

	_, err = svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.False(t, cache.has(key), "mutations drop the summary")
}

func TestServiceSatisfiesPriceChangeNotifier(t *testing.T) {
	var _ product.PriceChangeNotifier = (*Service)(nil)
}

func TestConcurrentAddItemKeepsOneRow(t *testing.T) {
	svc, db, _ := setupConcurrent(t)
	ctx := context.Background()
	p := seedProduct(t, db, "TEE", "19.90", 100)
	_, err := svc.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			if _, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: qty}); err == nil {
				mu.Lock()
				succeeded += qty
				mu.Unlock()
			}
		}(i%3 + 1)
	}
	wg.Wait()

	var items []CartItem
	require.NoError(t, db.Where("product_id = ?", p.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Positive(t, succeeded)
	assert.Equal(t, succeeded, items[0].Quantity)
}

func TestRemoveItemTwiceReportsNotFound(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	p := seedProduct(t, db, "MUG", "12.50", 5)

	item, err := svc.AddItem(ctx, 1, &AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.RemoveItem(ctx, 1, item.ID))

	err = svc.RemoveItem(ctx, 1, item.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound), "got %v", err)
}

func TestLockUserCart(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	created, err := svc.GetOrCreate(ctx, 3)
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := LockUserCart(tx, 3)
		require.NoError(t, err)
		assert.Equal(t, created.ID, locked.ID)

		_, err = LockUserCart(tx, 99)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		return nil
	})
	require.NoError(t, err)
}
