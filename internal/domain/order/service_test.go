package order

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type env struct {
	db     *gorm.DB
	carts  *cart.Service
	orders *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvDSN(t, "file:order_"+uuid.NewString()+"?mode=memory&cache=shared")
}

// newConcurrentEnv backs the services with a file database whose
// transactions begin IMMEDIATE, so parallel checkouts queue instead of failing.
func newConcurrentEnv(t *testing.T) *env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order.db")
	return newEnvDSN(t, "file:"+path+"?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL")
}

func newEnvDSN(t *testing.T, dsn string) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&product.Category{}, &product.Product{},
		&cart.Cart{}, &cart.CartItem{},
		&Order{}, &OrderItem{}, &OrderStatusHistory{},
	))

	cfg := &config.Config{}
	log := logger.Discard()
	recorder := metrics.NewRecorder(nil)
	carts := cart.NewService(db, nil, cfg, log, recorder)
	return &env{
		db:     db,
		carts:  carts,
		orders: NewService(db, cfg, carts, log, recorder),
	}
}

func (e *env) product(t *testing.T, sku, price string, stock int) *product.Product {
	t.Helper()
	p := &product.Product{
		SKU:    sku,
		Name:   "Product " + sku,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: product.StatusPublished,
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *env) add(t *testing.T, userID uint, p *product.Product, qty int) {
	t.Helper()
	_, err := e.carts.AddItem(context.Background(), userID, &cart.AddToCartRequest{ProductID: p.ID, Quantity: qty})
	require.NoError(t, err)
}

func (e *env) cartItems(t *testing.T, userID uint) []cart.CartItem {
	t.Helper()
	c, err := e.carts.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	var items []cart.CartItem
	require.NoError(t, e.db.Where("cart_id = ?", c.ID).Order("product_id ASC").Find(&items).Error)
	return items
}

func (e *env) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&Order{}).Count(&n).Error)
	return n
}

func shipping() *ShippingInfo {
	return &ShippingInfo{
		RecipientName:    "Ada Lovelace",
		RecipientPhone:   "+44 20 7946 0000",
		RecipientAddress: "12 St James's Square, London",
	}
}

func TestCreateOrderSnapshotsCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "100.00", 10)
	b := e.product(t, "B", "50.00", 10)
	e.add(t, 1, a, 2)
	e.add(t, 1, b, 1)

	order, err := e.orders.CreateOrder(ctx, 1, shipping())
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, "250.00", order.TotalPrice.StringFixed(2))
	assert.Regexp(t, `^ORD-\d{8}-\d{5}$`, order.OrderNumber)
	assert.Equal(t, "Ada Lovelace", order.RecipientName)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 3, order.ItemCount())
	assert.Equal(t, "A", order.Items[0].SKU)
	assert.Equal(t, "200.00", order.Items[0].Subtotal().StringFixed(2))
	require.Len(t, order.StatusHistory, 1)

	assert.Empty(t, e.cartItems(t, 1), "cart is emptied")

	var reloaded product.Product
	require.NoError(t, e.db.First(&reloaded, a.ID).Error)
	assert.Equal(t, 2, reloaded.SalesCount)
	assert.Equal(t, 10, reloaded.Stock, "checkout does not touch stock")
}

func TestOrderPriceIsFrozen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "19.99", 5)
	e.add(t, 1, a, 1)

	order, err := e.orders.CreateOrder(ctx, 1, shipping())
	require.NoError(t, err)

	require.NoError(t, e.db.Model(&product.Product{}).Where("id = ?", a.ID).
		Update("price", decimal.RequireFromString("29.99")).Error)

	reloaded, err := e.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "19.99", reloaded.Items[0].Price.StringFixed(2))
	assert.Equal(t, "19.99", reloaded.TotalPrice.StringFixed(2))
}

func TestCreateOrderEmptyCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.orders.CreateOrder(ctx, 1, shipping())
	assert.True(t, apperr.IsCode(err, apperr.CodeEmptyCart), "no cart at all")

	_, err = e.carts.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	_, err = e.orders.CreateOrder(ctx, 1, shipping())
	assert.True(t, apperr.IsCode(err, apperr.CodeEmptyCart))

	assert.Equal(t, int64(0), e.orderCount(t))
}

func TestCreateOrderRollsBackOnVanishedProduct(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "10.00", 5)
	b := e.product(t, "B", "20.00", 5)
	e.add(t, 1, a, 1)
	e.add(t, 1, b, 2)
	before := e.cartItems(t, 1)

	require.NoError(t, e.db.Delete(&product.Product{}, b.ID).Error)

	_, err := e.orders.CreateOrder(ctx, 1, shipping())
	assert.True(t, apperr.IsCode(err, apperr.CodeOrderCreationFailed))

	assert.Equal(t, before, e.cartItems(t, 1))
	assert.Equal(t, int64(0), e.orderCount(t))

	var reloaded product.Product
	require.NoError(t, e.db.First(&reloaded, a.ID).Error)
	assert.Equal(t, 0, reloaded.SalesCount)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "10.00", 5)
	e.add(t, 1, a, 4)

	require.NoError(t, e.db.Model(&product.Product{}).Where("id = ?", a.ID).UpdateColumn("stock", 3).Error)

	_, err := e.orders.CreateOrder(ctx, 1, shipping())
	require.True(t, apperr.IsCode(err, apperr.CodeInsufficientStock))
	assert.Equal(t, 3, apperr.As(err).Details().(apperr.StockDetails).Available)
	assert.Len(t, e.cartItems(t, 1), 1)
	assert.Equal(t, int64(0), e.orderCount(t))
}

func TestCreateOrderValidatesShipping(t *testing.T) {
	e := newEnv(t)
	a := e.product(t, "A", "10.00", 5)
	e.add(t, 1, a, 1)

	info := shipping()
	info.RecipientName = "   "
	_, err := e.orders.CreateOrder(context.Background(), 1, info)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	assert.Len(t, e.cartItems(t, 1), 1)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatusPaid, false},
		{OrderStatusPending, OrderStatus("refunded"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "10.00", 5)
	e.add(t, 1, a, 1)
	order, err := e.orders.CreateOrder(ctx, 1, shipping())
	require.NoError(t, err)

	_, err = e.orders.UpdateStatus(ctx, order.ID, OrderStatusShipped, "", 99)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidStatus))

	_, err = e.orders.UpdateStatus(ctx, order.ID, OrderStatus("lost"), "", 99)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidStatus))

	current, err := e.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, current.Status, "rejected changes leave the order alone")

	for _, next := range []OrderStatus{OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered} {
		current, err = e.orders.UpdateStatus(ctx, order.ID, next, "step", 99)
		require.NoError(t, err)
		assert.Equal(t, next, current.Status)
	}
	assert.NotNil(t, current.PaidAt)
	assert.NotNil(t, current.DeliveredAt)
	assert.Len(t, current.StatusHistory, 4)

	_, err = e.orders.UpdateStatus(ctx, order.ID, OrderStatusCancelled, "", 99)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidStatus))

	_, err = e.orders.UpdateStatus(ctx, 404, OrderStatusPaid, "", 99)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "10.00", 5)
	e.add(t, 1, a, 3)
	order, err := e.orders.CreateOrder(ctx, 1, shipping())
	require.NoError(t, err)

	_, err = e.orders.CancelOrder(ctx, 2, order.ID, "not mine")
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))

	cancelled, err := e.orders.CancelOrder(ctx, 1, order.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "Order cancelled: changed my mind", cancelled.StatusHistory[0].Comment)

	var reloaded product.Product
	require.NoError(t, e.db.First(&reloaded, a.ID).Error)
	assert.Equal(t, 0, reloaded.SalesCount)
	assert.Equal(t, 5, reloaded.Stock)

	_, err = e.orders.CancelOrder(ctx, 1, order.ID, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidStatus))
}

func TestUserOrderAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "10.00", 10)

	e.add(t, 1, a, 1)
	first, err := e.orders.CreateOrder(ctx, 1, shipping())
	require.NoError(t, err)
	e.add(t, 1, a, 2)
	_, err = e.orders.CreateOrder(ctx, 1, shipping())
	require.NoError(t, err)
	e.add(t, 2, a, 1)
	_, err = e.orders.CreateOrder(ctx, 2, shipping())
	require.NoError(t, err)

	_, err = e.orders.GetUserOrder(ctx, 2, first.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
	_, err = e.orders.GetUserOrder(ctx, 1, 404)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	mine, err := e.orders.ListUserOrders(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Pagination.Total)
	require.Len(t, mine.Orders, 2)
	assert.Greater(t, mine.Orders[0].ID, mine.Orders[1].ID, "newest first")

	all, err := e.orders.ListOrders(ctx, &OrderListRequest{Status: OrderStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Pagination.Total)

	byNumber, err := e.orders.GetOrderByNumber(ctx, first.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byNumber.ID)
}

func TestOrderJSONUsesFixedDecimals(t *testing.T) {
	o := Order{
		TotalPrice: decimal.RequireFromString("20"),
		Items:      []OrderItem{{Price: decimal.RequireFromString("10"), Quantity: 2}},
	}
	raw, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_price":"20.00"`)
	assert.Contains(t, string(raw), `"subtotal":"20.00"`)
	assert.Contains(t, string(raw), `"item_count":2`)
}

func TestCreateOrderTwiceFromOneCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "10.00", 5)
	e.add(t, 1, a, 2)

	_, err := e.orders.CreateOrder(ctx, 1, shipping())
	require.NoError(t, err)

	_, err = e.orders.CreateOrder(ctx, 1, shipping())
	assert.True(t, apperr.IsCode(err, apperr.CodeEmptyCart), "got %v", err)
	assert.Equal(t, int64(1), e.orderCount(t))
}

func TestConcurrentCheckoutCreatesOneOrder(t *testing.T) {
	e := newConcurrentEnv(t)
	ctx := context.Background()
	a := e.product(t, "A", "10.00", 10)
	b := e.product(t, "B", "4.50", 10)
	e.add(t, 1, a, 2)
	e.add(t, 1, b, 3)

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.orders.CreateOrder(ctx, 1, shipping())
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, apperr.IsCode(err, apperr.CodeEmptyCart), "got %v", err)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), e.orderCount(t))

	var lines []OrderItem
	require.NoError(t, e.db.Order("product_id ASC").Find(&lines).Error)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 3, lines[1].Quantity)
	assert.Empty(t, e.cartItems(t, 1))
}
