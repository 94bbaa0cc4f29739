package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
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

type fixture struct {
	db  *gorm.DB
	svc *Service
	cfg *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:inventory_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&product.Category{}, &product.Product{}, &product.Size{}, &product.Color{},
		&Inventory{}, &Movement{},
	))

	cfg := &config.Config{Inventory: config.InventoryConfig{StockIncludesInactive: true}}
	return &fixture{
		db:  db,
		svc: NewService(db, cfg, logger.Discard(), metrics.NewRecorder(nil)),
		cfg: cfg,
	}
}

func (f *fixture) product(t *testing.T, sku string) *product.Product {
	t.Helper()
	p := &product.Product{SKU: sku, Name: sku, Price: decimal.RequireFromString("25.00"), Status: product.StatusPublished}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) stock(t *testing.T, productID uint) int {
	t.Helper()
	var p product.Product
	require.NoError(t, f.db.Unscoped().First(&p, productID).Error)
	return p.Stock
}

func (f *fixture) color(t *testing.T, name string) *product.Color {
	t.Helper()
	c := &product.Color{Name: name}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func TestStockFollowsInventoryWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "TEE")
	red := f.color(t, "Red")
	blue := f.color(t, "Blue")

	a, err := f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, ColorID: &red.ID, Count: 10, SKU: "TEE-R"}, nil)
	require.NoError(t, err)
	b, err := f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, ColorID: &blue.ID, Count: 5, SKU: "TEE-B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, f.stock(t, p.ID))

	three := 3
	_, err = f.svc.UpdateInventory(ctx, a.ID, &UpdateInventoryRequest{Count: &three}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, f.stock(t, p.ID))

	require.NoError(t, f.svc.DeleteInventory(ctx, b.ID, nil))
	assert.Equal(t, 3, f.stock(t, p.ID))

	require.NoError(t, f.svc.DeleteInventory(ctx, a.ID, nil))
	assert.Equal(t, 0, f.stock(t, p.ID), "no rows means zero stock")
}

func TestRecalculateWritesOnlyStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "MUG")

	var before product.Product
	require.NoError(t, f.db.First(&before, p.ID).Error)

	require.NoError(t, f.db.Create(&Inventory{ProductID: p.ID, Count: 7, SKU: "MUG-1", IsActive: true}).Error)
	total, err := RecalculateStock(f.db, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	var after product.Product
	require.NoError(t, f.db.First(&after, p.ID).Error)
	assert.Equal(t, 7, after.Stock)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	assert.Equal(t, before.Name, after.Name)
}

func TestInactiveRowsFollowConfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "CAP")
	inactive := false

	_, err := f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, Count: 4, SKU: "CAP-1"}, nil)
	require.NoError(t, err)
	red := f.color(t, "Red")
	_, err = f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, ColorID: &red.ID, Count: 6, SKU: "CAP-2", IsActive: &inactive}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, f.stock(t, p.ID))

	f.cfg.Inventory.StockIncludesInactive = false
	changed, err := f.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestAdjustCountRejectsNegativeResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "SOCK")

	item, err := f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, Count: 3, SKU: "SOCK-1"}, nil)
	require.NoError(t, err)

	_, err = f.svc.AdjustCount(ctx, item.ID, &AdjustCountRequest{Delta: -4, Reason: ReasonSale}, nil)
	require.Error(t, err)
	typed := apperr.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperr.CodeInsufficientStock, typed.Code())
	assert.Equal(t, 3, typed.Details().(apperr.StockDetails).Available)
	assert.Equal(t, 3, f.stock(t, p.ID))

	actor := uint(1)
	updated, err := f.svc.AdjustCount(ctx, item.ID, &AdjustCountRequest{Delta: 5, Reason: ReasonRestock, Notes: "delivery"}, &actor)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Count)
	assert.Equal(t, 8, f.stock(t, p.ID))

	movements, err := f.svc.ListMovements(ctx, item.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, ReasonRestock, movements[0].Reason)
	assert.Equal(t, 3, movements[0].PreviousCount)
	assert.Equal(t, 8, movements[0].NewCount)
	assert.Equal(t, ReasonInitial, movements[1].Reason)

	_, err = f.svc.AdjustCount(ctx, item.ID, &AdjustCountRequest{Delta: 1, Reason: "gift"}, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestVariantUniquenessTreatsNullAsValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "BAG")

	_, err := f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, Count: 1, SKU: "BAG-1"}, nil)
	require.NoError(t, err)

	_, err = f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, Count: 1, SKU: "BAG-2"}, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	red := f.color(t, "Red")
	_, err = f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, ColorID: &red.ID, Count: 1, SKU: "BAG-1"}, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict), "sku must be unique")

	missing := uint(999)
	_, err = f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, SizeID: &missing, Count: 1, SKU: "BAG-3"}, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: 999, Count: 1, SKU: "NOPE"}, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	assert.Equal(t, 1, f.stock(t, p.ID))
}

func TestEffectivePriceFallsBackToProduct(t *testing.T) {
	p := &product.Product{Price: decimal.RequireFromString("25.00")}

	plain := Inventory{}
	assert.Equal(t, "25.00", plain.EffectivePrice(p).StringFixed(2))

	override := Inventory{Price: decimal.NewNullDecimal(decimal.RequireFromString("19.50"))}
	assert.Equal(t, "19.50", override.EffectivePrice(p).StringFixed(2))

	assert.True(t, (&Inventory{IsActive: true, Count: 1}).IsInStock())
	assert.False(t, (&Inventory{IsActive: false, Count: 1}).IsInStock())
	assert.False(t, (&Inventory{IsActive: true}).IsInStock())
}

func TestGetStockLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "HAT")

	_, err := f.svc.CreateInventory(ctx, &CreateInventoryRequest{ProductID: p.ID, Count: 2, SKU: "HAT-1"}, nil)
	require.NoError(t, err)

	level, err := f.svc.GetStockLevel(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, level.Stock)
	assert.Equal(t, 2, level.Computed)
	assert.Equal(t, 1, level.Variants)
	assert.True(t, level.InSync)
}
