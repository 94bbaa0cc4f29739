package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/domain/user"
	"github.com/your-org/storefront/internal/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newMigration(t *testing.T) (*Migration, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:migration_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		Security:  config.SecurityConfig{BcryptCost: 4},
		Inventory: config.InventoryConfig{StockIncludesInactive: true},
	}
	m := NewMigration(db, cfg, logger.Discard())
	require.NoError(t, m.RunAutoMigrations())
	require.NoError(t, m.CreateIndexes())
	return m, db
}

func TestSeedIsIdempotent(t *testing.T) {
	m, db := newMigration(t)

	require.NoError(t, m.SeedInitialData())
	require.NoError(t, m.SeedInitialData())

	var products, users, carts int64
	require.NoError(t, db.Model(&product.Product{}).Count(&products).Error)
	require.NoError(t, db.Model(&user.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&cart.Cart{}).Count(&carts).Error)
	assert.Equal(t, int64(len(seedProducts)), products)
	assert.Equal(t, int64(2), users)
	assert.Equal(t, users, carts)

	var tee product.Product
	require.NoError(t, db.Where("sku = ?", "TEE-CLASSIC").First(&tee).Error)
	assert.Equal(t, 45, tee.Stock)
	assert.True(t, tee.IsPublished())

	var admin user.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&admin).Error)
	assert.True(t, admin.IsAdmin)

	require.NoError(t, m.GetTableInfo())
}

func TestVariantIndexTreatsNullsAsEqual(t *testing.T) {
	m, db := newMigration(t)
	require.NoError(t, m.SeedInitialData())

	var mug product.Product
	require.NoError(t, db.Where("sku = ?", "MUG-ENAMEL").First(&mug).Error)

	dup := inventory.Inventory{ProductID: mug.ID, Count: 1, SKU: "MUG-ENAMEL-2", IsActive: true}
	assert.Error(t, db.Create(&dup).Error)
}
