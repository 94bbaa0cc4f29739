package recommendation

import (
	"context"
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
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:recommendation_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&product.Category{}, &product.Product{}, &product.ProductImage{},
		&cart.Cart{}, &cart.CartItem{},
	))
	cfg := &config.Config{Recommendation: config.RecommendationConfig{DefaultLimit: 6, MaxLimit: 50}}
	return NewService(db, cfg, logger.Discard()), db
}

func seed(t *testing.T, db *gorm.DB, sku string, categoryID *uint, sales int) *product.Product {
	t.Helper()
	p := &product.Product{
		SKU:        sku,
		Name:       sku,
		Price:      decimal.RequireFromString("5.00"),
		CategoryID: categoryID,
		SalesCount: sales,
		Status:     product.StatusPublished,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestServiceRecommendsFromCart(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	shirts := &product.Category{Name: "Shirts", IsActive: true}
	mugs := &product.Category{Name: "Mugs", IsActive: true}
	require.NoError(t, db.Create(shirts).Error)
	require.NoError(t, db.Create(mugs).Error)

	inCart := seed(t, db, "SHIRT-1", &shirts.ID, 1)
	shirt2 := seed(t, db, "SHIRT-2", &shirts.ID, 3)
	mug := seed(t, db, "MUG-1", &mugs.ID, 100)

	userCart := cart.Cart{UserID: 1}
	require.NoError(t, db.Create(&userCart).Error)
	require.NoError(t, db.Create(&cart.CartItem{CartID: userCart.ID, ProductID: inCart.ID, Quantity: 1}).Error)

	user := uint(1)
	resp, err := svc.Recommend(ctx, &user, &Request{Kind: KindCart, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []uint{shirt2.ID, mug.ID}, ids(resp.Products))
	assert.Equal(t, 2, resp.Count)

	anon, err := svc.Recommend(ctx, nil, &Request{})
	require.NoError(t, err)
	assert.Equal(t, KindCart, anon.Kind)
	assert.Equal(t, []uint{mug.ID, shirt2.ID, inCart.ID}, ids(anon.Products))

	stranger := uint(2)
	noCart, err := svc.Recommend(ctx, &stranger, &Request{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{mug.ID}, ids(noCart.Products))
}

func TestServiceRelatedAndValidation(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	shirts := &product.Category{Name: "Shirts", IsActive: true}
	require.NoError(t, db.Create(shirts).Error)
	a := seed(t, db, "A", &shirts.ID, 1)
	b := seed(t, db, "B", &shirts.ID, 2)
	c := seed(t, db, "C", nil, 9)

	related, err := svc.RelatedTo(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, ids(related))

	unknown, err := svc.RelatedTo(ctx, 999, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID, b.ID}, ids(unknown))

	_, err = svc.Recommend(ctx, nil, &Request{Kind: KindRelated})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = svc.Recommend(ctx, nil, &Request{Kind: "trending"})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	hot, err := svc.Recommend(ctx, nil, &Request{Kind: KindHot, Limit: 500})
	require.NoError(t, err)
	assert.Len(t, hot.Products, 3)
}
