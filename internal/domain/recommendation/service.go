// internal/domain/recommendation/service.go
package recommendation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"gorm.io/gorm"
)

// Kind selects a recommendation mode
type Kind string

const (
	KindCart     Kind = "cart"
	KindHot      Kind = "hot"
	KindNew      Kind = "new"
	KindFeatured Kind = "featured"
	KindRelated  Kind = "related"
)

// Service loads catalog and cart snapshots and runs the recommenders over them
type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new recommendation service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

// Request represents recommendation query parameters
type Request struct {
	Kind      Kind `form:"type,default=cart"`
	ProductID uint `form:"product_id"`
	Limit     int  `form:"limit"`
}

// Response is a ranked recommendation list
type Response struct {
	Kind     Kind              `json:"type"`
	Count    int               `json:"count"`
	Products []product.Product `json:"recommendations"`
}

// Recommend answers a recommendation request. userID is nil for anonymous shoppers.
func (s *Service) Recommend(ctx context.Context, userID *uint, req *Request) (*Response, error) {
	limit := s.clampLimit(req.Limit)
	kind := req.Kind
	if kind == "" {
		kind = KindCart
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var products []product.Product
	switch kind {
	case KindHot:
		products = Popular(catalog, limit)
	case KindNew:
		products = Newest(catalog, limit)
	case KindFeatured:
		products = Featured(catalog, limit)
	case KindRelated:
		if req.ProductID == 0 {
			return nil, apperr.Validation("product_id is required for related recommendations")
		}
		products, err = s.related(ctx, catalog, req.ProductID, limit)
		if err != nil {
			return nil, err
		}
	case KindCart:
		snapshot, err := s.cartSnapshot(ctx, userID)
		if err != nil {
			return nil, err
		}
		products = Recommend(snapshot, catalog, limit)
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown recommendation type %q", kind))
	}

	return &Response{Kind: kind, Count: len(products), Products: products}, nil
}

// RelatedTo returns products related to productID
func (s *Service) RelatedTo(ctx context.Context, productID uint, limit int) ([]product.Product, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return s.related(ctx, catalog, productID, s.clampLimit(limit))
}

// related treats an unknown or unpublished target like the popular list
func (s *Service) related(ctx context.Context, catalog []product.Product, productID uint, limit int) ([]product.Product, error) {
	var target product.Product
	err := s.db.WithContext(ctx).Where("id = ? AND status = ?", productID, product.StatusPublished).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Popular(catalog, limit), nil
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return Related(target, catalog, limit), nil
}

func (s *Service) loadCatalog(ctx context.Context) ([]product.Product, error) {
	var catalog []product.Product
	if err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Images", "is_main = ?", true).
		Where("status = ?", product.StatusPublished).
		Order("id ASC").
		Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return catalog, nil
}

// cartSnapshot returns nil for anonymous users and users without a cart
func (s *Service) cartSnapshot(ctx context.Context, userID *uint) (*CartSnapshot, error) {
	if userID == nil {
		return nil, nil
	}

	var userCart cart.Cart
	err := s.db.WithContext(ctx).Where("user_id = ?", *userID).First(&userCart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	items, err := cart.LoadItems(s.db.WithContext(ctx), userCart.ID)
	if err != nil {
		return nil, err
	}

	products := make([]product.Product, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			s.logger.WithField("cart_item_id", item.ID).Debug("skipping cart item with unavailable product")
			continue
		}
		products = append(products, *item.Product)
	}
	return NewCartSnapshot(products), nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.config.Recommendation.DefaultLimit
	}
	if limit > s.config.Recommendation.MaxLimit {
		return s.config.Recommendation.MaxLimit
	}
	return limit
}
