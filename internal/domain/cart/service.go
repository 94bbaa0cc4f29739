// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryCache stores rendered cart summaries. Get returns redis.Nil on a miss.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Service handles cart business logic
type Service struct {
	db      *gorm.DB
	cache   SummaryCache
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Recorder
}

// NewService creates a new cart service. cache may be nil.
func NewService(db *gorm.DB, cache SummaryCache, cfg *config.Config, logger *logrus.Logger, recorder *metrics.Recorder) *Service {
	return &Service{
		db:      db,
		cache:   cache,
		config:  cfg,
		logger:  logger,
		metrics: recorder,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// UpdateCartItemRequest represents update cart item request. Zero or less removes the item.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartItemResponse represents a cart item with product details
type CartItemResponse struct {
	ID        uint             `json:"id"`
	ProductID uint             `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice string           `json:"unit_price"`
	LineTotal string           `json:"line_total"`
	Available bool             `json:"available"`
	Product   *product.Product `json:"product,omitempty"`
	AddedAt   time.Time        `json:"added_at"`
}

// CartResponse represents a shopping cart with items and totals
type CartResponse struct {
	ID         uint               `json:"id"`
	UserID     uint               `json:"user_id"`
	Items      []CartItemResponse `json:"items"`
	ItemCount  int                `json:"item_count"`
	TotalPrice string             `json:"total_price"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// GetOrCreate returns the user's cart, creating an empty one if absent
func (s *Service) GetOrCreate(ctx context.Context, userID uint) (*Cart, error) {
	return GetOrCreate(s.db.WithContext(ctx), userID)
}

// GetOrCreate is the transaction-friendly form used by user registration
func GetOrCreate(db *gorm.DB, userID uint) (*Cart, error) {
	cart := Cart{UserID: userID}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&cart).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	var existing Cart
	if err := db.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	return &existing, nil
}

// LoadItems returns the items of a cart with their products. Soft-deleted
// products are not loaded and leave Product nil.
func LoadItems(db *gorm.DB, cartID uint) ([]CartItem, error) {
	var items []CartItem
	if err := db.Preload("Product").
		Where("cart_id = ?", cartID).
		Order("added_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve cart items: %w", err)
	}
	return items, nil
}

// GetCart retrieves the user's cart with items and totals
func (s *Service) GetCart(ctx context.Context, userID uint) (*CartResponse, error) {
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := LoadItems(s.db.WithContext(ctx), cart.ID)
	if err != nil {
		return nil, err
	}
	totals := s.totals(cart.ID, items)

	response := &CartResponse{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      make([]CartItemResponse, 0, len(items)),
		ItemCount:  totals.ItemCount,
		TotalPrice: totals.TotalPrice.StringFixed(2),
		CreatedAt:  cart.CreatedAt,
		UpdatedAt:  cart.UpdatedAt,
	}

	for i := range items {
		item := items[i]
		unit := decimal.Zero
		if item.Product != nil {
			unit = item.Product.Price
		}
		response.Items = append(response.Items, CartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: unit.StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
			Available: item.Product != nil && item.Product.IsAvailable(),
			Product:   item.Product,
			AddedAt:   item.AddedAt,
		})
	}

	return response, nil
}

// AddItem adds quantity units of a product to the user's cart. An existing
// line is incremented in place. The resulting line quantity must not exceed
// the product's stock; on failure nothing is written.
func (s *Service) AddItem(ctx context.Context, userID uint, req *AddToCartRequest) (*CartItem, error) {
	if req.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var item CartItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCart(tx, cart.ID); err != nil {
			return err
		}
		prod, err := lockProduct(tx, req.ProductID)
		if err != nil {
			return err
		}
		if !prod.IsPublished() {
			return apperr.Validation("product is not available for purchase")
		}

		var current int
		var existing CartItem
		err = tx.Where("cart_id = ? AND product_id = ?", cart.ID, req.ProductID).First(&existing).Error
		switch {
		case err == nil:
			current = existing.Quantity
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("failed to check cart item: %w", err)
		}

		if current+req.Quantity > prod.Stock {
			return apperr.InsufficientStock(prod.ID, current+req.Quantity, prod.Stock)
		}

		upsert := CartItem{CartID: cart.ID, ProductID: req.ProductID, Quantity: req.Quantity}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity": gorm.Expr("cart_items.quantity + ?", req.Quantity),
			}),
		}).Create(&upsert).Error; err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}

		if err := touch(tx, cart.ID); err != nil {
			return err
		}

		return tx.Preload("Product").
			Where("cart_id = ? AND product_id = ?", cart.ID, req.ProductID).
			First(&item).Error
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, cart.ID, "add")
	return &item, nil
}

// SetQuantity sets the quantity of a cart line. Zero or less deletes it.
func (s *Service) SetQuantity(ctx context.Context, userID, itemID uint, quantity int) (*CartItem, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		if err := s.deleteItem(ctx, item); err != nil {
			return nil, err
		}
		return nil, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCart(tx, item.CartID); err != nil {
			return err
		}
		prod, err := lockProduct(tx, item.ProductID)
		if err != nil {
			return err
		}
		if quantity > prod.Stock {
			return apperr.InsufficientStock(prod.ID, quantity, prod.Stock)
		}

		result := tx.Model(&CartItem{}).Where("id = ?", item.ID).Update("quantity", quantity)
		if result.Error != nil {
			return fmt.Errorf("failed to update cart item: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("cart item")
		}
		item.Quantity = quantity
		item.Product = prod
		return touch(tx, item.CartID)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, item.CartID, "set")
	return item, nil
}

// RemoveItem deletes a line from the user's cart
func (s *Service) RemoveItem(ctx context.Context, userID, itemID uint) error {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.deleteItem(ctx, item)
}

// Clear deletes every item of the user's cart; the cart itself remains
func (s *Service) Clear(ctx context.Context, userID uint) error {
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCart(tx, cart.ID); err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return touch(tx, cart.ID)
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, cart.ID, "clear")
	return nil
}

// Summary returns item count and total price, served from the cache when warm
func (s *Service) Summary(ctx context.Context, userID uint) (*Summary, error) {
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := SummaryKey(cart.ID)
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		if err == nil {
			var cached Summary
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.WithError(err).WithField("key", key).Warn("cart summary cache read failed")
		}
	}

	items, err := LoadItems(s.db.WithContext(ctx), cart.ID)
	if err != nil {
		return nil, err
	}
	totals := s.totals(cart.ID, items)
	summary := &Summary{
		ItemCount:  totals.ItemCount,
		TotalPrice: totals.TotalPrice.StringFixed(2),
	}

	if s.cache != nil {
		payload, _ := json.Marshal(summary)
		if err := s.cache.Set(ctx, key, string(payload), s.config.Cart.SummaryCacheTTL); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("cart summary cache write failed")
		}
	}

	return summary, nil
}

// InvalidateProduct drops the cached summaries of every cart holding the product
func (s *Service) InvalidateProduct(ctx context.Context, productID uint) error {
	if s.cache == nil {
		return nil
	}

	var cartIDs []uint
	if err := s.db.WithContext(ctx).Model(&CartItem{}).
		Where("product_id = ?", productID).
		Distinct().
		Pluck("cart_id", &cartIDs).Error; err != nil {
		return fmt.Errorf("failed to find carts for product: %w", err)
	}
	if len(cartIDs) == 0 {
		return nil
	}

	keys := make([]string, len(cartIDs))
	for i, id := range cartIDs {
		keys[i] = SummaryKey(id)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate cart summaries: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"carts":      len(keys),
	}).Debug("cart summaries invalidated")
	return nil
}

// InvalidateCart drops the cached summary of one cart
func (s *Service) InvalidateCart(ctx context.Context, cartID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, SummaryKey(cartID)); err != nil {
		s.logger.WithError(err).WithField("cart_id", cartID).Warn("cart summary cache delete failed")
	}
}

// SummaryKey is the cache key of a cart summary
func SummaryKey(cartID uint) string {
	return fmt.Sprintf("cart:summary:%d", cartID)
}

func (s *Service) ownedItem(ctx context.Context, userID, itemID uint) (*CartItem, error) {
	var item CartItem
	if err := s.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("cart item")
		}
		return nil, fmt.Errorf("failed to retrieve cart item: %w", err)
	}

	var cart Cart
	if err := s.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", item.CartID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("cart item")
		}
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	if cart.UserID != userID {
		return nil, apperr.Forbidden("cart item belongs to another user")
	}
	return &item, nil
}

func (s *Service) deleteItem(ctx context.Context, item *CartItem) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCart(tx, item.CartID); err != nil {
			return err
		}
		result := tx.Delete(&CartItem{}, item.ID)
		if result.Error != nil {
			return fmt.Errorf("failed to remove cart item: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("cart item")
		}
		return touch(tx, item.CartID)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, item.CartID, "remove")
	return nil
}

func (s *Service) totals(cartID uint, items []CartItem) Totals {
	totals := ComputeTotals(items)
	if len(totals.Dangling) > 0 {
		s.logger.WithFields(logrus.Fields{
			"cart_id":  cartID,
			"item_ids": totals.Dangling,
		}).Warn("cart items reference unavailable products")
	}
	return totals
}

func (s *Service) afterMutation(ctx context.Context, cartID uint, op string) {
	s.InvalidateCart(ctx, cartID)
	s.metrics.IncCartMutation(op)
}

func touch(tx *gorm.DB, cartID uint) error {
	if err := tx.Model(&Cart{}).Where("id = ?", cartID).UpdateColumn("updated_at", time.Now().UTC()).Error; err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}

// LockUserCart locks the user's cart row for the rest of tx. Any transaction
// that changes cart items takes this lock before locking products.
// Returns gorm.ErrRecordNotFound when the user has no cart.
func LockUserCart(tx *gorm.DB, userID uint) (*Cart, error) {
	var c Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func lockCart(tx *gorm.DB, cartID uint) (*Cart, error) {
	var c Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", cartID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("cart")
		}
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return &c, nil
}

func lockProduct(tx *gorm.DB, productID uint) (*product.Product, error) {
	var prod product.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", productID).First(&prod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &prod, nil
}
