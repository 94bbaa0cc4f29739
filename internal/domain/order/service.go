// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"github.com/your-org/storefront/internal/pkg/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartInvalidator drops cached cart state once checkout has emptied a cart
type CartInvalidator interface {
	InvalidateCart(ctx context.Context, cartID uint)
}

// Service handles order business logic
type Service struct {
	db      *gorm.DB
	config  *config.Config
	carts   CartInvalidator
	logger  *logrus.Logger
	metrics *metrics.Recorder
}

// NewService creates a new order service. carts may be nil.
func NewService(db *gorm.DB, cfg *config.Config, carts CartInvalidator, logger *logrus.Logger, recorder *metrics.Recorder) *Service {
	return &Service{
		db:      db,
		config:  cfg,
		carts:   carts,
		logger:  logger,
		metrics: recorder,
	}
}

// ShippingInfo is the recipient snapshot stored on an order
type ShippingInfo struct {
	RecipientName    string `json:"recipient_name" binding:"required" validate:"required,max=200"`
	RecipientPhone   string `json:"recipient_phone" binding:"required" validate:"required,max=30"`
	RecipientAddress string `json:"recipient_address" binding:"required" validate:"required,max=1000"`
	Notes            string `json:"notes" validate:"max=2000"`
}

// UpdateStatusRequest represents an admin status change
type UpdateStatusRequest struct {
	Status  OrderStatus `json:"status" binding:"required"`
	Comment string      `json:"comment"`
}

// CancelOrderRequest represents a customer cancellation
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page      int         `form:"page,default=1"`
	Limit     int         `form:"limit,default=20"`
	Status    OrderStatus `form:"status"`
	UserID    uint        `form:"user_id"`
	SortBy    string      `form:"sort_by,default=created_at"`
	SortOrder string      `form:"sort_order,default=desc"`
	DateFrom  string      `form:"date_from"`
	DateTo    string      `form:"date_to"`
}

// OrderResponse represents order response with pagination
type OrderResponse struct {
	Orders     []Order            `json:"orders"`
	Pagination product.Pagination `json:"pagination"`
}

// CreateOrder turns the user's cart into an order. The order, its items, the
// sales counters and the emptied cart are written in one transaction; on any
// failure the cart is left as it was.
func (s *Service) CreateOrder(ctx context.Context, userID uint, info *ShippingInfo) (*Order, error) {
	order, cartID, err := s.createOrder(ctx, userID, info)
	if err != nil {
		if typed := apperr.As(err); typed != nil {
			s.metrics.IncCheckoutFailure(string(typed.Code()))
		}
		return nil, err
	}

	if s.carts != nil {
		s.carts.InvalidateCart(ctx, cartID)
	}
	s.metrics.IncOrderCreated()
	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      userID,
		"total_price":  order.TotalPrice.StringFixed(2),
	}).Info("order created")

	return s.GetOrder(ctx, order.ID)
}

func (s *Service) createOrder(ctx context.Context, userID uint, info *ShippingInfo) (*Order, uint, error) {
	if info == nil {
		return nil, 0, apperr.Validation("shipping info is required")
	}
	normalized := ShippingInfo{
		RecipientName:    strings.TrimSpace(info.RecipientName),
		RecipientPhone:   strings.TrimSpace(info.RecipientPhone),
		RecipientAddress: strings.TrimSpace(info.RecipientAddress),
		Notes:            strings.TrimSpace(info.Notes),
	}
	if err := validation.Struct(normalized); err != nil {
		return nil, 0, err
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	// The cart row lock serializes checkout against cart edits and a second
	// checkout of the same cart; a waiting checkout then sees an empty cart.
	userCart, err := cart.LockUserCart(tx, userID)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperr.EmptyCart()
		}
		return nil, 0, apperr.OrderCreationFailed(err, "failed to lock cart")
	}

	// Products are locked in id order so concurrent checkouts cannot deadlock.
	var items []cart.CartItem
	if err := tx.Where("cart_id = ?", userCart.ID).Order("product_id ASC").Find(&items).Error; err != nil {
		tx.Rollback()
		return nil, 0, apperr.OrderCreationFailed(err, "failed to load cart items")
	}
	if len(items) == 0 {
		tx.Rollback()
		return nil, 0, apperr.EmptyCart()
	}

	for i := range items {
		prod, err := lockProduct(tx, items[i].ProductID)
		if err != nil {
			tx.Rollback()
			return nil, 0, err
		}
		if !prod.IsPublished() {
			tx.Rollback()
			return nil, 0, apperr.OrderCreationFailed(nil, fmt.Sprintf("product %s is no longer available", prod.Name))
		}
		if items[i].Quantity > prod.Stock {
			tx.Rollback()
			return nil, 0, apperr.InsufficientStock(prod.ID, items[i].Quantity, prod.Stock)
		}
		items[i].Product = prod
	}

	totals := cart.ComputeTotals(items)

	order := Order{
		OrderNumber:      "PENDING-" + uuid.NewString(),
		UserID:           userID,
		Status:           OrderStatusPending,
		TotalPrice:       totals.TotalPrice,
		RecipientName:    normalized.RecipientName,
		RecipientPhone:   normalized.RecipientPhone,
		RecipientAddress: normalized.RecipientAddress,
		Notes:            normalized.Notes,
	}
	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, 0, apperr.OrderCreationFailed(err, "failed to create order")
	}

	order.OrderNumber = order.GenerateOrderNumber()
	if err := tx.Model(&Order{}).Where("id = ?", order.ID).UpdateColumn("order_number", order.OrderNumber).Error; err != nil {
		tx.Rollback()
		return nil, 0, apperr.OrderCreationFailed(err, "failed to assign order number")
	}

	for _, item := range items {
		orderItem := OrderItem{
			OrderID:   order.ID,
			ProductID: item.ProductID,
			SKU:       item.Product.SKU,
			Name:      item.Product.Name,
			Price:     item.Product.Price,
			Quantity:  item.Quantity,
		}
		if err := tx.Create(&orderItem).Error; err != nil {
			tx.Rollback()
			return nil, 0, apperr.OrderCreationFailed(err, "failed to create order item")
		}

		if err := tx.Model(&product.Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("sales_count", gorm.Expr("sales_count + ?", item.Quantity)).Error; err != nil {
			tx.Rollback()
			return nil, 0, apperr.OrderCreationFailed(err, "failed to update sales count")
		}
	}

	if err := recordHistory(tx, order.ID, OrderStatusPending, "Order created", userID); err != nil {
		tx.Rollback()
		return nil, 0, apperr.OrderCreationFailed(err, "failed to create status history")
	}

	cleared := tx.Where("cart_id = ?", userCart.ID).Delete(&cart.CartItem{})
	if cleared.Error != nil {
		tx.Rollback()
		return nil, 0, apperr.OrderCreationFailed(cleared.Error, "failed to clear cart")
	}
	if cleared.RowsAffected != int64(len(items)) {
		tx.Rollback()
		return nil, 0, apperr.OrderCreationFailed(nil, fmt.Sprintf("cart changed during checkout: expected %d items, cleared %d", len(items), cleared.RowsAffected))
	}
	if err := tx.Model(&cart.Cart{}).Where("id = ?", userCart.ID).UpdateColumn("updated_at", time.Now().UTC()).Error; err != nil {
		tx.Rollback()
		return nil, 0, apperr.OrderCreationFailed(err, "failed to touch cart")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, 0, apperr.OrderCreationFailed(err, "failed to commit order transaction")
	}

	return &order, userCart.ID, nil
}

// ListOrders retrieves orders with filtering and pagination
func (s *Service) ListOrders(ctx context.Context, req *OrderListRequest) (*OrderResponse, error) {
	var orders []Order
	var total int64

	req.Page, req.Limit = product.NormalizePage(req.Page, req.Limit)

	query := s.db.WithContext(ctx).Model(&Order{})

	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("unknown order status %q", req.Status))
		}
		query = query.Where("status = ?", req.Status)
	}
	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.DateFrom != "" {
		from, err := time.Parse("2006-01-02", req.DateFrom)
		if err != nil {
			return nil, apperr.Validation("date_from must be YYYY-MM-DD")
		}
		query = query.Where("created_at >= ?", from)
	}
	if req.DateTo != "" {
		to, err := time.Parse("2006-01-02", req.DateTo)
		if err != nil {
			return nil, apperr.Validation("date_to must be YYYY-MM-DD")
		}
		query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.
		Preload("Items").
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Offset(offset).
		Limit(req.Limit).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return &OrderResponse{
		Orders:     orders,
		Pagination: product.NewPagination(req.Page, req.Limit, total),
	}, nil
}

// ListUserOrders retrieves orders for a specific user, newest first
func (s *Service) ListUserOrders(ctx context.Context, userID uint, page, limit int) (*OrderResponse, error) {
	return s.ListOrders(ctx, &OrderListRequest{
		Page:      page,
		Limit:     limit,
		UserID:    userID,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
}

// GetOrder retrieves a single order by ID
func (s *Service) GetOrder(ctx context.Context, id uint) (*Order, error) {
	var order Order
	result := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Where("id = ?", id).
		First(&order)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}

	return &order, nil
}

// GetUserOrder retrieves an order on behalf of its owner
func (s *Service) GetUserOrder(ctx context.Context, userID, id uint) (*Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.Forbidden("order belongs to another user")
	}
	return order, nil
}

// GetOrderByNumber retrieves a single order by order number
func (s *Service) GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var order Order
	if err := s.db.WithContext(ctx).Select("id").Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return s.GetOrder(ctx, order.ID)
}

// UpdateStatus moves an order along the status machine. Unknown targets and
// illegal transitions are rejected and the order is left unchanged.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, status OrderStatus, comment string, actorID uint) (*Order, error) {
	if err := s.transition(ctx, orderID, status, comment, actorID, nil); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// CancelOrder cancels an order on behalf of its owner. The sales counters
// bumped at checkout are reverted; inventory is not restocked.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uint, reason string) (*Order, error) {
	owner := userID
	comment := "Order cancelled"
	if reason = strings.TrimSpace(reason); reason != "" {
		comment = fmt.Sprintf("Order cancelled: %s", reason)
	}
	if err := s.transition(ctx, orderID, OrderStatusCancelled, comment, userID, &owner); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Service) transition(ctx context.Context, orderID uint, status OrderStatus, comment string, actorID uint, owner *uint) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var order Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID).First(&order).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("order")
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if owner != nil && order.UserID != *owner {
		tx.Rollback()
		return apperr.Forbidden("order belongs to another user")
	}

	if !order.Status.CanTransitionTo(status) {
		tx.Rollback()
		return apperr.InvalidStatus(string(order.Status), string(status))
	}

	updates := map[string]interface{}{"status": status}
	now := time.Now().UTC()
	switch status {
	case OrderStatusPaid:
		updates["paid_at"] = now
	case OrderStatusShipped:
		updates["shipped_at"] = now
	case OrderStatusDelivered:
		updates["delivered_at"] = now
	case OrderStatusCancelled:
		updates["cancelled_at"] = now
	}

	result := tx.Model(&Order{}).Where("id = ? AND status = ?", order.ID, order.Status).Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return apperr.InvalidStatus(string(order.Status), string(status))
	}

	if status == OrderStatusCancelled {
		if err := revertSales(tx, order.ID); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := recordHistory(tx, order.ID, status, comment, actorID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create status history: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit status change: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     order.Status,
		"to":       status,
		"actor_id": actorID,
	}).Info("order status changed")
	return nil
}

func revertSales(tx *gorm.DB, orderID uint) error {
	var items []OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	for _, item := range items {
		if err := tx.Unscoped().Model(&product.Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("sales_count", gorm.Expr("CASE WHEN sales_count > ? THEN sales_count - ? ELSE 0 END", item.Quantity, item.Quantity)).Error; err != nil {
			return fmt.Errorf("failed to revert sales count: %w", err)
		}
	}
	return nil
}

func recordHistory(tx *gorm.DB, orderID uint, status OrderStatus, comment string, actorID uint) error {
	return tx.Create(&OrderStatusHistory{
		OrderID:   orderID,
		Status:    status,
		Comment:   comment,
		CreatedBy: actorID,
	}).Error
}

func lockProduct(tx *gorm.DB, productID uint) (*product.Product, error) {
	var prod product.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", productID).First(&prod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.OrderCreationFailed(nil, fmt.Sprintf("product %d is no longer available", productID))
		}
		return nil, apperr.OrderCreationFailed(err, "failed to lock product")
	}
	return &prod, nil
}

func buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"total_price":  true,
		"status":       true,
		"order_number": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, id %s", sortBy, sortOrder, sortOrder)
}
