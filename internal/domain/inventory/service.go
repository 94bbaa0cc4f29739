// internal/domain/inventory/service.go
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles inventory business logic. Every write to an inventory row
// recomputes the owning product's stock inside the same transaction.
type Service struct {
	db      *gorm.DB
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Recorder
}

// NewService creates a new inventory service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger, recorder *metrics.Recorder) *Service {
	return &Service{
		db:      db,
		config:  cfg,
		logger:  logger,
		metrics: recorder,
	}
}

// CreateInventoryRequest represents inventory row creation data
type CreateInventoryRequest struct {
	ProductID uint             `json:"product_id" binding:"required"`
	ColorID   *uint            `json:"color_id"`
	SizeID    *uint            `json:"size_id"`
	Count     int              `json:"count" binding:"min=0"`
	Price     *decimal.Decimal `json:"price"`
	SKU       string           `json:"sku" binding:"required,max=100"`
	Barcode   string           `json:"barcode" binding:"max=100"`
	IsActive  *bool            `json:"is_active"`
}

// UpdateInventoryRequest represents inventory row update data
type UpdateInventoryRequest struct {
	Count      *int             `json:"count" binding:"omitempty,min=0"`
	Price      *decimal.Decimal `json:"price"`
	ClearPrice bool             `json:"clear_price"`
	SKU        *string          `json:"sku" binding:"omitempty,max=100"`
	Barcode    *string          `json:"barcode" binding:"omitempty,max=100"`
	IsActive   *bool            `json:"is_active"`
	Notes      string           `json:"notes"`
}

// AdjustCountRequest moves an inventory count by a signed delta
type AdjustCountRequest struct {
	Delta  int            `json:"delta" binding:"required"`
	Reason MovementReason `json:"reason" binding:"required"`
	Notes  string         `json:"notes"`
}

// StockLevel reports the denormalized and freshly computed stock of a product
type StockLevel struct {
	ProductID uint `json:"product_id"`
	Stock     int  `json:"stock"`
	Computed  int  `json:"computed"`
	Variants  int  `json:"variants"`
	InSync    bool `json:"in_sync"`
}

// RecalculateStock sets the product's stock to the sum of its inventory counts.
// It must run on the transaction that performed the inventory write. Only the
// stock column is written; zero rows yield zero.
func RecalculateStock(tx *gorm.DB, productID uint, includeInactive bool) (int, error) {
	total, err := sumCounts(tx, productID, includeInactive)
	if err != nil {
		return 0, err
	}

	if err := tx.Unscoped().Model(&product.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", total).Error; err != nil {
		return 0, fmt.Errorf("failed to update product stock: %w", err)
	}

	return total, nil
}

func sumCounts(db *gorm.DB, productID uint, includeInactive bool) (int, error) {
	query := db.Model(&Inventory{}).Where("product_id = ?", productID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Select("COALESCE(SUM(count), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum inventory counts: %w", err)
	}
	return int(total), nil
}

// CreateInventory creates an inventory row and refreshes product stock
func (s *Service) CreateInventory(ctx context.Context, req *CreateInventoryRequest, actorID *uint) (*Inventory, error) {
	if req.Count < 0 {
		return nil, apperr.Validation("count cannot be negative")
	}
	if strings.TrimSpace(req.SKU) == "" {
		return nil, apperr.Validation("sku is required")
	}
	if req.Price != nil {
		if err := product.ValidatePrice(*req.Price); err != nil {
			return nil, err
		}
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	item := Inventory{
		ProductID: req.ProductID,
		ColorID:   req.ColorID,
		SizeID:    req.SizeID,
		Count:     req.Count,
		SKU:       strings.TrimSpace(req.SKU),
		Barcode:   req.Barcode,
		IsActive:  isActive,
	}
	if req.Price != nil {
		item.Price = decimal.NewNullDecimal(*req.Price)
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := lockProduct(tx, req.ProductID, false); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.checkLookups(tx, req.ColorID, req.SizeID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := ensureVariantFree(tx, req.ProductID, req.ColorID, req.SizeID, 0); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := ensureSKUFree(tx, item.SKU, 0); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Create(&item).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create inventory: %w", err)
	}

	if item.Count > 0 {
		if err := recordMovement(tx, &item, item.Count, 0, ReasonInitial, "", actorID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if _, err := s.recalculate(tx, item.ProductID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit inventory: %w", err)
	}

	return s.GetInventory(ctx, item.ID)
}

// UpdateInventory updates an inventory row and refreshes product stock
func (s *Service) UpdateInventory(ctx context.Context, id uint, req *UpdateInventoryRequest, actorID *uint) (*Inventory, error) {
	if req.Count != nil && *req.Count < 0 {
		return nil, apperr.Validation("count cannot be negative")
	}
	if req.Price != nil {
		if err := product.ValidatePrice(*req.Price); err != nil {
			return nil, err
		}
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	item, err := lockInventory(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := lockProduct(tx, item.ProductID, true); err != nil {
		tx.Rollback()
		return nil, err
	}

	updates := make(map[string]interface{})
	previous := item.Count

	if req.Count != nil && *req.Count != item.Count {
		updates["count"] = *req.Count
	}
	if req.ClearPrice {
		updates["price"] = nil
	} else if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.SKU != nil {
		sku := strings.TrimSpace(*req.SKU)
		if sku == "" {
			tx.Rollback()
			return nil, apperr.Validation("sku cannot be empty")
		}
		if err := ensureSKUFree(tx, sku, item.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
		updates["sku"] = sku
	}
	if req.Barcode != nil {
		updates["barcode"] = *req.Barcode
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := tx.Model(&Inventory{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to update inventory: %w", err)
		}
	}

	if req.Count != nil && *req.Count != previous {
		item.Count = *req.Count
		if err := recordMovement(tx, item, *req.Count-previous, previous, ReasonAdjustment, req.Notes, actorID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if _, err := s.recalculate(tx, item.ProductID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit inventory: %w", err)
	}

	return s.GetInventory(ctx, item.ID)
}

// AdjustCount applies a signed delta to an inventory count. A result below
// zero is rejected and nothing changes.
func (s *Service) AdjustCount(ctx context.Context, id uint, req *AdjustCountRequest, actorID *uint) (*Inventory, error) {
	if req.Delta == 0 {
		return nil, apperr.Validation("delta cannot be zero")
	}
	if !req.Reason.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown movement reason %q", req.Reason))
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	item, err := lockInventory(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := lockProduct(tx, item.ProductID, true); err != nil {
		tx.Rollback()
		return nil, err
	}

	previous := item.Count
	next := previous + req.Delta
	if next < 0 {
		tx.Rollback()
		return nil, apperr.InsufficientStock(item.ProductID, -req.Delta, previous)
	}

	if err := tx.Model(&Inventory{}).Where("id = ?", item.ID).Update("count", next).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to adjust inventory: %w", err)
	}
	item.Count = next

	if err := recordMovement(tx, item, req.Delta, previous, req.Reason, req.Notes, actorID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := s.recalculate(tx, item.ProductID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit inventory: %w", err)
	}

	return s.GetInventory(ctx, item.ID)
}

// DeleteInventory removes an inventory row and refreshes product stock
func (s *Service) DeleteInventory(ctx context.Context, id uint, actorID *uint) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	item, err := lockInventory(tx, id)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := lockProduct(tx, item.ProductID, true); err != nil {
		tx.Rollback()
		return err
	}

	if item.Count > 0 {
		if err := recordMovement(tx, item, -item.Count, item.Count, ReasonRemoval, "", actorID); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Delete(&Inventory{}, item.ID).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete inventory: %w", err)
	}

	if _, err := s.recalculate(tx, item.ProductID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit inventory: %w", err)
	}
	return nil
}

// GetInventory retrieves a single inventory row with its color and size
func (s *Service) GetInventory(ctx context.Context, id uint) (*Inventory, error) {
	var item Inventory
	err := s.db.WithContext(ctx).
		Preload("Color").
		Preload("Size").
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("inventory")
		}
		return nil, fmt.Errorf("failed to retrieve inventory: %w", err)
	}
	return &item, nil
}

// ListProductInventory lists the inventory rows of a product
func (s *Service) ListProductInventory(ctx context.Context, productID uint, activeOnly bool) ([]Inventory, error) {
	var items []Inventory
	query := s.db.WithContext(ctx).
		Preload("Color").
		Preload("Size").
		Where("product_id = ?", productID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve inventory: %w", err)
	}
	return items, nil
}

// ListMovements returns the count history of an inventory row, newest first
func (s *Service) ListMovements(ctx context.Context, inventoryID uint, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var movements []Movement
	if err := s.db.WithContext(ctx).
		Where("inventory_id = ?", inventoryID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve inventory movements: %w", err)
	}
	return movements, nil
}

// GetStockLevel compares a product's stored stock with the sum of its rows
func (s *Service) GetStockLevel(ctx context.Context, productID uint) (*StockLevel, error) {
	db := s.db.WithContext(ctx)

	var p product.Product
	if err := db.Select("id", "stock").Where("id = ?", productID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	computed, err := sumCounts(db, productID, s.config.Inventory.StockIncludesInactive)
	if err != nil {
		return nil, err
	}

	var variants int64
	if err := db.Model(&Inventory{}).Where("product_id = ?", productID).Count(&variants).Error; err != nil {
		return nil, fmt.Errorf("failed to count inventory rows: %w", err)
	}

	return &StockLevel{
		ProductID: productID,
		Stock:     p.Stock,
		Computed:  computed,
		Variants:  int(variants),
		InSync:    p.Stock == computed,
	}, nil
}

// ReconcileAll recomputes the stock of every product and returns how many changed
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	var products []product.Product
	if err := s.db.WithContext(ctx).Unscoped().Select("id", "stock").Find(&products).Error; err != nil {
		return 0, fmt.Errorf("failed to load products: %w", err)
	}

	changed := 0
	for _, p := range products {
		var total int
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lockProduct(tx, p.ID, true); err != nil {
				return err
			}
			var err error
			total, err = s.recalculate(tx, p.ID)
			return err
		})
		if err != nil {
			return changed, err
		}
		if total != p.Stock {
			changed++
			s.logger.WithFields(logrus.Fields{
				"product_id": p.ID,
				"previous":   p.Stock,
				"stock":      total,
			}).Warn("product stock was out of sync with inventory")
		}
	}
	return changed, nil
}

func (s *Service) recalculate(tx *gorm.DB, productID uint) (int, error) {
	total, err := RecalculateStock(tx, productID, s.config.Inventory.StockIncludesInactive)
	if err != nil {
		return 0, err
	}
	s.metrics.IncStockRecalculation()
	s.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"stock":      total,
	}).Debug("product stock recalculated")
	return total, nil
}

func (s *Service) checkLookups(tx *gorm.DB, colorID, sizeID *uint) error {
	if colorID != nil {
		var count int64
		if err := tx.Model(&product.Color{}).Where("id = ?", *colorID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check color: %w", err)
		}
		if count == 0 {
			return apperr.Validation("color not found")
		}
	}
	if sizeID != nil {
		var count int64
		if err := tx.Model(&product.Size{}).Where("id = ?", *sizeID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check size: %w", err)
		}
		if count == 0 {
			return apperr.Validation("size not found")
		}
	}
	return nil
}

func lockProduct(tx *gorm.DB, productID uint, includeDeleted bool) error {
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id")
	if includeDeleted {
		query = query.Unscoped()
	}
	var p product.Product
	if err := query.Where("id = ?", productID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("product")
		}
		return fmt.Errorf("failed to lock product: %w", err)
	}
	return nil
}

func lockInventory(tx *gorm.DB, id uint) (*Inventory, error) {
	var item Inventory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("inventory")
		}
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	return &item, nil
}

// ensureVariantFree treats NULL color/size as a concrete value when checking
// (product, color, size) uniqueness.
func ensureVariantFree(tx *gorm.DB, productID uint, colorID, sizeID *uint, excludeID uint) error {
	query := tx.Model(&Inventory{}).Where("product_id = ?", productID)
	if colorID == nil {
		query = query.Where("color_id IS NULL")
	} else {
		query = query.Where("color_id = ?", *colorID)
	}
	if sizeID == nil {
		query = query.Where("size_id IS NULL")
	} else {
		query = query.Where("size_id = ?", *sizeID)
	}
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check variant: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("inventory for this product, color and size already exists")
	}
	return nil
}

func ensureSKUFree(tx *gorm.DB, sku string, excludeID uint) error {
	query := tx.Model(&Inventory{}).Where("sku = ?", sku)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("inventory with SKU %s already exists", sku))
	}
	return nil
}

func recordMovement(tx *gorm.DB, item *Inventory, delta, previous int, reason MovementReason, notes string, actorID *uint) error {
	movement := Movement{
		InventoryID:   item.ID,
		ProductID:     item.ProductID,
		Delta:         delta,
		PreviousCount: previous,
		NewCount:      previous + delta,
		Reason:        reason,
		Notes:         notes,
		CreatedBy:     actorID,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return fmt.Errorf("failed to record inventory movement: %w", err)
	}
	return nil
}
