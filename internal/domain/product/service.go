// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"gorm.io/gorm"
)

// PriceChangeNotifier is told about product changes that can alter cart totals
type PriceChangeNotifier interface {
	InvalidateProduct(ctx context.Context, productID uint) error
}

// Service handles product business logic
type Service struct {
	db       *gorm.DB
	config   *config.Config
	logger   *logrus.Logger
	notifier PriceChangeNotifier
}

// NewService creates a new product service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

// SetPriceChangeNotifier registers the collaborator invoked after price changes and deletions
func (s *Service) SetPriceChangeNotifier(n PriceChangeNotifier) {
	s.notifier = n
}

// ProductListRequest represents product list query parameters
type ProductListRequest struct {
	Page       int    `form:"page,default=1"`
	Limit      int    `form:"limit,default=20"`
	CategoryID uint   `form:"category_id"`
	Status     string `form:"status"`
	Search     string `form:"search"`
	SortBy     string `form:"sort_by,default=created_at"`
	SortOrder  string `form:"sort_order,default=desc"`
	MinPrice   string `form:"min_price"`
	MaxPrice   string `form:"max_price"`
	IsFeatured *bool  `form:"is_featured"`
}

// ProductCreateRequest represents product creation data
type ProductCreateRequest struct {
	SKU         string          `json:"sku" binding:"required,max=100"`
	Name        string          `json:"name" binding:"required,max=200"`
	Slug        string          `json:"slug" binding:"max=200"`
	Description string          `json:"description"`
	ShortDesc   string          `json:"short_description" binding:"max=500"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  *uint           `json:"category_id"`
	Status      Status          `json:"status"`
	IsFeatured  bool            `json:"is_featured"`
}

// ProductUpdateRequest represents product update data
type ProductUpdateRequest struct {
	Name          *string          `json:"name" binding:"omitempty,max=200"`
	Slug          *string          `json:"slug" binding:"omitempty,max=200"`
	Description   *string          `json:"description"`
	ShortDesc     *string          `json:"short_description" binding:"omitempty,max=500"`
	Price         *decimal.Decimal `json:"price"`
	CategoryID    *uint            `json:"category_id"`
	ClearCategory bool             `json:"clear_category"`
	Status        *Status          `json:"status"`
	IsFeatured    *bool            `json:"is_featured"`
}

// ProductListResponse represents product list with pagination
type ProductListResponse struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPagination computes pagination info for a page of results
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// NormalizePage clamps page and limit to sane bounds
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

var priceCeiling = decimal.RequireFromString("99999999.99")

// ValidatePrice checks that a price fits numeric(10,2) and is positive
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return apperr.Validation("price must be greater than zero")
	}
	if !price.Equal(price.Round(2)) {
		return apperr.Validation("price must have at most two decimal places")
	}
	if price.GreaterThan(priceCeiling) {
		return apperr.Validation("price exceeds the maximum allowed value")
	}
	return nil
}

// ListProducts retrieves products with filtering and pagination
func (s *Service) ListProducts(ctx context.Context, req *ProductListRequest) (*ProductListResponse, error) {
	var products []Product
	var total int64

	req.Page, req.Limit = NormalizePage(req.Page, req.Limit)

	query := s.db.WithContext(ctx).Model(&Product{}).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_main DESC, sort_order ASC, id ASC")
		})

	if req.CategoryID > 0 {
		query = query.Where("category_id = ?", req.CategoryID)
	}

	if req.Status != "" {
		if !Status(req.Status).Valid() {
			return nil, apperr.Validation(fmt.Sprintf("unknown product status %q", req.Status))
		}
		query = query.Where("status = ?", req.Status)
	}

	if req.Search != "" {
		search := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(sku) LIKE ?)", search, search, search)
	}

	if req.MinPrice != "" {
		minPrice, err := decimal.NewFromString(req.MinPrice)
		if err != nil {
			return nil, apperr.Validation("min_price must be a decimal number")
		}
		query = query.Where("price >= ?", minPrice)
	}

	if req.MaxPrice != "" {
		maxPrice, err := decimal.NewFromString(req.MaxPrice)
		if err != nil {
			return nil, apperr.Validation("max_price must be a decimal number")
		}
		query = query.Where("price <= ?", maxPrice)
	}

	if req.IsFeatured != nil {
		query = query.Where("is_featured = ?", *req.IsFeatured)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	query = query.Order(s.buildOrderClause(req.SortBy, req.SortOrder))

	offset := (req.Page - 1) * req.Limit
	if err := query.Offset(offset).Limit(req.Limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	return &ProductListResponse{
		Products:   products,
		Pagination: NewPagination(req.Page, req.Limit, total),
	}, nil
}

// GetProduct retrieves a single product by ID
func (s *Service) GetProduct(ctx context.Context, id uint) (*Product, error) {
	var product Product
	result := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_main DESC, sort_order ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&product)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", result.Error)
	}

	return &product, nil
}

// GetProductBySlug retrieves a single published product by slug
func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var product Product
	result := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("is_main DESC, sort_order ASC, id ASC")
		}).
		Where("slug = ? AND status = ?", slug, StatusPublished).
		First(&product)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", result.Error)
	}

	return &product, nil
}

// CreateProduct creates a new product. Stock starts at zero and only moves
// through inventory rows.
func (s *Service) CreateProduct(ctx context.Context, req *ProductCreateRequest) (*Product, error) {
	db := s.db.WithContext(ctx)

	if strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("sku and name are required")
	}
	if err := ValidatePrice(req.Price); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown product status %q", status))
	}

	var count int64
	if err := db.Model(&Product{}).Unscoped().Where("sku = ?", req.SKU).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check sku: %w", err)
	}
	if count > 0 {
		return nil, apperr.Conflict(fmt.Sprintf("product with SKU %s already exists", req.SKU))
	}

	if req.CategoryID != nil {
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	slug, err := s.uniqueSlug(ctx, req.Slug, req.Name, 0)
	if err != nil {
		return nil, err
	}

	product := Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Slug:        &slug,
		Description: req.Description,
		ShortDesc:   req.ShortDesc,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Status:      status,
		IsFeatured:  req.IsFeatured,
	}

	if err := db.Create(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return s.GetProduct(ctx, product.ID)
}

// UpdateProduct updates an existing product
func (s *Service) UpdateProduct(ctx context.Context, id uint, req *ProductUpdateRequest) (*Product, error) {
	db := s.db.WithContext(ctx)

	var product Product
	if err := db.Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	updates := make(map[string]interface{})
	priceChanged := false

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		updates["name"] = *req.Name
	}
	if req.Slug != nil {
		slug, err := s.uniqueSlug(ctx, *req.Slug, product.Name, product.ID)
		if err != nil {
			return nil, err
		}
		updates["slug"] = slug
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ShortDesc != nil {
		updates["short_desc"] = *req.ShortDesc
	}
	if req.Price != nil {
		if err := ValidatePrice(*req.Price); err != nil {
			return nil, err
		}
		if !req.Price.Equal(product.Price) {
			updates["price"] = *req.Price
			priceChanged = true
		}
	}
	if req.ClearCategory {
		updates["category_id"] = nil
	} else if req.CategoryID != nil {
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("unknown product status %q", *req.Status))
		}
		updates["status"] = *req.Status
	}
	if req.IsFeatured != nil {
		updates["is_featured"] = *req.IsFeatured
	}

	if len(updates) > 0 {
		if err := db.Model(&product).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}

	if priceChanged {
		s.notifyChange(ctx, product.ID)
	}

	return s.GetProduct(ctx, product.ID)
}

// SetStatus changes the product lifecycle status
func (s *Service) SetStatus(ctx context.Context, id uint, status Status) (*Product, error) {
	return s.UpdateProduct(ctx, id, &ProductUpdateRequest{Status: &status})
}

// DeleteProduct soft deletes a product
func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Product{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("product")
	}

	s.notifyChange(ctx, id)
	return nil
}

// RecordView increments the product view counter without touching updated_at
func (s *Service) RecordView(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to record product view: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("product")
	}
	return nil
}

// ListAllProducts returns every non-deleted product ordered by id
func (s *Service) ListAllProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.db.WithContext(ctx).Preload("Category").Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}
	return products, nil
}

// AddImageRequest represents a product image attachment
type AddImageRequest struct {
	Image     string `json:"image" binding:"required,max=500"`
	AltText   string `json:"alt_text" binding:"max=200"`
	IsMain    bool   `json:"is_main"`
	SortOrder int    `json:"sort_order"`
}

// AddImage attaches an image to a product. A new main image demotes the previous one.
func (s *Service) AddImage(ctx context.Context, productID uint, req *AddImageRequest) (*ProductImage, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, apperr.Validation("image is required")
	}

	image := ProductImage{
		ProductID: productID,
		Image:     req.Image,
		AltText:   req.AltText,
		IsMain:    req.IsMain,
		SortOrder: req.SortOrder,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}
		if count == 0 {
			return apperr.NotFound("product")
		}

		if image.IsMain {
			if err := tx.Model(&ProductImage{}).
				Where("product_id = ? AND is_main = ?", productID, true).
				Update("is_main", false).Error; err != nil {
				return fmt.Errorf("failed to demote main image: %w", err)
			}
		}

		if err := tx.Create(&image).Error; err != nil {
			return fmt.Errorf("failed to create product image: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &image, nil
}

// ListImages lists the images of a product, main image first
func (s *Service) ListImages(ctx context.Context, productID uint) ([]ProductImage, error) {
	var images []ProductImage
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("is_main DESC, sort_order ASC, id ASC").
		Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve product images: %w", err)
	}
	return images, nil
}

// DeleteImage removes a product image
func (s *Service) DeleteImage(ctx context.Context, productID, imageID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", imageID, productID).
		Delete(&ProductImage{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product image: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("product image")
	}
	return nil
}

func (s *Service) notifyChange(ctx context.Context, productID uint) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.InvalidateProduct(ctx, productID); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("product_id", productID).Warn("failed to invalidate cart summaries")
	}
}

func (s *Service) ensureCategory(ctx context.Context, categoryID uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if count == 0 {
		return apperr.Validation("category not found")
	}
	return nil
}

// uniqueSlug returns the requested slug (or one derived from name) after
// checking it is free. Derived slugs get a short suffix on collision.
func (s *Service) uniqueSlug(ctx context.Context, requested, name string, excludeID uint) (string, error) {
	explicit := strings.TrimSpace(requested) != ""
	slug := Slugify(requested)
	if !explicit {
		slug = Slugify(name)
	}
	if slug == "" {
		slug = "product"
	}

	taken, err := s.slugTaken(ctx, slug, excludeID)
	if err != nil {
		return "", err
	}
	if !taken {
		return slug, nil
	}
	if explicit {
		return "", apperr.Conflict(fmt.Sprintf("slug %s is already in use", slug))
	}
	return slug + "-" + uuid.NewString()[:8], nil
}

func (s *Service) slugTaken(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	query := s.db.WithContext(ctx).Model(&Product{}).Unscoped().Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}

// buildOrderClause builds ORDER BY clause for sorting
func (s *Service) buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"name":        true,
		"price":       true,
		"created_at":  true,
		"updated_at":  true,
		"stock":       true,
		"sales_count": true,
		"view_count":  true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s, id ASC", sortBy, sortOrder)
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify generates a URL-friendly slug from name
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalid.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
