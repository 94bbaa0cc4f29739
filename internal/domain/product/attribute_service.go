// internal/domain/product/attribute_service.go
package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/your-org/storefront/internal/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SizeRequest represents size creation data
type SizeRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Code        string `json:"code" binding:"max=10"`
	Description string `json:"description" binding:"max=200"`
	SortOrder   int    `json:"sort_order"`
}

// ColorRequest represents color creation data
type ColorRequest struct {
	Name      string `json:"name" binding:"required,max=50"`
	HexCode   string `json:"hex_code" binding:"omitempty,hexcolor"`
	Image     string `json:"image" binding:"max=500"`
	SortOrder int    `json:"sort_order"`
}

// AttributeRequest represents product attribute creation data
type AttributeRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	IsRequired bool   `json:"is_required"`
	SortOrder  int    `json:"sort_order"`
}

// AttributeValueRequest sets one attribute value on a product
type AttributeValueRequest struct {
	AttributeID uint   `json:"attribute_id" binding:"required"`
	Value       string `json:"value" binding:"required,max=255"`
}

// ListSizes returns sizes in display order
func (s *Service) ListSizes(ctx context.Context) ([]Size, error) {
	var sizes []Size
	if err := s.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&sizes).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve sizes: %w", err)
	}
	return sizes, nil
}

// CreateSize creates a size lookup entry
func (s *Service) CreateSize(ctx context.Context, req *SizeRequest) (*Size, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, &Size{}, name, "size"); err != nil {
		return nil, err
	}

	size := Size{Name: name, Code: req.Code, Description: req.Description, SortOrder: req.SortOrder}
	if err := s.db.WithContext(ctx).Create(&size).Error; err != nil {
		return nil, fmt.Errorf("failed to create size: %w", err)
	}
	return &size, nil
}

// ListColors returns colors in display order
func (s *Service) ListColors(ctx context.Context) ([]Color, error) {
	var colors []Color
	if err := s.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&colors).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve colors: %w", err)
	}
	return colors, nil
}

// CreateColor creates a color lookup entry
func (s *Service) CreateColor(ctx context.Context, req *ColorRequest) (*Color, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, &Color{}, name, "color"); err != nil {
		return nil, err
	}

	color := Color{Name: name, HexCode: req.HexCode, Image: req.Image, SortOrder: req.SortOrder}
	if err := s.db.WithContext(ctx).Create(&color).Error; err != nil {
		return nil, fmt.Errorf("failed to create color: %w", err)
	}
	return &color, nil
}

// ListAttributes returns attribute definitions in display order
func (s *Service) ListAttributes(ctx context.Context) ([]ProductAttribute, error) {
	var attributes []ProductAttribute
	if err := s.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&attributes).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve attributes: %w", err)
	}
	return attributes, nil
}

// CreateAttribute creates an attribute definition
func (s *Service) CreateAttribute(ctx context.Context, req *AttributeRequest) (*ProductAttribute, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, &ProductAttribute{}, name, "attribute"); err != nil {
		return nil, err
	}

	attribute := ProductAttribute{Name: name, IsRequired: req.IsRequired, SortOrder: req.SortOrder}
	if err := s.db.WithContext(ctx).Create(&attribute).Error; err != nil {
		return nil, fmt.Errorf("failed to create attribute: %w", err)
	}
	return &attribute, nil
}

// SetProductAttribute stores the value of an attribute for a product,
// replacing any previous value for the same pair.
func (s *Service) SetProductAttribute(ctx context.Context, productID uint, req *AttributeValueRequest) (*ProductAttributeValue, error) {
	db := s.db.WithContext(ctx)

	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	var attribute ProductAttribute
	if err := db.Where("id = ?", req.AttributeID).First(&attribute).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.Validation("attribute not found")
		}
		return nil, fmt.Errorf("failed to find attribute: %w", err)
	}

	value := ProductAttributeValue{
		ProductID:   productID,
		AttributeID: req.AttributeID,
		Value:       req.Value,
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "attribute_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&value).Error
	if err != nil {
		return nil, fmt.Errorf("failed to set product attribute: %w", err)
	}

	var stored ProductAttributeValue
	if err := db.Preload("Attribute").
		Where("product_id = ? AND attribute_id = ?", productID, req.AttributeID).
		First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload product attribute: %w", err)
	}
	return &stored, nil
}

// ListProductAttributes returns the attribute values of a product
func (s *Service) ListProductAttributes(ctx context.Context, productID uint) ([]ProductAttributeValue, error) {
	var values []ProductAttributeValue
	err := s.db.WithContext(ctx).
		Preload("Attribute").
		Joins("JOIN product_attributes ON product_attributes.id = product_attribute_values.attribute_id").
		Where("product_attribute_values.product_id = ?", productID).
		Order("product_attributes.sort_order ASC, product_attributes.name ASC").
		Find(&values).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product attributes: %w", err)
	}
	return values, nil
}

// MissingRequiredAttributes lists required attributes the product has no value for
func (s *Service) MissingRequiredAttributes(ctx context.Context, productID uint) ([]ProductAttribute, error) {
	var missing []ProductAttribute
	err := s.db.WithContext(ctx).
		Where("is_required = ?", true).
		Where("id NOT IN (?)", s.db.Model(&ProductAttributeValue{}).Select("attribute_id").Where("product_id = ?", productID)).
		Order("sort_order ASC, name ASC").
		Find(&missing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check required attributes: %w", err)
	}
	return missing, nil
}

func (s *Service) ensureUniqueName(ctx context.Context, model interface{}, name, kind string) error {
	if name == "" {
		return apperr.Validation("name is required")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("name = ?", name).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check %s name: %w", kind, err)
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("%s %s already exists", kind, name))
	}
	return nil
}
