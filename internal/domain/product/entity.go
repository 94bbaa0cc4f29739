// internal/domain/product/entity.go
package product

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a product
type Status string

const (
	StatusDraft        Status = "draft"
	StatusPublished    Status = "published"
	StatusOutOfStock   Status = "out_of_stock"
	StatusDiscontinued Status = "discontinued"
)

// Valid reports whether s is a known product status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusOutOfStock, StatusDiscontinued:
		return true
	}
	return false
}

// Product represents the product entity.
// Stock is derived from the product's inventory rows and is never written directly.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SKU         string          `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name        string          `gorm:"not null;size:200" json:"name"`
	Slug        *string         `gorm:"uniqueIndex;size:200" json:"slug"`
	Description string          `gorm:"type:text" json:"description"`
	ShortDesc   string          `gorm:"size:500" json:"short_description"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null;check:price > 0" json:"price"`
	CategoryID  *uint           `gorm:"index" json:"category_id"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Status      Status          `gorm:"size:20;not null;default:'draft';index" json:"status"`
	IsFeatured  bool            `gorm:"not null" json:"is_featured"`
	ViewCount   int             `gorm:"not null;default:0" json:"view_count"`
	SalesCount  int             `gorm:"not null;default:0" json:"sales_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Category *Category      `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
	Images   []ProductImage `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"images,omitempty"`
}

// MarshalJSON renders the price with two decimal places
func (p Product) MarshalJSON() ([]byte, error) {
	type alias Product
	return json.Marshal(struct {
		alias
		Price string `json:"price"`
	}{alias(p), p.Price.StringFixed(2)})
}

// Category represents product categories. Categories form a forest: the
// parent chain of any category never loops back to itself.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	ParentID    *uint     `gorm:"index" json:"parent_id"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Parent *Category `gorm:"foreignKey:ParentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"parent,omitempty"`
}

// ProductImage represents product images. Image is an opaque storage reference.
type ProductImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Image     string    `gorm:"not null;size:500" json:"image"`
	AltText   string    `gorm:"size:200" json:"alt_text"`
	IsMain    bool      `gorm:"not null" json:"is_main"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// Size is a variant dimension lookup
type Size struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;not null;size:50" json:"name"`
	Code        string `gorm:"size:10" json:"code"`
	Description string `gorm:"size:200" json:"description"`
	SortOrder   int    `gorm:"not null;default:0" json:"sort_order"`
}

// Color is a variant dimension lookup
type Color struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"uniqueIndex;not null;size:50" json:"name"`
	HexCode   string `gorm:"size:7" json:"hex_code"`
	Image     string `gorm:"size:500" json:"image"`
	SortOrder int    `gorm:"not null;default:0" json:"sort_order"`
}

// ProductAttribute is a named attribute that products may carry a value for
type ProductAttribute struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"uniqueIndex;not null;size:100" json:"name"`
	IsRequired bool   `gorm:"not null" json:"is_required"`
	SortOrder  int    `gorm:"not null;default:0" json:"sort_order"`
}

// ProductAttributeValue holds at most one value per (product, attribute)
type ProductAttributeValue struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ProductID   uint   `gorm:"not null;uniqueIndex:idx_product_attribute" json:"product_id"`
	AttributeID uint   `gorm:"not null;uniqueIndex:idx_product_attribute" json:"attribute_id"`
	Value       string `gorm:"not null;size:255" json:"value"`

	Product   *Product          `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Attribute *ProductAttribute `gorm:"foreignKey:AttributeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"attribute,omitempty"`
}

// TableName overrides
func (Product) TableName() string               { return "products" }
func (Category) TableName() string              { return "categories" }
func (ProductImage) TableName() string          { return "product_images" }
func (Size) TableName() string                  { return "sizes" }
func (Color) TableName() string                 { return "colors" }
func (ProductAttribute) TableName() string      { return "product_attributes" }
func (ProductAttributeValue) TableName() string { return "product_attribute_values" }

// Business methods for Product

// IsAvailable reports whether the product can be sold right now
func (p *Product) IsAvailable() bool {
	return p.Status == StatusPublished && p.Stock > 0
}

// IsPublished reports whether the product is visible in the storefront
func (p *Product) IsPublished() bool {
	return p.Status == StatusPublished
}
