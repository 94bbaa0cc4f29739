// internal/domain/inventory/entity.go
package inventory

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront/internal/domain/product"
)

// MovementReason explains why an inventory count changed
type MovementReason string

const (
	ReasonInitial    MovementReason = "initial"
	ReasonRestock    MovementReason = "restock"
	ReasonSale       MovementReason = "sale"
	ReasonReturn     MovementReason = "return"
	ReasonDamage     MovementReason = "damage"
	ReasonAdjustment MovementReason = "adjustment"
	ReasonRemoval    MovementReason = "removal"
)

func (r MovementReason) Valid() bool {
	switch r {
	case ReasonInitial, ReasonRestock, ReasonSale, ReasonReturn, ReasonDamage, ReasonAdjustment, ReasonRemoval:
		return true
	}
	return false
}

// Inventory is one stock-keeping row for a product variant (color x size).
// (product, color, size) is unique, with NULL color or size treated as a value.
type Inventory struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	ProductID uint                `gorm:"not null;uniqueIndex:idx_inventory_variant" json:"product_id"`
	ColorID   *uint               `gorm:"uniqueIndex:idx_inventory_variant" json:"color_id"`
	SizeID    *uint               `gorm:"uniqueIndex:idx_inventory_variant" json:"size_id"`
	Count     int                 `gorm:"not null;default:0;check:count >= 0" json:"count"`
	Price     decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"price"`
	SKU       string              `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Barcode   string              `gorm:"size:100" json:"barcode"`
	IsActive  bool                `gorm:"not null" json:"is_active"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`

	// Relationships
	Product *product.Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Color   *product.Color   `gorm:"foreignKey:ColorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"color,omitempty"`
	Size    *product.Size    `gorm:"foreignKey:SizeID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"size,omitempty"`
}

// Movement records one change to an inventory row's count
type Movement struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	InventoryID   uint           `gorm:"not null;index" json:"inventory_id"`
	ProductID     uint           `gorm:"not null;index" json:"product_id"`
	Delta         int            `gorm:"not null" json:"delta"`
	PreviousCount int            `gorm:"not null" json:"previous_count"`
	NewCount      int            `gorm:"not null" json:"new_count"`
	Reason        MovementReason `gorm:"size:20;not null" json:"reason"`
	Notes         string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy     *uint          `json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName overrides
func (Inventory) TableName() string { return "inventories" }
func (Movement) TableName() string  { return "inventory_movements" }

// EffectivePrice is the row's override price, or the product price when unset
func (i *Inventory) EffectivePrice(p *product.Product) decimal.Decimal {
	if i.Price.Valid {
		return i.Price.Decimal
	}
	if p != nil {
		return p.Price
	}
	if i.Product != nil {
		return i.Product.Price
	}
	return decimal.Zero
}

// IsInStock reports whether this variant can currently be sold
func (i *Inventory) IsInStock() bool {
	return i.IsActive && i.Count > 0
}

// MarshalJSON renders the override price with two decimal places
func (i Inventory) MarshalJSON() ([]byte, error) {
	type alias Inventory
	var price *string
	if i.Price.Valid {
		fixed := i.Price.Decimal.StringFixed(2)
		price = &fixed
	}
	return json.Marshal(struct {
		alias
		Price *string `json:"price"`
	}{alias(i), price})
}
