// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront/internal/domain/product"
)

// Cart is the single shopping cart of a user
type Cart struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items,omitempty"`
}

// CartItem is one product line of a cart. (cart, product) is unique.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_product;index" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1;check:quantity >= 1" json:"quantity"`
	AddedAt   time.Time `gorm:"autoCreateTime" json:"added_at"`

	// Relationships
	Product *product.Product `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"product,omitempty"`
}

// TableName overrides
func (Cart) TableName() string     { return "carts" }
func (CartItem) TableName() string { return "cart_items" }

// Summary is the cached headline of a cart
type Summary struct {
	ItemCount  int    `json:"item_count"`
	TotalPrice string `json:"total_price"`
}

// Totals is the result of pricing a set of cart items
type Totals struct {
	TotalPrice decimal.Decimal
	ItemCount  int
	// Dangling lists items whose product could not be loaded; they add nothing to TotalPrice.
	Dangling []uint
}

// ComputeTotals prices items with exact decimal arithmetic. Items must have
// Product preloaded; a nil Product contributes zero.
func ComputeTotals(items []CartItem) Totals {
	totals := Totals{TotalPrice: decimal.Zero}
	for _, item := range items {
		totals.ItemCount += item.Quantity
		if item.Product == nil {
			totals.Dangling = append(totals.Dangling, item.ID)
			continue
		}
		totals.TotalPrice = totals.TotalPrice.Add(item.LineTotal())
	}
	return totals
}

// LineTotal is quantity times the current product price
func (i *CartItem) LineTotal() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalPrice sums the line totals of the loaded items
func (c *Cart) TotalPrice() decimal.Decimal {
	return ComputeTotals(c.Items).TotalPrice
}

// ItemCount is the total number of units in the cart
func (c *Cart) ItemCount() int {
	return ComputeTotals(c.Items).ItemCount
}

// IsEmpty reports whether the loaded cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
