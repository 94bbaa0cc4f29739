// internal/domain/order/entity.go
package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// validTransitions lists every legal status change
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the order may move from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is an immutable snapshot of a checkout; only its status changes afterwards
type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderNumber string          `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Status      OrderStatus     `gorm:"not null;size:20;default:'pending';index" json:"status"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_price"`

	// Recipient snapshot
	RecipientName    string `gorm:"not null;size:200" json:"recipient_name"`
	RecipientPhone   string `gorm:"not null;size:30" json:"recipient_phone"`
	RecipientAddress string `gorm:"type:text;not null" json:"recipient_address"`
	Notes            string `gorm:"type:text" json:"notes"`

	// Timestamps
	PaidAt      *time.Time `json:"paid_at"`
	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem represents items in an order. Name, SKU and Price are frozen at checkout.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	SKU       string          `gorm:"not null;size:100" json:"sku"`
	Name      string          `gorm:"not null;size:255" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Quantity  int             `gorm:"not null;check:quantity >= 1" json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"not null;size:20" json:"status"`
	Comment   string      `gorm:"type:text" json:"comment"`
	CreatedBy uint        `gorm:"index" json:"created_by"` // User ID who made the change
	CreatedAt time.Time   `json:"created_at"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }

// GenerateOrderNumber generates a unique order number
func (o *Order) GenerateOrderNumber() string {
	// Format: ORD-YYYYMMDD-XXXXX
	return fmt.Sprintf("ORD-%s-%05d", o.CreatedAt.UTC().Format("20060102"), o.ID)
}

// CanBeCancelled checks if order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status.CanTransitionTo(OrderStatusCancelled)
}

// ItemCount is the total number of units ordered
func (o *Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// Subtotal is the frozen unit price times quantity
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// MarshalJSON renders money with two decimal places
func (o Order) MarshalJSON() ([]byte, error) {
	type alias Order
	return json.Marshal(struct {
		alias
		TotalPrice string `json:"total_price"`
		ItemCount  int    `json:"item_count"`
	}{alias(o), o.TotalPrice.StringFixed(2), o.ItemCount()})
}

// MarshalJSON renders money with two decimal places
func (i OrderItem) MarshalJSON() ([]byte, error) {
	type alias OrderItem
	return json.Marshal(struct {
		alias
		Price    string `json:"price"`
		Subtotal string `json:"subtotal"`
	}{alias(i), i.Price.StringFixed(2), i.Subtotal().StringFixed(2)})
}
