package models

import "time"

// OrderItem is a frozen line-item snapshot inside an order. Price and name
// are copied from the catalog at creation time and never change afterwards,
// even if the product itself does.
type OrderItem struct {
	ID        uint    `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string  `json:"-" gorm:"index;type:varchar(36)"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"` // Authoritative price at order time
	Quantity  int     `json:"quantity"`
}

// ShippingAddress is the delivery destination captured at checkout.
type ShippingAddress struct {
	FullName   string `json:"full_name" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// Complete reports whether every required address field is filled in.
func (a ShippingAddress) Complete() bool {
	return a.FullName != "" && a.Address != "" && a.City != "" &&
		a.PostalCode != "" && a.Country != ""
}

// PaymentResult records the payment provider's confirmation for an order.
type PaymentResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PayerEmail string `json:"payer_email"`
}

// Order represents a committed purchase. Items and prices are immutable once
// created; only the paid/delivered fields may transition, and only one way.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string          `json:"user_id" gorm:"index;type:varchar(36)"`
	OrderItems      []OrderItem     `json:"order_items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress ShippingAddress `json:"shipping_address" gorm:"embedded;embeddedPrefix:shipping_"`
	PaymentMethod   string          `json:"payment_method"`
	ItemsPrice      float64         `json:"items_price"`
	ShippingPrice   float64         `json:"shipping_price"`
	TaxPrice        float64         `json:"tax_price"`
	TotalPrice      float64         `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	PaymentResult   PaymentResult   `json:"payment_result" gorm:"embedded;embeddedPrefix:payment_"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OrderItemRequest is a client-submitted line item. Only product id and
// quantity are trusted; the rest is advisory and recomputed server-side.
type OrderItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity" validate:"required,gte=1"`
}

// CreateOrderRequest is the order-creation payload. The client-suggested
// price fields are accepted for compatibility with the storefront client but
// ignored: all monetary fields on the created order are computed from
// authoritative catalog data.
type CreateOrderRequest struct {
	OrderItems      []OrderItemRequest `json:"order_items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress    `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	ItemsPrice      float64            `json:"items_price"`
	ShippingPrice   float64            `json:"shipping_price"`
	TaxPrice        float64            `json:"tax_price"`
	TotalPrice      float64            `json:"total_price"`
}
