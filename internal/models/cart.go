package models

// CartItem is a single pre-commitment line in the cart. Price and Stock are
// snapshots of the catalog state the last time the item was added or
// updated; the server re-validates both at order creation.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock"` // Available stock at add time
}

// Cart holds the client's intended purchase along with the shipping and
// payment selections entered during checkout. Items keep insertion order.
type Cart struct {
	Items           []CartItem      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
}

// Count returns the total number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
