package cart

import (
	"errors"
	"log"

	"storefront/internal/models"
)

// ErrOutOfStock is returned when a requested quantity exceeds the item's
// last-known stock. The caller decides whether to clamp or reject.
var ErrOutOfStock = errors.New("requested quantity exceeds available stock")

// Store owns the client-side cart state. All mutation goes through its
// methods so the invariants (no zero or negative quantities, quantity never
// above last-known stock) are enforced in one place. Every mutation is
// persisted through Storage; a persistence failure is logged and the store
// keeps working in memory for the rest of the session.
//
// The store is not safe for concurrent use. The client is single-threaded
// cooperative: each user event runs to completion before the next.
type Store struct {
	cart    models.Cart
	storage Storage
}

// NewStore creates a Store backed by the given storage, reloading any
// previously saved cart so a restart never loses cart contents.
func NewStore(storage Storage) *Store {
	s := &Store{storage: storage}
	saved, err := storage.Load()
	switch {
	case err == nil:
		s.cart = *saved
	case errors.Is(err, ErrEmpty):
		// First session, nothing to restore.
	default:
		log.Printf("Warning: could not restore saved cart, starting empty: %v", err)
	}
	return s
}

// AddItem puts the product in the cart with the requested quantity. If the
// product is already present its quantity is replaced, not added to.
// Returns ErrOutOfStock when the quantity exceeds the product's stock; the
// cart is left unchanged in that case.
func (s *Store) AddItem(product models.Product, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	if quantity > product.Stock {
		return ErrOutOfStock
	}

	item := models.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  quantity,
		Stock:     product.Stock,
	}
	replaced := false
	for i, existing := range s.cart.Items {
		if existing.ProductID == product.ID {
			s.cart.Items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		s.cart.Items = append(s.cart.Items, item)
	}
	s.persist()
	return nil
}

// UpdateQuantity changes the quantity of an existing line. A quantity of
// zero or less removes the line. Returns ErrOutOfStock when the quantity
// exceeds the item's last-known stock.
func (s *Store) UpdateQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(productID)
		return nil
	}
	for i, item := range s.cart.Items {
		if item.ProductID == productID {
			if quantity > item.Stock {
				return ErrOutOfStock
			}
			s.cart.Items[i].Quantity = quantity
			s.persist()
			return nil
		}
	}
	return nil
}

// RemoveItem removes the line for productID. Removing an absent product is
// a no-op, not an error.
func (s *Store) RemoveItem(productID string) {
	for i, item := range s.cart.Items {
		if item.ProductID == productID {
			s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
			s.persist()
			return
		}
	}
}

// SetShippingAddress records the shipping selection and persists it with
// the cart.
func (s *Store) SetShippingAddress(addr models.ShippingAddress) {
	s.cart.ShippingAddress = addr
	s.persist()
}

// SetPaymentMethod records the payment selection and persists it with the
// cart.
func (s *Store) SetPaymentMethod(method string) {
	s.cart.PaymentMethod = method
	s.persist()
}

// Clear empties the cart and wipes the persisted state, including the
// saved shipping and payment selections. Called after a confirmed order
// placement or an explicit sign-out.
func (s *Store) Clear() {
	s.cart = models.Cart{}
	if err := s.storage.Clear(); err != nil {
		log.Printf("Warning: failed to clear persisted cart: %v", err)
	}
}

// Cart returns a copy of the current cart state.
func (s *Store) Cart() models.Cart {
	cart := s.cart
	cart.Items = append([]models.CartItem(nil), s.cart.Items...)
	return cart
}

// Items returns a copy of the current line items in insertion order.
func (s *Store) Items() []models.CartItem {
	return append([]models.CartItem(nil), s.cart.Items...)
}

func (s *Store) persist() {
	if err := s.storage.Save(&s.cart); err != nil {
		log.Printf("Warning: failed to persist cart, continuing in memory: %v", err)
	}
}
