package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// The mutex gives it the same serialization guarantee as the database
// implementation: concurrent MarkPaid calls for one order cannot both win.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order. Fails if the ID is already taken.
func (r *MockOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order with ID %s already exists", order.ID)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	order = cloneOrder(order)
	return &order, nil
}

// GetByUserID returns a user's orders, newest first.
func (r *MockOrderRepository) GetByUserID(_ context.Context, userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []models.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			orders = append(orders, cloneOrder(order))
		}
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

// GetAll returns all orders, newest first.
func (r *MockOrderRepository) GetAll(_ context.Context) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, cloneOrder(order))
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

// MarkPaid applies the unpaid->paid transition if it has not happened yet.
func (r *MockOrderRepository) MarkPaid(_ context.Context, id string, result models.PaymentResult, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if order.IsPaid {
		return false, nil
	}
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentResult = result
	r.orders[id] = order
	return true, nil
}

// MarkDelivered applies the delivered transition if the order is paid and
// not yet delivered.
func (r *MockOrderRepository) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if !order.IsPaid || order.IsDelivered {
		return false, nil
	}
	order.IsDelivered = true
	order.DeliveredAt = &deliveredAt
	r.orders[id] = order
	return true, nil
}

func cloneOrder(order models.Order) models.Order {
	items := make([]models.OrderItem, len(order.OrderItems))
	copy(items, order.OrderItems)
	order.OrderItems = items
	return order
}

func sortOrdersNewestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
