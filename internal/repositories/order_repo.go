package repositories

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// OrderRepository defines the interface for order data access.
//
// MarkPaid and MarkDelivered are conditional updates: they apply the
// transition only if it has not already happened and report whether this
// call won it. Two concurrent MarkPaid calls for the same order therefore
// serialize on the store; exactly one observes updated=true.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByUserID(ctx context.Context, userID string) ([]models.Order, error)
	GetAll(ctx context.Context) ([]models.Order, error)
	MarkPaid(ctx context.Context, id string, result models.PaymentResult, paidAt time.Time) (updated bool, err error)
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (updated bool, err error)
}
