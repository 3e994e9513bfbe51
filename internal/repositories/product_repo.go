package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository defines the interface for product data access. The
// order pipeline uses it as a read-only authority for price and stock;
// DecrementStock is the single write it performs, at payment confirmation.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	// DecrementStock atomically subtracts quantity from the product's stock,
	// only if enough stock remains. Returns false when it does not.
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
}
