package repositories

import (
	"context"

	"storefront/internal/models"
)

// UserRepository defines the interface for user data access. Lookups return
// ErrNotFound for unknown identities.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
