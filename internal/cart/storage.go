package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"storefront/internal/models"
)

// ErrEmpty is returned by Storage.Load when nothing has been saved yet.
var ErrEmpty = errors.New("no saved cart")

// Storage is the durable client-side persistence boundary for the cart.
// Implementations must survive a full process restart.
type Storage interface {
	Load() (*models.Cart, error)
	Save(cart *models.Cart) error
	Clear() error
}

// FileStorage persists the cart as a JSON file, the Go rendition of the
// browser's local storage. Writes go through a temp file and rename so a
// crash mid-write never corrupts the saved cart.
type FileStorage struct {
	path string
}

// NewFileStorage creates a FileStorage writing to the given path. Parent
// directories are created on the first save.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the saved cart. Returns ErrEmpty when no file exists.
func (s *FileStorage) Load() (*models.Cart, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read cart file: %w", err)
	}
	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart file: %w", err)
	}
	return &cart, nil
}

// Save writes the cart to disk atomically.
func (s *FileStorage) Save(cart *models.Cart) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cart directory: %w", err)
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cart file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace cart file: %w", err)
	}
	return nil
}

// Clear removes the saved cart, including the persisted shipping and
// payment selections stored with it.
func (s *FileStorage) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cart file: %w", err)
	}
	return nil
}

// MemoryStorage is a non-durable Storage used in tests and as the fallback
// when file persistence is unavailable.
type MemoryStorage struct {
	cart *models.Cart
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load returns the saved cart or ErrEmpty.
func (s *MemoryStorage) Load() (*models.Cart, error) {
	if s.cart == nil {
		return nil, ErrEmpty
	}
	cart := *s.cart
	cart.Items = append([]models.CartItem(nil), s.cart.Items...)
	return &cart, nil
}

// Save keeps a copy of the cart in memory.
func (s *MemoryStorage) Save(cart *models.Cart) error {
	c := *cart
	c.Items = append([]models.CartItem(nil), cart.Items...)
	s.cart = &c
	return nil
}

// Clear drops the saved cart.
func (s *MemoryStorage) Clear() error {
	s.cart = nil
	return nil
}
