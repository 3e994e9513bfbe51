package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the order pipeline. Handlers map these to HTTP
// statuses with errors.Is / errors.As instead of matching message strings.
var (
	ErrValidation    = errors.New("invalid checkout request")
	ErrOrderNotFound = errors.New("order not found")
	ErrAlreadyPaid   = errors.New("order already paid")
	ErrNotPaid       = errors.New("order not paid")
	ErrStoreTimeout  = errors.New("store temporarily unavailable, try again")
)

// Authentication errors. ErrInvalidCredentials deliberately covers both a
// wrong password and an unknown username.
var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StockConflictError identifies the line item whose requested quantity
// exceeds the live stock.
type StockConflictError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)",
		e.ProductID, e.Requested, e.Available)
}

// ProductNotFoundError identifies a line item whose product no longer
// resolves in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}
