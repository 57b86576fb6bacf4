package models

import "errors"

var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrOutOfStock         = errors.New("product is out of stock")
	ErrProductUnavailable = errors.New("product is no longer available")
	ErrNotFound           = errors.New("not found")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrEmptyCart          = errors.New("cart is empty")
)
