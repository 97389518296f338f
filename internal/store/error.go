package store

import "errors"

var (
	// -- Resource State --
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrVariantNotFound  = errors.New("product size not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailExists      = errors.New("email already registered")

	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// -- Constants (External Systems) --
	PgUniqueViolation = "23505"
)
