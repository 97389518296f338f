package server

import (
	"errors"
	"net/http"

	"storefront-cart/internal/store"
)

var (
	// -- Validation & Input --
	ErrInvalidRequest  = errors.New("invalid request body")
	ErrInvalidItemID   = errors.New("invalid cart item id")
	ErrInvalidEmail    = errors.New("email is required")
	ErrPasswordTooWeak = errors.New("password must be at least 6 characters")

	// -- Business Logic --
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrUnauthenticated    = errors.New("not authenticated")
)

// statusFor maps domain errors onto HTTP status codes. Unknown errors are
// internal and their text is not exposed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrCartItemNotFound),
		errors.Is(err, store.ErrVariantNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, store.ErrInvalidQuantity),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidItemID),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrPasswordTooWeak):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, store.ErrEmailExists):
		return http.StatusConflict, store.ErrEmailExists.Error()
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, rootMessage(err)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
