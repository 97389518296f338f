package cartclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("session expired or invalid")
	ErrNotFound     = errors.New("cart item not found")
	ErrNoBaseURL    = errors.New("cart backend url is empty")
)

// APIError is a non-2xx response from the cart service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("cart service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("cart service returned %d: %s", e.StatusCode, e.Detail)
}

// ErrorDetail is the server's user-facing message.
func (e *APIError) ErrorDetail() string {
	return e.Detail
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}
