package cart

import "errors"

var (
	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("cart quantity must be at least 1")
	ErrNotHydrated     = errors.New("cart has not been hydrated")

	// -- Remote Synchronization --
	ErrHydrationFailed    = errors.New("failed to hydrate cart")
	ErrAddItemFailed      = errors.New("failed to add cart item")
	ErrQuantitySyncFailed = errors.New("failed to sync cart item quantity")
	ErrRemoveSyncFailed   = errors.New("failed to sync cart item removal")
)

const (
	msgHydrateFailed = "Failed to load cart"
	msgAddFailed     = "Failed to add item"
)

// Detailer is implemented by remote errors that carry a user-facing message.
type Detailer interface {
	ErrorDetail() string
}

// displayMessage turns a remote failure into the string shown to consumers;
// raw transport errors never reach the UI.
func displayMessage(err error, fallback string) string {
	var d Detailer
	if errors.As(err, &d) && d.ErrorDetail() != "" {
		return d.ErrorDetail()
	}
	return fallback
}
