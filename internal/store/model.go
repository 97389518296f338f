package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variant is a purchasable (product, size) with its server-side price.
type Variant struct {
	ProductID int64
	Size      string
	Name      string
	ImageURL  string
	Slug      string
	Price     decimal.Decimal
	Stock     int
}

type CartItem struct {
	ID        int64
	UserID    int64
	ProductID int64
	Size      string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// CartLine is a cart item joined with its variant.
type CartLine struct {
	CartItem
	Variant Variant
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type CreateCartItemParams struct {
	UserID    int64
	ProductID int64
	Size      string
	Quantity  int
}
