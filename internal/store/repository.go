package store

import "context"

type CartRepository interface {
	GetCartLines(ctx context.Context, userID int64) ([]CartLine, error)
	GetCartItemByUserAndVariant(ctx context.Context, userID, productID int64, size string) (*CartItem, error)
	CreateCartItem(ctx context.Context, params CreateCartItemParams) (*CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) (*CartItem, error)
	GetCartItem(ctx context.Context, userID, itemID int64) (*CartItem, error)
	RemoveCartItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

type CatalogRepository interface {
	GetVariant(ctx context.Context, productID int64, size string) (*Variant, error)
	UpsertVariant(ctx context.Context, v Variant) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash, role string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Store bundles every repository cartd needs.
type Store interface {
	CartRepository
	CatalogRepository
	UserRepository
}
