package cart

import "github.com/shopspring/decimal"

// Item is one line of the cart. ID is assigned by the remote service; the
// (ProductID, Size) pair identifies the purchasable variant.
type Item struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	Name       *string         `json:"product_name"`
	Image      *string         `json:"product_image"`
	Slug       *string         `json:"product_slug"`
	Size       string          `json:"product_size"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type Cart struct {
	ID       int64           `json:"id"`
	UserID   string          `json:"user_id"`
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

type AddItemRequest struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// ProductInfo is the denormalized display data the caller already has when
// adding a product.
type ProductInfo struct {
	Name  string
	Image string
	Slug  string
}

// State is the read-only view handed to consumers.
type State struct {
	Cart      *Cart
	Loading   bool
	Error     string
	ItemCount int
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
	// Version increases with every change; consumers may drop older states.
	Version uint64
}
