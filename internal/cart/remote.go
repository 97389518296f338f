package cart

import (
	"context"
	"time"
)

// Remote is the authoritative cart service.
type Remote interface {
	GetCart(ctx context.Context) (*Cart, error)
	AddItem(ctx context.Context, req AddItemRequest) (*Cart, error)
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, itemID int64) error
	ClearCart(ctx context.Context) error
}

// Identity reports the session state that gates hydration.
type Identity interface {
	IsAuthenticated() bool
	IsLoading() bool
}

// Timer is a cancellable scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
