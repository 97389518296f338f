package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockRemote is a mock implementation of the Remote interface
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) GetCart(ctx context.Context) (*Cart, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Cart).Clone(), args.Error(1)
}

func (m *MockRemote) AddItem(ctx context.Context, req AddItemRequest) (*Cart, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Cart).Clone(), args.Error(1)
}

func (m *MockRemote) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	args := m.Called(ctx, itemID, quantity)
	return args.Error(0)
}

func (m *MockRemote) RemoveItem(ctx context.Context, itemID int64) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockRemote) ClearCart(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fakeIdentity struct {
	authenticated atomic.Bool
	loading       atomic.Bool
}

func loggedIn() *fakeIdentity {
	id := &fakeIdentity{}
	id.authenticated.Store(true)
	return id
}

func (f *fakeIdentity) IsAuthenticated() bool { return f.authenticated.Load() }
func (f *fakeIdentity) IsLoading() bool       { return f.loading.Load() }

// fakeScheduler hands out timers that only fire when the test says so.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Active counts timers that are neither stopped nor fired.
func (s *fakeScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// FireAll runs every active timer, as if the debounce window elapsed.
func (s *fakeScheduler) FireAll() {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func newTestSync(remote Remote, identity Identity) (*Synchronizer, *fakeScheduler) {
	sched := &fakeScheduler{}
	s := New(remote, identity, Options{
		Scheduler: sched,
		Logger:    zap.NewNop(),
	})
	return s, sched
}

func item(id, productID int64, size string, qty int, price int64) Item {
	return Item{
		ID:        id,
		ProductID: productID,
		Size:      size,
		Quantity:  qty,
		UnitPrice: decimal.NewFromInt(price),
	}
}

func cartOf(items ...Item) *Cart {
	c := &Cart{ID: 1, UserID: "u-1", Items: items}
	if c.Items == nil {
		c.Items = []Item{}
	}
	c.Recalculate()
	return c
}

type detailErr string

func (d detailErr) Error() string       { return "remote: " + string(d) }
func (d detailErr) ErrorDetail() string { return string(d) }
