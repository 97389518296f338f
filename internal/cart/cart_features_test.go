package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var errUnavailable = errors.New("remote unavailable")

// memoryRemote behaves like the cart service: it assigns ids, merges
// variants and records every call it receives.
type memoryRemote struct {
	mu          sync.Mutex
	prices      map[variantKey]decimal.Decimal
	cart        *Cart
	nextID      int64
	adds        int
	removes     int
	updates     [][2]int64
	failGet     bool
	failUpdates bool
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{prices: map[variantKey]decimal.Decimal{}, cart: Empty()}
}

func (m *memoryRemote) GetCart(ctx context.Context) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errUnavailable
	}
	return m.cart.Clone(), nil
}

func (m *memoryRemote) AddItem(ctx context.Context, req AddItemRequest) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds++
	price, ok := m.prices[variantKey{productID: req.ProductID, size: req.Size}]
	if !ok {
		return nil, fmt.Errorf("product %d size %q not sold", req.ProductID, req.Size)
	}
	if i := m.cart.FindVariant(req.ProductID, req.Size); i >= 0 {
		m.cart.Items[i].Quantity += req.Quantity
	} else {
		m.nextID++
		m.cart.Items = append(m.cart.Items, Item{
			ID: m.nextID, ProductID: req.ProductID, Size: req.Size,
			Quantity: req.Quantity, UnitPrice: price,
		})
	}
	m.cart.Recalculate()
	return m.cart.Clone(), nil
}

func (m *memoryRemote) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, [2]int64{itemID, int64(quantity)})
	if m.failUpdates {
		return errUnavailable
	}
	m.cart.SetQuantity(itemID, quantity)
	return nil
}

func (m *memoryRemote) RemoveItem(ctx context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes++
	m.cart.Remove(itemID)
	return nil
}

func (m *memoryRemote) ClearCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = Empty()
	return nil
}

type cartSyncFeature struct {
	remote   *memoryRemote
	identity *fakeIdentity
	sched    *fakeScheduler
	sync     *Synchronizer
}

func (f *cartSyncFeature) reset() {
	f.remote = newMemoryRemote()
	f.identity = loggedIn()
	f.sched = &fakeScheduler{}
	f.sync = New(f.remote, f.identity, Options{Scheduler: f.sched, Logger: zap.NewNop()})
}

func (f *cartSyncFeature) aSignedInShopperWithAnEmptyRemoteCart() error {
	f.sync.Hydrate(context.Background())
	if f.sync.State().Cart == nil {
		return errors.New("cart was not hydrated")
	}
	return nil
}

func (f *cartSyncFeature) theCatalogSells(productID int64, size string, price int64) error {
	f.remote.prices[variantKey{productID: productID, size: size}] = decimal.NewFromInt(price)
	return nil
}

func (f *cartSyncFeature) theShopperAdds(qty int, productID int64, size string) error {
	return f.sync.AddItem(context.Background(), AddItemRequest{ProductID: productID, Size: size, Quantity: qty}, ProductInfo{})
}

func (f *cartSyncFeature) theShopperSetsLineToQuantity(itemID int64, qty int) error {
	f.sync.UpdateQuantity(itemID, qty)
	return nil
}

func (f *cartSyncFeature) theShopperRemovesLine(itemID int64) error {
	f.sync.RemoveItem(itemID)
	f.sync.Wait()
	return nil
}

func (f *cartSyncFeature) theDebounceWindowElapses() error {
	f.sched.FireAll()
	f.sync.Wait()
	return nil
}

func (f *cartSyncFeature) theRemoteRejectsQuantityUpdates() error {
	f.remote.failUpdates = true
	return nil
}

func (f *cartSyncFeature) theRemoteCartIsUnavailable() error {
	f.remote.failGet = true
	return nil
}

func (f *cartSyncFeature) theCartIsHydrated() error {
	f.sync.Hydrate(context.Background())
	return nil
}

func (f *cartSyncFeature) theShopperSignsOut() error {
	f.identity.authenticated.Store(false)
	f.sync.SessionChanged()
	return nil
}

func (f *cartSyncFeature) theCartHasLines(n int) error {
	st := f.sync.State()
	if st.Cart == nil {
		return errors.New("cart is nil")
	}
	if len(st.Cart.Items) != n {
		return fmt.Errorf("expected %d lines, got %d", n, len(st.Cart.Items))
	}
	return nil
}

func (f *cartSyncFeature) lineHasQuantityAndTotal(itemID int64, qty int, total int64) error {
	st := f.sync.State()
	if st.Cart == nil {
		return errors.New("cart is nil")
	}
	i := st.Cart.IndexOf(itemID)
	if i < 0 {
		return fmt.Errorf("line %d not in cart", itemID)
	}
	it := st.Cart.Items[i]
	if it.Quantity != qty || !it.TotalPrice.Equal(decimal.NewFromInt(total)) {
		return fmt.Errorf("line %d: expected %d/%d, got %d/%s", itemID, qty, total, it.Quantity, it.TotalPrice)
	}
	return nil
}

func (f *cartSyncFeature) theSubtotalIs(amount int64) error {
	st := f.sync.State()
	if !st.Subtotal.Equal(decimal.NewFromInt(amount)) || !st.Total.Equal(st.Subtotal) {
		return fmt.Errorf("expected subtotal %d, got %s (total %s)", amount, st.Subtotal, st.Total)
	}
	return nil
}

func (f *cartSyncFeature) theRemoteReceivedAddCalls(n int) error {
	if f.remote.adds != n {
		return fmt.Errorf("expected %d add calls, got %d", n, f.remote.adds)
	}
	return nil
}

func (f *cartSyncFeature) theRemoteReceivedQuantityUpdates(n int) error {
	if len(f.remote.updates) != n {
		return fmt.Errorf("expected %d quantity updates, got %d", n, len(f.remote.updates))
	}
	return nil
}

func (f *cartSyncFeature) theRemoteReceivedRemoveCalls(n int) error {
	if f.remote.removes != n {
		return fmt.Errorf("expected %d remove calls, got %d", n, f.remote.removes)
	}
	return nil
}

func (f *cartSyncFeature) theLastQuantityUpdateWas(itemID int64, qty int64) error {
	if len(f.remote.updates) == 0 {
		return errors.New("no quantity updates")
	}
	last := f.remote.updates[len(f.remote.updates)-1]
	if last != [2]int64{itemID, qty} {
		return fmt.Errorf("expected update %d->%d, got %d->%d", itemID, qty, last[0], last[1])
	}
	return nil
}

func (f *cartSyncFeature) anErrorIsShown() error {
	if f.sync.State().Error == "" {
		return errors.New("expected an error message")
	}
	return nil
}

func (f *cartSyncFeature) thereIsNoCart() error {
	if f.sync.State().Cart != nil {
		return errors.New("expected nil cart")
	}
	return nil
}

func initializeCartSyncScenario(ctx *godog.ScenarioContext) {
	f := &cartSyncFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		f.reset()
		return ctx, nil
	})

	ctx.Step(`^a signed-in shopper with an empty remote cart$`, f.aSignedInShopperWithAnEmptyRemoteCart)
	ctx.Step(`^the catalog sells product (\d+) size "([^"]*)" at (\d+)$`, f.theCatalogSells)
	ctx.Step(`^the remote rejects quantity updates$`, f.theRemoteRejectsQuantityUpdates)
	ctx.Step(`^the remote cart is unavailable$`, f.theRemoteCartIsUnavailable)

	ctx.Step(`^the shopper adds (\d+) of product (\d+) size "([^"]*)"$`, f.theShopperAdds)
	ctx.Step(`^the shopper sets line (\d+) to quantity (\d+)$`, f.theShopperSetsLineToQuantity)
	ctx.Step(`^the shopper removes line (\d+)$`, f.theShopperRemovesLine)
	ctx.Step(`^the debounce window elapses$`, f.theDebounceWindowElapses)
	ctx.Step(`^the cart is hydrated$`, f.theCartIsHydrated)
	ctx.Step(`^the shopper signs out$`, f.theShopperSignsOut)

	ctx.Step(`^the cart has (\d+) lines?$`, f.theCartHasLines)
	ctx.Step(`^line (\d+) has quantity (\d+) and total (\d+)$`, f.lineHasQuantityAndTotal)
	ctx.Step(`^the subtotal is (\d+)$`, f.theSubtotalIs)
	ctx.Step(`^the remote received (\d+) add calls?$`, f.theRemoteReceivedAddCalls)
	ctx.Step(`^the remote received (\d+) quantity updates$`, f.theRemoteReceivedQuantityUpdates)
	ctx.Step(`^the remote received (\d+) remove calls?$`, f.theRemoteReceivedRemoveCalls)
	ctx.Step(`^the last quantity update was line (\d+) to (\d+)$`, f.theLastQuantityUpdateWas)
	ctx.Step(`^an error is shown$`, f.anErrorIsShown)
	ctx.Step(`^there is no cart$`, f.thereIsNoCart)
}

func TestCartSyncFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeCartSyncScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart_sync.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
