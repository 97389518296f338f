package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-cart/internal/logger"
	"storefront-cart/internal/metrics"

	"go.uber.org/zap"
)

const (
	DefaultDebounce       = 400 * time.Millisecond
	DefaultRequestTimeout = 15 * time.Second
)

type Options struct {
	// Debounce is the quiet period before a quantity change is sent.
	Debounce time.Duration
	// RequestTimeout bounds background remote calls.
	RequestTimeout time.Duration
	Scheduler      Scheduler
	Logger         *zap.Logger
}

// pendingUpdate is one ledger entry: the latest desired quantity for an item
// and the timer that will dispatch it.
type pendingUpdate struct {
	quantity int
	timer    Timer
}

type variantKey struct {
	productID int64
	size      string
}

type variantLock struct {
	mu   sync.Mutex
	refs int
}

// Synchronizer owns the in-memory cart of one session. Local mutations are
// applied immediately; quantity changes are coalesced per item and sent after
// a quiet period; remote failures are reconciled by re-reading the cart.
type Synchronizer struct {
	remote   Remote
	identity Identity
	opts     Options
	log      *zap.Logger
	stats    *metrics.Set

	mu       sync.Mutex
	idle     *sync.Cond
	cart     *Cart
	loading  int
	errMsg   string
	version  uint64
	epoch    uint64
	inflight int
	closed   bool
	pending  map[int64]*pendingUpdate
	adding   map[variantKey]*variantLock

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func New(remote Remote, identity Identity, opts Options) *Synchronizer {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("cart_sync")
	}

	s := &Synchronizer{
		remote:   remote,
		identity: identity,
		opts:     opts,
		log:      opts.Logger,
		stats:    metrics.NewSet(),
		pending:  make(map[int64]*pendingUpdate),
		adding:   make(map[variantKey]*variantLock),
		subs:     make(map[int]func(State)),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// State returns a snapshot of the cart and its derived values.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() State {
	st := State{
		Cart:      s.cart.Clone(),
		Loading:   s.loading > 0,
		Error:     s.errMsg,
		ItemCount: s.cart.ItemCount(),
		Version:   s.version,
	}
	if s.cart != nil {
		st.Subtotal = s.cart.Subtotal
		st.Total = s.cart.Total
	}
	return st
}

// Subscribe registers fn to receive a snapshot after every change.
func (s *Synchronizer) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// changedLocked bumps the version and returns the snapshot to publish once
// the lock is released.
func (s *Synchronizer) changedLocked() State {
	s.version++
	return s.snapshotLocked()
}

func (s *Synchronizer) publish(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Hydrate replaces local state with the remote cart. Without an
// authenticated session the session is reset instead. On failure the cart
// falls back to empty and the error is recorded.
func (s *Synchronizer) Hydrate(ctx context.Context) {
	if !s.identity.IsAuthenticated() {
		s.reset()
		return
	}

	s.mu.Lock()
	epoch := s.epoch
	s.loading++
	s.errMsg = ""
	st := s.changedLocked()
	s.mu.Unlock()
	s.publish(st)

	log := s.log.With(zap.String("method", "Hydrate"))
	s.stats.Counter("hydrations").Inc()
	c, err := s.remote.GetCart(ctx)

	s.mu.Lock()
	s.loading--
	switch {
	case epoch != s.epoch:
		log.Debug("discarding hydrate result from previous session")
	case err != nil:
		s.stats.Counter("hydrate_failures").Inc()
		log.Error("failed to hydrate cart", zap.Error(fmt.Errorf("%w: %w", ErrHydrationFailed, err)))
		s.errMsg = displayMessage(err, msgHydrateFailed)
		s.cart = Empty()
	default:
		c.Recalculate()
		s.cart = c
		log.Debug("cart hydrated", zap.Int("items", len(c.Items)))
	}
	st = s.changedLocked()
	s.mu.Unlock()
	s.publish(st)
}

// AddItem adds quantity of a variant. A variant already in the cart is merged
// locally and its new quantity goes through the debounced path. A new variant
// needs an id from the server, so it is added remotely first and the
// server's cart replaces local state.
func (s *Synchronizer) AddItem(ctx context.Context, req AddItemRequest, info ProductInfo) error {
	if req.Quantity < 1 {
		return ErrInvalidQuantity
	}

	merged, err := s.mergeExisting(req, info)
	if err != nil || merged {
		return err
	}

	// Concurrent adds of the same new variant would each create a server
	// line; the second waits and then merges into the first.
	key := variantKey{productID: req.ProductID, size: req.Size}
	unlock := s.lockVariant(key)
	defer unlock()

	merged, err = s.mergeExisting(req, info)
	if err != nil || merged {
		return err
	}

	return s.addRemote(ctx, req, info)
}

func (s *Synchronizer) mergeExisting(req AddItemRequest, info ProductInfo) (bool, error) {
	s.mu.Lock()
	if s.cart == nil {
		s.mu.Unlock()
		return false, ErrNotHydrated
	}
	i := s.cart.FindVariant(req.ProductID, req.Size)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}

	item := &s.cart.Items[i]
	newQuantity := item.Quantity + req.Quantity
	item.Quantity = newQuantity
	item.fillDisplay(info)
	itemID := item.ID
	s.cart.Recalculate()
	s.scheduleLocked(itemID, newQuantity)
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
	return true, nil
}

func (s *Synchronizer) addRemote(ctx context.Context, req AddItemRequest, info ProductInfo) error {
	s.mu.Lock()
	epoch := s.epoch
	s.loading++
	st := s.changedLocked()
	s.mu.Unlock()
	s.publish(st)

	log := s.log.With(
		zap.String("method", "AddItem"),
		zap.Int64("product_id", req.ProductID),
		zap.String("size", req.Size),
		zap.Int("quantity", req.Quantity),
	)
	s.stats.Counter("remote_adds").Inc()
	c, err := s.remote.AddItem(ctx, req)

	s.mu.Lock()
	s.loading--
	switch {
	case err != nil:
		s.stats.Counter("add_failures").Inc()
		err = fmt.Errorf("%w: %w", ErrAddItemFailed, err)
		log.Error("failed to add item", zap.Error(err))
		if epoch == s.epoch {
			s.errMsg = displayMessage(err, msgAddFailed)
		}
	case epoch == s.epoch:
		if i := c.FindVariant(req.ProductID, req.Size); i >= 0 {
			c.Items[i].fillDisplay(info)
		}
		c.Recalculate()
		s.cart = c
		log.Info("item added", zap.Int("items", len(c.Items)))
	}
	st = s.changedLocked()
	s.mu.Unlock()
	s.publish(st)

	return err
}

func (s *Synchronizer) lockVariant(key variantKey) func() {
	s.mu.Lock()
	l, ok := s.adding[key]
	if !ok {
		l = &variantLock{}
		s.adding[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.adding, key)
		}
		s.mu.Unlock()
	}
}

// UpdateQuantity sets an item's quantity locally and schedules the remote
// update. Quantities below 1 are ignored; removal is RemoveItem.
func (s *Synchronizer) UpdateQuantity(itemID int64, quantity int) {
	if quantity < 1 {
		return
	}

	s.mu.Lock()
	if s.cart == nil || !s.cart.SetQuantity(itemID, quantity) {
		s.mu.Unlock()
		return
	}
	s.scheduleLocked(itemID, quantity)
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
}

// RemoveItem drops an item locally, cancels its pending update and removes
// it remotely in the background. A failed removal triggers a rehydrate.
func (s *Synchronizer) RemoveItem(itemID int64) {
	s.mu.Lock()
	if s.cart == nil {
		s.mu.Unlock()
		return
	}
	s.cancelLocked(itemID)
	s.cart.Remove(itemID)
	st := s.changedLocked()
	s.inflight++
	s.mu.Unlock()
	s.publish(st)

	go func() {
		defer s.done()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
		defer cancel()

		s.stats.Counter("removes").Inc()
		if err := s.remote.RemoveItem(ctx, itemID); err != nil {
			s.stats.Counter("remove_failures").Inc()
			s.log.Error("failed to remove item",
				zap.Int64("item_id", itemID),
				zap.Error(fmt.Errorf("%w: %w", ErrRemoveSyncFailed, err)),
			)
			s.rehydrate()
		}
	}()
}

// ClearCart resets local state to an empty cart. The order flow clears the
// server-side cart.
func (s *Synchronizer) ClearCart() {
	s.mu.Lock()
	s.cancelAllLocked()
	s.cart = Empty()
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
}

// DismissError clears the recorded error message.
func (s *Synchronizer) DismissError() {
	s.mu.Lock()
	if s.errMsg == "" {
		s.mu.Unlock()
		return
	}
	s.errMsg = ""
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
}

// SessionChanged reacts to an identity transition: a settled authenticated
// session hydrates in the background, a settled anonymous one drops the cart
// and every pending update.
func (s *Synchronizer) SessionChanged() {
	if s.identity.IsLoading() {
		return
	}

	if s.identity.IsAuthenticated() {
		s.mu.Lock()
		s.inflight++
		s.mu.Unlock()

		go func() {
			defer s.done()
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
			defer cancel()
			s.Hydrate(ctx)
		}()
		return
	}

	s.reset()
}

// reset ends the current session locally: pending updates are dropped and
// results still in flight for it are discarded.
func (s *Synchronizer) reset() {
	s.mu.Lock()
	s.epoch++
	s.cancelAllLocked()
	s.cart = nil
	s.errMsg = ""
	st := s.changedLocked()
	s.mu.Unlock()

	s.publish(st)
}

// Flush dispatches every pending quantity update now instead of waiting for
// its timer.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	due := make(map[int64]int, len(s.pending))
	for id, p := range s.pending {
		p.timer.Stop()
		due[id] = p.quantity
		delete(s.pending, id)
	}
	s.inflight += len(due)
	s.mu.Unlock()
	s.stats.Counter("flushed_updates").Add(uint64(len(due)))

	var errs []error
	for id, qty := range due {
		if err := s.sendQuantity(ctx, id, qty); err != nil {
			errs = append(errs, err)
		}
		s.done()
	}
	return errors.Join(errs...)
}

// Wait blocks until background remote calls have finished.
func (s *Synchronizer) Wait() {
	s.mu.Lock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Close stops all pending timers without dispatching them.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelAllLocked()
	s.mu.Unlock()

	s.log.Debug("synchronizer closed", s.stats.Fields()...)
}

// Stats reports how many remote calls of each kind were made. Comparing
// quantity_changes with quantity_updates_sent shows the debounce at work.
func (s *Synchronizer) Stats() map[string]uint64 {
	return s.stats.Snapshot()
}

// Pending reports how many items have a debounced update waiting.
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Synchronizer) done() {
	s.mu.Lock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// scheduleLocked replaces the item's ledger entry and restarts its timer.
func (s *Synchronizer) scheduleLocked(itemID int64, quantity int) {
	if s.closed {
		return
	}
	s.cancelLocked(itemID)
	s.stats.Counter("quantity_changes").Inc()

	p := &pendingUpdate{quantity: quantity}
	s.pending[itemID] = p
	p.timer = s.opts.Scheduler.AfterFunc(s.opts.Debounce, func() {
		s.fire(itemID, p)
	})
}

func (s *Synchronizer) cancelLocked(itemID int64) {
	if p, ok := s.pending[itemID]; ok {
		p.timer.Stop()
		delete(s.pending, itemID)
	}
}

func (s *Synchronizer) cancelAllLocked() {
	for id := range s.pending {
		s.cancelLocked(id)
	}
}

// fire runs on the timer goroutine. A timer that already fired may lose the
// race against a reschedule or removal; only the entry still in the ledger
// is dispatched.
func (s *Synchronizer) fire(itemID int64, p *pendingUpdate) {
	s.mu.Lock()
	if s.closed || s.pending[itemID] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, itemID)
	quantity := p.quantity
	s.inflight++
	s.mu.Unlock()

	defer s.done()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()
	_ = s.sendQuantity(ctx, itemID, quantity)
}

// sendQuantity issues one remote update. Success leaves local state alone;
// failure rehydrates.
func (s *Synchronizer) sendQuantity(ctx context.Context, itemID int64, quantity int) error {
	log := s.log.With(zap.Int64("item_id", itemID), zap.Int("quantity", quantity))

	s.stats.Counter("quantity_updates_sent").Inc()
	if err := s.remote.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		s.stats.Counter("quantity_updates_failed").Inc()
		err = fmt.Errorf("%w: %w", ErrQuantitySyncFailed, err)
		log.Error("failed to sync quantity", zap.Error(err))
		s.rehydrate()
		return err
	}

	log.Debug("quantity synced")
	return nil
}

func (s *Synchronizer) rehydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RequestTimeout)
	defer cancel()
	s.Hydrate(ctx)
}
