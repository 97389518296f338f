package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type variantKey struct {
	productID int64
	size      string
}

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	items    map[int64]*CartItem
	variants map[variantKey]Variant
	users    map[string]*User
	nextItem int64
	nextUser int64
}

func NewMemory(catalog ...Variant) *Memory {
	m := &Memory{
		items:    make(map[int64]*CartItem),
		variants: make(map[variantKey]Variant),
		users:    make(map[string]*User),
	}
	for _, v := range catalog {
		m.variants[variantKey{v.ProductID, v.Size}] = v
	}
	return m
}

func (m *Memory) GetCartLines(ctx context.Context, userID int64) ([]CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make([]CartLine, 0)
	for _, it := range m.items {
		if it.UserID != userID {
			continue
		}
		lines = append(lines, CartLine{
			CartItem: *it,
			Variant:  m.variants[variantKey{it.ProductID, it.Size}],
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (m *Memory) GetCartItemByUserAndVariant(ctx context.Context, userID, productID int64, size string) (*CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, it := range m.items {
		if it.UserID == userID && it.ProductID == productID && it.Size == size {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetCartItem(ctx context.Context, userID, itemID int64) (*CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[itemID]
	if !ok || it.UserID != userID {
		return nil, ErrCartItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *Memory) CreateCartItem(ctx context.Context, params CreateCartItemParams) (*CartItem, error) {
	if params.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, it := range m.items {
		if it.UserID == params.UserID && it.ProductID == params.ProductID && it.Size == params.Size {
			it.Quantity += params.Quantity
			it.UpdatedAt = &now
			cp := *it
			return &cp, nil
		}
	}

	m.nextItem++
	it := &CartItem{
		ID:        m.nextItem,
		UserID:    params.UserID,
		ProductID: params.ProductID,
		Size:      params.Size,
		Quantity:  params.Quantity,
		CreatedAt: now,
	}
	m.items[it.ID] = it
	cp := *it
	return &cp, nil
}

func (m *Memory) UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) (*CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[itemID]
	if !ok || it.UserID != userID {
		return nil, ErrCartItemNotFound
	}
	now := time.Now()
	it.Quantity = quantity
	it.UpdatedAt = &now
	cp := *it
	return &cp, nil
}

func (m *Memory) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[itemID]
	if !ok || it.UserID != userID {
		return ErrCartItemNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *Memory) ClearCart(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, it := range m.items {
		if it.UserID == userID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *Memory) GetVariant(ctx context.Context, productID int64, size string) (*Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.variants[variantKey{productID, size}]
	if !ok {
		return nil, ErrVariantNotFound
	}
	return &v, nil
}

func (m *Memory) UpsertVariant(ctx context.Context, v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variants[variantKey{v.ProductID, v.Size}] = v
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, email, passwordHash, role string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(email)
	if _, ok := m.users[email]; ok {
		return nil, ErrEmailExists
	}
	m.nextUser++
	u := &User{ID: m.nextUser, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now()}
	m.users[email] = u
	cp := *u
	return &cp, nil
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
