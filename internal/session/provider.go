package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-cart/internal/auth"
	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

var ErrTokenExpired = errors.New("access token has expired")

type Status struct {
	Authenticated bool
	Loading       bool
	UserID        int64
}

// Provider is the identity of the current shopper. It owns the access token
// and tells subscribers whenever the session changes.
type Provider struct {
	store TokenStore
	now   func() time.Time
	log   *zap.Logger

	mu      sync.Mutex
	token   string
	claims  *auth.Claims
	loading bool

	subMu  sync.Mutex
	subs   map[int]func(Status)
	nextID int
}

func NewProvider(store TokenStore) *Provider {
	if store == nil {
		store = &MemoryStore{}
	}
	return &Provider{
		store:   store,
		now:     time.Now,
		log:     logger.Named("session"),
		loading: true,
		subs:    make(map[int]func(Status)),
	}
}

// Bootstrap restores a persisted token. The session reports loading until
// it returns.
func (p *Provider) Bootstrap() error {
	p.mu.Lock()
	p.loading = true
	p.mu.Unlock()

	token, err := p.store.Load()
	if err == nil && token != "" {
		err = p.setToken(token)
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, auth.ErrInvalidToken) {
			p.log.Info("discarding stored token", zap.Error(err))
			_ = p.store.Clear()
			err = nil
		}
	}

	p.mu.Lock()
	p.loading = false
	p.mu.Unlock()

	p.publish()
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	return nil
}

// Login installs a new access token and persists it.
func (p *Provider) Login(token string) error {
	if err := p.setToken(token); err != nil {
		return err
	}
	if err := p.store.Save(token); err != nil {
		p.log.Warn("failed to persist token", zap.Error(err))
	}

	p.mu.Lock()
	p.loading = false
	p.mu.Unlock()

	p.publish()
	return nil
}

// Logout forgets the token.
func (p *Provider) Logout() {
	p.mu.Lock()
	p.token = ""
	p.claims = nil
	p.loading = false
	p.mu.Unlock()

	if err := p.store.Clear(); err != nil {
		p.log.Warn("failed to clear stored token", zap.Error(err))
	}
	p.publish()
}

func (p *Provider) setToken(token string) error {
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return err
	}
	if claims.Expired(p.now()) {
		return ErrTokenExpired
	}

	p.mu.Lock()
	p.token = token
	p.claims = claims
	p.mu.Unlock()
	return nil
}

func (p *Provider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authenticatedLocked()
}

func (p *Provider) authenticatedLocked() bool {
	return p.token != "" && p.claims != nil && !p.claims.Expired(p.now())
}

func (p *Provider) IsLoading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Token returns the bearer token, or "" once it has expired.
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authenticatedLocked() {
		return ""
	}
	return p.token
}

func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{Authenticated: p.authenticatedLocked(), Loading: p.loading}
	if st.Authenticated {
		st.UserID = p.claims.UserID
	}
	return st
}

// Subscribe registers fn for every session change.
func (p *Provider) Subscribe(fn func(Status)) (unsubscribe func()) {
	p.subMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

func (p *Provider) publish() {
	st := p.Status()

	p.subMu.Lock()
	fns := make([]func(Status), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
