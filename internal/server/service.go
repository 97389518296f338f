package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront-cart/internal/auth"
	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/store"

	"go.uber.org/zap"
)

const (
	defaultRole       = "user"
	minPasswordLength = 6
)

// CartService holds the server-side cart rules: the catalog owns prices,
// variants merge into one line and stock bounds every quantity.
type CartService interface {
	GetCart(ctx context.Context, userID int64) (*cart.Cart, error)
	AddItem(ctx context.Context, userID int64, req cart.AddItemRequest) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

type AuthService interface {
	Register(ctx context.Context, email, password string) (*store.User, string, error)
	Login(ctx context.Context, email, password string) (*store.User, string, error)
}

type cartService struct {
	repo    store.CartRepository
	catalog store.CatalogRepository
}

func NewCartService(repo store.CartRepository, catalog store.CatalogRepository) CartService {
	return &cartService{repo: repo, catalog: catalog}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*cart.Cart, error) {
	lines, err := s.repo.GetCartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildCart(userID, lines), nil
}

func buildCart(userID int64, lines []store.CartLine) *cart.Cart {
	c := cart.Empty()
	c.ID = userID
	c.UserID = fmt.Sprint(userID)
	for _, l := range lines {
		it := cart.Item{
			ID:        l.ID,
			ProductID: l.ProductID,
			Size:      l.Size,
			Quantity:  l.Quantity,
			UnitPrice: l.Variant.Price,
		}
		if l.Variant.Name != "" {
			it.Name = &l.Variant.Name
		}
		if l.Variant.ImageURL != "" {
			it.Image = &l.Variant.ImageURL
		}
		if l.Variant.Slug != "" {
			it.Slug = &l.Variant.Slug
		}
		c.Items = append(c.Items, it)
	}
	c.Recalculate()
	return c
}

// AddItem merges into an existing line for the same variant and returns
// the whole cart so the caller learns the line's id.
func (s *cartService) AddItem(ctx context.Context, userID int64, req cart.AddItemRequest) (*cart.Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddItem"),
		zap.Int64("product_id", req.ProductID),
		zap.String("size", req.Size),
	)

	if req.Quantity <= 0 {
		return nil, store.ErrInvalidQuantity
	}

	variant, err := s.catalog.GetVariant(ctx, req.ProductID, req.Size)
	if err != nil {
		log.Warn("variant lookup failed", zap.Error(err))
		return nil, err
	}

	existing, err := s.repo.GetCartItemByUserAndVariant(ctx, userID, req.ProductID, req.Size)
	if err != nil {
		return nil, err
	}

	finalQty := req.Quantity
	if existing != nil {
		finalQty += existing.Quantity
	}
	if variant.Stock < finalQty {
		log.Info("insufficient stock", zap.Int("stock", variant.Stock), zap.Int("requested", finalQty))
		return nil, ErrInsufficientStock
	}

	if existing == nil {
		_, err = s.repo.CreateCartItem(ctx, store.CreateCartItemParams{
			UserID:    userID,
			ProductID: req.ProductID,
			Size:      req.Size,
			Quantity:  req.Quantity,
		})
	} else {
		_, err = s.repo.UpdateCartItemQuantity(ctx, userID, existing.ID, finalQty)
	}
	if err != nil {
		log.Error("failed to save cart item", zap.Error(err))
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	if quantity <= 0 {
		return store.ErrInvalidQuantity
	}

	item, err := s.repo.GetCartItem(ctx, userID, itemID)
	if err != nil {
		return err
	}

	variant, err := s.catalog.GetVariant(ctx, item.ProductID, item.Size)
	if err != nil {
		return err
	}
	if variant.Stock < quantity {
		return ErrInsufficientStock
	}

	_, err = s.repo.UpdateCartItemQuantity(ctx, userID, itemID, quantity)
	return err
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	return s.repo.RemoveCartItem(ctx, userID, itemID)
}

func (s *cartService) ClearCart(ctx context.Context, userID int64) error {
	return s.repo.ClearCart(ctx, userID)
}

type authService struct {
	users  store.UserRepository
	issuer *auth.Issuer
}

func NewAuthService(users store.UserRepository, issuer *auth.Issuer) AuthService {
	return &authService{users: users, issuer: issuer}
}

func (s *authService) Register(ctx context.Context, email, password string) (*store.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, "", ErrPasswordTooWeak
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	u, err := s.users.CreateUser(ctx, email, hash, defaultRole)
	if err != nil {
		return nil, "", err
	}

	token, err := s.issuer.Generate(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", err
	}

	logger.FromCtx(ctx).Info("user registered", zap.Int64("user_id", u.ID))
	return u, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !auth.CheckPasswordHash(password, u.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}
