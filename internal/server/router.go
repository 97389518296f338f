package server

import (
	"net/http"

	"storefront-cart/internal/auth"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/middleware"
	"storefront-cart/internal/store"
)

type Deps struct {
	Store      store.Store
	Issuer     *auth.Issuer
	Limiter    *middleware.Limiter
	CORSOrigin string
}

// NewRouter wires the cart and auth endpoints. Cart routes require a bearer
// token; every route is rate limited per caller.
func NewRouter(d Deps) http.Handler {
	h := NewHandler(
		NewCartService(d.Store, d.Store),
		NewAuthService(d.Store, d.Issuer),
	)
	if d.Limiter == nil {
		d.Limiter = middleware.NewLimiter()
	}
	requireAuth := middleware.RequireAuth(d.Issuer)

	public := func(fn http.HandlerFunc) http.Handler {
		return d.Limiter.Middleware(fn)
	}
	protected := func(fn http.HandlerFunc) http.Handler {
		return requireAuth(d.Limiter.Middleware(fn))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)

	mux.Handle("POST /auth/register", public(h.Register))
	mux.Handle("POST /auth/login", public(h.Login))

	mux.Handle("GET /cart", protected(h.GetCart))
	mux.Handle("POST /cart", protected(h.AddItem))
	mux.Handle("DELETE /cart", protected(h.ClearCart))
	mux.Handle("PUT /cart/{id}", protected(h.UpdateItem))
	mux.Handle("DELETE /cart/{id}", protected(h.RemoveItem))

	var handler http.Handler = mux
	if d.CORSOrigin != "" {
		handler = middleware.CORS(d.CORSOrigin)(handler)
	}
	return logger.RequestIDMiddleware(logger.LoggingMiddleware(handler))
}
