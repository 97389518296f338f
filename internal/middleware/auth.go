package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"storefront-cart/internal/auth"
	"storefront-cart/internal/logger"

	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey      contextKey = "userID"
	TokenClaimsKey contextKey = "jwtClaims"
)

// GetUserIDFromContext returns the id stored by RequireAuth.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(TokenClaimsKey).(*auth.Claims)
	return c, ok
}

// RequireAuth rejects requests without a valid bearer token with 401 and a
// {"detail": ...} body. Valid claims are attached to the request context.
func RequireAuth(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				unauthorized(w, "Not authenticated")
				return
			}

			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("rejected token", zap.Error(err))
				unauthorized(w, "Could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), TokenClaimsKey, claims)
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = logger.WithUserID(ctx, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
