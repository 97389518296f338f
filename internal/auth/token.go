package auth

import (
	"net/http"
	"strings"
)

// AccessTokenCookie is read when a browser session carries no Authorization
// header.
const AccessTokenCookie = "access_token"

// ExtractAccessToken returns the request's access token, taken from a Bearer
// Authorization header first and the access token cookie otherwise.
func ExtractAccessToken(r *http.Request) string {
	if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
		return token
	}

	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// BearerToken parses an Authorization header value. The scheme is matched
// case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
