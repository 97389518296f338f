package cartclient

import (
	"context"
	"net/http"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Register creates an account and returns its access token.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", credentials{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}
