package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 15 * time.Second
	defaultRPS     = 10
	defaultBurst   = 20
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RPS        float64
	Burst      int
	HTTPClient *http.Client
	// OnUnauthorized runs after any 401, typically to end the session.
	OnUnauthorized func()
}

// Client talks to the REST cart service.
type Client struct {
	baseURL        string
	tokens         TokenSource
	httpClient     *http.Client
	limiter        *rate.Limiter
	onUnauthorized func()
}

var _ cart.Remote = (*Client)(nil)

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

// detailMessage accepts both a plain string detail and a list of
// validation issues, joining the latter's messages.
func detailMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return ""
	}

	var msg string
	if err := json.Unmarshal(e.Detail, &msg); err == nil {
		return msg
	}

	var issues []validationIssue
	if err := json.Unmarshal(e.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if issue.Msg != "" {
				msgs = append(msgs, issue.Msg)
			}
		}
		return strings.Join(msgs, ", ")
	}
	return ""
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func New(tokens TokenSource, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RPS <= 0 {
		opts.RPS = defaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		tokens:         tokens,
		httpClient:     opts.HTTPClient,
		limiter:        rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		onUnauthorized: opts.OnUnauthorized,
	}, nil
}

// GetCart fetches the current user's cart.
func (c *Client) GetCart(ctx context.Context) (*cart.Cart, error) {
	var out cart.Cart
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddItem adds a variant and returns the full cart, which carries the new
// item's id.
func (c *Client) AddItem(ctx context.Context, req cart.AddItemRequest) (*cart.Cart, error) {
	var out cart.Cart
	if err := c.do(ctx, http.MethodPost, "/cart", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	path := fmt.Sprintf("/cart/%d", itemID)
	return c.do(ctx, http.MethodPut, path, updateQuantityRequest{Quantity: quantity}, &statusResponse{})
}

func (c *Client) RemoveItem(ctx context.Context, itemID int64) error {
	path := fmt.Sprintf("/cart/%d", itemID)
	return c.do(ctx, http.MethodDelete, path, nil, &statusResponse{})
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, &statusResponse{})
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	requestID := uuid.New().String()
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cartclient"),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		log.Warn("request not sent", zap.Error(err))
		return err
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			log.Error("failed to marshal request", zap.Error(err))
			return err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(logger.RequestIDHeader, requestID)
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	timer := metrics.StartTimer()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("cart request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read response body", zap.Error(err))
		return fmt.Errorf("failed to read cart response: %w", err)
	}

	log = log.With(zap.Int("status", resp.StatusCode), zap.Duration("duration", timer.Duration()))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := detailMessage(bodyBytes)
		log.Warn("cart service returned non-success status", zap.String("detail", detail))

		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	log.Debug("cart request succeeded")

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		log.Error("failed to decode response", zap.Error(err))
		return fmt.Errorf("failed to decode cart response: %w", err)
	}
	return nil
}
