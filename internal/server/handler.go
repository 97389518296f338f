package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/middleware"
	"storefront-cart/internal/store"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Carts CartService
	Auth  AuthService
}

func NewHandler(carts CartService, authSvc AuthService) *Handler {
	return &Handler{Carts: carts, Auth: authSvc}
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	c, err := h.Carts.GetCart(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req cart.AddItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.Carts.AddItem(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	itemID, err := pathItemID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Carts.UpdateQuantity(r.Context(), userID, itemID, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	itemID, err := pathItemID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Carts.RemoveItem(r.Context(), userID, itemID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "removed"})
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.Carts.ClearCart(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, token, err := h.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTokenResponse(u, token))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(u, token))
}

func newTokenResponse(u *store.User, token string) tokenResponse {
	return tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        userResponse{ID: u.ID, Email: u.Email, Role: u.Role},
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, ErrUnauthenticated)
	}
	return userID, ok
}

func pathItemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidItemID
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)

	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "handler"),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Info("request rejected", zap.Error(err))
	}

	writeJSON(w, status, errorResponse{Detail: detail})
}
