package handler

import (
	"log/slog"
	"net/http"

	"github.com/fjellmark/njord/internal/service"
)

// CartHandler serves the cart endpoints under /api/cart.
type CartHandler struct {
	carts  service.CartService
	logger *slog.Logger
}

// NewCartHandler creates a cart handler.
func NewCartHandler(carts service.CartService, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{carts: carts, logger: logger}
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int32  `json:"quantity" validate:"required,gt=0"`
}

type updateQuantityRequest struct {
	Quantity *int32 `json:"quantity" validate:"required,gte=0"`
}

// GetCart handles GET /api/cart/{userId}. A first-time user gets an empty
// cart.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetCart(r.Context(), r.PathValue("userId"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart/{userId}/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), r.PathValue("userId"), req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// UpdateQuantity handles PUT /api/cart/{userId}/items/{productId}. A zero
// quantity removes the line; negative quantities fail validation.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), r.PathValue("userId"), r.PathValue("productId"), *req.Quantity)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/cart/{userId}/items/{productId}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), r.PathValue("userId"), r.PathValue("productId"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// ClearCart handles DELETE /api/cart/{userId}.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.ClearCart(r.Context(), r.PathValue("userId"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// Validate handles POST /api/cart/{userId}/validate.
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	result, err := h.carts.Validate(r.Context(), r.PathValue("userId"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
