package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/service"
)

// OrderHandler serves order creation (checkout), reads, status transitions
// and cancellation.
type OrderHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
	logger   *slog.Logger
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(checkout service.CheckoutService, orders service.OrderService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{checkout: checkout, orders: orders, logger: logger}
}

type addressRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required"`
	Country   string `json:"country" validate:"required"`
	Phone     string `json:"phone"`
}

func (a addressRequest) toDomain() domain.Address {
	return domain.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		ZipCode:   a.ZipCode,
		Country:   a.Country,
		Phone:     a.Phone,
	}
}

type createOrderRequest struct {
	UserID          string            `json:"userId" validate:"required"`
	ShippingAddress addressRequest    `json:"shippingAddress" validate:"required"`
	BillingAddress  *addressRequest   `json:"billingAddress"`
	PaymentMethod   string            `json:"paymentMethod" validate:"required"`
	ShippingMethod  string            `json:"shippingMethod" validate:"required,oneof=standard express overnight"`
	PaymentDetails  map[string]string `json:"paymentDetails"`
	Notes           string            `json:"notes"`
}

type updateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
	Reason         string `json:"reason"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// Create handles POST /api/orders: the checkout saga.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	params := service.PlaceOrderParams{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		ShippingMethod:  req.ShippingMethod,
		PaymentDetails:  req.PaymentDetails,
		Notes:           req.Notes,
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		params.BillingAddress = &billing
	}

	order, err := h.checkout.PlaceOrder(r.Context(), params)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ListByUser handles GET /api/orders/user/{userId}?status=&limit=&offset=.
func (h *OrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	filter := domain.OrderFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Limit:  queryInt32(r, "limit"),
		Offset: queryInt32(r, "offset"),
	}

	orders, err := h.orders.ListUserOrders(r.Context(), r.PathValue("userId"), filter)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// UpdateStatus handles PUT /api/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), service.StatusUpdateParams{
		Status:         domain.OrderStatus(req.Status),
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Reason:         req.Reason,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// Cancel handles DELETE /api/orders/{id}. The body is optional.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, h.logger, r, err)
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by user"
	}

	order, err := h.orders.CancelOrder(r.Context(), r.PathValue("id"), reason)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func queryInt32(r *http.Request, key string) int32 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}
