// Package routes wires handlers onto the router.
package routes

import (
	"net/http"

	"github.com/fjellmark/njord/internal/handler"
	"github.com/fjellmark/njord/internal/router"
)

// APIDeps contains the handlers behind the JSON API.
type APIDeps struct {
	Health  *handler.HealthHandler
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Payment *handler.PaymentHandler
	Metrics http.Handler
}

// RegisterAPIRoutes registers every JSON API route.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Get("/api/health", deps.Health.Health)
	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Cart
	r.Get("/api/cart/{userId}", deps.Cart.GetCart)
	r.Post("/api/cart/{userId}/items", deps.Cart.AddItem)
	r.Put("/api/cart/{userId}/items/{productId}", deps.Cart.UpdateQuantity)
	r.Delete("/api/cart/{userId}/items/{productId}", deps.Cart.RemoveItem)
	r.Delete("/api/cart/{userId}", deps.Cart.ClearCart)
	r.Post("/api/cart/{userId}/validate", deps.Cart.Validate)

	// Orders
	r.Post("/api/orders", deps.Order.Create)
	r.Get("/api/orders/user/{userId}", deps.Order.ListByUser)
	r.Get("/api/orders/{id}", deps.Order.Get)
	r.Put("/api/orders/{id}/status", deps.Order.UpdateStatus)
	r.Delete("/api/orders/{id}", deps.Order.Cancel)

	// Payments
	r.Post("/api/payments/process", deps.Payment.Process)
	r.Post("/api/payments/refund", deps.Payment.Refund)
	r.Get("/api/payments/order/{orderId}", deps.Payment.GetByOrder)
}
