// Package handler exposes the storefront over HTTP: cart state, checkout
// sessions and the two-phase submit flow. Handlers stay thin; pricing and
// protocol rules live in the domain packages.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/checkout"
)

// Handler serves the storefront API.
type Handler struct {
	auth      *Authenticator
	carts     *cart.Service
	checkouts *checkout.Orchestrator
}

// NewHandler constructs a Handler with its collaborators.
func NewHandler(auth *Authenticator, carts *cart.Service, checkouts *checkout.Orchestrator) *Handler {
	return &Handler{
		auth:      auth,
		carts:     carts,
		checkouts: checkouts,
	}
}

// Routes builds the authenticated API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.auth.Middleware)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addItem)
		r.Patch("/items/{productID}", h.updateItem)
		r.Delete("/items/{productID}", h.removeItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.beginCheckout)
		r.Get("/{sessionID}", h.getCheckout)
		r.Put("/{sessionID}/delivery", h.selectDelivery)
		r.Post("/{sessionID}/submit", h.submitCheckout)
		r.Post("/{sessionID}/payment", h.completePayment)
	})

	return r
}
