package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tribetrade/storefront/internal/domain/cart"
)

// cartView is the wire shape of a cart: the lines plus derived totals.
type cartView struct {
	Lines []cart.Line `json:"lines"`
	Total string      `json:"total"`
	Count int         `json:"count"`
}

func newCartView(c *cart.Cart) cartView {
	lines := c.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartView{
		Lines: lines,
		Total: c.Total().StringFixed(2),
		Count: c.Count(),
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	c, err := h.carts.Get(r.Context(), b.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	if err := h.carts.Clear(r.Context(), b.ID); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	var line cart.Line
	if err := decodeBody(r, &line); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if line.ProductID == "" {
		respondError(w, http.StatusBadRequest, "product_id is required", "")
		return
	}

	c, err := h.carts.Add(r.Context(), b, line)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

type updateItemRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	var req updateItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "delta must be non-zero", "")
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), b.ID, productID, req.Delta)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	c, err := h.carts.Remove(r.Context(), b.ID, productID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}
