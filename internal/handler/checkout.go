package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/checkout"
	"github.com/tribetrade/storefront/internal/domain/delivery"
)

type quoteView struct {
	Subtotal    string `json:"subtotal"`
	DeliveryFee string `json:"delivery_fee"`
	ProtocolFee string `json:"protocol_fee"`
	GrandTotal  string `json:"grand_total"`
}

func newQuoteView(q checkout.Quote) quoteView {
	return quoteView{
		Subtotal:    q.Subtotal.StringFixed(2),
		DeliveryFee: q.DeliveryFee.StringFixed(2),
		ProtocolFee: q.ProtocolFee.StringFixed(2),
		GrandTotal:  q.GrandTotal.StringFixed(2),
	}
}

// sessionView is the wire shape of a checkout session. The quote shown for an
// open session is a live preview; once the order is registered the captured
// quote is returned unchanged on every read.
type sessionView struct {
	ID           string           `json:"id"`
	State        checkout.State   `json:"state"`
	Lines        []cart.Line      `json:"lines"`
	SameCampus   bool             `json:"same_campus"`
	Mode         delivery.Mode    `json:"delivery_mode"`
	AllowedModes []delivery.Mode  `json:"allowed_modes"`
	Details      delivery.Details `json:"delivery_details"`
	PaymentRef   string           `json:"payment_ref"`
	OrderID      int64            `json:"order_id,omitempty"`
	Quote        quoteView        `json:"quote"`
}

func newSessionView(s checkout.View) sessionView {
	q := s.Quote
	if s.State == checkout.StateOpen {
		q = checkout.NewQuote(s.Lines, s.Mode)
	}
	return sessionView{
		ID:           s.ID,
		State:        s.State,
		Lines:        s.Lines,
		SameCampus:   s.SameCampus,
		Mode:         s.Mode,
		AllowedModes: delivery.AllowedModes(s.SameCampus),
		Details:      s.Details,
		PaymentRef:   s.PaymentRef,
		OrderID:      s.OrderID,
		Quote:        newQuoteView(q),
	}
}

type beginCheckoutRequest struct {
	// SingleItem opens a buy-now session bypassing the stored cart.
	SingleItem *cart.Line `json:"single_item"`
}

func (h *Handler) beginCheckout(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	var req beginCheckoutRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
	}
	if req.SingleItem != nil && req.SingleItem.ProductID == "" {
		respondError(w, http.StatusBadRequest, "single_item.product_id is required", "")
		return
	}

	s, err := h.checkouts.Begin(r.Context(), b, TokenFromContext(r.Context()), req.SingleItem)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newSessionView(s))
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	s, err := h.checkouts.Session(b.ID, chi.URLParam(r, "sessionID"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(s))
}

type selectDeliveryRequest struct {
	Mode    delivery.Mode    `json:"mode"`
	Details delivery.Details `json:"details"`
}

func (h *Handler) selectDelivery(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	var req selectDeliveryRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	s, err := h.checkouts.SelectDelivery(b.ID, chi.URLParam(r, "sessionID"), req.Mode, req.Details)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(s))
}

type submitResponse struct {
	Session     sessionView `json:"session"`
	Quote       quoteView   `json:"quote"`
	PaymentRef  string      `json:"payment_ref"`
	PaymentLink string      `json:"payment_link"`
	OrderID     int64       `json:"order_id"`
}

func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	res, err := h.checkouts.Submit(r.Context(), b.ID, chi.URLParam(r, "sessionID"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, submitResponse{
		Session:     newSessionView(res.Session),
		Quote:       newQuoteView(res.Quote),
		PaymentRef:  res.PaymentRef,
		PaymentLink: res.PaymentLink,
		OrderID:     res.OrderID,
	})
}

type completePaymentRequest struct {
	Status string `json:"status"`
}

type completePaymentResponse struct {
	Paid       bool   `json:"paid"`
	Status     string `json:"status"`
	PaymentRef string `json:"payment_ref"`
	OrderID    int64  `json:"order_id"`
}

func (h *Handler) completePayment(w http.ResponseWriter, r *http.Request) {
	b, _ := BuyerFromContext(r.Context())

	var req completePaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	out, err := h.checkouts.CompletePayment(r.Context(), b.ID, chi.URLParam(r, "sessionID"), req.Status)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, completePaymentResponse{
		Paid:       out.Paid,
		Status:     out.Status,
		PaymentRef: out.Session.PaymentRef,
		OrderID:    out.Session.OrderID,
	})
}
