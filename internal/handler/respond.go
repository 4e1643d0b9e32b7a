package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/tribetrade/storefront/internal/backend"
	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/checkout"
	"github.com/tribetrade/storefront/internal/domain/delivery"
)

// reasonStaleCart tags 409s caused by a cart referencing removed products, so
// clients can distinguish them from submit races and show the cleared-cart
// message.
const reasonStaleCart = "stale_cart"

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message, reason string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message, Reason: reason})
}

// respondErr maps domain and upstream errors onto HTTP statuses. The literal
// error text is surfaced for buyer-correctable failures; everything unknown
// collapses to a 502 so backend internals never leak.
func respondErr(w http.ResponseWriter, err error) {
	var (
		modeErr     *delivery.ModeNotAllowedError
		waybillErr  *delivery.WaybillUnsupportedError
		fieldErr    *backend.FieldValidationError
		declinedErr *checkout.PaymentDeclinedError
	)

	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error(), "")
	case errors.Is(err, cart.ErrSellerCannotBuy):
		respondError(w, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, checkout.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrNotSubmitted),
		errors.Is(err, delivery.ErrMissingDeliveryDetails):
		respondError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, checkout.ErrStaleReference):
		respondError(w, http.StatusConflict,
			"some drops in your cart no longer exist; the cart has been cleared", reasonStaleCart)
	case errors.Is(err, checkout.ErrSubmitInFlight),
		errors.Is(err, checkout.ErrCheckoutLocked):
		respondError(w, http.StatusConflict, err.Error(), "")
	case errors.As(err, &modeErr),
		errors.As(err, &waybillErr),
		errors.As(err, &fieldErr):
		respondError(w, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.As(err, &declinedErr):
		respondError(w, http.StatusPaymentRequired, declinedErr.Error(), "")
	case errors.Is(err, backend.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "marketplace backend unavailable", "")
	default:
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

// decodeBody parses a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
