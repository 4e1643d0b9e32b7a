package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/tribetrade/storefront/internal/domain/checkout"
)

var _ checkout.OrderRegistry = (*Client)(nil)

type orderPayload struct {
	TotalAmount     string        `json:"total_amount"`
	PaymentRef      string        `json:"payment_ref"`
	DeliveryMethod  string        `json:"delivery_method"`
	DeliveryAddress *string       `json:"delivery_address"`
	DeliveryPhone   *string       `json:"delivery_phone"`
	Items           []itemPayload `json:"items"`
}

type itemPayload struct {
	Product  string `json:"product"`
	Store    string `json:"store"`
	Quantity int    `json:"quantity"`
}

type orderResponse struct {
	ID         int64  `json:"id"`
	PaymentRef string `json:"payment_ref"`
}

// Register creates the order resource backend-side (the Prepare phase).
// Validation failures are classified per the checkout error taxonomy; any
// error means the caller must not proceed to payment.
func (c *Client) Register(ctx context.Context, token string, reg checkout.OrderRegistration) (*checkout.RegisteredOrder, error) {
	body, err := json.Marshal(orderPayload{
		TotalAmount:     reg.TotalAmount,
		PaymentRef:      reg.PaymentRef,
		DeliveryMethod:  string(reg.DeliveryMethod),
		DeliveryAddress: reg.DeliveryAddress,
		DeliveryPhone:   reg.DeliveryPhone,
		Items:           itemPayloads(reg.Items),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode order")
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/orders/orders/", token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusCreated || status == http.StatusOK:
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case status >= 400 && status < 500:
		return nil, classifyOrderError(status, raw)
	default:
		return nil, errors.Wrapf(ErrUnavailable, "order registration failed with status %d", status)
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode order response")
	}

	return &checkout.RegisteredOrder{
		ID:         out.ID,
		PaymentRef: out.PaymentRef,
	}, nil
}

func itemPayloads(items []checkout.OrderLine) []itemPayload {
	out := make([]itemPayload, len(items))
	for i, it := range items {
		out[i] = itemPayload{
			Product:  it.Product,
			Store:    it.Store,
			Quantity: it.Quantity,
		}
	}
	return out
}
