package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

// Config holds the gateway connection settings.
type Config struct {
	// BaseURL is the gateway API root, e.g. https://api.flutterwave.com/v3.
	BaseURL string
	// SecretKey authenticates the storefront to the gateway.
	SecretKey string
	// Currency is fixed for the whole marketplace.
	Currency string
	// RedirectURL is where the hosted page sends the buyer afterwards.
	RedirectURL string
	// Timeout bounds each gateway call. Zero means the transport default.
	Timeout time.Duration
}

// Client initiates hosted payment sessions over the gateway's REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type chargeRequest struct {
	TxRef       string          `json:"tx_ref"`
	Amount      string          `json:"amount"`
	Currency    string          `json:"currency"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Customer    customerPayload `json:"customer"`
	Meta        metaPayload     `json:"customizations"`
}

type customerPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phonenumber,omitempty"`
}

type metaPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type chargeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// CreateCharge registers a hosted payment session for the given charge and
// returns the checkout link. The charge amount is rendered with two decimal
// places, the same string the order API received.
func (c *Client) CreateCharge(ctx context.Context, ch Charge) (*ChargeSession, error) {
	body, err := json.Marshal(chargeRequest{
		TxRef:       ch.Reference,
		Amount:      ch.Amount.StringFixed(2),
		Currency:    c.cfg.Currency,
		RedirectURL: c.cfg.RedirectURL,
		Customer: customerPayload{
			Email: ch.Customer.Email,
			Name:  ch.Customer.Name,
			Phone: ch.Customer.Phone,
		},
		Meta: metaPayload{
			Title:       "TribeTrade Checkout",
			Description: "Payment for your collected drops",
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode charge")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "gateway request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read gateway response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var out chargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode gateway response")
	}
	if out.Data.Link == "" {
		return nil, errors.Errorf("gateway returned no payment link (status %q)", out.Status)
	}

	return &ChargeSession{
		Reference: ch.Reference,
		Link:      out.Data.Link,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
