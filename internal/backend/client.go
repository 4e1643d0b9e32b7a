// Package backend is the REST client for the marketplace backend, the
// external owner of all real business logic: escrow, verification, disputes
// and the order ledger. The storefront only registers orders and resolves
// buyer profiles through it; failures are classified, never retried
// automatically.
package backend

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// maxBodyBytes bounds how much of a backend response is read.
const maxBodyBytes = 1 << 20

// ErrUnauthorized is returned when the backend rejects the buyer's token.
var ErrUnauthorized = errors.New("backend rejected the authorization token")

// ErrUnavailable marks transport failures and 5xx responses from the backend.
var ErrUnavailable = errors.New("marketplace backend unavailable")

// Client calls the marketplace backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client for the given API root, e.g.
// http://localhost:8000/api. Timeout zero means the transport default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// do issues a request with the buyer's token attached and returns the status
// code and the (bounded) response body.
func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(ErrUnavailable, "backend request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, errors.Wrap(err, "read backend response")
	}
	return resp.StatusCode, raw, nil
}
