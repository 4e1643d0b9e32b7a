package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSuccess(t *testing.T) {
	for _, status := range []string{"successful", "success", "completed"} {
		assert.True(t, IsSuccess(status), status)
	}
	// Matching is exact and case-sensitive.
	for _, status := range []string{"Successful", "SUCCESS", "Completed", "pending", "failed", ""} {
		assert.False(t, IsSuccess(status), status)
	}
}

func TestCreateCharge(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"status":"success","data":{"link":"https://pay.example/h/abc"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:     srv.URL,
		SecretKey:   "sk_test",
		Currency:    "NGN",
		RedirectURL: "https://shop.example/done",
		Timeout:     time.Second,
	})

	session, err := c.CreateCharge(context.Background(), Charge{
		Reference: "TT-1700000000000-123",
		Amount:    decimal.RequireFromString("1020"),
		Customer:  Customer{Email: "ada@example.com", Name: "ada", Phone: "0800"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example/h/abc", session.Link)
	assert.Equal(t, "TT-1700000000000-123", session.Reference)

	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "TT-1700000000000-123", gotBody["tx_ref"])
	assert.Equal(t, "1020.00", gotBody["amount"], "amount travels with two decimals")
	assert.Equal(t, "NGN", gotBody["currency"])
	assert.Equal(t, "https://shop.example/done", gotBody["redirect_url"])

	customer := gotBody["customer"].(map[string]any)
	assert.Equal(t, "ada@example.com", customer["email"])
	assert.Equal(t, "0800", customer["phonenumber"])
}

func TestCreateChargeGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid key"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.CreateCharge(context.Background(), Charge{Reference: "r", Amount: decimal.NewFromInt(10)})
	assert.Error(t, err)
}

func TestCreateChargeMissingLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","data":{}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.CreateCharge(context.Background(), Charge{Reference: "r", Amount: decimal.NewFromInt(10)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payment link")
}
