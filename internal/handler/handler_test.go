package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribetrade/storefront/internal/domain/buyer"
	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/checkout"
	"github.com/tribetrade/storefront/internal/payment"
)

// --- Mocks ---

type mockProfiles struct {
	byToken map[string]buyer.Profile
	calls   int
}

func (m *mockProfiles) FetchProfile(_ context.Context, token string) (*buyer.Profile, error) {
	m.calls++
	p, ok := m.byToken[token]
	if !ok {
		return nil, errors.New("backend rejected the authorization token")
	}
	return &p, nil
}

type memoryCartStorage struct {
	lines map[string][]cart.Line
}

func (m *memoryCartStorage) Load(_ context.Context, buyerID string) ([]cart.Line, error) {
	return m.lines[buyerID], nil
}

func (m *memoryCartStorage) Save(_ context.Context, buyerID string, lines []cart.Line) error {
	m.lines[buyerID] = lines
	return nil
}

func (m *memoryCartStorage) Delete(_ context.Context, buyerID string) error {
	delete(m.lines, buyerID)
	return nil
}

type mockRegistry struct {
	resp *checkout.RegisteredOrder
	err  error
}

func (m *mockRegistry) Register(context.Context, string, checkout.OrderRegistration) (*checkout.RegisteredOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockGateway struct{}

func (mockGateway) CreateCharge(_ context.Context, ch payment.Charge) (*payment.ChargeSession, error) {
	return &payment.ChargeSession{Reference: ch.Reference, Link: "https://pay.example/h"}, nil
}

type noopAttempts struct{}

func (noopAttempts) RecordPending(context.Context, checkout.Attempt) error { return nil }
func (noopAttempts) MarkPaid(context.Context, string) error                { return nil }

// --- Fixture ---

type fixture struct {
	srv      *httptest.Server
	registry *mockRegistry
	storage  *memoryCartStorage
	profiles *mockProfiles
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry: &mockRegistry{resp: &checkout.RegisteredOrder{ID: 42}},
		storage:  &memoryCartStorage{lines: make(map[string][]cart.Line)},
		profiles: &mockProfiles{byToken: map[string]buyer.Profile{
			"buyer-token": {ID: "b1", Username: "ada", Email: "ada@example.com", InstitutionID: "10"},
			"plug-token":  {ID: "b2", Username: "seller", InstitutionID: "10", IsPlug: true},
		}},
	}

	carts := cart.NewService(f.storage)
	checkouts := checkout.NewOrchestrator(checkout.Deps{
		Carts:    carts,
		Orders:   f.registry,
		Payments: mockGateway{},
		Attempts: noopAttempts{},
		Sessions: checkout.NewSessionStore(time.Hour),
	})
	auth := NewAuthenticator(f.profiles, time.Minute)

	f.srv = httptest.NewServer(NewHandler(auth, carts, checkouts).Routes())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func lineJSON(productID string, price string) string {
	return `{"product_id":"` + productID + `","name":"drop","unit_price":"` + price +
		`","quantity":1,"store_id":"s1","institution_id":"10","campus_delivery_fee":"300","waybill_delivery_fee":null}`
}

// --- Auth ---

func TestMissingToken(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, float64(http.StatusUnauthorized), body["code"])
}

func TestProfileCaching(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/cart", "buyer-token", "")
	f.do(t, http.MethodGet, "/cart", "buyer-token", "")
	assert.Equal(t, 1, f.profiles.calls, "second request must hit the cache")
}

// --- Cart ---

func TestAddItemAndGetCart(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1500"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1500.00", body["total"])
	assert.Equal(t, float64(1), body["count"])

	// Re-adding the same product increments the existing line.
	resp, body = f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1500"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["lines"], 1)
}

func TestPlugCannotAddItems(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/cart/items", "plug-token", lineJSON("p1", "1500"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.storage.lines)
}

func TestUpdateItemFloorsAtOne(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))

	resp, body := f.do(t, http.MethodPatch, "/cart/items/p1", "buyer-token", `{"delta":-5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"], "quantity floors at 1, line is kept")
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p2", "500"))

	resp, body := f.do(t, http.MethodDelete, "/cart/items/p1", "buyer-token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["lines"], 1)

	resp, _ = f.do(t, http.MethodDelete, "/cart", "buyer-token", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := f.storage.lines["b1"]
	assert.False(t, ok)
}

// --- Checkout ---

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))

	resp, body := f.do(t, http.MethodPost, "/checkout", "buyer-token", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID := body["id"].(string)
	assert.Equal(t, "OPEN", body["state"])
	assert.Equal(t, "MEETUP", body["delivery_mode"])

	quote := body["quote"].(map[string]any)
	assert.Equal(t, "1000.00", quote["subtotal"])
	assert.Equal(t, "20.00", quote["protocol_fee"])
	assert.Equal(t, "1020.00", quote["grand_total"])

	resp, body = f.do(t, http.MethodPost, "/checkout/"+sessionID+"/submit", "buyer-token", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://pay.example/h", body["payment_link"])
	assert.Equal(t, float64(42), body["order_id"])
	paymentRef := body["payment_ref"].(string)
	assert.True(t, strings.HasPrefix(paymentRef, "TT-"))

	resp, body = f.do(t, http.MethodPost, "/checkout/"+sessionID+"/payment", "buyer-token", `{"status":"successful"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["paid"])
	assert.Equal(t, paymentRef, body["payment_ref"])

	_, ok := f.storage.lines["b1"]
	assert.False(t, ok, "paid checkout clears the cart")
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/checkout", "buyer-token", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutSingleItem(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/checkout", "buyer-token",
		`{"single_item":`+lineJSON("p9", "900")+`}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, body["lines"], 1)
}

func TestSelectDeliveryRejected(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))
	_, body := f.do(t, http.MethodPost, "/checkout", "buyer-token", "")
	sessionID := body["id"].(string)

	resp, _ := f.do(t, http.MethodPut, "/checkout/"+sessionID+"/delivery", "buyer-token",
		`{"mode":"WAYBILL","details":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSelectDeliveryPlugWithoutDetails(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))
	_, body := f.do(t, http.MethodPost, "/checkout", "buyer-token", "")
	sessionID := body["id"].(string)

	// Selecting plug delivery succeeds; the missing details fail at submit.
	resp, _ := f.do(t, http.MethodPut, "/checkout/"+sessionID+"/delivery", "buyer-token",
		`{"mode":"PLUG_DELIVERY","details":{}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/checkout/"+sessionID+"/submit", "buyer-token", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitStaleCart(t *testing.T) {
	f := newFixture(t)
	f.registry.err = errors.Wrap(checkout.ErrStaleReference, "order registration")
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))
	_, body := f.do(t, http.MethodPost, "/checkout", "buyer-token", "")
	sessionID := body["id"].(string)

	resp, body := f.do(t, http.MethodPost, "/checkout/"+sessionID+"/submit", "buyer-token", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "stale_cart", body["reason"])

	_, ok := f.storage.lines["b1"]
	assert.False(t, ok, "stale submit clears the cart")
}

func TestPaymentDeclined(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))
	_, body := f.do(t, http.MethodPost, "/checkout", "buyer-token", "")
	sessionID := body["id"].(string)
	f.do(t, http.MethodPost, "/checkout/"+sessionID+"/submit", "buyer-token", "")

	resp, body := f.do(t, http.MethodPost, "/checkout/"+sessionID+"/payment", "buyer-token",
		`{"status":"cancelled"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Contains(t, body["message"], "cancelled")
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/checkout/nope", "buyer-token", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionOwnership(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/cart/items", "buyer-token", lineJSON("p1", "1000"))
	_, body := f.do(t, http.MethodPost, "/checkout", "buyer-token", "")
	sessionID := body["id"].(string)

	f.profiles.byToken["other-token"] = buyer.Profile{ID: "b9", Username: "eve"}
	resp, _ := f.do(t, http.MethodGet, "/checkout/"+sessionID, "other-token", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- Views ---

func TestCartViewRendersDecimals(t *testing.T) {
	c := &cart.Cart{Lines: []cart.Line{{
		ProductID: "p1",
		UnitPrice: decimal.RequireFromString("1234.5"),
		Quantity:  2,
	}}}
	v := newCartView(c)
	assert.Equal(t, "2469.00", v.Total)
	assert.Equal(t, 2, v.Count)
}
