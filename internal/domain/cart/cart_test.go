package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribetrade/storefront/internal/domain/buyer"
)

// --- Mock storage ---

type mockStorage struct {
	lines   map[string][]Line
	loadErr error
	saveErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{lines: make(map[string][]Line)}
}

func (m *mockStorage) Load(_ context.Context, buyerID string) ([]Line, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.lines[buyerID], nil
}

func (m *mockStorage) Save(_ context.Context, buyerID string, lines []Line) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.lines[buyerID] = lines
	return nil
}

func (m *mockStorage) Delete(_ context.Context, buyerID string) error {
	delete(m.lines, buyerID)
	return nil
}

// --- Helpers ---

func testLine(productID string, price int64, qty int) Line {
	return Line{
		ProductID: productID,
		Name:      "drop " + productID,
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  qty,
		StoreID:   "s1",
	}
}

// --- Cart tests ---

func TestAddNewLineForcesQuantityOne(t *testing.T) {
	c := &Cart{}

	// The incoming quantity is ignored for new lines.
	c.Add(testLine("p1", 100, 5))

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 1, c.Lines[0].Quantity)
}

func TestAddExistingLineIncrementsByOne(t *testing.T) {
	c := &Cart{}
	c.Add(testLine("p1", 100, 1))

	// Re-adding increments by exactly 1 no matter the carried quantity.
	c.Add(testLine("p1", 100, 7))
	c.Add(testLine("p1", 100, 7))

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestAddDoesNotRefreshSnapshot(t *testing.T) {
	c := &Cart{}
	c.Add(testLine("p1", 100, 1))

	updated := testLine("p1", 250, 1)
	updated.Name = "renamed"
	c.Add(updated)

	assert.True(t, c.Lines[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "drop p1", c.Lines[0].Name)
}

func TestAddKeepsInsertionOrder(t *testing.T) {
	c := &Cart{}
	c.Add(testLine("p2", 10, 1))
	c.Add(testLine("p1", 20, 1))
	c.Add(testLine("p3", 30, 1))
	c.Add(testLine("p1", 20, 1))

	ids := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ProductID
	}
	assert.Equal(t, []string{"p2", "p1", "p3"}, ids)
}

func TestRemove(t *testing.T) {
	c := &Cart{}
	c.Add(testLine("p1", 100, 1))
	c.Add(testLine("p2", 200, 1))

	c.Remove("p1")
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "p2", c.Lines[0].ProductID)

	// Absent ids are a no-op.
	c.Remove("p1")
	assert.Len(t, c.Lines, 1)
}

func TestUpdateQuantityFloorsAtOne(t *testing.T) {
	c := &Cart{}
	c.Add(testLine("p1", 100, 1))

	c.UpdateQuantity("p1", 4)
	assert.Equal(t, 5, c.Lines[0].Quantity)

	c.UpdateQuantity("p1", -100)
	require.Len(t, c.Lines, 1, "decrement must never remove the line")
	assert.Equal(t, 1, c.Lines[0].Quantity)
}

func TestTotalAndCount(t *testing.T) {
	c := &Cart{}
	c.Add(testLine("p1", 1500, 1))
	c.UpdateQuantity("p1", 2)
	c.Add(testLine("p2", 700, 1))

	assert.True(t, c.Total().Equal(decimal.NewFromInt(5200)), "got %s", c.Total())
	assert.Equal(t, 4, c.Count())
}

// --- Service tests ---

func TestServiceAddRejectsSellers(t *testing.T) {
	storage := newMockStorage()
	svc := NewService(storage)

	plug := buyer.Profile{ID: "b1", IsPlug: true}
	_, err := svc.Add(context.Background(), plug, testLine("p1", 100, 1))

	require.ErrorIs(t, err, ErrSellerCannotBuy)
	assert.Empty(t, storage.lines, "rejection must not touch storage")
}

func TestServicePersistsEveryMutation(t *testing.T) {
	storage := newMockStorage()
	svc := NewService(storage)
	ctx := context.Background()
	b := buyer.Profile{ID: "b1"}

	_, err := svc.Add(ctx, b, testLine("p1", 100, 1))
	require.NoError(t, err)
	assert.Len(t, storage.lines["b1"], 1)

	_, err = svc.UpdateQuantity(ctx, "b1", "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, storage.lines["b1"][0].Quantity)

	_, err = svc.Remove(ctx, "b1", "p1")
	require.NoError(t, err)
	assert.Empty(t, storage.lines["b1"])
}

func TestServiceClearDeletesEntry(t *testing.T) {
	storage := newMockStorage()
	svc := NewService(storage)
	ctx := context.Background()

	_, err := svc.Add(ctx, buyer.Profile{ID: "b1"}, testLine("p1", 100, 1))
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "b1"))
	_, ok := storage.lines["b1"]
	assert.False(t, ok)
}

func TestServiceGetEmptyCart(t *testing.T) {
	svc := NewService(newMockStorage())

	c, err := svc.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestServiceStorageErrorPropagates(t *testing.T) {
	storage := newMockStorage()
	storage.loadErr = errors.New("db down")
	svc := NewService(storage)

	_, err := svc.Get(context.Background(), "b1")
	assert.Error(t, err)
}

// --- Fee tests ---

func TestFeeUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		defined bool
		amount  string
	}{
		{"number", `500`, true, "500"},
		{"numeric string", `"750.50"`, true, "750.5"},
		{"null", `null`, false, "0"},
		{"empty string", `""`, false, "0"},
		{"garbage string", `"abc"`, true, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Fee
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &f))
			assert.Equal(t, tt.defined, f.Defined)
			assert.True(t, f.Amount.Equal(decimal.RequireFromString(tt.amount)),
				"got %s", f.Amount)
		})
	}
}

func TestFeeMarshalUndefinedAsNull(t *testing.T) {
	out, err := json.Marshal(Fee{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	out, err = json.Marshal(DefinedFee(decimal.NewFromInt(500)))
	require.NoError(t, err)
	assert.Equal(t, `"500"`, string(out))
}
