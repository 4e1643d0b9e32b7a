// Package cart implements the buyer's pending purchase set: line items with
// price snapshots, quantity mutations, and derived totals. Persistence is
// delegated to a Storage implementation injected into the Service.
package cart

import (
	"github.com/shopspring/decimal"
)

// Line is a single cart entry. Price and name are snapshotted at the moment
// the product is added; later catalog changes do not flow into the cart.
type Line struct {
	ProductID          string          `json:"product_id"`
	Name               string          `json:"name"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Quantity           int             `json:"quantity"`
	StoreID            string          `json:"store_id"`
	InstitutionID      string          `json:"institution_id"`
	CampusDeliveryFee  Fee             `json:"campus_delivery_fee"`
	WaybillDeliveryFee Fee             `json:"waybill_delivery_fee"`
}

// Subtotal returns unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the buyer's lines. Lines are unique by ProductID and keep
// insertion order for display; order is irrelevant to totals.
type Cart struct {
	Lines []Line
}

// Add puts a product in the cart. A product already present has its quantity
// incremented by exactly 1; the line's snapshot is not refreshed. A new
// product is appended with quantity 1 regardless of the quantity carried on
// the incoming line.
func (c *Cart) Add(line Line) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i].Quantity++
			return
		}
	}
	line.Quantity = 1
	c.Lines = append(c.Lines, line)
}

// Remove deletes the line with the given product id. Absent ids are a no-op.
func (c *Cart) Remove(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

// UpdateQuantity applies a signed delta to a line's quantity, flooring at 1.
// Driving the quantity to zero or below never removes the line; removal goes
// through Remove only.
func (c *Cart) UpdateQuantity(productID string, delta int) {
	for i := range c.Lines {
		if c.Lines[i].ProductID != productID {
			continue
		}
		q := c.Lines[i].Quantity + delta
		if q < 1 {
			q = 1
		}
		c.Lines[i].Quantity = q
		return
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Total is the sum of line subtotals, recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Count is the sum of line quantities, recomputed on every call.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}
