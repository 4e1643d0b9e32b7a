package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/tribetrade/storefront/internal/domain/cart"
	"github.com/tribetrade/storefront/internal/domain/delivery"
)

// protocolFeeRate is the TribeGuard escrow fee, applied to the subtotal on
// every order regardless of delivery mode.
var protocolFeeRate = decimal.RequireFromString("0.02")

// Quote is the priced breakdown of a checkout. All parts derive from one
// computation over one line set; the grand total a buyer sees is byte-for-
// byte the amount submitted to the order API and the payment gateway.
type Quote struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	ProtocolFee decimal.Decimal
	GrandTotal  decimal.Decimal
}

// NewQuote prices the given lines under the given delivery mode.
func NewQuote(lines []cart.Line, mode delivery.Mode) Quote {
	c := cart.Cart{Lines: lines}
	subtotal := c.Total()
	deliveryFee := delivery.Fee(mode, lines)
	protocolFee := subtotal.Mul(protocolFeeRate)

	return Quote{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		ProtocolFee: protocolFee,
		GrandTotal:  subtotal.Add(deliveryFee).Add(protocolFee),
	}
}

// WireAmount renders the grand total with two fractional digits, the format
// the order API expects for total_amount.
func (q Quote) WireAmount() string {
	return q.GrandTotal.StringFixed(2)
}
