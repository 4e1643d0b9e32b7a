// Package payment talks to the hosted payment gateway and normalizes its
// result statuses. The gateway holds funds in escrow backend-side; this
// client only initiates charges and interprets callback statuses.
package payment

import (
	"github.com/shopspring/decimal"
)

// successStatuses is the exact set of gateway statuses that count as a
// completed payment. The gateway is inconsistent about casing and spelling
// across channels; these three values are the only ones ever observed for a
// settled charge, and matching is deliberately case-sensitive so that an
// unexpected variant is surfaced instead of silently accepted.
var successStatuses = map[string]struct{}{
	"successful": {},
	"success":    {},
	"completed":  {},
}

// IsSuccess reports whether a gateway status string represents a settled
// payment.
func IsSuccess(status string) bool {
	_, ok := successStatuses[status]
	return ok
}

// Customer identifies the paying buyer to the gateway.
type Customer struct {
	Email string
	Name  string
	Phone string
}

// Charge describes a payment to initiate. Reference is the client-generated
// idempotency token; reusing it across retries must not double-charge.
type Charge struct {
	Reference string
	Amount    decimal.Decimal
	Customer  Customer
}

// ChargeSession is a created hosted-payment session.
type ChargeSession struct {
	Reference string
	Link      string
}
