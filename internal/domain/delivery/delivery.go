// Package delivery implements the delivery-mode rules of checkout: which
// modes a cart may use, what each mode costs, and what details a mode
// requires before an order can be submitted.
package delivery

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tribetrade/storefront/internal/domain/cart"
)

// Mode enumerates the delivery protocols.
type Mode string

const (
	// Meetup is a free in-person handover on campus.
	Meetup Mode = "MEETUP"
	// PlugDelivery is the seller delivering to the buyer's hostel.
	PlugDelivery Mode = "PLUG_DELIVERY"
	// Waybill is seller-handled inter-campus shipping.
	Waybill Mode = "WAYBILL"
	// TribeRunner is the in-house delivery network. Reserved, not selectable.
	TribeRunner Mode = "TRIBE_RUNNER"
	// TribeLogistics is the in-house inter-campus network. Reserved, not selectable.
	TribeLogistics Mode = "TRIBE_LOGISTICS"
)

// runnerFlatFee is the placeholder flat fee for the reserved delivery network.
var runnerFlatFee = decimal.NewFromInt(500)

// Details holds the drop-off information collected for modes that need it.
type Details struct {
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Instructions string `json:"instructions"`
}

// ErrMissingDeliveryDetails is returned when PlugDelivery is selected without
// a drop-off address and phone number.
var ErrMissingDeliveryDetails = errors.New("delivery address and phone number are required")

// ModeNotAllowedError indicates a mode that is not selectable for the cart's
// campus relationship (or is a reserved mode).
type ModeNotAllowedError struct {
	Mode Mode
}

func (e *ModeNotAllowedError) Error() string {
	return fmt.Sprintf("delivery mode %s is not available for this order", e.Mode)
}

// WaybillUnsupportedError indicates lines whose sellers have not set a
// waybill fee and therefore do not ship inter-campus. The whole checkout is
// rejected, never a partial subset.
type WaybillUnsupportedError struct {
	ProductIDs []string
}

func (e *WaybillUnsupportedError) Error() string {
	return fmt.Sprintf("waybill delivery is not supported for: %s", strings.Join(e.ProductIDs, ", "))
}

// SameCampus reports whether the buyer and the cart's seller share an
// institution. Only the first line's seller institution is inspected, even
// for mixed-seller carts, and a missing institution on either side counts as
// same-campus. Both quirks are long-standing storefront behaviour that
// clients depend on.
func SameCampus(buyerInstitutionID string, lines []cart.Line) bool {
	if len(lines) == 0 {
		return true
	}
	sellerInst := lines[0].InstitutionID
	if sellerInst == "" || buyerInstitutionID == "" {
		return true
	}
	return sellerInst == buyerInstitutionID
}

// DefaultMode is the mode preselected when entering checkout.
func DefaultMode(sameCampus bool) Mode {
	if sameCampus {
		return Meetup
	}
	return Waybill
}

// AllowedModes lists the modes the buyer may choose for the given campus
// relationship. The reserved Tribe* modes are never included.
func AllowedModes(sameCampus bool) []Mode {
	if sameCampus {
		return []Mode{Meetup, PlugDelivery}
	}
	return []Mode{Waybill}
}

// Fee computes the delivery fee for the given mode over the cart lines.
// Undefined or unparsable per-line fees contribute zero.
func Fee(mode Mode, lines []cart.Line) decimal.Decimal {
	switch mode {
	case TribeRunner, TribeLogistics:
		return runnerFlatFee
	case PlugDelivery:
		sum := decimal.Zero
		for _, l := range lines {
			sum = sum.Add(l.CampusDeliveryFee.Amount)
		}
		return sum
	case Waybill:
		sum := decimal.Zero
		for _, l := range lines {
			sum = sum.Add(l.WaybillDeliveryFee.Amount)
		}
		return sum
	default:
		return decimal.Zero
	}
}

// Validate checks that the selected mode is eligible for the cart before any
// network call is made. It returns ErrMissingDeliveryDetails,
// *WaybillUnsupportedError, or *ModeNotAllowedError.
func Validate(mode Mode, sameCampus bool, lines []cart.Line, details Details) error {
	allowed := false
	for _, m := range AllowedModes(sameCampus) {
		if m == mode {
			allowed = true
			break
		}
	}
	if !allowed {
		return &ModeNotAllowedError{Mode: mode}
	}

	switch mode {
	case PlugDelivery:
		if details.Address == "" || details.Phone == "" {
			return ErrMissingDeliveryDetails
		}
	case Waybill:
		var unsupported []string
		for _, l := range lines {
			if !l.WaybillDeliveryFee.Defined {
				unsupported = append(unsupported, l.ProductID)
			}
		}
		if len(unsupported) > 0 {
			return &WaybillUnsupportedError{ProductIDs: unsupported}
		}
	}
	return nil
}
