package cart

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Fee is a delivery fee as sellers actually enter it: sometimes a number,
// sometimes a numeric string, sometimes empty or absent. An undefined fee
// means the seller has not configured that delivery option at all, which is
// different from a zero fee. Anything present but unparsable decodes as a
// defined zero, matching how the storefront has always summed these values.
type Fee struct {
	Defined bool
	Amount  decimal.Decimal
}

// DefinedFee returns a defined Fee with the given amount.
func DefinedFee(amount decimal.Decimal) Fee {
	return Fee{Defined: true, Amount: amount}
}

// UnmarshalJSON decodes null, absent-style empty strings, numbers and
// numeric strings. Unparsable values become a defined zero rather than an
// error; fee decoding must never block a cart mutation.
func (f *Fee) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*f = Fee{}
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = Fee{Defined: true}
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = Fee{}
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			*f = Fee{Defined: true}
			return nil
		}
		*f = Fee{Defined: true, Amount: d}
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		*f = Fee{Defined: true}
		return nil
	}
	*f = Fee{Defined: true, Amount: d}
	return nil
}

// MarshalJSON renders undefined fees as null and defined fees as a decimal.
func (f Fee) MarshalJSON() ([]byte, error) {
	if !f.Defined {
		return []byte("null"), nil
	}
	return f.Amount.MarshalJSON()
}
