package backend

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/tribetrade/storefront/internal/domain/checkout"
)

// fieldOrder is the precedence in which known validation fields are reported,
// mirroring the storefront's long-standing message priority.
var fieldOrder = []string{"items", "total_amount", "delivery_method"}

// FieldValidationError is a backend 4xx naming specific request fields. The
// buyer can correct the input and retry.
type FieldValidationError struct {
	Fields []FieldError
}

// FieldError is one field → reason pair from the backend payload.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Reason)
	}
	return "order rejected: " + strings.Join(parts, "; ")
}

// classifyOrderError turns a backend 4xx payload into the checkout error
// taxonomy. A payload mentioning a product that "does not exist" marks the
// cart stale; payloads naming known request fields become a
// FieldValidationError; everything else is a generic registration failure.
func classifyOrderError(status int, body []byte) error {
	if isStalePayload(body) {
		return errors.Wrap(checkout.ErrStaleReference, "order registration")
	}

	if fields := extractFieldErrors(body); len(fields) > 0 {
		return &FieldValidationError{Fields: fields}
	}

	return errors.Errorf("order registration failed (%d): %s", status, snippet(body, 100))
}

// isStalePayload detects the backend's stale-product marker. The backend has
// no structured error code for this case; the storefront has always keyed on
// the "Product ... does not exist" phrasing of the rejection.
func isStalePayload(body []byte) bool {
	return bytes.Contains(body, []byte("does not exist")) && bytes.Contains(body, []byte("Product"))
}

// extractFieldErrors scans the error payload for the known validation keys
// and renders their raw values. The payload shape varies (arrays of strings,
// nested per-item objects), so values are kept as raw JSON text.
func extractFieldErrors(body []byte) []FieldError {
	found := make(map[string]string, len(fieldOrder))

	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		for _, known := range fieldOrder {
			if key == known {
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				found[key] = string(raw)
				return nil
			}
		}
		return d.Skip()
	})
	if err != nil {
		return nil
	}

	var out []FieldError
	for _, key := range fieldOrder {
		if raw, ok := found[key]; ok {
			out = append(out, FieldError{Field: key, Reason: raw})
		}
	}
	return out
}

func snippet(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
