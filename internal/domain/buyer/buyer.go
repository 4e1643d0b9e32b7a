// Package buyer holds the buyer identity resolved from the marketplace
// backend. The storefront never stores credentials; it passes the buyer's
// token through and caches the resolved profile briefly.
package buyer

// Profile describes the authenticated account on whose behalf the storefront
// operates. IsPlug marks seller accounts, which are not allowed to purchase.
type Profile struct {
	ID            string
	Username      string
	Email         string
	InstitutionID string
	IsPlug        bool
}
