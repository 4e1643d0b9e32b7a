package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/tribetrade/storefront/internal/domain/buyer"
)

type profileResponse struct {
	ID          json.Number `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Institution json.Number `json:"institution"`
	IsPlug      bool        `json:"is_plug"`
}

// FetchProfile resolves the account behind a token. The backend serializes
// ids as numbers; they travel as opaque strings inside the storefront.
func (c *Client) FetchProfile(ctx context.Context, token string) (*buyer.Profile, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/users/profile/", token, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, errors.Wrapf(ErrUnavailable, "fetch profile failed with status %d", status)
	}

	var out profileResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}

	return &buyer.Profile{
		ID:            out.ID.String(),
		Username:      out.Username,
		Email:         out.Email,
		InstitutionID: out.Institution.String(),
		IsPlug:        out.IsPlug,
	}, nil
}
