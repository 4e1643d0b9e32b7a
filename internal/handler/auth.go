package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"

	"github.com/tribetrade/storefront/internal/domain/buyer"
)

// ProfileSource resolves the account behind a token.
type ProfileSource interface {
	FetchProfile(ctx context.Context, token string) (*buyer.Profile, error)
}

type authKey struct{}

type authInfo struct {
	profile buyer.Profile
	token   string
}

// BuyerFromContext returns the authenticated buyer stored by the middleware.
func BuyerFromContext(ctx context.Context) (buyer.Profile, bool) {
	info, ok := ctx.Value(authKey{}).(authInfo)
	return info.profile, ok
}

// TokenFromContext returns the raw backend token for the request's buyer.
func TokenFromContext(ctx context.Context) string {
	info, _ := ctx.Value(authKey{}).(authInfo)
	return info.token
}

type cachedProfile struct {
	profile   buyer.Profile
	expiresAt time.Time
}

// Authenticator validates "Authorization: Token <t>" headers against the
// marketplace backend. Resolved profiles are cached for a short TTL and
// concurrent lookups for the same token are collapsed into one backend call.
type Authenticator struct {
	source ProfileSource
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedProfile
}

// NewAuthenticator creates an Authenticator caching profiles for ttl.
func NewAuthenticator(source ProfileSource, ttl time.Duration) *Authenticator {
	return &Authenticator{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cachedProfile),
	}
}

// errMissingToken is reported for absent or malformed Authorization headers.
var errMissingToken = errors.New("missing or malformed authorization token")

// Middleware authenticates the request and stores the buyer in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, errMissingToken.Error(), "")
			return
		}

		p, err := a.resolve(r.Context(), token)
		if err != nil {
			respondErr(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authKey{}, authInfo{profile: *p, token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve returns the profile for token, from cache when fresh.
func (a *Authenticator) resolve(ctx context.Context, token string) (*buyer.Profile, error) {
	a.mu.RLock()
	entry, ok := a.cache[token]
	a.mu.RUnlock()
	if ok && a.now().Before(entry.expiresAt) {
		p := entry.profile
		return &p, nil
	}

	v, err, _ := a.group.Do(token, func() (any, error) {
		p, err := a.source.FetchProfile(ctx, token)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.cache[token] = cachedProfile{profile: *p, expiresAt: a.now().Add(a.ttl)}
		a.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*buyer.Profile), nil
}

// Invalidate drops a token's cached profile, e.g. after the backend rejects it.
func (a *Authenticator) Invalidate(token string) {
	a.mu.Lock()
	delete(a.cache, token)
	a.mu.Unlock()
}

// bearerToken extracts the token from "Authorization: Token <t>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Token") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
