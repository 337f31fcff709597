package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are the identity-provider token claims we consume.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type cachedJWKS struct {
	kf        keyfunc.Keyfunc
	fetchedAt time.Time
}

// Verifier validates identity-provider bearer tokens against the issuer's
// JWKS. Key sets are cached process-wide, keyed by issuer, with an explicit
// TTL and explicit invalidation; they are never refetched per request.
type Verifier struct {
	audience string
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cachedJWKS

	// fetch builds a keyfunc for an issuer's JWKS URL. Replaced in tests.
	fetch func(ctx context.Context, jwksURL string) (keyfunc.Keyfunc, error)
}

// NewVerifier creates a verifier for tokens addressed to audience. ttl
// bounds how long a fetched JWKS is trusted before a refetch.
func NewVerifier(audience string, ttl time.Duration) *Verifier {
	return &Verifier{
		audience: audience,
		ttl:      ttl,
		cache:    make(map[string]cachedJWKS),
		fetch:    fetchJWKS,
	}
}

func fetchJWKS(ctx context.Context, jwksURL string) (keyfunc.Keyfunc, error) {
	storage, err := jwkset.NewDefaultHTTPClientCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	kf, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("build keyfunc: %w", err)
	}
	return kf, nil
}

func (v *Verifier) keyfuncFor(ctx context.Context, issuer string) (keyfunc.Keyfunc, error) {
	v.mu.Lock()
	entry, ok := v.cache[issuer]
	v.mu.Unlock()

	if ok && time.Since(entry.fetchedAt) < v.ttl {
		return entry.kf, nil
	}

	kf, err := v.fetch(ctx, strings.TrimSuffix(issuer, "/")+"/.well-known/jwks.json")
	if err != nil {
		// A stale key set beats no key set while the issuer is unreachable.
		if ok {
			return entry.kf, nil
		}
		return nil, err
	}

	v.mu.Lock()
	v.cache[issuer] = cachedJWKS{kf: kf, fetchedAt: time.Now()}
	v.mu.Unlock()
	return kf, nil
}

// Invalidate drops the cached key set for an issuer, forcing a refetch on
// the next verification.
func (v *Verifier) Invalidate(issuer string) {
	v.mu.Lock()
	delete(v.cache, issuer)
	v.mu.Unlock()
}

// Verify validates a bearer token from the given issuer and returns the
// authenticated email address.
func (v *Verifier) Verify(ctx context.Context, token, issuer string) (string, error) {
	kf, err := v.keyfuncFor(ctx, issuer)
	if err != nil {
		return "", err
	}

	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, kf.Keyfunc,
		jwt.WithIssuer(issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	if !parsed.Valid || claims.Email == "" {
		return "", fmt.Errorf("verify token: missing email claim")
	}
	return claims.Email, nil
}
