package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://login.example.com"
	testAudience = "rallypoint"
)

var testSecret = []byte("test-signing-secret")

// staticKeyfunc satisfies keyfunc.Keyfunc with a fixed HMAC key, standing
// in for a fetched JWKS.
type staticKeyfunc struct{ key []byte }

func (s staticKeyfunc) Keyfunc(*jwt.Token) (any, error) { return s.key, nil }
func (s staticKeyfunc) KeyfuncCtx(context.Context) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) { return s.key, nil }
}
func (s staticKeyfunc) Storage() jwkset.Storage { return nil }
func (s staticKeyfunc) VerificationKeySet(context.Context) (jwt.VerificationKeySet, error) {
	return jwt.VerificationKeySet{}, nil
}

func signToken(t *testing.T, mutate func(*jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": "member@example.com",
	}
	if mutate != nil {
		mutate(&claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestVerifier(ttl time.Duration, fetches *int, fetchErr *error) *Verifier {
	v := NewVerifier(testAudience, ttl)
	v.fetch = func(_ context.Context, _ string) (keyfunc.Keyfunc, error) {
		*fetches++
		if fetchErr != nil && *fetchErr != nil {
			return nil, *fetchErr
		}
		return staticKeyfunc{key: testSecret}, nil
	}
	return v
}

func TestVerifyValidToken(t *testing.T) {
	fetches := 0
	v := newTestVerifier(time.Hour, &fetches, nil)

	email, err := v.Verify(context.Background(), signToken(t, nil), testIssuer)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if email != "member@example.com" {
		t.Errorf("email = %q", email)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}
}

func TestVerifyUsesCacheWithinTTL(t *testing.T) {
	fetches := 0
	v := newTestVerifier(time.Hour, &fetches, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := v.Verify(ctx, signToken(t, nil), testIssuer); err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1 (cache hit after first)", fetches)
	}
}

func TestVerifyRefetchesAfterTTL(t *testing.T) {
	fetches := 0
	v := newTestVerifier(0, &fetches, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(ctx, signToken(t, nil), testIssuer); err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
	}
	if fetches != 3 {
		t.Errorf("fetches = %d, want 3 with zero TTL", fetches)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fetches := 0
	v := newTestVerifier(time.Hour, &fetches, nil)
	ctx := context.Background()

	if _, err := v.Verify(ctx, signToken(t, nil), testIssuer); err != nil {
		t.Fatalf("verify: %v", err)
	}
	v.Invalidate(testIssuer)
	if _, err := v.Verify(ctx, signToken(t, nil), testIssuer); err != nil {
		t.Fatalf("verify after invalidate: %v", err)
	}
	if fetches != 2 {
		t.Errorf("fetches = %d, want 2", fetches)
	}
}

func TestVerifyFallsBackToStaleCache(t *testing.T) {
	fetches := 0
	var fetchErr error
	v := newTestVerifier(time.Nanosecond, &fetches, &fetchErr)
	ctx := context.Background()

	if _, err := v.Verify(ctx, signToken(t, nil), testIssuer); err != nil {
		t.Fatalf("initial verify: %v", err)
	}

	// TTL elapses and the issuer goes dark; the stale key set still serves.
	time.Sleep(time.Millisecond)
	fetchErr = errors.New("issuer unreachable")
	if _, err := v.Verify(ctx, signToken(t, nil), testIssuer); err != nil {
		t.Errorf("verify with stale cache: %v", err)
	}
}

func TestVerifyFetchFailureNoCache(t *testing.T) {
	fetches := 0
	fetchErr := errors.New("issuer unreachable")
	v := newTestVerifier(time.Hour, &fetches, &fetchErr)

	if _, err := v.Verify(context.Background(), signToken(t, nil), testIssuer); err == nil {
		t.Error("expected error with no cache and failing fetch")
	}
}

func TestVerifyRejectsBadClaims(t *testing.T) {
	fetches := 0
	v := newTestVerifier(time.Hour, &fetches, nil)
	ctx := context.Background()

	cases := map[string]func(*jwt.MapClaims){
		"wrong issuer":   func(c *jwt.MapClaims) { (*c)["iss"] = "https://evil.example.com" },
		"wrong audience": func(c *jwt.MapClaims) { (*c)["aud"] = "other-app" },
		"expired":        func(c *jwt.MapClaims) { (*c)["exp"] = time.Now().Add(-time.Hour).Unix() },
		"no expiry":      func(c *jwt.MapClaims) { delete(*c, "exp") },
		"missing email":  func(c *jwt.MapClaims) { delete(*c, "email") },
	}
	for name, mutate := range cases {
		if _, err := v.Verify(ctx, signToken(t, mutate), testIssuer); err == nil {
			t.Errorf("%s: expected verification failure", name)
		}
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	fetches := 0
	v := newTestVerifier(time.Hour, &fetches, nil)

	claims := jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": "member@example.com",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(context.Background(), token, testIssuer); err == nil {
		t.Error("expected signature failure")
	}
}
