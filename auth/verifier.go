package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/dgrijalva/jwt-go"

	"github.com/clayloft/kilncat"
)

// Config holds verifier construction parameters.
type Config struct {
	// KeysURL is the endpoint serving the provider's signing keys as a
	// JSON object of key ID to PEM certificate.
	KeysURL string
	// Issuer is the required iss claim. Empty skips the check.
	Issuer string
	// Audience is the required aud claim. Empty skips the check.
	Audience string
	// RefreshInterval overrides the key cache freshness window when the
	// endpoint sends no Cache-Control max-age.
	RefreshInterval int
}

// Verifier checks RS256 bearer tokens against the provider's signing keys
// and maps their claims to a Principal.
//
// Failure classification is strict: malformed tokens, bad signatures, and
// claim mismatches are ErrInvalidToken; a sound token past its expiry is
// ErrExpiredToken; only an unreachable key endpoint with no cached key is
// ErrAuthUnavailable. A malformed token is rejected without touching the
// key endpoint at all.
type Verifier struct {
	keys     *KeyCache
	issuer   string
	audience string
}

// NewVerifier builds a verifier fetching keys over HTTP per cfg.
func NewVerifier(cfg Config) (*Verifier, error) {
	source, err := NewHTTPKeySource(cfg.KeysURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new verifier: %w", err)
	}
	cache, err := NewKeyCache(source, secondsDuration(cfg.RefreshInterval))
	if err != nil {
		return nil, fmt.Errorf("new verifier: %w", err)
	}
	return NewVerifierWithCache(cache, cfg.Issuer, cfg.Audience)
}

// NewVerifierWithCache builds a verifier over an existing key cache.
func NewVerifierWithCache(keys *KeyCache, issuer, audience string) (*Verifier, error) {
	if keys == nil {
		return nil, fmt.Errorf("new verifier: key cache cannot be nil")
	}
	return &Verifier{keys: keys, issuer: issuer, audience: audience}, nil
}

// Verify validates a raw bearer token and returns the principal it
// asserts. The returned principal never carries the admin flag; that is
// resolved from the profile store by the caller.
func (v *Verifier) Verify(ctx context.Context, raw string) (kilncat.Principal, error) {
	if raw == "" {
		return kilncat.Principal{}, fmt.Errorf("verify token: empty token: %w", kilncat.ErrInvalidToken)
	}

	token, err := jwt.Parse(raw, v.keyFunc(ctx))
	if err != nil {
		return kilncat.Principal{}, fmt.Errorf("verify token: %w", classify(err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return kilncat.Principal{}, fmt.Errorf("verify token: %w", kilncat.ErrInvalidToken)
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return kilncat.Principal{}, fmt.Errorf("verify token: issuer mismatch: %w", kilncat.ErrInvalidToken)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return kilncat.Principal{}, fmt.Errorf("verify token: audience mismatch: %w", kilncat.ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return kilncat.Principal{}, fmt.Errorf("verify token: missing subject: %w", kilncat.ErrInvalidToken)
	}
	email, _ := claims["email"].(string)

	return kilncat.Principal{SubjectID: sub, Email: email}, nil
}

// keyFunc resolves the token's signing key. The jwt library only invokes
// it after the token structure parses, so malformed tokens never reach the
// key cache.
func (v *Verifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v: %w", t.Header["alg"], kilncat.ErrInvalidToken)
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token missing kid header: %w", kilncat.ErrInvalidToken)
		}
		return v.keys.Key(ctx, kid)
	}
}

// classify maps a jwt parse error onto the error taxonomy. A bad signature
// outranks expiry: the library sets both bits for a forged-but-expired
// token, and an unverified expiry claim proves nothing. With a cached key
// the verdict on an expired token is definitive even when the key endpoint
// is down.
func classify(err error) error {
	var ve *jwt.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%v: %w", err, kilncat.ErrInvalidToken)
	}

	switch {
	case ve.Errors&jwt.ValidationErrorMalformed != 0:
		return fmt.Errorf("malformed token: %w", kilncat.ErrInvalidToken)
	case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
		return fmt.Errorf("bad signature: %w", kilncat.ErrInvalidToken)
	case ve.Errors&jwt.ValidationErrorExpired != 0:
		return fmt.Errorf("token expired: %w", kilncat.ErrExpiredToken)
	case ve.Inner != nil && errors.Is(ve.Inner, kilncat.ErrAuthUnavailable):
		return ve.Inner
	case ve.Inner != nil && errors.Is(ve.Inner, kilncat.ErrInvalidToken):
		return ve.Inner
	default:
		return fmt.Errorf("%v: %w", err, kilncat.ErrInvalidToken)
	}
}

func secondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
