package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clayloft/kilncat"
)

// TokenVerifier authenticates a raw bearer token into a Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (kilncat.Principal, error)
}

// ProfileSyncer records the sign-in and reports the stored profile. The
// stored profile carries the admin flag.
type ProfileSyncer interface {
	SyncProfile(ctx context.Context, p kilncat.Principal, displayName string) (kilncat.Profile, error)
}

type principalKey struct{}

// PrincipalFromContext returns the Principal stashed by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (kilncat.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(kilncat.Principal)
	return p, ok
}

// ContextWithPrincipal stashes a Principal for downstream handlers. Exposed
// for tests that exercise handlers without the middleware.
func ContextWithPrincipal(ctx context.Context, p kilncat.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// AuthMiddleware verifies the bearer token, syncs the user profile, and
// stashes the resulting Principal in the request context. A failed profile
// sync does not fail the request; the caller proceeds without the admin
// flag.
func AuthMiddleware(verifier TokenVerifier, profiles ProfileSyncer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				HandleError(w, err)
				return
			}

			p, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				HandleError(w, err)
				return
			}

			profile, err := profiles.SyncProfile(r.Context(), p, "")
			if err != nil {
				slog.Warn("profile sync failed", "uid", p.SubjectID, "error", err)
			} else {
				p.IsAdmin = profile.IsAdmin
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", kilncat.ErrInvalidToken)
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("authorization header is not a bearer token: %w", kilncat.ErrInvalidToken)
	}

	return token, nil
}
