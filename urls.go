package kilncat

import (
	"fmt"
	"time"
)

// URLIssuer wraps BlobStorage.SignedURL with the configured TTL policy.
// Stateless: nothing is cached or persisted, callers re-issue on every read.
// The TTL is fixed at construction and never negotiable per request.
type URLIssuer struct {
	blobs BlobStorage
	ttl   time.Duration
}

// NewURLIssuer creates an issuer with the given TTL. The TTL must be
// positive and no longer than MaxExpiresSeconds.
func NewURLIssuer(blobs BlobStorage, ttl time.Duration) (*URLIssuer, error) {
	if ttl <= 0 || ttl > MaxExpiresSeconds*time.Second {
		return nil, fmt.Errorf("new url issuer: ttl must be between 1s and %ds: %w", MaxExpiresSeconds, ErrInvalidInput)
	}
	return &URLIssuer{blobs: blobs, ttl: ttl}, nil
}

// Issue returns a fresh signed URL for one blob ref.
func (i *URLIssuer) Issue(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("issue url: empty blob ref: %w", ErrInvalidInput)
	}
	url, err := i.blobs.SignedURL(ref, i.ttl)
	if err != nil {
		return "", fmt.Errorf("issue url for %s: %w", ref, err)
	}
	return url, nil
}

// TTL reports the configured validity window.
func (i *URLIssuer) TTL() time.Duration {
	return i.ttl
}
