package kilncat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureAlgorithm identifies the signing scheme in issued URLs.
	SignatureAlgorithm = "KC1-HMAC-SHA256"
	// MaxExpiresSeconds caps signed URL validity at 7 days.
	MaxExpiresSeconds = 604800
	// DateTimeFormat is the timestamp layout carried in signed URLs.
	DateTimeFormat = "20060102T150405Z"
	// BlobPathPrefix is the URL path prefix signed blob URLs are served under.
	BlobPathPrefix = "/blobs/"

	paramAlgorithm = "X-Kc-Algorithm"
	paramDate      = "X-Kc-Date"
	paramExpires   = "X-Kc-Expires"
	paramSignature = "X-Kc-Signature"
)

// URLSigner produces and verifies HMAC-SHA256 signed blob URLs. The signed
// query grants read access to exactly one path for a bounded time; the
// shared secret never leaves the server.
type URLSigner struct {
	secret []byte
}

// NewURLSigner creates a signer from a non-empty shared secret.
func NewURLSigner(secret string) (*URLSigner, error) {
	if secret == "" {
		return nil, errors.New("new url signer: secret cannot be empty")
	}
	return &URLSigner{secret: []byte(secret)}, nil
}

// Sign returns the query parameters that authorize a GET of path until
// now+ttl. The path must be the exact request path the verifier will see.
func (s *URLSigner) Sign(path string, now time.Time, ttl time.Duration) (url.Values, error) {
	expires := int(ttl / time.Second)
	if expires <= 0 || expires > MaxExpiresSeconds {
		return nil, fmt.Errorf("sign url: ttl must be between 1s and %ds: %w", MaxExpiresSeconds, ErrInvalidInput)
	}

	date := now.UTC().Format(DateTimeFormat)
	signature := s.calculateSignature(path, date, expires)

	q := url.Values{}
	q.Set(paramAlgorithm, SignatureAlgorithm)
	q.Set(paramDate, date)
	q.Set(paramExpires, strconv.Itoa(expires))
	q.Set(paramSignature, signature)
	return q, nil
}

// Verify checks a signed GET URL: all parameters present, the correct
// algorithm, an unexpired window, and a matching signature. Returns an
// error wrapping ErrUnauthorized on any failure.
func (s *URLSigner) Verify(path string, query url.Values) error {
	algorithm := query.Get(paramAlgorithm)
	date := query.Get(paramDate)
	expiresStr := query.Get(paramExpires)
	signature := query.Get(paramSignature)

	if algorithm == "" || date == "" || expiresStr == "" || signature == "" {
		return fmt.Errorf("missing required signature parameters: %w", ErrUnauthorized)
	}

	if algorithm != SignatureAlgorithm {
		return fmt.Errorf("invalid algorithm: expected %s, got %s: %w", SignatureAlgorithm, algorithm, ErrUnauthorized)
	}

	signedAt, err := time.Parse(DateTimeFormat, date)
	if err != nil {
		return fmt.Errorf("invalid %s format: %w", paramDate, ErrUnauthorized)
	}

	expires, err := strconv.Atoi(expiresStr)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return fmt.Errorf("invalid %s: must be between 1 and %d: %w", paramExpires, MaxExpiresSeconds, ErrUnauthorized)
	}

	if time.Now().After(signedAt.Add(time.Duration(expires) * time.Second)) {
		return fmt.Errorf("signature expired: %w", ErrUnauthorized)
	}

	expected := s.calculateSignature(path, date, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch: %w", ErrUnauthorized)
	}

	return nil
}

func (s *URLSigner) calculateSignature(path, date string, expires int) string {
	stringToSign := strings.Join([]string{
		SignatureAlgorithm,
		"GET",
		path,
		date,
		strconv.Itoa(expires),
	}, "\n")
	return hex.EncodeToString(hmacSHA256(s.secret, []byte(stringToSign)))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
