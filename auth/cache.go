package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/clayloft/kilncat"
)

// KeyCache caches the signing key set between fetches. Concurrent misses
// collapse into one fetch, and a stale set keeps serving through source
// outages so that cached-key verdicts stay authoritative.
type KeyCache struct {
	source          KeySource
	refreshInterval time.Duration
	group           singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// NewKeyCache creates a cache over source. refreshInterval is the fallback
// freshness window when the source does not specify one; zero means
// DefaultRefreshInterval.
func NewKeyCache(source KeySource, refreshInterval time.Duration) (*KeyCache, error) {
	if source == nil {
		return nil, fmt.Errorf("new key cache: source cannot be nil")
	}
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	return &KeyCache{source: source, refreshInterval: refreshInterval}, nil
}

// Key returns the signing key for kid.
//
// A fresh cached key is served directly. A stale or missing key triggers
// one shared fetch; if the fetch fails but a stale copy of the key exists,
// the stale copy is served, since a definitive verdict from an old key
// beats refusing to answer. A kid absent even after a successful fetch is
// an unknown key and yields ErrInvalidToken; a fetch failure with no
// cached copy yields ErrAuthUnavailable.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok, fresh := c.lookup(kid)
	if ok && fresh {
		return key, nil
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	if err != nil {
		if ok {
			slog.Warn("signing key refresh failed, serving stale key", "kid", kid, "err", err)
			return key, nil
		}
		return nil, fmt.Errorf("signing key fetch failed (%v): %w", err, kilncat.ErrAuthUnavailable)
	}

	if key, ok, _ := c.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown signing key %s: %w", kid, kilncat.ErrInvalidToken)
}

func (c *KeyCache) lookup(kid string) (key *rsa.PublicKey, ok, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	return key, ok, time.Now().Before(c.expiresAt)
}

func (c *KeyCache) refresh(ctx context.Context) error {
	// Another waiter may have refreshed while this call queued on the group.
	c.mu.RLock()
	fresh := time.Now().Before(c.expiresAt)
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	keys, ttl, err := c.source.FetchKeys(ctx)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.refreshInterval
	}

	c.mu.Lock()
	c.keys = keys
	c.expiresAt = time.Now().Add(ttl)
	c.mu.Unlock()
	return nil
}
