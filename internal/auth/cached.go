package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// expirySkew is how long before expiry a cached credential is replaced.
const expirySkew = 2 * time.Minute

// CachedProvider reuses the last credential of the wrapped provider until it
// is about to expire, so one run asks the identity platform once.
type CachedProvider struct {
	inner  Provider
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	key  string
	cred Credential
}

// NewCachedProvider wraps inner.
func NewCachedProvider(inner Provider, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, logger: logger, now: time.Now}
}

// Name implements Provider.
func (c *CachedProvider) Name() string { return c.inner.Name() }

// Acquire implements Provider.
func (c *CachedProvider) Acquire(ctx context.Context, scopes []string) (Credential, error) {
	key := strings.Join(scopes, " ")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key == key && c.cred.Valid(c.now(), expirySkew) {
		return c.cred, nil
	}

	if c.cred.AccessToken != "" {
		c.logger.Info("cached credential expiring, re-acquiring",
			slog.Time("expiry", c.cred.ExpiresOn),
		)
	}

	cred, err := c.inner.Acquire(ctx, scopes)
	if err != nil {
		return Credential{}, err
	}

	c.key = key
	c.cred = cred

	return cred, nil
}
