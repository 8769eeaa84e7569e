package hdrjwt

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const defaultKeyCacheKey = "\x00default"

// CachingKeyProvider keeps resolved keys for a fixed time. Failed lookups are not cached.
type CachingKeyProvider struct {
	inner KeyProvider
	cache *ttlcache.Cache[string, PrivateKey]
}

// NewCachingKeyProvider wraps inner with a cache holding keys for ttl.
func NewCachingKeyProvider(inner KeyProvider, ttl time.Duration) *CachingKeyProvider {
	if ttl <= 0 {
		ttl = defaultKeyCacheTTL
	}
	return &CachingKeyProvider{
		inner: inner,
		cache: ttlcache.New[string, PrivateKey](
			ttlcache.WithTTL[string, PrivateKey](ttl),
			ttlcache.WithDisableTouchOnHit[string, PrivateKey](),
		),
	}
}

// Start runs the expiration loop until Stop is called.
func (c *CachingKeyProvider) Start() {
	go c.cache.Start()
}

// Stop ends the expiration loop.
func (c *CachingKeyProvider) Stop() {
	c.cache.Stop()
}

// GetDefaultPrivateKey returns the cached default key or loads it.
func (c *CachingKeyProvider) GetDefaultPrivateKey() (PrivateKey, error) {
	return c.lookup(defaultKeyCacheKey, c.inner.GetDefaultPrivateKey)
}

// GetPrivateKey returns the cached tenant key or loads it.
func (c *CachingKeyProvider) GetPrivateKey(keystoreName, tenantDomain string) (PrivateKey, error) {
	return c.lookup(keystoreName+"\x00"+tenantDomain, func() (PrivateKey, error) {
		return c.inner.GetPrivateKey(keystoreName, tenantDomain)
	})
}

func (c *CachingKeyProvider) lookup(key string, load func() (PrivateKey, error)) (PrivateKey, error) {
	if item := c.cache.Get(key); item != nil && !item.IsExpired() {
		return item.Value(), nil
	}
	value, err := load()
	if err != nil || isNilKey(value) {
		return value, err
	}
	c.cache.Set(key, value, ttlcache.DefaultTTL)
	return value, nil
}
