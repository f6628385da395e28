// Package cache is a short-TTL lookup cache for values that are expensive
// to refetch inside a tight per-product loop but change rarely within one
// pipeline invocation: shop timezone, selected ad account. Grounded on the
// CRM example repo's redis client usage.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Cache wraps a redis client with a fixed default TTL.
type Cache struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

// New connects to redisURL and returns a Cache using ttl as the default
// entry lifetime.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	return &Cache{rdb: redis.NewClient(opts), defaultTTL: ttl}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return eris.Wrap(c.rdb.Ping(ctx).Err(), "cache: ping")
}

func shopTZKey(tenantID string) string    { return "fleet:shoptz:" + tenantID }
func adAccountKey(tenantID string) string { return "fleet:adaccount:" + tenantID }

// GetShopTimezone returns the cached IANA timezone name for a tenant, and
// false if there was no cache hit.
func (c *Cache) GetShopTimezone(ctx context.Context, tenantID string) (string, bool, error) {
	return c.getString(ctx, shopTZKey(tenantID))
}

// SetShopTimezone caches a tenant's shop timezone for the default TTL.
func (c *Cache) SetShopTimezone(ctx context.Context, tenantID, ianaName string) error {
	return c.setString(ctx, shopTZKey(tenantID), ianaName)
}

// GetSelectedAdAccount returns the cached selected ad account id for a
// tenant, and false if there was no cache hit.
func (c *Cache) GetSelectedAdAccount(ctx context.Context, tenantID string) (string, bool, error) {
	return c.getString(ctx, adAccountKey(tenantID))
}

// SetSelectedAdAccount caches a tenant's selected ad account id for the
// default TTL.
func (c *Cache) SetSelectedAdAccount(ctx context.Context, tenantID, adAccountID string) error {
	return c.setString(ctx, adAccountKey(tenantID), adAccountID)
}

func (c *Cache) getString(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "cache: get %s", key)
	}
	return v, true, nil
}

func (c *Cache) setString(ctx context.Context, key, value string) error {
	return eris.Wrapf(c.rdb.Set(ctx, key, value, c.defaultTTL).Err(), "cache: set %s", key)
}

// GetJSON decodes a cached JSON value into dest, returning false on a cache
// miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "cache: get json %s", key)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, eris.Wrapf(err, "cache: decode json %s", key)
	}
	return true, nil
}

// SetJSON caches a JSON-encoded value for the default TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "cache: encode json %s", key)
	}
	return eris.Wrapf(c.rdb.Set(ctx, key, raw, c.defaultTTL).Err(), "cache: set json %s", key)
}
