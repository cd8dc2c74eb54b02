package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache reads through a fast local layer before hitting the shared
// layer, and writes through to both. A miss in L1 that hits L2 backfills L1.
type LayeredCache struct {
	l1 Service
	l2 Service
}

func NewLayeredCache(l1, l2 Service) *LayeredCache {
	return &LayeredCache{l1: l1, l2: l2}
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, value, expiration)
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := c.l1.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return err
	}
	if err := c.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	// backfill with a short TTL so L1 stays close to L2
	_ = c.l1.Set(ctx, key, dest, time.Minute)
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	if err := c.l1.Delete(ctx, keys...); err != nil {
		return err
	}
	return c.l2.Delete(ctx, keys...)
}

func (c *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	ok, err := c.l1.Exists(ctx, keys...)
	if err == nil && ok {
		return true, nil
	}
	return c.l2.Exists(ctx, keys...)
}

func (c *LayeredCache) Close() error {
	err1 := c.l1.Close()
	err2 := c.l2.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
