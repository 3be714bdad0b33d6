package resolver

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/pkg/cache"
)

// GatewayCache keeps the gateway handles built for root queries so identical
// root queries plan once. Concurrent builds of the same key are coalesced.
type GatewayCache struct {
	group   singleflight.Group
	handles cache.Cache[agora.DataGateway]
}

// NewGatewayCache creates an unbounded handle cache.
func NewGatewayCache(opts ...cache.Option[agora.DataGateway]) (*GatewayCache, error) {
	handles, err := cache.NewSimple(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "GatewayCache", "New", "create handle cache")
	}
	return &GatewayCache{handles: handles}, nil
}

// GatewayKey is the cache key of the root field named field in query.
func GatewayKey(query, field string) string {
	return query + "\x00" + field
}

// Get returns the handle stored under key, building and storing it on a miss.
// shared reports whether the handle was built by another caller.
func (c *GatewayCache) Get(ctx context.Context, key string, build func(context.Context) (agora.DataGateway, error)) (dg agora.DataGateway, shared bool, err error) {
	if dg, ok := c.handles.Get(key); ok {
		return dg, true, nil
	}

	built := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		if dg, ok := c.handles.Get(key); ok {
			return dg, nil
		}
		built = true
		dg, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := c.handles.Set(key, dg); err != nil {
			return nil, errors.Wrap(err, "GatewayCache", "Get", "store gateway handle")
		}
		return dg, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(agora.DataGateway), !built, nil
}

// Len returns the number of cached handles.
func (c *GatewayCache) Len() int {
	return c.handles.Size()
}
