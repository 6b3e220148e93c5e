// cache.go
// --------
// The cache layer wraps a Caller with response memoization keyed by BoundCall
// identity. A hit returns the stored response with no network activity. On a
// miss the call is executed and the raw response is offered to the
// invalidation predicate; only responses the predicate accepts are stored.
// Transport failures are never cached, so a failed call is always retried by
// the next identical call.
//
// Store read errors degrade to a miss rather than failing the call; store
// write errors are logged and otherwise ignored. The response the caller
// sees is the same either way.
package callbridge

import (
	"context"

	"github.com/hashicorp/go-hclog"
)

type CacheLayer struct {
	caller    Caller
	store     Store
	predicate CachePredicate
	logger    hclog.Logger
}

// NewCacheLayer wraps caller with memoization over store. A nil predicate
// means DefaultCachePredicate (store plain 200s only).
func NewCacheLayer(caller Caller, store Store, predicate CachePredicate) *CacheLayer {
	if predicate == nil {
		predicate = DefaultCachePredicate
	}
	return &CacheLayer{
		caller:    caller,
		store:     store,
		predicate: predicate,
		logger:    hclog.NewNullLogger(),
	}
}

func (c *CacheLayer) SetLogger(logger hclog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Execute implements Caller.
func (c *CacheLayer) Execute(ctx context.Context, call *BoundCall) (*RawResponse, error) {
	key := call.Identity()

	if cached, found, err := c.store.Get(key); err != nil {
		c.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
	} else if found {
		c.logger.Debug("cache hit", "key", key)
		return cached, nil
	}

	resp, err := c.caller.Execute(ctx, call)
	if err != nil {
		return nil, err
	}

	if c.predicate(resp) {
		if err := c.store.Put(key, resp); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		} else {
			c.logger.Debug("cached response", "key", key, "status", resp.StatusCode)
		}
	}
	return resp, nil
}
