// sdk.go
// ------
// CallBridge is the SDK's entry point. It owns the registered API family
// configurations, the Transport and auth collaborators, the shared rate
// limiter, and the optional cache store, and hands out the composed layers:
// Execute/CachedExecute for single calls, Paginator for page sequences,
// Batcher and Walker for the batched path.
//
// All layers converge on the same BoundCall/Caller contract, so paging and
// batching stay transport-agnostic.
package callbridge

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

type CallBridge struct {
	mu       sync.Mutex
	families map[string]*FamilyConfig

	transport Transport
	auth      oauth2.TokenSource
	store     Store
	predicate CachePredicate
	limiter   *RateLimiter
	executor  *Executor
	logger    hclog.Logger
}

func NewCallBridge(transport Transport) *CallBridge {
	sdk := &CallBridge{
		families:  make(map[string]*FamilyConfig),
		transport: transport,
		limiter:   NewRateLimiter(),
		predicate: DefaultCachePredicate,
		logger:    hclog.NewNullLogger(),
	}
	sdk.executor = NewExecutor(sdk)
	return sdk
}

// SetLogger installs a logger for request/cache/batch traces. The default
// is a no-op logger.
func (sdk *CallBridge) SetLogger(logger hclog.Logger) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	if logger != nil {
		sdk.logger = logger
	}
}

// SetAuth installs the bearer-credential collaborator. Every executed call
// carries an Authorization header minted from it.
func (sdk *CallBridge) SetAuth(ts oauth2.TokenSource) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	sdk.auth = ts
}

// SetCache installs the default cache store and invalidation predicate
// used by CachedExecute and Pager. A nil predicate means
// DefaultCachePredicate.
func (sdk *CallBridge) SetCache(store Store, predicate CachePredicate) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	sdk.store = store
	if predicate != nil {
		sdk.predicate = predicate
	} else {
		sdk.predicate = DefaultCachePredicate
	}
}

// RegisterFamily registers one API family's configuration.
func (sdk *CallBridge) RegisterFamily(cfg *FamilyConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	sdk.families[cfg.Name] = cfg
	sdk.logger.Debug("registered family", "name", cfg.Name, "batch_endpoint", cfg.BatchEndpoint)
	return nil
}

// RegisterConfig registers every family from a loaded configuration file.
func (sdk *CallBridge) RegisterConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for i := range cfg.Families {
		if err := sdk.RegisterFamily(&cfg.Families[i]); err != nil {
			return err
		}
	}
	return nil
}

func (sdk *CallBridge) familyConfig(name string) *FamilyConfig {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	return sdk.families[name]
}

// Execute performs a single uncached call.
func (sdk *CallBridge) Execute(ctx context.Context, call *BoundCall) (*RawResponse, error) {
	return sdk.executor.Execute(ctx, call)
}

// CachedExecute performs a single call through the SDK's cache store. It
// falls back to a plain Execute when no store is configured.
func (sdk *CallBridge) CachedExecute(ctx context.Context, call *BoundCall) (*RawResponse, error) {
	return sdk.caller().Execute(ctx, call)
}

// caller returns the cache layer when a store is configured, the bare
// executor otherwise.
func (sdk *CallBridge) caller() Caller {
	sdk.mu.Lock()
	store, predicate := sdk.store, sdk.predicate
	sdk.mu.Unlock()
	if store == nil {
		return sdk.executor
	}
	layer := NewCacheLayer(sdk.executor, store, predicate)
	layer.SetLogger(sdk.logger)
	return layer
}

// Pager builds a paginator over the SDK's caching path.
func (sdk *CallBridge) Pager(method PageMethod, param string, advance AdvanceFunc) *Paginator {
	return NewPaginator(sdk.caller(), method, param, advance)
}

// Batcher builds a batcher for one API family, sharing the SDK's cache
// store for per-sub-call keys.
func (sdk *CallBridge) Batcher(family string) *Batcher {
	b := NewBatcher(sdk, family)
	sdk.mu.Lock()
	store, predicate := sdk.store, sdk.predicate
	sdk.mu.Unlock()
	if store != nil {
		b.SetCache(store, predicate)
	}
	return b
}

// Walker builds a walker over the given family's batcher.
func (sdk *CallBridge) Walker(family, param string, batchSize int) *Walker {
	return NewWalker(sdk.Batcher(family), param, batchSize)
}

// RateLimitInfo returns the current known rate limit info for a family.
func (sdk *CallBridge) RateLimitInfo(family string) *RateLimitInfo {
	return sdk.limiter.Info(family)
}
