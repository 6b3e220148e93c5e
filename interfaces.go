// interfaces.go
// -------------
// Collaborator contracts consumed by the SDK. The SDK never opens network
// connections or touches durable storage itself; it drives a Transport for
// the wire and a Store for cached responses.
package callbridge

import "context"

// Transport performs a single HTTP exchange. Implementations must honor
// cancellation of ctx and should not retry internally.
type Transport interface {
	Send(ctx context.Context, req *Request) (*RawResponse, error)
}

// Store is a pluggable cache backend. Get reports found=false for a miss;
// a non-nil error means the lookup itself failed (the cache layer treats
// that as a miss). Both methods must be safe for concurrent use; concurrent
// Put on the same key is last-writer-wins.
type Store interface {
	Get(key string) (*RawResponse, bool, error)
	Put(key string, resp *RawResponse) error
}

// DecodeFunc converts a raw response into a domain value. Interpreting a
// non-2xx status as a domain error is the decode function's responsibility;
// the executor hands every response through untouched.
type DecodeFunc func(*RawResponse) (any, error)

// CachePredicate decides whether a response is eligible for caching. It sees
// the raw response exactly as the transport returned it.
type CachePredicate func(*RawResponse) bool

// DefaultCachePredicate stores plain 200 responses only.
func DefaultCachePredicate(resp *RawResponse) bool {
	return resp.StatusCode == 200
}

// Caller is the execution contract shared by the Executor and the cache
// layer, so pagination and batching compose over either.
type Caller interface {
	Execute(ctx context.Context, call *BoundCall) (*RawResponse, error)
}
