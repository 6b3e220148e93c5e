// batcher.go
// ----------
// The Batcher aggregates independent bound calls into one multipart batch
// request against the family's batch endpoint and demultiplexes the
// combined response back into per-call results, in input order. Correlation
// ids are the input indices, so ordering survives servers that echo parts
// shuffled. One missing or malformed part fails only that index; the other
// results stand.
//
// Family constraints are checked eagerly, before any network I/O: every
// call in a batch must belong to the batcher's family and the family must
// have a batch endpoint configured (multi-family batch endpoints are a
// deprecated pattern upstream and deliberately unsupported here).
//
// When a cache is attached, each sub-call is keyed individually by its own
// identity, exactly as on the single-call path: cached sub-calls are elided
// from the envelope and their stored responses merged back by index, and
// fresh parts the predicate accepts are stored under their sub-call keys.
package callbridge

import (
	"context"
	"fmt"
)

// BatchResult is the outcome for one call of a batch: the part's raw
// response, the decoded value per the call's descriptor, and the error if
// that part failed.
type BatchResult struct {
	Response *RawResponse
	Value    any
	Err      error
}

type Batcher struct {
	sdk       *CallBridge
	family    string
	store     Store
	predicate CachePredicate
}

func NewBatcher(sdk *CallBridge, family string) *Batcher {
	return &Batcher{sdk: sdk, family: family}
}

// SetCache attaches a per-sub-call response cache. A nil predicate means
// DefaultCachePredicate.
func (b *Batcher) SetCache(store Store, predicate CachePredicate) {
	if predicate == nil {
		predicate = DefaultCachePredicate
	}
	b.store = store
	b.predicate = predicate
}

// Do executes calls as one batch round trip and returns one result per
// call, same length and order as the input. The returned error is non-nil
// only for eager configuration failures or a transport failure of the
// batch round trip itself; per-part problems live in the results.
func (b *Batcher) Do(ctx context.Context, calls []*BoundCall) ([]BatchResult, error) {
	cfg := b.sdk.familyConfig(b.family)
	if cfg == nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("family %q not registered", b.family)}
	}
	if cfg.BatchEndpoint == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("family %q has no batch endpoint", b.family)}
	}
	if max := cfg.maxBatchSize(); len(calls) > max {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("batch of %d exceeds family %q max batch size %d", len(calls), b.family, max)}
	}
	for i, call := range calls {
		if call.Descriptor.Family != b.family {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("call %d belongs to family %q, batcher is for %q", i, call.Descriptor.Family, b.family)}
		}
	}
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]BatchResult, len(calls))

	// Cache pre-pass: serve what we can, batch only the misses.
	var pendingCalls []*BoundCall
	var pendingIDs []int
	for i, call := range calls {
		if b.store != nil {
			if cached, found, err := b.store.Get(call.Identity()); err == nil && found {
				b.sdk.logger.Debug("batch cache hit", "family", b.family, "index", i)
				results[i] = decodeResult(call, cached)
				continue
			}
		}
		pendingCalls = append(pendingCalls, call)
		pendingIDs = append(pendingIDs, i)
	}
	if len(pendingCalls) == 0 {
		return results, nil
	}

	boundary := newBatchBoundary()
	body, err := buildBatchBody(pendingCalls, pendingIDs, cfg.BaseURL, boundary)
	if err != nil {
		return nil, fmt.Errorf("building batch envelope: %w", err)
	}

	envelope := &BoundCall{
		Descriptor: &CallDescriptor{
			Family: b.family,
			Method: "POST",
			Raw:    true,
		},
		Headers: map[string]string{
			"Content-Type": "multipart/mixed; boundary=" + boundary,
		},
		Body: body,
		base: cfg.BatchEndpoint,
	}

	b.sdk.logger.Debug("sending batch", "family", b.family, "calls", len(pendingCalls))
	resp, err := b.sdk.executor.Execute(ctx, envelope)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		partErr := func(i int) error {
			return &BatchPartError{Index: i, Reason: fmt.Sprintf("batch endpoint returned status %d", resp.StatusCode)}
		}
		for _, i := range pendingIDs {
			results[i] = BatchResult{Err: partErr(i)}
		}
		return results, nil
	}

	parts, partErrs, err := splitBatchResponse(resp, len(calls))
	if err != nil {
		for _, i := range pendingIDs {
			results[i] = BatchResult{Err: &BatchPartError{Index: i, Reason: "batch response unreadable", Err: err}}
		}
		return results, nil
	}

	for _, i := range pendingIDs {
		switch {
		case partErrs[i] != nil:
			results[i] = BatchResult{Err: &BatchPartError{Index: i, Reason: "malformed part", Err: partErrs[i]}}
		case parts[i] == nil:
			results[i] = BatchResult{Err: &BatchPartError{Index: i, Reason: "part missing from batch response"}}
		default:
			if b.store != nil && b.predicate(parts[i]) {
				if err := b.store.Put(calls[i].Identity(), parts[i]); err != nil {
					b.sdk.logger.Warn("batch cache write failed", "family", b.family, "index", i, "error", err)
				}
			}
			results[i] = decodeResult(calls[i], parts[i])
		}
	}
	return results, nil
}

func decodeResult(call *BoundCall, resp *RawResponse) BatchResult {
	value, err := decodeValue(call, resp)
	return BatchResult{Response: resp, Value: value, Err: err}
}
