// walker.go
// ---------
// The Walker drives the Batcher across a value sequence: it binds one call
// per value (varying exactly one designated parameter, holding everything
// else fixed), chunks the calls into batch-sized groups, and merges the
// per-item results back into a single ordered result set. One failed item
// never discards the rest of its chunk, and one failed chunk never aborts
// the walk.
//
// Walking more than one parameter at a time is out of scope: callers must
// pre-zip multiple varying values into a single composite value upstream.
//
// Chunks are dispatched sequentially by default, which is the
// rate-limit-friendly mode. SetConcurrency allows bounded parallel chunk
// dispatch; results are written into index-addressed slots, so output order
// is stable regardless of completion order.
package callbridge

import (
	"context"
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// PostFunc post-processes one decoded success before it is merged into the
// walk output. index is the item's position in the walked value sequence.
type PostFunc func(index int, value any) (any, error)

// WalkArgs are the parameters held constant across every walked call.
type WalkArgs struct {
	Path  map[string]string
	Query map[string]string
	Body  []byte
}

// WalkItem is the outcome for one walked value.
type WalkItem struct {
	ParamValue string
	Value      any
	Response   *RawResponse
	Err        error
}

type WalkResults []WalkItem

// Err summarizes every per-item failure, or nil if all items succeeded.
func (rs WalkResults) Err() error {
	var merr *multierror.Error
	for i := range rs {
		if rs[i].Err != nil {
			merr = multierror.Append(merr, rs[i].Err)
		}
	}
	return merr.ErrorOrNil()
}

// Values returns the successful decoded values in walk order.
func (rs WalkResults) Values() []any {
	var out []any
	for i := range rs {
		if rs[i].Err == nil {
			out = append(out, rs[i].Value)
		}
	}
	return out
}

type Walker struct {
	batcher     *Batcher
	param       string
	batchSize   int
	concurrency int
	post        PostFunc
}

// NewWalker walks param over value sequences in chunks of batchSize.
// batchSize <= 0 means the family's max batch size.
func NewWalker(batcher *Batcher, param string, batchSize int) *Walker {
	return &Walker{
		batcher:   batcher,
		param:     param,
		batchSize: batchSize,
	}
}

func (w *Walker) SetPost(fn PostFunc) { w.post = fn }

// SetConcurrency enables concurrent chunk dispatch, at most n chunks in
// flight. n <= 1 restores sequential dispatch.
func (w *Walker) SetConcurrency(n int) { w.concurrency = n }

// Walk binds one call per value and executes them in batches. The result
// set has one entry per value, in input order. The returned error is
// non-nil only for configuration failures, which are checked before any
// network I/O; everything else surfaces per item.
func (w *Walker) Walk(ctx context.Context, desc *CallDescriptor, values []string, fixed WalkArgs) (WalkResults, error) {
	cfg := w.batcher.sdk.familyConfig(w.batcher.family)
	if cfg == nil {
		return nil, &ConfigurationError{Reason: "family " + w.batcher.family + " not registered"}
	}
	if cfg.BatchEndpoint == "" {
		return nil, &ConfigurationError{Reason: "family " + w.batcher.family + " has no batch endpoint"}
	}

	size := w.batchSize
	if size <= 0 || size > cfg.maxBatchSize() {
		size = cfg.maxBatchSize()
	}

	isPath := w.paramIsPath(desc)
	results := make(WalkResults, len(values))
	calls := make([]*BoundCall, len(values))
	for i, v := range values {
		results[i].ParamValue = v
		call, err := w.bindOne(desc, v, isPath, fixed)
		if err != nil {
			results[i].Err = err
			continue
		}
		calls[i] = call
	}

	// Chunk the successfully bound calls, keeping their walk indices.
	type chunk struct {
		calls   []*BoundCall
		indices []int
	}
	var chunks []chunk
	cur := chunk{}
	for i, call := range calls {
		if call == nil {
			continue
		}
		cur.calls = append(cur.calls, call)
		cur.indices = append(cur.indices, i)
		if len(cur.calls) == size {
			chunks = append(chunks, cur)
			cur = chunk{}
		}
	}
	if len(cur.calls) > 0 {
		chunks = append(chunks, cur)
	}

	runChunk := func(ctx context.Context, c chunk) error {
		batch, err := w.batcher.Do(ctx, c.calls)
		if err != nil {
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				return err
			}
			for _, idx := range c.indices {
				results[idx].Err = err
			}
			return nil
		}
		for j, idx := range c.indices {
			res := batch[j]
			results[idx].Response = res.Response
			if res.Err != nil {
				results[idx].Err = res.Err
				continue
			}
			value := res.Value
			if w.post != nil {
				value, err = w.post(idx, value)
				if err != nil {
					results[idx].Err = err
					continue
				}
			}
			results[idx].Value = value
		}
		return nil
	}

	if w.concurrency > 1 && len(chunks) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.concurrency)
		for _, c := range chunks {
			g.Go(func() error { return runChunk(gctx, c) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	for _, c := range chunks {
		if err := runChunk(ctx, c); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// paramIsPath reports whether the walked parameter fills a URL template
// placeholder rather than a query parameter.
func (w *Walker) paramIsPath(desc *CallDescriptor) bool {
	if _, ok := desc.PathParams[w.param]; ok {
		return true
	}
	return strings.Contains(desc.URLTemplate, "{"+w.param+"}")
}

func (w *Walker) bindOne(desc *CallDescriptor, value string, isPath bool, fixed WalkArgs) (*BoundCall, error) {
	pathArgs := make(map[string]string, len(fixed.Path)+1)
	for k, v := range fixed.Path {
		pathArgs[k] = v
	}
	queryArgs := make(map[string]string, len(fixed.Query)+1)
	for k, v := range fixed.Query {
		queryArgs[k] = v
	}
	if isPath {
		pathArgs[w.param] = value
	} else {
		queryArgs[w.param] = value
	}
	return desc.Bind(pathArgs, queryArgs, fixed.Body)
}
