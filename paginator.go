// paginator.go
// ------------
// The Paginator walks a paginated list endpoint one page at a time. Each
// pulled element triggers exactly one call (through whatever Caller it was
// built on, so caching composes transparently); the next request's
// parameters are derived from the previous page's decoded output, which
// makes the sequence strictly sequential by construction. The sequence is
// lazy and not restartable: abandoning it between pulls has no side effects
// beyond requests already issued.
//
// Two advance strategies exist:
//   - PageByURL: the advance function returns the complete next-page URL
//     (e.g. a Link header or nextLink field).
//   - PageByParam: the advance function returns the next value for one
//     named query parameter (e.g. an offset or page token).
//
// Termination is solely the advance function reporting done; there is no
// implicit page cap. The first error (transport or decode) is yielded and
// the sequence stops, so callers see exactly how many pages succeeded.
package callbridge

import (
	"context"
	"iter"
)

type PageMethod int

const (
	PageByURL PageMethod = iota
	PageByParam
)

// AdvanceFunc inspects a decoded page (and its raw response) and returns
// the next URL or parameter value. ok=false ends the sequence.
type AdvanceFunc func(page any, resp *RawResponse) (next string, ok bool)

type Paginator struct {
	caller  Caller
	method  PageMethod
	param   string
	advance AdvanceFunc
}

// NewPaginator builds a paginator over caller. param names the advanced
// query parameter and is only used with PageByParam.
func NewPaginator(caller Caller, method PageMethod, param string, advance AdvanceFunc) *Paginator {
	return &Paginator{
		caller:  caller,
		method:  method,
		param:   param,
		advance: advance,
	}
}

// Pages returns the lazy page sequence starting from first. A nil first
// call yields an empty sequence. Raw descriptors yield *RawResponse
// elements; otherwise elements are the decode function's output.
func (p *Paginator) Pages(ctx context.Context, first *BoundCall) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		call := first
		for call != nil {
			resp, err := p.caller.Execute(ctx, call)
			if err != nil {
				yield(nil, err)
				return
			}
			page, err := decodeValue(call, resp)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}

			next, ok := p.advance(page, resp)
			if !ok {
				return
			}
			switch p.method {
			case PageByURL:
				call = call.WithURL(next)
			default:
				call = call.WithParam(p.param, next)
			}
		}
	}
}

// CollectPages drains a page sequence into a slice, stopping at the first
// error. The pages collected before the error are returned alongside it.
func CollectPages(seq iter.Seq2[any, error]) ([]any, error) {
	var pages []any
	for page, err := range seq {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}
