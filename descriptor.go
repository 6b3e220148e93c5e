// descriptor.go
// -------------
// A CallDescriptor is the immutable template for one logical API operation:
// method, URL template with {name} placeholders, declared parameters, and a
// decode function. Binding concrete values produces a BoundCall; the
// descriptor itself is never mutated, so one descriptor can back any number
// of concurrent sessions.
//
// A BoundCall's Identity is a deterministic digest of everything that shapes
// the request (family, method, resolved URL with sorted query, body), which
// is what the cache layer keys on.
package callbridge

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"golang.org/x/crypto/blake2b"
)

type CallDescriptor struct {
	// Family names the API family this operation belongs to. Batching and
	// rate limiting are configured per family.
	Family string

	Method      string
	URLTemplate string

	// PathParams declares defaults for template placeholders. A placeholder
	// not listed here must be supplied at bind time.
	PathParams map[string]string

	// QueryParams declares the query surface. The map value is the default;
	// an empty default marks the parameter as required at bind time.
	QueryParams map[string]string

	// Headers are sent with every bound call (e.g. accept).
	Headers map[string]string

	// Decode converts the response body to the domain type. Ignored when
	// Raw is set.
	Decode DecodeFunc

	// Raw skips decoding entirely: callers receive the untouched
	// *RawResponse. This replaces any notion of a process-wide raw mode;
	// the toggle lives on the descriptor so it cannot leak between
	// unrelated calls.
	Raw bool
}

type BoundCall struct {
	Descriptor *CallDescriptor
	Headers    map[string]string
	Body       []byte

	base  string // resolved template, no query string
	query url.Values
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Bind resolves every placeholder and declared parameter into a BoundCall.
// pathArgs fill template placeholders, queryArgs fill declared query
// parameters (undeclared extras are passed through verbatim). A placeholder
// or required query parameter with neither an argument nor a default is a
// *BindingError. Bind has no side effects and never touches the network.
func (d *CallDescriptor) Bind(pathArgs, queryArgs map[string]string, body []byte) (*BoundCall, error) {
	var bindErr error
	base := placeholderRe.ReplaceAllStringFunc(d.URLTemplate, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := pathArgs[name]; ok {
			return url.PathEscape(v)
		}
		if v, ok := d.PathParams[name]; ok && v != "" {
			return url.PathEscape(v)
		}
		if bindErr == nil {
			bindErr = &BindingError{Param: name}
		}
		return m
	})
	if bindErr != nil {
		return nil, bindErr
	}

	query := url.Values{}
	for name, def := range d.QueryParams {
		if v, ok := queryArgs[name]; ok {
			query.Set(name, v)
			continue
		}
		if def == "" {
			return nil, &BindingError{Param: name}
		}
		query.Set(name, def)
	}
	for name, v := range queryArgs {
		if _, declared := d.QueryParams[name]; !declared {
			query.Set(name, v)
		}
	}

	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		headers[k] = v
	}

	return &BoundCall{
		Descriptor: d,
		Headers:    headers,
		Body:       body,
		base:       base,
		query:      query,
	}, nil
}

// URL returns the fully resolved URL including the encoded query string.
// url.Values encodes keys in sorted order, so the result is deterministic.
func (b *BoundCall) URL() string {
	if len(b.query) == 0 {
		return b.base
	}
	return b.base + "?" + b.query.Encode()
}

// Param returns the current value of a bound query parameter.
func (b *BoundCall) Param(name string) string {
	return b.query.Get(name)
}

// WithParam returns a copy with one query parameter replaced. The receiver
// is not modified.
func (b *BoundCall) WithParam(name, value string) *BoundCall {
	cp := b.shallowCopy()
	cp.query = url.Values{}
	for k, vs := range b.query {
		cp.query[k] = append([]string(nil), vs...)
	}
	cp.query.Set(name, value)
	return cp
}

// WithURL returns a copy re-pointed at a complete URL, as supplied by a
// server (e.g. a next-page link). The query portion is re-parsed so Param
// and Identity stay coherent.
func (b *BoundCall) WithURL(next string) *BoundCall {
	cp := b.shallowCopy()
	if u, err := url.Parse(next); err == nil {
		q := u.Query()
		u.RawQuery = ""
		u.Fragment = ""
		cp.base = u.String()
		cp.query = q
	} else {
		cp.base = next
		cp.query = url.Values{}
	}
	return cp
}

func (b *BoundCall) shallowCopy() *BoundCall {
	cp := *b
	return &cp
}

// Identity is the cache key for this call: a digest over family, method,
// resolved URL (sorted query included) and body. Two binds of the same
// descriptor with the same values always produce the same identity.
func (b *BoundCall) Identity() string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(b.Descriptor.Family))
	h.Write([]byte{0})
	h.Write([]byte(b.Descriptor.Method))
	h.Write([]byte{0})
	h.Write([]byte(b.URL()))
	h.Write([]byte{0})
	h.Write(b.Body)
	return hex.EncodeToString(h.Sum(nil))
}

// request converts the bound call into the wire request handed to the
// transport. resolveURL joins relative templates against the family base
// URL when one is configured.
func (b *BoundCall) request(baseURL string) *Request {
	return &Request{
		Method:  b.Descriptor.Method,
		URL:     resolveURL(baseURL, b.URL()),
		Headers: b.Headers,
		Body:    b.Body,
	}
}

func resolveURL(base, ref string) string {
	if base == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(u).String()
}

// decodeValue applies the descriptor's decode contract to a response. Raw
// descriptors (or those without a Decode) yield the response itself.
func decodeValue(call *BoundCall, resp *RawResponse) (any, error) {
	d := call.Descriptor
	if d.Raw || d.Decode == nil {
		return resp, nil
	}
	v, err := d.Decode(resp)
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			err = &DecodeError{Err: err}
		}
		return nil, err
	}
	return v, nil
}

// JSONDecoder returns a DecodeFunc that unmarshals 2xx bodies into *T and
// turns any other status into a *DecodeError carrying the status and a body
// excerpt.
func JSONDecoder[T any]() DecodeFunc {
	return func(resp *RawResponse) (any, error) {
		if !resp.IsSuccess() {
			return nil, &DecodeError{Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, excerpt(resp.Body))}
		}
		var v T
		if err := json.Unmarshal(resp.Body, &v); err != nil {
			return nil, &DecodeError{Err: err}
		}
		return &v, nil
	}
}

func excerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
