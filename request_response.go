// request_response.go
// -------------------
// Wire-level request and response structures shared by every layer of the SDK.
// A Request is what the Transport collaborator sends; a RawResponse is what it
// returns. Both are opaque to the cache and batch layers except for status and
// header inspection.
//
// Response header keys are normalized to lower case by transports so lookups
// behave the same regardless of the remote server's casing.
package callbridge

import "strings"

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type RawResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *RawResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Header returns the named response header, case-insensitively.
func (r *RawResponse) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[strings.ToLower(name)]
}

// Clone returns a deep copy. Stores keep clones so that a caller mutating a
// returned response cannot corrupt cached entries.
func (r *RawResponse) Clone() *RawResponse {
	if r == nil {
		return nil
	}
	cp := &RawResponse{StatusCode: r.StatusCode}
	if r.Headers != nil {
		cp.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			cp.Headers[k] = v
		}
	}
	if r.Body != nil {
		cp.Body = make([]byte, len(r.Body))
		copy(cp.Body, r.Body)
	}
	return cp
}
