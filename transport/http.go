// transport/http.go
// -----------------
// The stock Transport collaborator: one net/http round trip per Send, no
// retries, no redirect suppression. Response header keys are lower-cased
// on the way out so the SDK's header lookups are case-insensitive.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	callbridge "github.com/opengovern/call-bridge"
)

const defaultTimeout = 30 * time.Second

type HTTP struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTP returns a transport over a dedicated http.Client with a sane
// default timeout. Callers needing connection pooling knobs can swap the
// Client out.
func NewHTTP() *HTTP {
	return &HTTP{
		Client: &http.Client{Timeout: defaultTimeout},
	}
}

func (t *HTTP) Send(ctx context.Context, req *callbridge.Request) (*callbridge.RawResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if t.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.UserAgent)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}

	return &callbridge.RawResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}
