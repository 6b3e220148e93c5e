// mock/mock_transport.go
// ----------------------
// A scripted Transport for tests. Responses are either consumed from a
// queue in order or produced by a Handler function; every request is
// captured and counted so tests can assert on executor invocations (the
// cache idempotence and selectivity properties hinge on exact call
// counts).
package mock

import (
	"context"
	"sync"

	callbridge "github.com/opengovern/call-bridge"
)

type Transport struct {
	mu sync.Mutex

	// Handler, when set, produces the response for each request.
	Handler func(req *callbridge.Request) (*callbridge.RawResponse, error)

	// Queue is consumed one response per request when Handler is nil.
	Queue []*callbridge.RawResponse

	// Err, when set, fails every Send.
	Err error

	requests []*callbridge.Request
}

func (m *Transport) Send(ctx context.Context, req *callbridge.Request) (*callbridge.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.Handler
	err := m.Err
	var queued *callbridge.RawResponse
	if handler == nil && err == nil && len(m.Queue) > 0 {
		queued = m.Queue[0]
		m.Queue = m.Queue[1:]
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if handler != nil {
		return handler(req)
	}
	if queued != nil {
		return queued, nil
	}
	return JSONResponse(200, `{}`), nil
}

// CallCount reports how many requests reached the transport.
func (m *Transport) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns the captured requests in arrival order.
func (m *Transport) Requests() []*callbridge.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*callbridge.Request(nil), m.requests...)
}

// JSONResponse builds a canned application/json response.
func JSONResponse(status int, body string) *callbridge.RawResponse {
	return &callbridge.RawResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       []byte(body),
	}
}
