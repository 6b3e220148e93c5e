package callbridge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
)

// fakeTransport is the in-package test transport. The mock package cannot
// be used here without an import cycle; external-package tests use it
// instead.
type fakeTransport struct {
	mu       sync.Mutex
	queue    []*RawResponse
	handler  func(req *Request) (*RawResponse, error)
	err      error
	requests []*Request
}

func (f *fakeTransport) Send(ctx context.Context, req *Request) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler, err := f.handler, f.err
	var queued *RawResponse
	if handler == nil && err == nil && len(f.queue) > 0 {
		queued = f.queue[0]
		f.queue = f.queue[1:]
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if handler != nil {
		return handler(req)
	}
	if queued != nil {
		return queued, nil
	}
	return jsonResp(200, `{}`), nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func jsonResp(status int, body string) *RawResponse {
	return &RawResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       []byte(body),
	}
}

func newTestSDK(t interface{ Fatal(...any) }, transport Transport) *CallBridge {
	sdk := NewCallBridge(transport)
	err := sdk.RegisterFamily(&FamilyConfig{
		Name:          "test",
		BaseURL:       "https://api.test.example",
		BatchEndpoint: "/batch",
	})
	if err != nil {
		t.Fatal(err)
	}
	return sdk
}

// batchPart describes one part of a synthetic batch response.
type batchPart struct {
	id     int
	status int
	body   string
	// corrupt replaces the embedded response with garbage.
	corrupt bool
}

// makeBatchResponse builds a multipart batch response with parts in the
// given order, which lets tests shuffle them relative to request order.
func makeBatchResponse(parts []batchPart) *RawResponse {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range parts {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", "application/http")
		hdr.Set("Content-ID", fmt.Sprintf("<response-item-%d@call-bridge>", p.id))
		pw, _ := w.CreatePart(hdr)
		if p.corrupt {
			fmt.Fprint(pw, "not an http response")
			continue
		}
		fmt.Fprintf(pw, "HTTP/1.1 %d X\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s",
			p.status, len(p.body), p.body)
	}
	w.Close()

	return &RawResponse{
		StatusCode: 200,
		Headers:    map[string]string{"content-type": "multipart/mixed; boundary=" + w.Boundary()},
		Body:       buf.Bytes(),
	}
}

// batchEcho answers a batch envelope by echoing every embedded request's
// path back as a JSON body, preserving content ids. Tests use it when the
// batch contents matter more than the scripted wire bytes.
func batchEcho(req *Request) (*RawResponse, error) {
	_, params, err := mime.ParseMediaType(req.Headers["Content-Type"])
	if err != nil {
		return nil, err
	}
	mr := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		embedded, err := http.ReadRequest(bufio.NewReader(part))
		if err != nil {
			return nil, err
		}
		body := fmt.Sprintf(`{"path":%q}`, embedded.URL.Path)

		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", "application/http")
		hdr.Set("Content-ID", "<response-"+trimAngles(part.Header.Get("Content-ID"))+">")
		pw, _ := w.CreatePart(hdr)
		fmt.Fprintf(pw, "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
	}
	w.Close()

	return &RawResponse{
		StatusCode: 200,
		Headers:    map[string]string{"content-type": "multipart/mixed; boundary=" + w.Boundary()},
		Body:       buf.Bytes(),
	}, nil
}

func trimAngles(s string) string {
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		return s[1 : len(s)-1]
	}
	return s
}
