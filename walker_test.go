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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchEchoStatus is batchEcho with a per-path status override, which lets
// walker tests fail selected items while the rest of the chunk succeeds.
func batchEchoStatus(status func(path string) int) func(req *Request) (*RawResponse, error) {
	return func(req *Request) (*RawResponse, error) {
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
			code := status(embedded.URL.Path)
			body := fmt.Sprintf(`{"path":%q}`, embedded.URL.Path)

			hdr := textproto.MIMEHeader{}
			hdr.Set("Content-Type", "application/http")
			hdr.Set("Content-ID", "<response-"+trimAngles(part.Header.Get("Content-ID"))+">")
			pw, _ := w.CreatePart(hdr)
			fmt.Fprintf(pw, "HTTP/1.1 %d X\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n%s", code, len(body), body)
		}
		w.Close()

		return &RawResponse{
			StatusCode: 200,
			Headers:    map[string]string{"content-type": "multipart/mixed; boundary=" + w.Boundary()},
			Body:       buf.Bytes(),
		}, nil
	}
}

func walkValues(n int) []string {
	vs := make([]string, n)
	for i := range vs {
		vs[i] = fmt.Sprintf("id-%03d", i)
	}
	return vs
}

func TestWalkerChunking(t *testing.T) {
	tr := &fakeTransport{handler: batchEcho}
	sdk := newTestSDK(t, tr)
	walker := sdk.Walker("test", "id", 100)

	values := walkValues(250)
	results, err := walker.Walk(context.Background(), itemDescriptor(), values, WalkArgs{})
	require.NoError(t, err)
	require.Len(t, results, 250)

	// 250 items at chunk size 100 is exactly three batch round trips.
	assert.Equal(t, 3, tr.calls())
	require.NoError(t, results.Err())
	for i, v := range values {
		assert.Equal(t, v, results[i].ParamValue)
		require.NoError(t, results[i].Err)
		assert.Equal(t, "/v1/items/"+v, results[i].Value.(*echoBody).Path)
	}
	assert.Len(t, results.Values(), 250)
}

func TestWalkerChunkSizeClampedToFamilyMax(t *testing.T) {
	tr := &fakeTransport{handler: batchEcho}
	sdk := NewCallBridge(tr)
	require.NoError(t, sdk.RegisterFamily(&FamilyConfig{
		Name:          "small",
		BaseURL:       "https://api.test.example",
		BatchEndpoint: "/batch",
		MaxBatchSize:  10,
	}))
	desc := &CallDescriptor{
		Family:      "small",
		Method:      "GET",
		URLTemplate: "/v1/items/{id}",
		Decode:      JSONDecoder[echoBody](),
	}

	// Requested chunk size exceeds the family max, so the max wins.
	walker := sdk.Walker("small", "id", 50)
	results, err := walker.Walk(context.Background(), desc, walkValues(25), WalkArgs{})
	require.NoError(t, err)
	require.NoError(t, results.Err())
	assert.Equal(t, 3, tr.calls())
}

func TestWalkerQueryParam(t *testing.T) {
	tr := &fakeTransport{handler: batchEcho}
	sdk := newTestSDK(t, tr)

	desc := &CallDescriptor{
		Family:      "test",
		Method:      "GET",
		URLTemplate: "/v1/users",
		Decode:      JSONDecoder[echoBody](),
	}
	walker := sdk.Walker("test", "userId", 0)

	_, err := walker.Walk(context.Background(), desc, []string{"u1", "u2"}, WalkArgs{
		Query: map[string]string{"fields": "displayName"},
	})
	require.NoError(t, err)

	// The walked parameter lands in the query string of each embedded
	// request, alongside the fixed arguments.
	queries := embeddedQueries(t, tr.requests[0])
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "userId=u1")
	assert.Contains(t, queries[0], "fields=displayName")
	assert.Contains(t, queries[1], "userId=u2")
}

func embeddedQueries(t *testing.T, req *Request) []string {
	t.Helper()
	_, params, err := mime.ParseMediaType(req.Headers["Content-Type"])
	require.NoError(t, err)
	mr := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])

	var out []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		embedded, err := http.ReadRequest(bufio.NewReader(part))
		require.NoError(t, err)
		out = append(out, embedded.URL.RawQuery)
	}
	return out
}

func TestWalkerItemIsolation(t *testing.T) {
	tr := &fakeTransport{handler: batchEchoStatus(func(path string) int {
		if strings.HasSuffix(path, "/bad") {
			return 404
		}
		return 200
	})}
	sdk := newTestSDK(t, tr)
	walker := sdk.Walker("test", "id", 0)

	results, err := walker.Walk(context.Background(), itemDescriptor(), []string{"a", "bad", "c"}, WalkArgs{})
	require.NoError(t, err)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	// The summary error names every failed item and nothing else.
	require.Error(t, results.Err())
	assert.Len(t, results.Values(), 2)
}

func TestWalkerPost(t *testing.T) {
	tr := &fakeTransport{handler: batchEcho}
	sdk := newTestSDK(t, tr)
	walker := sdk.Walker("test", "id", 0)
	walker.SetPost(func(index int, value any) (any, error) {
		if index == 1 {
			return nil, fmt.Errorf("post rejected item %d", index)
		}
		return strings.ToUpper(value.(*echoBody).Path), nil
	})

	results, err := walker.Walk(context.Background(), itemDescriptor(), []string{"a", "b", "c"}, WalkArgs{})
	require.NoError(t, err)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "/V1/ITEMS/A", results[0].Value)
	assert.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	assert.Equal(t, "/V1/ITEMS/C", results[2].Value)
}

func TestWalkerConcurrentOrderStable(t *testing.T) {
	tr := &fakeTransport{handler: batchEcho}
	sdk := newTestSDK(t, tr)
	walker := sdk.Walker("test", "id", 25)
	walker.SetConcurrency(4)

	values := walkValues(100)
	results, err := walker.Walk(context.Background(), itemDescriptor(), values, WalkArgs{})
	require.NoError(t, err)
	require.NoError(t, results.Err())
	assert.Equal(t, 4, tr.calls())

	for i, v := range values {
		assert.Equal(t, "/v1/items/"+v, results[i].Value.(*echoBody).Path)
	}
}

func TestWalkerConfigurationErrors(t *testing.T) {
	t.Run("unregistered family", func(t *testing.T) {
		sdk := newTestSDK(t, &fakeTransport{})
		walker := sdk.Walker("nope", "id", 0)

		_, err := walker.Walk(context.Background(), itemDescriptor(), []string{"a"}, WalkArgs{})
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("family without batch endpoint", func(t *testing.T) {
		sdk := NewCallBridge(&fakeTransport{})
		require.NoError(t, sdk.RegisterFamily(&FamilyConfig{
			Name:    "plain",
			BaseURL: "https://api.test.example",
		}))
		walker := sdk.Walker("plain", "id", 0)

		_, err := walker.Walk(context.Background(), itemDescriptor(), []string{"a"}, WalkArgs{})
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestWalkerEmptyValues(t *testing.T) {
	tr := &fakeTransport{}
	sdk := newTestSDK(t, tr)
	walker := sdk.Walker("test", "id", 0)

	results, err := walker.Walk(context.Background(), itemDescriptor(), nil, WalkArgs{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, tr.calls())
}
