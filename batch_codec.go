// batch_codec.go
// --------------
// Wire codec for the multipart batch format: the envelope body is
// multipart/mixed with a batch_<token> boundary, each part carrying an
// embedded HTTP request (application/http) tagged with a Content-ID built
// from the call's index. The response envelope mirrors the structure, one
// application/http part per Content-ID, each embedding a full HTTP
// response. Servers may echo parts in any order; correlation is by
// Content-ID alone.
package callbridge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const batchBoundaryPrefix = "batch_"

// newBatchBoundary returns a fresh envelope boundary token.
func newBatchBoundary() string {
	return batchBoundaryPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func contentID(index int) string {
	return fmt.Sprintf("<item-%d@call-bridge>", index)
}

// parseContentID extracts the call index from a part's Content-ID. Response
// parts conventionally prefix the original id with "response-".
func parseContentID(id string) (int, error) {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	id = strings.TrimPrefix(id, "response-")
	if !strings.HasPrefix(id, "item-") {
		return 0, fmt.Errorf("malformed content id %q", id)
	}
	num := strings.TrimPrefix(id, "item-")
	if at := strings.IndexByte(num, '@'); at >= 0 {
		num = num[:at]
	}
	idx, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("malformed content id %q: %w", id, err)
	}
	return idx, nil
}

// buildBatchBody serializes the bound calls into one multipart envelope.
// Each call becomes an application/http part whose body is the embedded
// request line, headers and body; ids[i] is the correlation index stamped
// into the part's Content-ID (the call's position in the caller's original
// sequence, which may differ from its position here when cached calls were
// elided). baseURL resolves relative call URLs so the embedded request line
// carries the server-relative path.
func buildBatchBody(calls []*BoundCall, ids []int, baseURL, boundary string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, err
	}

	for i, call := range calls {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", "application/http")
		hdr.Set("Content-Transfer-Encoding", "binary")
		hdr.Set("Content-ID", contentID(ids[i]))

		part, err := w.CreatePart(hdr)
		if err != nil {
			return nil, err
		}
		if err := writeEmbeddedRequest(part, call, baseURL); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEmbeddedRequest(w io.Writer, call *BoundCall, baseURL string) error {
	full := resolveURL(baseURL, call.URL())
	u, err := url.Parse(full)
	if err != nil {
		return fmt.Errorf("call URL %q: %w", full, err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", call.Descriptor.Method, u.RequestURI())
	if u.Host != "" {
		fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	}
	for k, v := range call.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	if len(call.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(call.Body))
		b.WriteString("\r\n")
		b.Write(call.Body)
	} else {
		b.WriteString("\r\n")
	}

	_, err = w.Write(b.Bytes())
	return err
}

// splitBatchResponse demultiplexes a batch response envelope back into n
// per-call responses, aligned by Content-ID. Both returned slices have
// length n: parts[i] is nil when errs[i] describes why that part could not
// be recovered. A part the server never returned leaves both nil; the
// batcher turns that into a missing-part error.
func splitBatchResponse(resp *RawResponse, n int) (parts []*RawResponse, errs []error, err error) {
	ct := resp.Header("content-type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, nil, fmt.Errorf("batch response content type %q: %w", ct, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, nil, fmt.Errorf("batch response is not multipart (got %q)", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, nil, fmt.Errorf("batch response content type %q has no boundary", ct)
	}

	parts = make([]*RawResponse, n)
	errs = make([]error, n)

	mr := multipart.NewReader(bytes.NewReader(resp.Body), boundary)
	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return nil, nil, fmt.Errorf("reading batch response part: %w", perr)
		}

		idx, iderr := parseContentID(part.Header.Get("Content-ID"))
		if iderr != nil {
			// A part we cannot correlate cannot be attributed to any
			// index, so it is dropped; affected indices surface as
			// missing parts.
			continue
		}
		if idx < 0 || idx >= n {
			continue
		}

		sub, serr := readEmbeddedResponse(part)
		if serr != nil {
			errs[idx] = serr
			continue
		}
		parts[idx] = sub
	}
	return parts, errs, nil
}

func readEmbeddedResponse(r io.Reader) (*RawResponse, error) {
	res, err := http.ReadResponse(bufio.NewReader(r), nil)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded response: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedded response body: %w", err)
	}

	headers := make(map[string]string, len(res.Header))
	for k, vals := range res.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}
	return &RawResponse{
		StatusCode: res.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}
