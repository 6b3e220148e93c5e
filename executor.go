// executor.go
// -----------
// The Executor issues exactly one network round trip for a BoundCall. It
// injects the bearer credential, waits out any known rate-limit window for
// the call's family, and hands the response back untouched: a non-2xx
// status is still a RawResponse, not an error, so callers and the cache
// layer can inspect it. Retrying is deliberately not done here; wrap calls
// with the retry package when a policy is wanted.
package callbridge

import (
	"context"
	"errors"
	"time"
)

type Executor struct {
	sdk *CallBridge
}

func NewExecutor(sdk *CallBridge) *Executor {
	return &Executor{sdk: sdk}
}

// Execute performs the single round trip for call. Transport-level failures
// come back as *TransportError; cancellation of ctx is a non-retryable
// transport error.
func (e *Executor) Execute(ctx context.Context, call *BoundCall) (*RawResponse, error) {
	family := call.Descriptor.Family
	cfg := e.sdk.familyConfig(family)

	if delay := e.sdk.limiter.Delay(family); delay > 0 {
		e.sdk.logger.Debug("waiting for rate limit window", "family", family, "delay", delay)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, &TransportError{Retryable: false, Err: err}
		}
	}

	var baseURL string
	if cfg != nil {
		baseURL = cfg.BaseURL
	}
	req := call.request(baseURL)

	if e.sdk.auth != nil {
		tok, err := e.sdk.auth.Token()
		if err != nil {
			return nil, &TransportError{Retryable: false, Err: err}
		}
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		req.Headers["Authorization"] = "Bearer " + tok.AccessToken
	}

	e.sdk.logger.Debug("sending request", "family", family, "method", req.Method, "url", req.URL)
	resp, err := e.sdk.transport.Send(ctx, req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if cfg != nil {
		e.sdk.limiter.Update(family, resp, cfg.RateLimitHeaders)
	}

	e.sdk.logger.Debug("received response", "family", family, "status", resp.StatusCode, "bytes", len(resp.Body))
	return resp, nil
}

// classifyTransportError wraps a transport failure, marking context
// cancellation and deadline expiry as non-retryable. Everything else
// (timeouts, connection resets) is considered retryable by an external
// policy.
func classifyTransportError(ctx context.Context, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Retryable: false, Err: err}
	}
	return &TransportError{Retryable: true, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
