// retry/retry.go
// --------------
// Retry is deliberately outside the executor: the core performs exactly one
// round trip per call, and callers who want retries wrap the operation with
// this package. A Policy retries retryable transport errors and configured
// status codes with capped exponential backoff, honoring the caller's
// context throughout. When retries are exhausted on a retryable status, the
// last response is returned rather than an error, preserving the executor's
// non-2xx-is-still-a-response contract.
package retry

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"

	callbridge "github.com/opengovern/call-bridge"
)

type Policy struct {
	MaxRetries    uint64
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	RetryStatuses []int
}

// DefaultPolicy retries up to 3 times on retryable transport errors, 429s
// and 5xx server errors, starting at one second and capping at thirty.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseBackoff:   time.Second,
		MaxBackoff:    30 * time.Second,
		RetryStatuses: []int{429, 500, 502, 503, 504},
	}
}

// Operation is one attempt, typically a closure over Executor.Execute or
// CacheLayer.Execute for a fixed bound call.
type Operation func() (*callbridge.RawResponse, error)

type statusError struct {
	resp *callbridge.RawResponse
}

func (e *statusError) Error() string { return "retryable status" }

// Do runs op under the policy. Non-retryable transport errors, binding and
// decode errors fail immediately; retryable failures back off and try
// again until MaxRetries is exhausted.
func (p Policy) Do(ctx context.Context, op Operation) (*callbridge.RawResponse, error) {
	expo := backoff.NewExponentialBackOff()
	if p.BaseBackoff > 0 {
		expo.InitialInterval = p.BaseBackoff
	}
	if p.MaxBackoff > 0 {
		expo.MaxInterval = p.MaxBackoff
	}
	expo.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(expo, p.MaxRetries), ctx)

	resp, err := backoff.RetryWithData(func() (*callbridge.RawResponse, error) {
		resp, err := op()
		if err != nil {
			var te *callbridge.TransportError
			if errors.As(err, &te) && !te.Retryable {
				return nil, backoff.Permanent(err)
			}
			var pe *callbridge.BindingError
			var de *callbridge.DecodeError
			if errors.As(err, &pe) || errors.As(err, &de) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if slices.Contains(p.RetryStatuses, resp.StatusCode) {
			return nil, &statusError{resp: resp}
		}
		return resp, nil
	}, b)

	if err != nil {
		// Exhausted retries on a retryable status: hand back the last
		// response so callers can inspect it.
		var se *statusError
		if errors.As(err, &se) {
			return se.resp, nil
		}
		return nil, err
	}
	return resp, nil
}
