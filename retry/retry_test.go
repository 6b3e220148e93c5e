package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	callbridge "github.com/opengovern/call-bridge"
)

func fastPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseBackoff:   time.Millisecond,
		MaxBackoff:    5 * time.Millisecond,
		RetryStatuses: []int{429, 503},
	}
}

func okResp() *callbridge.RawResponse {
	return &callbridge.RawResponse{StatusCode: 200, Body: []byte(`{}`)}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	attempts := 0
	resp, err := fastPolicy().Do(context.Background(), func() (*callbridge.RawResponse, error) {
		attempts++
		return okResp(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesRetryableTransportError(t *testing.T) {
	attempts := 0
	resp, err := fastPolicy().Do(context.Background(), func() (*callbridge.RawResponse, error) {
		attempts++
		if attempts < 3 {
			return nil, &callbridge.TransportError{Retryable: true, Err: errors.New("connection reset")}
		}
		return okResp(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestDoRetriesConfiguredStatuses(t *testing.T) {
	attempts := 0
	resp, err := fastPolicy().Do(context.Background(), func() (*callbridge.RawResponse, error) {
		attempts++
		if attempts == 1 {
			return &callbridge.RawResponse{StatusCode: 429}, nil
		}
		return okResp(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, attempts)
}

func TestDoDoesNotRetryOtherStatuses(t *testing.T) {
	attempts := 0
	resp, err := fastPolicy().Do(context.Background(), func() (*callbridge.RawResponse, error) {
		attempts++
		return &callbridge.RawResponse{StatusCode: 404}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustedStatusReturnsLastResponse(t *testing.T) {
	attempts := 0
	resp, err := fastPolicy().Do(context.Background(), func() (*callbridge.RawResponse, error) {
		attempts++
		return &callbridge.RawResponse{StatusCode: 503, Body: []byte(`{"try":true}`)}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
	// MaxRetries of 3 means four attempts total.
	assert.Equal(t, 4, attempts)
}

func TestDoPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "non-retryable transport", err: &callbridge.TransportError{Retryable: false, Err: errors.New("context canceled")}},
		{name: "binding", err: &callbridge.BindingError{Param: "id"}},
		{name: "decode", err: &callbridge.DecodeError{Err: errors.New("bad json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			_, err := fastPolicy().Do(context.Background(), func() (*callbridge.RawResponse, error) {
				attempts++
				return nil, tt.err
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, attempts)
		})
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := fastPolicy().Do(ctx, func() (*callbridge.RawResponse, error) {
		attempts++
		cancel()
		return nil, &callbridge.TransportError{Retryable: true, Err: errors.New("flaky")}
	})
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, uint64(3), p.MaxRetries)
	assert.Contains(t, p.RetryStatuses, 429)
	assert.Contains(t, p.RetryStatuses, 503)
}
