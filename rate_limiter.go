// rate_limiter.go
// ---------------
// The RateLimiter tracks known rate-limit state per API family, fed from
// response headers named in the family's RateLimitHeaders. The executor
// consults it before its single round trip and waits out a known reset
// window instead of burning a doomed request. It is bookkeeping only: it
// never retries and never blocks past the reset time it was told about.
package callbridge

import (
	"strconv"
	"sync"
	"time"

	"github.com/opengovern/call-bridge/internal/timeparse"
)

// RateLimitInfo is the SDK's normalized view of a family's current limits.
type RateLimitInfo struct {
	MaxRequests       *int
	RemainingRequests *int
	ResetAtMs         *int64
}

type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*RateLimitInfo
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*RateLimitInfo),
	}
}

// Update records limit info parsed from a response's headers per the
// family's configured header names. Families without configured headers
// are left alone.
func (r *RateLimiter) Update(family string, resp *RawResponse, hdrs RateLimitHeaders) {
	if hdrs.Limit == "" && hdrs.Remaining == "" && hdrs.Reset == "" {
		return
	}

	info := &RateLimitInfo{}
	if hdrs.Limit != "" {
		if n, err := strconv.Atoi(resp.Header(hdrs.Limit)); err == nil {
			info.MaxRequests = &n
		}
	}
	if hdrs.Remaining != "" {
		if n, err := strconv.Atoi(resp.Header(hdrs.Remaining)); err == nil {
			info.RemainingRequests = &n
		}
	}
	if hdrs.Reset != "" {
		if ms := timeparse.ParseReset(resp.Header(hdrs.Reset), time.Now()); ms != 0 {
			info.ResetAtMs = &ms
		}
	}
	if info.MaxRequests == nil && info.RemainingRequests == nil && info.ResetAtMs == nil {
		return
	}

	r.mu.Lock()
	r.limits[family] = info
	r.mu.Unlock()
}

// Delay returns how long a caller must wait before the family's next
// request, or zero if it can proceed immediately.
func (r *RateLimiter) Delay(family string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.limits[family]
	if !ok || info == nil {
		return 0
	}

	if info.RemainingRequests != nil && *info.RemainingRequests <= 0 && info.ResetAtMs != nil {
		nowMs := time.Now().UnixMilli()
		if nowMs < *info.ResetAtMs {
			return time.Duration(*info.ResetAtMs-nowMs) * time.Millisecond
		}
	}
	return 0
}

// Info returns a copy of the current known limits for a family, or nil.
func (r *RateLimiter) Info(family string) *RateLimitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.limits[family]; ok && info != nil {
		cp := *info
		return &cp
	}
	return nil
}
