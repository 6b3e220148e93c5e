// internal/timeparse/timeparse.go
// -------------------------------
// Helpers for turning the various reset/retry time formats APIs put in
// headers into millisecond timestamps: bare integers (unix seconds or
// delta-seconds), duration strings like "1s" or "6m0s", and HTTP dates.
package timeparse

import (
	"strconv"
	"strings"
	"time"
)

// ParseReset interprets a rate-limit reset header value and returns an
// absolute unix-millisecond timestamp, or 0 if the value is unusable.
// Integer values at or above 1e9 are taken as unix seconds; smaller ones
// as delta seconds from now. Duration strings and HTTP dates are handled
// too.
func ParseReset(s string, now time.Time) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n >= 1_000_000_000 {
			return n * 1000
		}
		return now.UnixMilli() + n*1000
	}

	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d).UnixMilli()
	}

	if t, err := time.Parse(time.RFC1123, s); err == nil {
		return t.UnixMilli()
	}

	return 0
}

// UnixToMs converts a UNIX timestamp in seconds to milliseconds.
func UnixToMs(sec int64) int64 {
	return sec * 1000
}

// IsInFuture checks if a given timestamp (ms) is strictly in the future.
func IsInFuture(ms int64) bool {
	return ms > time.Now().UnixMilli()
}
