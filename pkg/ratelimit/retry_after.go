package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxRetryAfterSeconds bounds numeric Retry-After values so the conversion
// to time.Duration cannot overflow.
const maxRetryAfterSeconds = int64(DefaultMaxPause / time.Second)

// ParseRetryAfter reads the Retry-After header, which may carry either a
// number of seconds or an HTTP date. Missing, malformed or already-elapsed
// values yield fallback. Numeric values are clamped to DefaultMaxPause.
func ParseRetryAfter(headers http.Header, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(headers.Get("Retry-After"))
	if value == "" {
		return fallback
	}

	seconds, err := strconv.ParseInt(value, 10, 64)
	switch {
	case err == nil && seconds <= 0:
		return fallback
	case err == nil:
		if seconds > maxRetryAfterSeconds {
			seconds = maxRetryAfterSeconds
		}
		return time.Duration(seconds) * time.Second
	case errors.Is(err, strconv.ErrRange):
		if strings.HasPrefix(value, "-") {
			return fallback
		}
		return DefaultMaxPause
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return fallback
}
