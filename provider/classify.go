package provider

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// classifyStatus maps an upstream HTTP status onto the sentinel errors the
// core understands.
func classifyStatus(status int, retryAfter time.Duration) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter}
	case status >= 500:
		return ErrUnavailable
	default:
		return fmt.Errorf("provider returned status %d", status)
	}
}

// retryAfterHeader parses the Retry-After header from an upstream response.
// Both delta-seconds and HTTP-date forms are accepted.
func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
