package reliability

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Provider error codes used as metric labels and log fields. They never reach
// user-visible text.
const (
	CodeAuth        = "auth"
	CodeRateLimited = "rate_limited"
	CodeNetwork     = "network"
	CodeUnknown     = "unknown"
)

// ClassifyProviderError buckets an upstream API failure.
func ClassifyProviderError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CodeNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "invalid x-api-key", "invalid api key", "authentication", "unauthorized", "incorrect api key"):
		return CodeAuth
	case containsAny(msg, "429", "rate limit", "quota", "overloaded", "resource_exhausted"):
		return CodeRateLimited
	case containsAny(msg, "timeout", "connection refused", "connection reset", "no such host", "eof", "broken pipe"):
		return CodeNetwork
	default:
		return CodeUnknown
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
