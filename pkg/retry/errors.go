package retry

import (
	"errors"
	"strings"
)

var (
	// ErrPersistence is returned for any store failure that is not throttling.
	// The cause stays reachable through errors.Unwrap / errors.Is.
	ErrPersistence = errors.New("persistence failure")

	// ErrRateLimitExceeded is returned when every attempt was throttled
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// IsThrottling reports whether err looks like a rate-limit or quota error.
// Classification is by message only: "rate limit", "quota" or "429",
// case-insensitively.
func IsThrottling(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range throttlingMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var throttlingMarkers = []string{"rate limit", "quota", "429"}
