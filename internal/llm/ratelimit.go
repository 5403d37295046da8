package llm

import (
	"time"

	"golang.org/x/time/rate"
)

const defaultRequestsPerMinute = 60

// newRateLimiter allows requestsPerMinute calls per minute with a matching burst.
func newRateLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
}
