// Package ratelimit implements the bounded per-session malformed-frame
// tolerance of spec.md §4.3: a session is not torn down for a single
// bad frame, only when the rate of bad frames exceeds a threshold.
package ratelimit

import (
	"golang.org/x/time/rate"
)

// FrameFaultLimiter tracks malformed-frame rate for a single session
// using a token bucket: burst tolerates a handful of isolated bad
// frames, refill rate bounds sustained abuse.
type FrameFaultLimiter struct {
	limiter *rate.Limiter
}

// NewFrameFaultLimiter returns a limiter allowing burst bad frames
// immediately and ratePerSec thereafter.
func NewFrameFaultLimiter(ratePerSec float64, burst int) *FrameFaultLimiter {
	return &FrameFaultLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow records one more fault and reports whether the session should
// still be kept open (true) or closed for sustained bad input (false).
func (f *FrameFaultLimiter) Allow() bool {
	return f.limiter.Allow()
}
