package util

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces per-file extraction during scans. A nil *Limiter means
// throttling is off and never waits.
type Limiter struct {
	inner *rate.Limiter
}

// NewScanLimiter admits filesPerSecond files, with bursts of one second's
// worth (at least one file). It returns nil when filesPerSecond <= 0.
func NewScanLimiter(filesPerSecond float64) *Limiter {
	if filesPerSecond <= 0 {
		return nil
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(filesPerSecond), max(int(filesPerSecond), 1))}
}

// Wait blocks until n more files may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return ctx.Err()
	}
	return l.inner.WaitN(ctx, n)
}

// FilesPerSecond reports the admitted rate; zero when throttling is off.
func (l *Limiter) FilesPerSecond() float64 {
	if l == nil {
		return 0
	}
	return float64(l.inner.Limit())
}
