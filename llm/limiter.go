package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates completions: at most perMinute calls in any minute, at
// least minGap between consecutive calls, and at most maxConcurrent in
// flight.
type Limiter struct {
	sem    chan struct{}
	minute *rate.Limiter
	gap    *rate.Limiter
}

// NewLimiter creates a Limiter. Non-positive values disable that gate.
func NewLimiter(perMinute int, minGap time.Duration, maxConcurrent int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	l := &Limiter{sem: make(chan struct{}, maxConcurrent)}
	if perMinute > 0 {
		l.minute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	if minGap > 0 {
		l.gap = rate.NewLimiter(rate.Every(minGap), 1)
	}
	return l
}

// Acquire blocks until a call may start. The returned func must be called
// when the call finishes.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-l.sem }

	for _, rl := range []*rate.Limiter{l.minute, l.gap} {
		if rl == nil {
			continue
		}
		if err := rl.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}
