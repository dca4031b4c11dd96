package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Limiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleLimiter enforces a jittered minimum gap between page fetches.
type SimpleLimiter struct {
	minDelay  time.Duration
	maxDelay  time.Duration
	lastFetch time.Time
	mu        sync.Mutex
}

func NewSimpleLimiter(minDelay, maxDelay time.Duration) *SimpleLimiter {
	return &SimpleLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (l *SimpleLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := time.Since(l.lastFetch)
	delay := l.nextDelay()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	l.lastFetch = time.Now()
	return nil
}

func (l *SimpleLimiter) SetDelay(min, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minDelay = min
	l.maxDelay = max
}

func (l *SimpleLimiter) nextDelay() time.Duration {
	if l.maxDelay <= l.minDelay {
		return l.minDelay
	}
	jitter := time.Duration(rand.Int63n(int64(l.maxDelay - l.minDelay)))
	return l.minDelay + jitter
}

// AdaptiveLimiter stretches the fetch delay after consecutive failures
// and slowly relaxes it again after a run of successes.
type AdaptiveLimiter struct {
	*SimpleLimiter
	failureStreak int
	successStreak int
	failThreshold int
	backoffFactor float64
}

const (
	floorDelay   = 1 * time.Second
	ceilMinDelay = 60 * time.Second
	ceilMaxDelay = 120 * time.Second
)

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		SimpleLimiter: NewSimpleLimiter(minDelay, maxDelay),
		failThreshold: 3,
		backoffFactor: 1.5,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successStreak++
	a.failureStreak = 0

	if a.successStreak > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < floorDelay {
			newMin = floorDelay
		}
		a.minDelay = newMin
		a.successStreak = 0
	}
}

func (a *AdaptiveLimiter) RecordFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failureStreak++
	a.successStreak = 0

	if a.failureStreak >= a.failThreshold {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > ceilMinDelay {
			newMin = ceilMinDelay
		}
		if newMax > ceilMaxDelay {
			newMax = ceilMaxDelay
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.failureStreak = 0
	}
}
