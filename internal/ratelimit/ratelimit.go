// Package ratelimit implements the login abuse counters: a sliding-window
// request cap per source and a progressive lockout after repeated failures.
// Both come in an in-process and a Redis-backed flavour behind the same
// interfaces so callers can swap or fake them.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable wraps storage failures of a Redis-backed limiter.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// Result is the outcome of one Limiter hit.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter caps the number of hits per key within a sliding window. Every
// call counts, allowed or not.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// BruteForce tracks attempts per key. After FreeRetries attempts each
// further attempt must wait a growing delay after the previous one.
type BruteForce interface {
	// Attempt reserves one attempt for key in a single atomic step. A
	// non-zero wait means the key is locked out and nothing was counted.
	Attempt(ctx context.Context, key string) (time.Duration, error)
	// Check returns how long the caller must still wait without counting.
	Check(ctx context.Context, key string) (time.Duration, error)
	// Reset forgets every attempt recorded for key.
	Reset(ctx context.Context, key string) error
}

type WindowConfig struct {
	Limit  int
	Window time.Duration
}

// DefaultWindow allows 100 login requests per 15 minutes.
var DefaultWindow = WindowConfig{Limit: 100, Window: 15 * time.Minute}

type BruteForceConfig struct {
	FreeRetries int
	MinWait     time.Duration
	MaxWait     time.Duration
	// Lifetime is how long failures are remembered after the last one.
	Lifetime time.Duration
}

// DefaultBruteForce: 5 free failures, then 5s growing to 60s, forgotten
// after an hour.
var DefaultBruteForce = BruteForceConfig{
	FreeRetries: 5,
	MinWait:     5 * time.Second,
	MaxWait:     time.Minute,
	Lifetime:    time.Hour,
}

// delay returns the wait imposed once failures have reached count. Delays
// follow a Fibonacci progression from MinWait, capped at MaxWait.
func (c BruteForceConfig) delay(count int) time.Duration {
	if count < c.FreeRetries {
		return 0
	}
	n := count - c.FreeRetries
	prev, cur := c.MinWait, c.MinWait
	for i := 0; i < n; i++ {
		prev, cur = cur, prev+cur
		if cur >= c.MaxWait {
			return c.MaxWait
		}
	}
	if cur > c.MaxWait {
		return c.MaxWait
	}
	return cur
}

// remaining computes the outstanding wait for count failures, the last at
// last, evaluated at now.
func (c BruteForceConfig) remaining(count int, last, now time.Time) time.Duration {
	wait := c.delay(count)
	if wait == 0 {
		return 0
	}
	if left := last.Add(wait).Sub(now); left > 0 {
		return left
	}
	return 0
}
