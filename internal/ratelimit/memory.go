package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a process-local sliding-window log. Keys whose hits have
// all left the window are swept at most once per window.
type MemoryLimiter struct {
	cfg       WindowConfig
	now       func() time.Time
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewMemoryLimiter(cfg WindowConfig) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, now: time.Now, hits: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now, cutoff)

	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.hits[key] = kept

	res := Result{Limit: l.cfg.Limit, Allowed: len(kept) <= l.cfg.Limit}
	if res.Allowed {
		res.Remaining = l.cfg.Limit - len(kept)
	} else {
		res.RetryAfter = kept[0].Add(l.cfg.Window).Sub(now)
	}
	return res, nil
}

// sweep drops keys whose newest hit is outside the window. Caller holds mu.
func (l *MemoryLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.Window {
		return
	}
	l.lastSweep = now
	for key, ts := range l.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// Len reports how many keys are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

type attemptRecord struct {
	count int
	last  time.Time
}

// MemoryBruteForce keeps attempt counters in process memory. Records past
// their lifetime are swept at most once per lifetime.
type MemoryBruteForce struct {
	cfg       BruteForceConfig
	now       func() time.Time
	mu        sync.Mutex
	records   map[string]attemptRecord
	lastSweep time.Time
}

func NewMemoryBruteForce(cfg BruteForceConfig) *MemoryBruteForce {
	return &MemoryBruteForce{cfg: cfg, now: time.Now, records: make(map[string]attemptRecord)}
}

func (b *MemoryBruteForce) Attempt(_ context.Context, key string) (time.Duration, error) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sweep(now)
	rec, _ := b.lookup(key, now)
	if wait := b.cfg.remaining(rec.count, rec.last, now); wait > 0 {
		return wait, nil
	}
	rec.count++
	rec.last = now
	b.records[key] = rec
	return 0, nil
}

func (b *MemoryBruteForce) Check(_ context.Context, key string) (time.Duration, error) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.lookup(key, now)
	if !ok {
		return 0, nil
	}
	return b.cfg.remaining(rec.count, rec.last, now), nil
}

func (b *MemoryBruteForce) Reset(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, key)
	return nil
}

// Len reports how many keys are tracked.
func (b *MemoryBruteForce) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// lookup drops a record older than the configured lifetime. Caller holds mu.
func (b *MemoryBruteForce) lookup(key string, now time.Time) (attemptRecord, bool) {
	rec, ok := b.records[key]
	if !ok {
		return attemptRecord{}, false
	}
	if b.expired(rec, now) {
		delete(b.records, key)
		return attemptRecord{}, false
	}
	return rec, true
}

func (b *MemoryBruteForce) expired(rec attemptRecord, now time.Time) bool {
	return b.cfg.Lifetime > 0 && now.Sub(rec.last) > b.cfg.Lifetime
}

// sweep drops every expired record. Caller holds mu.
func (b *MemoryBruteForce) sweep(now time.Time) {
	if b.cfg.Lifetime <= 0 || now.Sub(b.lastSweep) < b.cfg.Lifetime {
		return
	}
	b.lastSweep = now
	for key, rec := range b.records {
		if b.expired(rec, now) {
			delete(b.records, key)
		}
	}
}
