package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb
}

func limiters(t *testing.T, cfg WindowConfig, clock *fakeClock) map[string]Limiter {
	mem := NewMemoryLimiter(cfg)
	mem.now = clock.Now
	rl := NewRedisLimiter(newRedis(t), cfg)
	rl.now = clock.Now
	return map[string]Limiter{"memory": mem, "redis": rl}
}

func bruteForces(t *testing.T, cfg BruteForceConfig, clock *fakeClock) map[string]BruteForce {
	mem := NewMemoryBruteForce(cfg)
	mem.now = clock.Now
	rb := NewRedisBruteForce(newRedis(t), cfg)
	rb.now = clock.Now
	return map[string]BruteForce{"memory": mem, "redis": rb}
}

func TestBruteForceDelayProgression(t *testing.T) {
	cfg := DefaultBruteForce
	want := []time.Duration{0, 0, 0, 0, 0, 5 * time.Second, 10 * time.Second, 15 * time.Second, 25 * time.Second, 40 * time.Second, time.Minute, time.Minute}
	for count, w := range want {
		if got := cfg.delay(count); got != w {
			t.Errorf("delay(%d) = %v, want %v", count, got, w)
		}
	}
}

func TestLimiterSlidingWindow(t *testing.T) {
	cfg := WindowConfig{Limit: 3, Window: time.Minute}
	ctx := context.Background()
	clock := newFakeClock()
	for name, l := range limiters(t, cfg, clock) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				res, err := l.Allow(ctx, "10.0.0.1")
				if err != nil {
					t.Fatalf("Allow: %v", err)
				}
				if !res.Allowed {
					t.Fatalf("hit %d should be allowed", i+1)
				}
				if res.Remaining != 2-i {
					t.Errorf("hit %d: remaining %d, want %d", i+1, res.Remaining, 2-i)
				}
				clock.Advance(10 * time.Second)
			}

			res, err := l.Allow(ctx, "10.0.0.1")
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if res.Allowed {
				t.Fatal("fourth hit inside the window should be rejected")
			}
			if res.RetryAfter != 30*time.Second {
				t.Errorf("retry after %v, want 30s", res.RetryAfter)
			}

			other, err := l.Allow(ctx, "10.0.0.2")
			if err != nil || !other.Allowed {
				t.Fatalf("other key should be unaffected: %+v %v", other, err)
			}

			// The two oldest hits leave the window.
			clock.Advance(45 * time.Second)
			res, err = l.Allow(ctx, "10.0.0.1")
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if !res.Allowed {
				t.Fatal("hit should be allowed once earlier hits leave the window")
			}
		})
	}
}

func TestLimiterConcurrentHitsAreCounted(t *testing.T) {
	cfg := WindowConfig{Limit: 20, Window: time.Minute}
	ctx := context.Background()
	for name, l := range limiters(t, cfg, newFakeClock()) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			var mu sync.Mutex
			allowed := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := l.Allow(ctx, "burst")
					if err != nil {
						t.Errorf("Allow: %v", err)
						return
					}
					if res.Allowed {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if allowed != 20 {
				t.Errorf("expected exactly 20 allowed hits, got %d", allowed)
			}
		})
	}
}

func TestBruteForceLockout(t *testing.T) {
	cfg := BruteForceConfig{FreeRetries: 2, MinWait: 5 * time.Second, MaxWait: 20 * time.Second, Lifetime: time.Hour}
	ctx := context.Background()
	clock := newFakeClock()
	for name, b := range bruteForces(t, cfg, clock) {
		t.Run(name, func(t *testing.T) {
			key := "identity:" + name
			for i := 0; i < 2; i++ {
				if wait, err := b.Attempt(ctx, key); err != nil || wait != 0 {
					t.Fatalf("free retry %d: wait %v err %v", i+1, wait, err)
				}
			}

			wait, err := b.Attempt(ctx, key)
			if err != nil {
				t.Fatalf("Attempt: %v", err)
			}
			if wait != 5*time.Second {
				t.Fatalf("expected 5s wait after free retries, got %v", wait)
			}
			if wait, _ := b.Check(ctx, key); wait != 5*time.Second {
				t.Fatalf("rejected attempt must not be counted, Check gave %v", wait)
			}

			clock.Advance(5 * time.Second)
			if wait, _ := b.Attempt(ctx, key); wait != 0 {
				t.Fatalf("expected wait to elapse, got %v", wait)
			}
			if wait, _ := b.Attempt(ctx, key); wait != 10*time.Second {
				t.Fatalf("expected growing wait of 10s, got %v", wait)
			}

			if err := b.Reset(ctx, key); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			if wait, _ := b.Check(ctx, key); wait != 0 {
				t.Fatalf("expected reset to clear the lockout, got %v", wait)
			}
			if wait, _ := b.Attempt(ctx, key); wait != 0 {
				t.Fatalf("expected a fresh attempt after reset, got %v", wait)
			}
		})
	}
}

func TestBruteForceLifetime(t *testing.T) {
	cfg := BruteForceConfig{FreeRetries: 1, MinWait: time.Minute, MaxWait: time.Minute, Lifetime: 10 * time.Minute}
	ctx := context.Background()
	clock := newFakeClock()
	for name, b := range bruteForces(t, cfg, clock) {
		t.Run(name, func(t *testing.T) {
			key := "ip:" + name
			if wait, err := b.Attempt(ctx, key); err != nil || wait != 0 {
				t.Fatalf("first attempt: wait %v err %v", wait, err)
			}
			if wait, _ := b.Attempt(ctx, key); wait != time.Minute {
				t.Fatalf("expected 1m wait, got %v", wait)
			}
			clock.Advance(11 * time.Minute)
			if wait, _ := b.Check(ctx, key); wait != 0 {
				t.Fatalf("expected attempts to be forgotten, got %v", wait)
			}
			if wait, _ := b.Attempt(ctx, key); wait != 0 {
				t.Fatalf("expected a fresh free retry, got %v", wait)
			}
		})
	}
}

func TestBruteForceConcurrentAttemptsAreReserved(t *testing.T) {
	ctx := context.Background()
	for name, b := range bruteForces(t, DefaultBruteForce, newFakeClock()) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			var mu sync.Mutex
			passed := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					wait, err := b.Attempt(ctx, "identity:burst")
					if err != nil {
						t.Errorf("Attempt: %v", err)
						return
					}
					if wait == 0 {
						mu.Lock()
						passed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if passed != DefaultBruteForce.FreeRetries {
				t.Errorf("expected exactly %d attempts through, got %d", DefaultBruteForce.FreeRetries, passed)
			}
		})
	}
}

func TestMemoryLimiterEvictsIdleKeys(t *testing.T) {
	clock := newFakeClock()
	l := NewMemoryLimiter(WindowConfig{Limit: 5, Window: time.Minute})
	l.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if _, err := l.Allow(ctx, fmt.Sprintf("10.0.%d.%d", i/256, i%256)); err != nil {
			t.Fatal(err)
		}
	}
	clock.Advance(2 * time.Minute)
	if _, err := l.Allow(ctx, "10.9.9.9"); err != nil {
		t.Fatal(err)
	}
	if n := l.Len(); n != 1 {
		t.Errorf("expected idle keys to be swept, %d keys left", n)
	}
}

func TestMemoryBruteForceEvictsExpiredKeys(t *testing.T) {
	clock := newFakeClock()
	b := NewMemoryBruteForce(BruteForceConfig{FreeRetries: 5, MinWait: time.Second, MaxWait: time.Minute, Lifetime: 10 * time.Minute})
	b.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if _, err := b.Attempt(ctx, fmt.Sprintf("login:ip:10.0.0.%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	clock.Advance(11 * time.Minute)
	if _, err := b.Attempt(ctx, "login:ip:10.9.9.9"); err != nil {
		t.Fatal(err)
	}
	if n := b.Len(); n != 1 {
		t.Errorf("expected expired records to be swept, %d keys left", n)
	}
}
