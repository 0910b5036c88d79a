package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	windowKeyPrefix     = "rl:"
	bruteForceKeyPrefix = "bf:"
)

// RedisLimiter keeps one sorted set per key, scored by hit time in
// microseconds. Trim, add, count and expire run in a single MULTI so
// concurrent hits on the same key are never undercounted.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    WindowConfig
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, cfg WindowConfig) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	k := windowKeyPrefix + key
	cutoff := now.Add(-l.cfg.Window).UnixMicro()

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, k, redis.Z{
			Score:  float64(now.UnixMicro()),
			Member: uuid.NewString(),
		})
		card = pipe.ZCard(ctx, k)
		pipe.PExpire(ctx, k, l.cfg.Window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	count := int(card.Val())
	res := Result{Limit: l.cfg.Limit, Allowed: count <= l.cfg.Limit}
	if res.Allowed {
		res.Remaining = l.cfg.Limit - count
		return res, nil
	}

	oldest, err := l.client.ZRangeWithScores(ctx, k, 0, 0).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	res.RetryAfter = l.cfg.Window
	if len(oldest) == 1 {
		first := time.UnixMicro(int64(oldest[0].Score))
		res.RetryAfter = first.Add(l.cfg.Window).Sub(now)
	}
	return res, nil
}

// RedisBruteForce stores a hash {count, last} per key. The key expires
// Lifetime after the most recent attempt.
type RedisBruteForce struct {
	client redis.UniversalClient
	cfg    BruteForceConfig
	now    func() time.Time
}

func NewRedisBruteForce(client redis.UniversalClient, cfg BruteForceConfig) *RedisBruteForce {
	return &RedisBruteForce{client: client, cfg: cfg, now: time.Now}
}

// attemptScript checks the lockout and counts the attempt in one server-side
// step. It mirrors BruteForceConfig.remaining; times are in milliseconds.
//
//	KEYS[1] = record hash
//	ARGV    = now, lifetime, free retries, min wait, max wait
//
// It returns the remaining wait, or 0 after counting the attempt.
var attemptScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local lifetime = tonumber(ARGV[2])
local free = tonumber(ARGV[3])
local minWait = tonumber(ARGV[4])
local maxWait = tonumber(ARGV[5])

local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local last = tonumber(redis.call('HGET', KEYS[1], 'last') or '0')
if lifetime > 0 and now - last > lifetime then
	count = 0
end

if count >= free then
	local prev, cur = minWait, minWait
	for i = 1, count - free do
		prev, cur = cur, prev + cur
		if cur >= maxWait then
			break
		end
	end
	if cur > maxWait then
		cur = maxWait
	end
	local left = last + cur - now
	if left > 0 then
		return left
	end
end

redis.call('HSET', KEYS[1], 'count', count + 1)
redis.call('HSET', KEYS[1], 'last', now)
if lifetime > 0 then
	redis.call('PEXPIRE', KEYS[1], lifetime)
end
return 0
`)

func (b *RedisBruteForce) Attempt(ctx context.Context, key string) (time.Duration, error) {
	wait, err := attemptScript.Run(ctx, b.client, []string{bruteForceKeyPrefix + key},
		b.now().UnixMilli(),
		b.cfg.Lifetime.Milliseconds(),
		b.cfg.FreeRetries,
		b.cfg.MinWait.Milliseconds(),
		b.cfg.MaxWait.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return time.Duration(wait) * time.Millisecond, nil
}

func (b *RedisBruteForce) Check(ctx context.Context, key string) (time.Duration, error) {
	values, err := b.client.HGetAll(ctx, bruteForceKeyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(values) == 0 {
		return 0, nil
	}
	count, err := strconv.Atoi(values["count"])
	if err != nil {
		return 0, fmt.Errorf("corrupt attempt counter for %s: %w", key, err)
	}
	lastMs, err := strconv.ParseInt(values["last"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt attempt timestamp for %s: %w", key, err)
	}
	now := b.now()
	last := time.UnixMilli(lastMs)
	if b.cfg.Lifetime > 0 && now.Sub(last) > b.cfg.Lifetime {
		return 0, nil
	}
	return b.cfg.remaining(count, last, now), nil
}

func (b *RedisBruteForce) Reset(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, bruteForceKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
