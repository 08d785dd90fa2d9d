package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// triggerScript refills the bucket for the elapsed time, takes one token when
// available and returns {granted, wait_ms}. Time comes from the Redis clock so
// every admin process shares one view of it.
const triggerScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "at")
local tokens = tonumber(state[1]) or burst
local at = tonumber(state[2]) or now
if now > at then
  tokens = math.min(burst, tokens + (now - at) / 1000 * rate)
end

local granted = 0
local wait = 0
if tokens >= 1 then
  granted = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "at", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {granted, wait}
`

var errBucketResponse = errors.New("unexpected trigger bucket response")

// triggerBucket spends one token per admin trigger (billing run, export,
// backfill) against a Redis hash shared by every process.
type triggerBucket struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
}

func newTriggerBucket(client *redis.Client, rate float64, burst int) *triggerBucket {
	return &triggerBucket{
		client: client,
		script: redis.NewScript(triggerScript),
		rate:   rate,
		burst:  burst,
	}
}

func (b *triggerBucket) take(ctx context.Context, key string) (bool, time.Duration, error) {
	ttl := defaultBucketTTL(b.rate, b.burst)
	res, err := b.script.Run(ctx, b.client, []string{key}, b.rate, b.burst, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, errBucketResponse
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

// defaultBucketTTL keeps an idle bucket for twice its full refill time.
func defaultBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}
