package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/escolar/internal/config"
)

const keyAdminTrigger = "escolar:admin:%s"

// AdminLimiter throttles admin triggers per action. Without Redis every
// request is allowed.
type AdminLimiter struct {
	bucket *triggerBucket
}

func NewAdminLimiter(cfg config.Config, client *redis.Client) *AdminLimiter {
	if client == nil || cfg.RateLimit.AdminRate <= 0 || cfg.RateLimit.AdminBurst <= 0 {
		return &AdminLimiter{}
	}
	return &AdminLimiter{
		bucket: newTriggerBucket(client, cfg.RateLimit.AdminRate, cfg.RateLimit.AdminBurst),
	}
}

func (l *AdminLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token for action and returns how long to wait when refused.
func (l *AdminLimiter) Allow(ctx context.Context, action string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	return l.bucket.take(ctx, fmt.Sprintf(keyAdminTrigger, strings.TrimSpace(action)))
}
