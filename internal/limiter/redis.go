package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCmdable is the subset of *redis.Client used by the limiter.
type redisCmdable interface {
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a limiter keeping counters in expiring keys, for deployments running several
// auth-service replicas in front of a shared Redis.
type Redis struct {
	rdb    redisCmdable
	cfg    Settings
	prefix string
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb redisCmdable, cfg Settings) *Redis {
	return &Redis{rdb: rdb, cfg: cfg, prefix: "taskmesh:login:"}
}

func (l *Redis) keys(email string, ipHash []byte) (fails, block string) {
	base := l.prefix + email + ":" + hex.EncodeToString(ipHash)
	return base + ":fails", base + ":block"
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Redis) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	_, block := l.keys(email, ipHash)
	ttl, err := l.rdb.PTTL(ctx, block).Result()
	if err != nil {
		return false, 0, err
	}
	// -2: no key, -1: no expiry (never written that way)
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success resets counters for (email, ip).
func (l *Redis) Success(ctx context.Context, email string, ipHash []byte) error {
	fails, block := l.keys(email, ipHash)
	return l.rdb.Del(ctx, fails, block).Err()
}

// Failure counts a failed attempt within Window and blocks once MaxFails is reached.
func (l *Redis) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	fails, block := l.keys(email, ipHash)
	n, err := l.rdb.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, fails, l.cfg.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if int(n) < l.cfg.MaxFails {
		return false, 0, nil
	}
	if err := l.rdb.Set(ctx, block, 1, l.cfg.BlockFor).Err(); err != nil {
		return false, 0, err
	}
	if err := l.rdb.Del(ctx, fails).Err(); err != nil {
		return false, 0, err
	}
	return true, l.cfg.BlockFor, nil
}
