package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps values and TTLs in maps; time does not pass.
type fakeRedis struct {
	counters map[string]int64
	ttls     map[string]time.Duration
	err      error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counters: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) PTTL(_ context.Context, key string) *redis.DurationCmd {
	if f.err != nil {
		return redis.NewDurationResult(0, f.err)
	}
	if _, ok := f.counters[key]; !ok {
		return redis.NewDurationResult(-2, nil)
	}
	if ttl, ok := f.ttls[key]; ok {
		return redis.NewDurationResult(ttl, nil)
	}
	return redis.NewDurationResult(-1, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, exp time.Duration) *redis.BoolCmd {
	f.ttls[key] = exp
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, _ any, exp time.Duration) *redis.StatusCmd {
	f.counters[key] = 1
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.counters[k]; ok {
			n++
		}
		delete(f.counters, k)
		delete(f.ttls, k)
	}
	return redis.NewIntResult(n, nil)
}

func TestRedis_BlocksAfterMaxFails(t *testing.T) {
	t.Parallel()

	rdb := newFakeRedis()
	l := NewRedis(rdb, Settings{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "a@example.com", ip)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	fails, _ := l.keys("a@example.com", ip)
	require.Equal(t, time.Minute, rdb.ttls[fails], "window set on first failure")

	ok, _, err := l.Allow(ctx, "a@example.com", ip)
	require.NoError(t, err)
	require.True(t, ok)

	blocked, dur, err := l.Failure(ctx, "a@example.com", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, dur)

	ok, retry, err := l.Allow(ctx, "a@example.com", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, retry)

	// a different ip is not affected
	ok, _, err = l.Allow(ctx, "a@example.com", HashIP("10.0.0.2"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Success(ctx, "a@example.com", ip))
	ok, _, err = l.Allow(ctx, "a@example.com", ip)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedis_KeysDoNotLeakRawIP(t *testing.T) {
	t.Parallel()

	l := NewRedis(newFakeRedis(), DefaultSettings)
	fails, block := l.keys("a@example.com", HashIP("192.168.1.1"))
	require.False(t, strings.Contains(fails+block, "192.168.1.1"))
	require.True(t, strings.HasPrefix(fails, "taskmesh:login:a@example.com:"))
}

func TestRedis_ErrorsPropagate(t *testing.T) {
	t.Parallel()

	rdb := newFakeRedis()
	rdb.err = errors.New("redis down")
	l := NewRedis(rdb, DefaultSettings)

	_, _, err := l.Allow(context.Background(), "a@example.com", []byte("h"))
	require.Error(t, err)
	_, _, err = l.Failure(context.Background(), "a@example.com", []byte("h"))
	require.Error(t, err)
}
