package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "geocode:sess-1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allowed on first request")
	}
	if count != 1 {
		t.Fatalf("expected counter 1 got %d", count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expire for first increment")
	}

	allowed, count, err = client.FixedWindowAllow(ctx, "geocode:sess-1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 2 {
		t.Fatalf("unexpected second call state allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "geocode:sess-1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := []struct {
		got  string
		want string
	}{
		{client.IdempotencyKey("checkout", "abc"), "atmos:idempotency:checkout:abc"},
		{client.RateLimitKey("geocode"), "atmos:rate_limit:geocode"},
		{client.CartKey("sess-1"), "atmos:session:sess-1:cart"},
		{client.StagingKey("sess-1", "Drinks"), "atmos:session:sess-1:staging:drinks"},
		{client.FulfillmentKey("sess-1"), "atmos:session:sess-1:fulfillment"},
		{client.FlowKey("flow-9"), "atmos:flow:flow-9"},
		{client.LockKey("checkout", "sess-1"), "atmos:lock:checkout:sess-1"},
		{client.LockKey("cron", "", "expire-pending"), "atmos:lock:cron:expire-pending"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("unexpected key %s, want %s", tc.got, tc.want)
		}
	}
}

func TestUpdateCreatesAndDeletes(t *testing.T) {
	ctx := context.Background()
	client := newMiniredisClient(t)

	err := client.Update(ctx, "atmos:test", time.Minute, func(current string) (string, error) {
		require.Empty(t, current)
		return "first", nil
	})
	require.NoError(t, err)

	got, err := client.Get(ctx, "atmos:test")
	require.NoError(t, err)
	require.Equal(t, "first", got)

	err = client.Update(ctx, "atmos:test", time.Minute, func(current string) (string, error) {
		require.Equal(t, "first", current)
		return "", nil
	})
	require.NoError(t, err)

	_, err = client.Get(ctx, "atmos:test")
	require.ErrorIs(t, err, redis.Nil)
}

func TestUpdatePropagatesCallbackError(t *testing.T) {
	ctx := context.Background()
	client := newMiniredisClient(t)
	require.NoError(t, client.Set(ctx, "atmos:test", "kept", 0))

	boom := errors.New("boom")
	err := client.Update(ctx, "atmos:test", time.Minute, func(string) (string, error) {
		return "replaced", boom
	})
	require.ErrorIs(t, err, boom)

	got, err := client.Get(ctx, "atmos:test")
	require.NoError(t, err)
	require.Equal(t, "kept", got)
}

func TestUpdateSerializesConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	client := newMiniredisClient(t)

	const writers = 60
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.Update(ctx, "atmos:counter", time.Minute, func(current string) (string, error) {
				n := 0
				if current != "" {
					parsed, err := strconv.Atoi(current)
					if err != nil {
						return "", err
					}
					n = parsed
				}
				return strconv.Itoa(n + 1), nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := client.Get(ctx, "atmos:counter")
	require.NoError(t, err)
	n, err := strconv.Atoi(got)
	require.NoError(t, err)
	require.Equal(t, writers, n)
}

func TestUpdateGivesUpWhenContextEnds(t *testing.T) {
	mock := newMockCmdable()
	mock.watchErr = redis.TxFailedErr
	client := &Client{store: mock}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := client.Update(ctx, "atmos:busy", time.Minute, func(string) (string, error) {
		return "x", nil
	})
	require.ErrorIs(t, err, ErrUpdateContention)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Greater(t, mock.watchCalls, 1)
}

func TestUpdateBackoffStaysBounded(t *testing.T) {
	for attempt := 0; attempt < 20; attempt++ {
		wait := updateBackoff(attempt)
		require.Greater(t, wait, time.Duration(0))
		require.LessOrEqual(t, wait, updateBackoffMax)
	}
}

func TestOptionsFromConfigRequiresAddress(t *testing.T) {
	_, err := optionsFromConfig(configRedis("", ""))
	require.Error(t, err)

	opts, err := optionsFromConfig(configRedis("redis://localhost:6379/3", ""))
	require.NoError(t, err)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 10, opts.PoolSize)
}

func configRedis(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr, PoolSize: 10}
}

func newMiniredisClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromClient(raw)
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
	watchErr    error
	watchCalls  int
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Watch(context.Context, func(*redis.Tx) error, ...string) error {
	m.watchCalls++
	if m.watchErr != nil {
		return m.watchErr
	}
	return errors.New("watch not supported by mock")
}
