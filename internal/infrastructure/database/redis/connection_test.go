package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expireCall struct {
	key string
	ttl time.Duration
}

type mockCmdable struct {
	data        map[string]string
	counters    map[string]int64
	expireCalls []expireCall
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, counters: map[string]int64{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.counters[key]++
	return redis.NewIntResult(m.counters[key], nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}

func TestCacheKeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	require.NoError(t, client.Set(ctx, "cart:summary:4", `{"item_count":2}`, time.Minute))
	assert.Contains(t, mock.data, "storefront:cart:summary:4")

	v, err := client.Get(ctx, "cart:summary:4")
	require.NoError(t, err)
	assert.Equal(t, `{"item_count":2}`, v)

	require.NoError(t, client.Del(ctx, "cart:summary:4"))
	_, err = client.Get(ctx, "cart:summary:4")
	assert.ErrorIs(t, err, redis.Nil)

	assert.NoError(t, client.Del(ctx))
	assert.NoError(t, client.Health(ctx))
}

func TestHitStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for want := int64(1); want <= 3; want++ {
		got, err := client.Hit(ctx, "ratelimit:10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.Len(t, mock.expireCalls, 1)
	assert.Equal(t, "storefront:ratelimit:10.0.0.1", mock.expireCalls[0].key)
	assert.Equal(t, time.Minute, mock.expireCalls[0].ttl)
}
