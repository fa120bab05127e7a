package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := ConnectRedis(mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, DisconnectRedis(rdb, zap.NewNop()))
	assert.NoError(t, DisconnectRedis(nil, zap.NewNop()))
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(addr, "", 0, zap.NewNop())
	assert.Error(t, err)
}

func TestRedisDeduper_Claim(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	d := NewRedisDeduper(rdb, time.Hour)
	ctx := context.Background()

	first, err := d.Claim(ctx, "L1", "S1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "L1", "S1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := d.Claim(ctx, "L1", "S2")
	require.NoError(t, err)
	assert.True(t, other)

	assert.Equal(t, time.Hour, mr.TTL("alerts:instant:L1:S1"))

	mr.FastForward(2 * time.Hour)
	expired, err := d.Claim(ctx, "L1", "S1")
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestRedisDeduper_Release(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	d := NewRedisDeduper(rdb, 0)
	ctx := context.Background()

	_, err := d.Claim(ctx, "L1", "S1")
	require.NoError(t, err)
	assert.Equal(t, DefaultDedupTTL, mr.TTL("alerts:instant:L1:S1"))

	require.NoError(t, d.Release(ctx, "L1", "S1"))
	ok, err := d.Claim(ctx, "L1", "S1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisDeduper_Error(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := NewRedisDeduper(rdb, time.Hour).Claim(context.Background(), "L1", "S1")
	assert.Error(t, err)
}
