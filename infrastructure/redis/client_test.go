package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/cadence/infrastructure/redis"
)

func TestNewClient_EmptyAddress(t *testing.T) {
	t.Parallel()

	client, err := redis.NewClient(redis.Config{})
	require.ErrorIs(t, err, redis.ErrEmptyAddress)
	assert.Nil(t, client)
}

func TestNewClient_Pings(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClient_UnreachableFailsUnlessPingSkipped(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.NewClient(redis.Config{Address: addr})
	require.Error(t, err)

	client, err := redis.NewClient(redis.Config{Address: addr, SkipPingOnNew: true})
	require.NoError(t, err)
	_ = client.Close()
}
