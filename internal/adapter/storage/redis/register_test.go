package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegister(t *testing.T, ttl time.Duration) (*OperationRegister, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewOperationRegister(client, ttl), s
}

func TestOperationRegister_NewID(t *testing.T) {
	reg, s := newTestRegister(t, time.Hour)

	ok, err := reg.Verify(context.Background(), "op-abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Exists("opid:op-abc"))
}

func TestOperationRegister_DuplicateID(t *testing.T) {
	reg, _ := newTestRegister(t, time.Hour)
	ctx := context.Background()

	ok, err := reg.Verify(ctx, "op-xyz")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Verify(ctx, "op-xyz")
	require.NoError(t, err)
	assert.False(t, ok, "a repeated id must be rejected")
}

func TestOperationRegister_ExpiredID(t *testing.T) {
	reg, s := newTestRegister(t, time.Second)
	ctx := context.Background()

	ok, err := reg.Verify(ctx, "op-expire")
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Second)

	ok, err = reg.Verify(ctx, "op-expire")
	require.NoError(t, err)
	assert.True(t, ok, "an expired id is accepted again")
}

func TestOperationRegister_Release(t *testing.T) {
	reg, s := newTestRegister(t, time.Hour)
	ctx := context.Background()

	_, err := reg.Verify(ctx, "op-failed")
	require.NoError(t, err)

	require.NoError(t, reg.Release(ctx, "op-failed"))
	assert.False(t, s.Exists("opid:op-failed"))

	ok, err := reg.Verify(ctx, "op-failed")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOperationRegister_ServerDown(t *testing.T) {
	reg, s := newTestRegister(t, time.Hour)
	s.Close()

	_, err := reg.Verify(context.Background(), "op-1")
	assert.Error(t, err)
}
