package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBlacklist_RevokeAndExpire(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	bl := NewRedisBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	ctx := context.Background()
	require.NoError(t, bl.Revoke(ctx, "cred-1", 2*time.Second))

	ok, err := bl.IsRevoked(ctx, "cred-1")
	require.NoError(t, err)
	require.True(t, ok)

	// advance past TTL
	m.FastForward(3 * time.Second)

	ok2, err := bl.IsRevoked(ctx, "cred-1")
	require.NoError(t, err)
	require.False(t, ok2)
}

func TestRedisBlacklist_ZeroTTLIsNoop(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	bl := NewRedisBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	require.NoError(t, bl.Revoke(context.Background(), "cred-2", 0))
	require.False(t, m.Exists("blacklist:session:cred-2"))
}

func TestMemoryBlacklist(t *testing.T) {
	bl := NewMemoryBlacklist()
	now := time.Now()
	bl.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, bl.Revoke(ctx, "c", time.Minute))
	ok, err := bl.IsRevoked(ctx, "c")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = bl.IsRevoked(ctx, "c")
	require.NoError(t, err)
	require.False(t, ok)
}
