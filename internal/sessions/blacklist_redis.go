package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked session credentials until they would have expired.
type Blacklist interface {
	Revoke(ctx context.Context, credentialID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}

// RedisBlacklist stores revoked credential ids under "blacklist:session:<id>".
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(c *redis.Client) *RedisBlacklist { return &RedisBlacklist{client: c} }

func (b *RedisBlacklist) key(id string) string { return "blacklist:session:" + id }

func (b *RedisBlacklist) Revoke(ctx context.Context, credentialID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.key(credentialID), "1", ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	exists, err := b.client.Exists(ctx, b.key(credentialID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MemoryBlacklist is the in-process Blacklist used when Redis is not configured.
type MemoryBlacklist struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{now: time.Now, revoked: make(map[string]time.Time)}
}

func (b *MemoryBlacklist) Revoke(ctx context.Context, credentialID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[credentialID] = b.now().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.revoked[credentialID]
	if !ok {
		return false, nil
	}
	if b.now().After(until) {
		delete(b.revoked, credentialID)
		return false, nil
	}
	return true, nil
}
