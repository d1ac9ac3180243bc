package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OperationRegister implements ports.OperationIDRegister with SET NX, so the
// dedup window is shared by every service instance. Ids expire after ttl.
type OperationRegister struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewOperationRegister creates a Redis-backed operation id register.
func NewOperationRegister(client *goredis.Client, ttl time.Duration) *OperationRegister {
	return &OperationRegister{
		client: client,
		prefix: "opid:",
		ttl:    ttl,
	}
}

// Verify atomically records id. Returns true if it was not seen before.
func (r *OperationRegister) Verify(ctx context.Context, id string) (bool, error) {
	result, err := r.client.SetArgs(ctx, r.prefix+id, time.Now().Unix(), goredis.SetArgs{
		Mode: "NX",
		TTL:  r.ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// already recorded
			return false, nil
		}
		return false, fmt.Errorf("redis operation id verify: %w", err)
	}
	return result == "OK", nil
}

// Release forgets id so a failed operation can be retried with it.
func (r *OperationRegister) Release(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis operation id release: %w", err)
	}
	return nil
}
