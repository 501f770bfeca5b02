package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const leaseKeyPrefix = "seatfee:scheduler:lease:"

// Lease makes sure only one replica runs a job at a time.
type Lease interface {
	TryAcquire(ctx context.Context, job string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, job, token string) error
}

type RedisLease struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLease(client *redis.Client) *RedisLease {
	if client == nil {
		return nil
	}
	return &RedisLease{
		client: client,
		script: redis.NewScript(leaseReleaseScript),
	}
}

func (l *RedisLease) TryAcquire(ctx context.Context, job string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lease client not configured")
	}
	if job == "" {
		return "", false, errors.New("lease job is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lease ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKeyPrefix+job, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the lease only if it still carries token, so a run that
// outlived its lease cannot drop another replica's.
func (l *RedisLease) Release(ctx context.Context, job, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if job == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{leaseKeyPrefix + job}, token).Err()
}
