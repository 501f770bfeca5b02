package cache

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seatfee/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
)

type StoreParams struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

// NewStore prefers redis when a client is configured.
func NewStore(p StoreParams) Store {
	if p.Redis != nil {
		p.Log.Named("cache").Info("using redis cache store")
		return NewRedisStore(p.Redis)
	}
	return NewMemoryStore(p.Clock)
}
