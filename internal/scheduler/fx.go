package scheduler

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLease),
	fx.Provide(New),
	fx.Invoke(RegisterLifecycle),
)

type LeaseParams struct {
	fx.In

	Config Config
	Redis  *redis.Client `optional:"true"`
}

func ProvideLease(p LeaseParams) Lease {
	if !p.Config.LeaseEnabled || p.Redis == nil {
		return nil
	}
	return NewRedisLease(p.Redis)
}

func RegisterLifecycle(lc fx.Lifecycle, sched *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return sched.Stop(stopCtx)
		},
	})
}
