package subscriber

import (
	"github.com/smallbiznis/seatfee/internal/subscriber/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("subscriber.directory",
	fx.Provide(repository.Provide),
)
