package due

import (
	"github.com/smallbiznis/seatfee/internal/due/repository"
	"github.com/smallbiznis/seatfee/internal/due/service"
	"go.uber.org/fx"
)

var Module = fx.Module("due.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
