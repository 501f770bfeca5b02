package advance

import (
	"github.com/smallbiznis/seatfee/internal/advance/repository"
	"github.com/smallbiznis/seatfee/internal/advance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("advance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
