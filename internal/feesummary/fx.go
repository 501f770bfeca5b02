package feesummary

import (
	"github.com/smallbiznis/seatfee/internal/feesummary/repository"
	"github.com/smallbiznis/seatfee/internal/feesummary/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feesummary.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
