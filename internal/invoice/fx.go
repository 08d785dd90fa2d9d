package invoice

import (
	"github.com/smallbiznis/escolar/internal/invoice/repository"
	"github.com/smallbiznis/escolar/internal/invoice/service"
	"github.com/smallbiznis/escolar/internal/tax"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	tax.Module,
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
