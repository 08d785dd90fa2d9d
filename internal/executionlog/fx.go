package executionlog

import (
	"github.com/smallbiznis/escolar/internal/executionlog/repository"
	"github.com/smallbiznis/escolar/internal/executionlog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("executionlog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
