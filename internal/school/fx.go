package school

import (
	"github.com/smallbiznis/escolar/internal/school/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("school.repository",
	fx.Provide(repository.NewRepository),
)
