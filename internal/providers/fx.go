package providers

import (
	"github.com/smallbiznis/escolar/internal/providers/blob"
	"github.com/smallbiznis/escolar/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	blob.Module,
	pdf.Module,
)
