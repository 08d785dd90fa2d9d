package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders printable documents for export archives.
type Provider interface {
	GenerateBatchSummary(ctx context.Context, data BatchSummary) (io.Reader, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
