// Package blob uploads generated files to local disk or Google Cloud Storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/smallbiznis/escolar/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("blob_not_configured")
	ErrInvalidName   = errors.New("invalid_object_name")
)

// Object is where an upload ended up.
type Object struct {
	URL        string `json:"url"`
	ProviderID string `json:"providerId"`
}

type Store interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (Object, error)
}

var Module = fx.Module("providers.blob",
	fx.Provide(NewStore),
)

// NewStore picks the provider named in cfg.Blob.
func NewStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Store, error) {
	log = log.Named("blob")
	switch cfg.Blob.Provider {
	case "", config.BlobProviderLocal:
		return NewLocal(cfg.Blob.LocalRoot, cfg.Blob.PublicBaseURL), nil
	case config.BlobProviderGCS:
		store, err := NewGCS(context.Background(), cfg.Blob)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			if err := store.Close(); err != nil {
				log.Warn("close gcs client", zap.Error(err))
			}
			return nil
		}})
		return store, nil
	default:
		return nil, fmt.Errorf("blob provider %q: %w", cfg.Blob.Provider, ErrNotConfigured)
	}
}

// cleanName rejects names that would escape the store root.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	cleaned := path.Clean("/" + name)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(name, "/") {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return cleaned, nil
}
