package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/smallbiznis/escolar/internal/config"
	"google.golang.org/api/option"
)

// GCS stores objects in one bucket under an optional prefix. Credentials
// come from GCS_CREDENTIALS_JSON or, when empty, application defaults.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(ctx context.Context, cfg config.BlobConfig) (*GCS, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required: %w", ErrNotConfigured)
	}
	var opts []option.ClientOption
	if cfg.GCSCredentials != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GCSCredentials)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCS{client: client, bucket: cfg.GCSBucket, prefix: strings.Trim(cfg.GCSObjectPrefix, "/")}, nil
}

func (g *GCS) Upload(ctx context.Context, name string, data []byte, contentType string) (Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return Object{}, err
	}
	object := name
	if g.prefix != "" {
		object = g.prefix + "/" + name
	}

	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("close writer %s: %w", object, err)
	}

	return Object{
		URL:        fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, (&url.URL{Path: object}).EscapedPath()),
		ProviderID: object,
	}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
