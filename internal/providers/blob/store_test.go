package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/escolar/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestLocalUpload(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root, "/uploads/")

	obj, err := store.Upload(context.Background(), "exports/sepa_batch_enrollment_2024_03.zip", []byte("zip"), "application/zip")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/exports/sepa_batch_enrollment_2024_03.zip", obj.URL)
	assert.Equal(t, "exports/sepa_batch_enrollment_2024_03.zip", obj.ProviderID)

	data, err := os.ReadFile(filepath.Join(root, "exports", "sepa_batch_enrollment_2024_03.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))
}

func TestLocalUploadRejectsEscapes(t *testing.T) {
	store := NewLocal(t.TempDir(), "/uploads")
	for _, name := range []string{"", "../secret", "a/../../b", "/"} {
		_, err := store.Upload(context.Background(), name, nil, "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	_, err := NewLocal("", "").Upload(context.Background(), "a.txt", nil, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewStore(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	store, err := NewStore(lc, config.Config{Blob: config.BlobConfig{Provider: "local", LocalRoot: t.TempDir()}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = NewStore(lc, config.Config{Blob: config.BlobConfig{Provider: "s3"}}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewStore(lc, config.Config{Blob: config.BlobConfig{Provider: "gcs"}}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
