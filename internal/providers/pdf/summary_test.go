package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBatchSummary(t *testing.T) {
	r, err := New().GenerateBatchSummary(context.Background(), BatchSummary{
		CompanyName: "Colegio San Miguel S.L.",
		CompanyNIF:  "B12345674",
		CreditorID:  "ES11000B12345674",
		Title:       "Remesa de recibos",
		Period:      "2024-03",
		Format:      "cuaderno",
		GeneratedAt: "2024-03-01 09:30",
		Lines: []SummaryLine{
			{Reference: "FAC-202403-000001", Name: "Ana García", IBAN: "ES7921000813610123456789", Amount: "135,00 €"},
		},
		Count:    1,
		Total:    "135,00 €",
		Warnings: []string{"FAC-202403-000002: IBAN ausente"},
	})
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestGenerateBatchSummaryHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GenerateBatchSummary(ctx, BatchSummary{})
	assert.ErrorIs(t, err, context.Canceled)
}
