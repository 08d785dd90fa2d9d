package sheet

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWrite(t *testing.T) {
	data, err := Write([]Row{
		{Reference: "FAC-202403-000001", Name: "Ana García", IBAN: "ES7921000813610123456789", Amount: decimal.RequireFromString("135.00"), Status: "unpaid"},
		{Reference: "FAC-202403-000002", Name: "Luis Pérez", Amount: decimal.RequireFromString("20.5"), Status: "paid", Warning: "IBAN ausente"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Referencia", rows[0][0])
	assert.Equal(t, "Aviso", rows[0][12])
	assert.Equal(t, "FAC-202403-000001", rows[1][0])
	assert.Equal(t, "Ana García", rows[1][2])
	assert.Equal(t, "IBAN ausente", rows[2][12])

	total, err := f.GetCellValue(SheetName, "H4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "155.5", total)
}

func TestWriteEmpty(t *testing.T) {
	data, err := Write(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	label, err := f.GetCellValue(SheetName, "G2")
	require.NoError(t, err)
	assert.Equal(t, "Total", label)
}
