// Package sheet writes export batches as a single xlsx workbook.
package sheet

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Remesa"

// Row is one invoice of the batch.
type Row struct {
	Reference      string
	InvoiceNumber  string
	Name           string
	TaxID          string
	IBAN           string
	BIC            string
	MandateID      string
	Amount         decimal.Decimal
	EmissionDate   string
	ExpirationDate string
	Status         string
	Concept        string
	Warning        string
}

var headings = []string{
	"Referencia", "Factura", "Titular", "NIF/DNI", "IBAN", "BIC", "Mandato",
	"Importe", "Emisión", "Vencimiento", "Estado", "Concepto", "Aviso",
}

// Write renders rows with a bold header and a totals line.
func Write(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	header := make([]any, len(headings))
	for i, h := range headings {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(headings), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		amount, _ := r.Amount.Round(2).Float64()
		values := []any{
			r.Reference, r.InvoiceNumber, r.Name, r.TaxID, r.IBAN, r.BIC, r.MandateID,
			amount, r.EmissionDate, r.ExpirationDate, r.Status, r.Concept, r.Warning,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		total = total.Add(r.Amount)
	}

	totalRow := len(rows) + 2
	label, _ := excelize.CoordinatesToCellName(7, totalRow)
	sum, _ := excelize.CoordinatesToCellName(8, totalRow)
	if err := f.SetCellValue(SheetName, label, "Total"); err != nil {
		return nil, err
	}
	totalValue, _ := total.Round(2).Float64()
	if err := f.SetCellValue(SheetName, sum, totalValue); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, label, sum, bold); err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(8, 2)
	if err := f.SetCellStyle(SheetName, first, sum, money); err != nil {
		return nil, err
	}

	if err := f.SetColWidth(SheetName, "A", "B", 20); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "C", "C", 32); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "E", "E", 30); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "L", "M", 40); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
