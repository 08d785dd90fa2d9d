// Package domain describes payment batch exports.
package domain

import (
	"context"
	"fmt"

	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
)

type Format string

const (
	FormatCuaderno Format = "cuaderno"
	FormatXML      Format = "xml"
	FormatXLSX     Format = "xlsx"
)

type Type string

const (
	TypeEnrollment Type = "enrollment"
	TypeEmployee   Type = "employee"
)

// Category is the invoice category exported for t.
func (t Type) Category() invoicedomain.Category {
	if t == TypeEmployee {
		return invoicedomain.CategoryEmployee
	}
	return invoicedomain.CategoryEnrollment
}

// Request selects invoices whose expiration date falls in Year/Month.
type Request struct {
	Year     int                    `json:"year" form:"year" validate:"required,min=2000,max=2100"`
	Month    int                    `json:"month" form:"month" validate:"required,min=1,max=12"`
	Format   Format                 `json:"format" form:"format" validate:"required,oneof=cuaderno xml xlsx"`
	Type     Type                   `json:"type" form:"type" validate:"required,oneof=enrollment employee"`
	Statuses []invoicedomain.Status `json:"statuses" form:"statuses" validate:"omitempty,dive,oneof=unpaid inprocess paid canceled"`
	Upload   bool                   `json:"upload" form:"upload"`
}

// DefaultStatuses is every status except canceled.
func DefaultStatuses() []invoicedomain.Status {
	return []invoicedomain.Status{invoicedomain.StatusUnpaid, invoicedomain.StatusInProcess, invoicedomain.StatusPaid}
}

// ArchiveName is sepa_batch_{type}_{year}_{MM}.zip.
func (r Request) ArchiveName() string {
	return fmt.Sprintf("sepa_batch_%s_%d_%02d.zip", r.Type, r.Year, r.Month)
}

// Result carries the archive and what went into it. Failures are invoices
// left out of the batch; warnings are invoices exported with blank data.
type Result struct {
	FileName   string   `json:"fileName"`
	Data       []byte   `json:"-"`
	Invoices   int      `json:"invoices"`
	Exported   int      `json:"exported"`
	TotalCents int64    `json:"totalCents"`
	Warnings   []string `json:"warnings,omitempty"`
	Failures   []string `json:"failures,omitempty"`
	URL        string   `json:"url,omitempty"`
}

type Service interface {
	Export(ctx context.Context, req Request) (*Result, error)
}
