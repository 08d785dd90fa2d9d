package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// BatchSummary is the cover sheet of a payment batch. Amounts arrive
// already formatted.
type BatchSummary struct {
	CompanyName string
	CompanyNIF  string
	CreditorID  string
	Title       string
	Period      string
	Format      string
	GeneratedAt string

	Lines []SummaryLine

	Count    int
	Total    string
	Warnings []string
}

type SummaryLine struct {
	Reference string
	Name      string
	IBAN      string
	Status    string
	Amount    string
}

func (p *PDFProvider) GenerateBatchSummary(ctx context.Context, summary BatchSummary) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, summary.Title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(summary.CompanyName, props.Text{Style: fontstyle.Bold}),
			text.New("NIF: "+summary.CompanyNIF, props.Text{Top: 5}),
			text.New("Identificador acreedor: "+summary.CreditorID, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Periodo: "+summary.Period, props.Text{Align: align.Right}),
			text.New("Formato: "+summary.Format, props.Text{Top: 5, Align: align.Right}),
			text.New("Generado: "+summary.GeneratedAt, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(3, "Referencia", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Titular", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "IBAN", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Importe", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range summary.Lines {
		m.AddRow(7,
			text.NewCol(3, line.Reference, props.Text{Size: 8}),
			text.NewCol(4, line.Name, props.Text{Size: 8}),
			text.NewCol(3, line.IBAN, props.Text{Size: 8}),
			text.NewCol(2, line.Amount, props.Text{Size: 8, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(7),
		text.NewCol(3, fmt.Sprintf("%d operaciones", summary.Count), props.Text{Style: fontstyle.Bold, Size: 9, Top: 3}),
		text.NewCol(2, summary.Total, props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
	)

	if len(summary.Warnings) > 0 {
		m.AddRow(10,
			text.NewCol(12, "Avisos", props.Text{Style: fontstyle.Bold, Size: 10, Top: 4}),
		)
		for _, w := range summary.Warnings {
			m.AddRow(6, text.NewCol(12, w, props.Text{Size: 8}))
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
