package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	"github.com/smallbiznis/escolar/internal/export/sepa"
	"github.com/smallbiznis/escolar/internal/export/sheet"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
)

const purposeSalary = "SALA"

type file struct {
	name string
	data []byte
}

type item struct {
	invoice  invoicedomain.Invoice
	tx       sepa.Transaction
	due      time.Time
	warnings []string
}

// batch accumulates one export. items passed validation; rendered is the
// subset that made it into the archive.
type batch struct {
	req        exportdomain.Request
	company    *schooldomain.Company
	creditorID string
	initiator  sepa.Party
	now        time.Time
	period     string

	selected int
	items    []item
	rendered []item
	warnings []string
	failures []string
}

func newBatch(req exportdomain.Request, company *schooldomain.Company, now time.Time) (*batch, error) {
	nif := strings.ToUpper(strings.TrimSpace(company.NIF))
	if nif == "" {
		return nil, exportdomain.ErrCompanyNIFMissing
	}
	creditorID, err := sepa.CreditorID(sepa.CountryOf(company.IBAN, "ES"), company.CreditorSuffix, nif)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", exportdomain.ErrCompanyNIFMissing, err)
	}

	b := &batch{
		req:        req,
		company:    company,
		creditorID: creditorID,
		now:        now,
		period:     fmt.Sprintf("%d-%02d", req.Year, req.Month),
	}
	iban, bic, _ := b.bank("empresa", company.IBAN, company.BIC)
	id := nif
	if req.Type == exportdomain.TypeEnrollment {
		id = creditorID
	}
	b.initiator = sepa.Party{ID: id, Name: company.Name, Address: company.Address, IBAN: iban, BIC: bic}
	return b, nil
}

func (b *batch) add(ctx context.Context, r *resolver, inv invoicedomain.Invoice, loc *time.Location) {
	b.selected++
	ref := reference(inv)
	cents := inv.Total.Round(2).Shift(2).IntPart()
	if cents <= 0 {
		b.fail(ref, "importe no positivo")
		return
	}

	cp, err := r.counterpart(ctx, b.req.Type, inv)
	if err != nil {
		b.fail(ref, err.Error())
		return
	}

	iban, bic, warnings := b.bank(ref, cp.iban, cp.bic)
	if b.req.Type == exportdomain.TypeEnrollment && strings.TrimSpace(cp.mandate) == "" {
		warnings = append(warnings, b.warn(ref, "mandato SEPA ausente"))
	}

	tx := sepa.Transaction{
		Reference: ref,
		MandateID: strings.TrimSpace(cp.mandate),
		Party: sepa.Party{
			ID:      cp.taxID,
			Name:    cp.name,
			Address: cp.address,
			IBAN:    iban,
			BIC:     bic,
		},
		AmountCents: cents,
		Concept:     concept(ref, inv),
	}
	if cp.signed != nil {
		tx.MandateDate = cp.signed.In(loc)
	}
	if b.req.Type == exportdomain.TypeEmployee {
		tx.Purpose = purposeSalary
	}

	b.items = append(b.items, item{invoice: inv, tx: tx, due: inv.ExpirationDate.In(loc), warnings: warnings})
}

// bank validates account data. Missing or invalid values are blanked and
// reported, never guessed.
func (b *batch) bank(ref, iban, bic string) (string, string, []string) {
	var warnings []string
	iban = sepa.NormalizeIBAN(iban)
	switch {
	case iban == "":
		warnings = append(warnings, b.warn(ref, "IBAN ausente"))
	case !sepa.ValidIBAN(iban):
		warnings = append(warnings, b.warn(ref, fmt.Sprintf("IBAN no válido (%s)", iban)))
		iban = ""
	}
	bic = strings.ToUpper(strings.TrimSpace(bic))
	if bic != "" && !sepa.ValidBIC(bic) {
		warnings = append(warnings, b.warn(ref, fmt.Sprintf("BIC no válido (%s)", bic)))
		bic = ""
	}
	return iban, bic, warnings
}

func (b *batch) render(format exportdomain.Format) ([]file, error) {
	if format == exportdomain.FormatXLSX {
		rows := make([]sheet.Row, 0, len(b.items))
		for _, it := range b.items {
			rows = append(rows, b.row(it))
		}
		data, err := sheet.Write(rows)
		if err != nil {
			return nil, fmt.Errorf("write workbook: %w", err)
		}
		b.rendered = b.items
		name := strings.TrimSuffix(b.req.ArchiveName(), ".zip") + ".xlsx"
		return []file{{name: name, data: data}}, nil
	}

	files := make([]file, 0, len(b.items))
	seen := map[string]int{}
	for _, it := range b.items {
		data, ext, err := b.renderOne(it)
		if err != nil {
			b.fail(it.tx.Reference, "no se pudo generar: "+err.Error())
			continue
		}
		name := fileName(it.tx.Reference)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		files = append(files, file{name: name + ext, data: data})
		b.rendered = append(b.rendered, it)
	}
	return files, nil
}

func (b *batch) renderOne(it item) ([]byte, string, error) {
	one := sepa.Batch{
		MessageID:    ulid.Make().String(),
		CreatedAt:    b.now,
		DueDate:      it.due,
		Initiator:    b.initiator,
		Transactions: []sepa.Transaction{it.tx},
	}
	debit := b.req.Type == exportdomain.TypeEnrollment
	switch {
	case b.req.Format == exportdomain.FormatXML && debit:
		data, err := sepa.GeneratePain008(one)
		return data, ".xml", err
	case b.req.Format == exportdomain.FormatXML:
		data, err := sepa.GeneratePain001(one)
		return data, ".xml", err
	case debit:
		data, err := sepa.Generate19(one)
		return data, ".txt", err
	default:
		data, err := sepa.Generate34(one)
		return data, ".txt", err
	}
}

func (b *batch) row(it item) sheet.Row {
	return sheet.Row{
		Reference:      it.tx.Reference,
		InvoiceNumber:  it.invoice.InvoiceNumber,
		Name:           it.tx.Party.Name,
		TaxID:          it.tx.Party.ID,
		IBAN:           it.tx.Party.IBAN,
		BIC:            it.tx.Party.BIC,
		MandateID:      it.tx.MandateID,
		Amount:         it.invoice.Total,
		EmissionDate:   it.invoice.EmissionDate.In(it.due.Location()).Format("02/01/2006"),
		ExpirationDate: it.due.Format("02/01/2006"),
		Status:         string(it.invoice.Status),
		Concept:        it.tx.Concept,
		Warning:        strings.Join(it.warnings, "; "),
	}
}

func (b *batch) warn(ref, msg string) string {
	if ref != "" {
		msg = ref + ": " + msg
	}
	b.warnings = append(b.warnings, msg)
	return msg
}

func (b *batch) fail(ref, msg string) {
	b.failures = append(b.failures, ref+": "+msg)
}

func (b *batch) renderedTotal() int64 {
	var total int64
	for _, it := range b.rendered {
		total += it.tx.AmountCents
	}
	return total
}

func (b *batch) title() string {
	if b.req.Type == exportdomain.TypeEmployee {
		return "Remesa de nóminas (transferencias SEPA)"
	}
	return "Remesa de recibos (adeudos directos SEPA)"
}

func (b *batch) formatLabel() string {
	debit := b.req.Type == exportdomain.TypeEnrollment
	switch {
	case b.req.Format == exportdomain.FormatXLSX:
		return "hoja de cálculo (xlsx)"
	case b.req.Format == exportdomain.FormatXML && debit:
		return "ISO 20022 pain.008.001.02"
	case b.req.Format == exportdomain.FormatXML:
		return "ISO 20022 pain.001.001.03"
	case debit:
		return "Cuaderno 19.14 (registros de 600 posiciones)"
	default:
		return "Cuaderno 34.14 (registros de 600 posiciones)"
	}
}

func (b *batch) readme(files []file, withSummary bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", b.title())
	fmt.Fprintf(&sb, "Periodo: %s\n", b.period)
	fmt.Fprintf(&sb, "Empresa: %s (NIF %s)\n", b.company.Name, b.company.NIF)
	if b.req.Type == exportdomain.TypeEnrollment {
		fmt.Fprintf(&sb, "Identificador de acreedor: %s\n", b.creditorID)
	}
	fmt.Fprintf(&sb, "Formato: %s\n", b.formatLabel())
	fmt.Fprintf(&sb, "Generado: %s\n", b.now.Format("02/01/2006 15:04"))

	statuses := make([]string, 0, len(b.req.Statuses))
	for _, st := range b.req.Statuses {
		statuses = append(statuses, string(st))
	}
	fmt.Fprintf(&sb, "Estados incluidos: %s\n\n", strings.Join(statuses, ", "))

	fmt.Fprintf(&sb, "Facturas seleccionadas: %d\n", b.selected)
	fmt.Fprintf(&sb, "Facturas exportadas: %d\n", len(b.rendered))
	fmt.Fprintf(&sb, "Importe total: %s EUR\n\n", sepa.FormatCents(b.renderedTotal()))

	sb.WriteString("Contenido:\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "- %s\n", f.name)
	}
	fmt.Fprintf(&sb, "- %s: avisos e incidencias\n", notesName)
	if withSummary {
		fmt.Fprintf(&sb, "- %s: resumen imprimible\n", summaryName)
	}
	return sb.String()
}

func (b *batch) notes() string {
	if len(b.warnings) == 0 && len(b.failures) == 0 {
		return "Sin avisos ni incidencias.\n"
	}
	var sb strings.Builder
	if len(b.warnings) > 0 {
		sb.WriteString("Avisos (facturas exportadas con datos en blanco):\n")
		for _, w := range b.warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	if len(b.failures) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Incidencias (facturas excluidas):\n")
		for _, f := range b.failures {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	return sb.String()
}

func reference(inv invoicedomain.Invoice) string {
	if inv.InvoiceNumber != "" {
		return inv.InvoiceNumber
	}
	return inv.DocumentID
}

func concept(ref string, inv invoicedomain.Invoice) string {
	concepts := make([]string, 0, len(inv.Amounts))
	for _, l := range inv.Amounts {
		concepts = append(concepts, l.Concept)
	}
	if len(concepts) == 0 {
		return ref
	}
	return ref + " " + strings.Join(concepts, ", ")
}

func fileName(ref string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, ref)
}
