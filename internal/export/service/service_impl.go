package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	execlogdomain "github.com/smallbiznis/escolar/internal/executionlog/domain"
	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	"github.com/smallbiznis/escolar/internal/export/sepa"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/escolar/internal/observability/metrics"
	"github.com/smallbiznis/escolar/internal/providers/blob"
	"github.com/smallbiznis/escolar/internal/providers/pdf"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	readmeName  = "README.txt"
	notesName   = "NOTAS.txt"
	summaryName = "resumen.pdf"
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	School   schooldomain.Repository
	Invoices invoicedomain.Repository
	PDF      pdf.Provider
	ExecLog  execlogdomain.Service
	Blob     blob.Store          `optional:"true"`
	Metrics  *obsmetrics.Billing `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	school   schooldomain.Repository
	invoices invoicedomain.Repository
	pdf      pdf.Provider
	execLog  execlogdomain.Service
	blob     blob.Store
	metrics  *obsmetrics.Billing
	validate *validator.Validate
}

func NewService(p ServiceParam) exportdomain.Service {
	return &Service{
		log:      p.Log.Named("export.service"),
		clock:    p.Clock,
		billing:  p.Billing,
		school:   p.School,
		invoices: p.Invoices,
		pdf:      p.PDF,
		execLog:  p.ExecLog,
		blob:     p.Blob,
		metrics:  p.Metrics,
		validate: validator.New(),
	}
}

// Export builds the payment batch archive for one type and month. Only a
// bad request, a missing company or a failed invoice query abort; problems
// with single invoices end up in NOTAS.txt.
func (s *Service) Export(ctx context.Context, req exportdomain.Request) (*exportdomain.Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", exportdomain.ErrInvalidRequest, err)
	}
	if len(req.Statuses) == 0 {
		req.Statuses = exportdomain.DefaultStatuses()
	}
	if req.Upload && s.blob == nil {
		return nil, exportdomain.ErrUploadUnavailable
	}

	company, err := s.school.GetCompany(ctx)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, exportdomain.ErrCompanyMissing
	}

	loc := s.billing.Get().Location()
	now := s.clock.Now().In(loc)
	b, err := newBatch(req, company, now)
	if err != nil {
		return nil, err
	}

	start := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	invoices, err := s.invoices.ListForExport(ctx, req.Type.Category(), start, end, req.Statuses)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	log := s.log.With(
		zap.String("type", string(req.Type)),
		zap.String("format", string(req.Format)),
		zap.String("period", b.period),
	)
	log.Info("export started", zap.Int("invoices", len(invoices)))

	r := resolver{school: s.school, guardians: map[string]*schooldomain.Guardian{}}
	for i := range invoices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.add(ctx, &r, invoices[i], loc)
	}

	files, err := b.render(req.Format)
	if err != nil {
		return nil, err
	}
	summary, err := s.summary(ctx, b)
	if err != nil {
		log.Warn("batch summary pdf failed", zap.Error(err))
		b.warn("", "resumen.pdf no generado: "+err.Error())
	}
	files = append(files,
		file{name: readmeName, data: []byte(b.readme(files, summary != nil))},
		file{name: notesName, data: []byte(b.notes())},
	)
	if summary != nil {
		files = append(files, file{name: summaryName, data: summary})
	}

	archive, err := writeArchive(files, now)
	if err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}

	result := &exportdomain.Result{
		FileName:   req.ArchiveName(),
		Data:       archive,
		Invoices:   len(invoices),
		Exported:   len(b.rendered),
		TotalCents: b.renderedTotal(),
		Warnings:   b.warnings,
		Failures:   b.failures,
	}

	if req.Upload {
		obj, err := s.blob.Upload(ctx, "exports/"+result.FileName, archive, "application/zip")
		if err != nil {
			return nil, fmt.Errorf("upload archive: %w", err)
		}
		result.URL = obj.URL
	}

	s.metrics.IncExport(string(req.Type), string(req.Format), len(b.warnings))
	if err := s.execLog.Log(ctx, execlogdomain.LevelInfo, "Exportación SEPA",
		fmt.Sprintf("%s: %d de %d facturas exportadas", result.FileName, result.Exported, result.Invoices),
		map[string]any{
			"type":     string(req.Type),
			"format":   string(req.Format),
			"period":   b.period,
			"exported": result.Exported,
			"warnings": len(result.Warnings),
			"failures": len(result.Failures),
			"total":    sepa.FormatCents(result.TotalCents),
		},
	); err != nil {
		log.Warn("write execution log failed", zap.Error(err))
	}

	log.Info("export finished",
		zap.Int("exported", result.Exported),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

func (s *Service) summary(ctx context.Context, b *batch) ([]byte, error) {
	data := pdf.BatchSummary{
		CompanyName: b.company.Name,
		CompanyNIF:  b.company.NIF,
		CreditorID:  b.creditorID,
		Title:       b.title(),
		Period:      b.period,
		Format:      string(b.req.Format),
		GeneratedAt: b.now.Format("02/01/2006 15:04"),
		Count:       len(b.rendered),
		Total:       sepa.FormatCents(b.renderedTotal()) + " EUR",
		Warnings:    append(append([]string{}, b.warnings...), b.failures...),
	}
	for _, it := range b.rendered {
		data.Lines = append(data.Lines, pdf.SummaryLine{
			Reference: it.tx.Reference,
			Name:      it.tx.Party.Name,
			IBAN:      it.tx.Party.IBAN,
			Status:    string(it.invoice.Status),
			Amount:    sepa.FormatCents(it.tx.AmountCents),
		})
	}
	r, err := s.pdf.GenerateBatchSummary(ctx, data)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
