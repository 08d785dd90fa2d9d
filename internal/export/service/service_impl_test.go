package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escolar/internal/amount"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	execlogdomain "github.com/smallbiznis/escolar/internal/executionlog/domain"
	execlogrepo "github.com/smallbiznis/escolar/internal/executionlog/repository"
	execlogservice "github.com/smallbiznis/escolar/internal/executionlog/service"
	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	"github.com/smallbiznis/escolar/internal/export/sepa"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/escolar/internal/invoice/repository"
	"github.com/smallbiznis/escolar/internal/providers/blob"
	"github.com/smallbiznis/escolar/internal/providers/pdf"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	schoolrepo "github.com/smallbiznis/escolar/internal/school/repository"
	"github.com/smallbiznis/escolar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	seed    *testutil.Seeder
	svc     exportdomain.Service
	execLog execlogdomain.Service
}

func newFixture(t *testing.T, store blob.Store) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	execLog := execlogservice.NewService(execlogservice.Params{Log: log, GenID: node, Clock: clk, Repo: execlogrepo.Provide(db)})

	svc := NewService(ServiceParam{
		Log:      log,
		Clock:    clk,
		Billing:  config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		School:   schoolrepo.NewRepository(db),
		Invoices: invoicerepo.NewRepository(db),
		PDF:      pdf.New(),
		ExecLog:  execLog,
		Blob:     store,
	})
	return &fixture{db: db, node: node, seed: testutil.NewSeeder(t, db), svc: svc, execLog: execLog}
}

func march(day int) time.Time {
	loc, _ := time.LoadLocation("Europe/Madrid")
	return time.Date(2024, time.March, day, 0, 0, 0, 0, loc).UTC()
}

func (f *fixture) invoice(t *testing.T, mutate func(*invoicedomain.Invoice)) *invoicedomain.Invoice {
	t.Helper()
	inv := &invoicedomain.Invoice{
		ID:             f.node.Generate(),
		DocumentID:     uuid.NewString(),
		Category:       invoicedomain.CategoryEnrollment,
		Type:           invoicedomain.TypeCharge,
		Status:         invoicedomain.StatusUnpaid,
		Amounts:        datatypes.NewJSONSlice([]amount.Line{{Concept: "comedor", Amount: 120}}),
		Total:          decimal.RequireFromString("120.00"),
		EmissionDate:   march(1),
		ExpirationDate: march(11),
	}
	mutate(inv)
	require.NoError(t, f.db.Create(inv).Error)
	return inv
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[zf.Name] = body
	}
	return out
}

func TestExportCuadernoRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.seed.Company()
	g := f.seed.Guardian()
	enr := f.seed.Enrollment(func(e *schooldomain.Enrollment) { e.GuardianIDs = testutil.IDs(g.ID) })

	totals := []string{"135.00", "120.50", "99.99", "15.00", "240.10"}
	statuses := []invoicedomain.Status{invoicedomain.StatusPaid, invoicedomain.StatusUnpaid}
	want := map[string]int64{}
	for i, total := range totals {
		inv := f.invoice(t, func(inv *invoicedomain.Invoice) {
			inv.InvoiceNumber = "FAC-202403-00000" + string(rune('1'+i))
			inv.Status = statuses[i%2]
			inv.Total = decimal.RequireFromString(total)
			inv.EnrollmentID = &enr.ID
		})
		want[inv.InvoiceNumber] = decimal.RequireFromString(total).Shift(2).IntPart()
	}
	// excluded by status and by expiration month
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000006"
		inv.Status = invoicedomain.StatusInProcess
		inv.EnrollmentID = &enr.ID
	})
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000007"
		inv.ExpirationDate = march(1).AddDate(0, 1, 0)
		inv.EnrollmentID = &enr.ID
	})

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEnrollment,
		Statuses: statuses,
	})
	require.NoError(t, err)
	assert.Equal(t, "sepa_batch_enrollment_2024_03.zip", res.FileName)
	assert.Equal(t, 5, res.Invoices)
	assert.Equal(t, 5, res.Exported)
	assert.Equal(t, int64(61059), res.TotalCents)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Failures)

	files := unzip(t, res.Data)
	assert.Len(t, files, 5+3)
	assert.Contains(t, files, readmeName)
	assert.Equal(t, "Sin avisos ni incidencias.\n", string(files[notesName]))
	assert.True(t, bytes.HasPrefix(files[summaryName], []byte("%PDF")))
	assert.Contains(t, string(files[readmeName]), "ES11000B12345674")

	for number, cents := range want {
		body, ok := files[number+".txt"]
		require.True(t, ok, number)
		entries, err := sepa.Parse19(body)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, number, entries[0].Reference)
		assert.Equal(t, cents, entries[0].AmountCents)
		assert.Equal(t, "ES7921000813610123456789", entries[0].IBAN)
		assert.Equal(t, "MND-0001", entries[0].MandateID)
	}

	logged, err := f.execLog.List(context.Background(), execlogdomain.ListFilter{Title: "Exportación SEPA"})
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestExportMissingBankDataIsAWarning(t *testing.T) {
	f := newFixture(t, nil)
	f.seed.Company()
	g := f.seed.Guardian(func(g *schooldomain.Guardian) {
		g.IBAN = ""
		g.MandateReference = ""
	})
	enr := f.seed.Enrollment(func(e *schooldomain.Enrollment) { e.GuardianIDs = testutil.IDs(g.ID) })
	inv := f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000001"
		inv.EnrollmentID = &enr.ID
	})

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEnrollment,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Exported)
	assert.Equal(t, []string{
		"FAC-202403-000001: IBAN ausente",
		"FAC-202403-000001: mandato SEPA ausente",
	}, res.Warnings)

	files := unzip(t, res.Data)
	assert.Contains(t, string(files[notesName]), "IBAN ausente")
	entries, err := sepa.Parse19(files[inv.InvoiceNumber+".txt"])
	require.NoError(t, err)
	assert.Empty(t, entries[0].IBAN)
	assert.Equal(t, int64(12000), entries[0].AmountCents)
}

func TestExportInvalidIBANIsBlanked(t *testing.T) {
	f := newFixture(t, nil)
	f.seed.Company()
	g := f.seed.Guardian(func(g *schooldomain.Guardian) { g.IBAN = "ES9121000418450200051333" })
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000001"
		inv.GuardianID = &g.ID
	})

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEnrollment,
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "IBAN no válido")

	entries, err := sepa.Parse19(unzip(t, res.Data)["FAC-202403-000001.txt"])
	require.NoError(t, err)
	assert.Empty(t, entries[0].IBAN)
}

func TestExportPerInvoiceFailuresDoNotAbort(t *testing.T) {
	f := newFixture(t, nil)
	f.seed.Company()
	g := f.seed.Guardian()
	enr := f.seed.Enrollment(func(e *schooldomain.Enrollment) { e.GuardianIDs = testutil.IDs(g.ID) })
	orphan := f.seed.Enrollment()

	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000001"
		inv.EnrollmentID = &enr.ID
	})
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000002"
		inv.EnrollmentID = &orphan.ID
	})
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000003"
		inv.EnrollmentID = &enr.ID
		inv.Total = decimal.Zero
	})
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000004"
		inv.EnrollmentID = &enr.ID
		inv.Total = decimal.RequireFromString("100000000.00")
	})

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEnrollment,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Invoices)
	assert.Equal(t, 1, res.Exported)
	assert.Equal(t, int64(12000), res.TotalCents)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, "FAC-202403-000002: sin tutor asociado", res.Failures[0])
	assert.Equal(t, "FAC-202403-000003: importe no positivo", res.Failures[1])
	assert.Contains(t, res.Failures[2], "FAC-202403-000004: no se pudo generar")

	files := unzip(t, res.Data)
	assert.Contains(t, files, "FAC-202403-000001.txt")
	assert.NotContains(t, files, "FAC-202403-000002.txt")
	assert.Contains(t, string(files[notesName]), "Incidencias (facturas excluidas)")
}

func TestExportEmployeeXML(t *testing.T) {
	f := newFixture(t, nil)
	f.seed.Company()
	emp := f.seed.Employee()
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000001"
		inv.Category = invoicedomain.CategoryEmployee
		inv.Type = invoicedomain.TypeExpense
		inv.Total = decimal.RequireFromString("1650.00")
		inv.EmployeeID = &emp.ID
	})

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatXML, Type: exportdomain.TypeEmployee,
	})
	require.NoError(t, err)
	assert.Equal(t, "sepa_batch_employee_2024_03.zip", res.FileName)

	body := unzip(t, res.Data)["FAC-202403-000001.xml"]
	require.NotEmpty(t, body)
	var doc sepa.Pain001
	require.NoError(t, xml.Unmarshal(body, &doc))
	pmt := doc.Body.Payment
	assert.Equal(t, "B12345674", doc.Body.GroupHeader.Initiator.ID.ID)
	assert.Equal(t, "2024-03-11", pmt.ExecutionDate)
	require.Len(t, pmt.Transfers, 1)
	assert.Equal(t, "1650.00", pmt.Transfers[0].Amount.Value)
	assert.Equal(t, "ES6000491500051234567892", pmt.Transfers[0].CreditorAcct.IBAN)
	assert.Equal(t, "Luis Perez", pmt.Transfers[0].Creditor.Name)
	assert.Equal(t, "SALA", pmt.Transfers[0].Purpose)
}

func TestExportEmployeeCuaderno34(t *testing.T) {
	f := newFixture(t, nil)
	f.seed.Company()
	emp := f.seed.Employee()
	f.invoice(t, func(inv *invoicedomain.Invoice) {
		inv.InvoiceNumber = "FAC-202403-000009"
		inv.Category = invoicedomain.CategoryEmployee
		inv.Total = decimal.RequireFromString("960.00")
		inv.EmployeeID = &emp.ID
	})

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEmployee,
	})
	require.NoError(t, err)
	entries, err := sepa.Parse34(unzip(t, res.Data)["FAC-202403-000009.txt"])
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(96000), entries[0].AmountCents)
}

func TestExportWorkbook(t *testing.T) {
	f := newFixture(t, nil)
	f.seed.Company()
	g := f.seed.Guardian()
	for i := 0; i < 2; i++ {
		f.invoice(t, func(inv *invoicedomain.Invoice) {
			inv.InvoiceNumber = "FAC-202403-00000" + string(rune('1'+i))
			inv.GuardianID = &g.ID
		})
	}

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatXLSX, Type: exportdomain.TypeEnrollment,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exported)

	files := unzip(t, res.Data)
	body, ok := files["sepa_batch_enrollment_2024_03.xlsx"]
	require.True(t, ok)
	wb, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Remesa")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "FAC-202403-000001", rows[1][0])
	assert.Equal(t, "Ana García", rows[1][2])
	assert.Equal(t, "11/03/2024", rows[1][9])
}

func TestExportUpload(t *testing.T) {
	f := newFixture(t, blob.NewLocal(t.TempDir(), "/uploads"))
	f.seed.Company()

	res, err := f.svc.Export(context.Background(), exportdomain.Request{
		Year: 2024, Month: 3, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEnrollment, Upload: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Exported)
	assert.Equal(t, "/uploads/exports/sepa_batch_enrollment_2024_03.zip", res.URL)
}

func TestExportValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	valid := exportdomain.Request{Year: 2024, Month: 3, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEnrollment}

	bad := []exportdomain.Request{
		{Year: 2024, Month: 13, Format: exportdomain.FormatCuaderno, Type: exportdomain.TypeEnrollment},
		{Year: 2024, Month: 3, Format: "pdf", Type: exportdomain.TypeEnrollment},
		{Year: 2024, Month: 3, Format: exportdomain.FormatXML, Type: "supplier"},
		{Year: 2024, Month: 3, Format: exportdomain.FormatXML, Type: exportdomain.TypeEmployee, Statuses: []invoicedomain.Status{"void"}},
	}
	for _, req := range bad {
		_, err := f.svc.Export(ctx, req)
		assert.ErrorIs(t, err, exportdomain.ErrInvalidRequest)
	}

	_, err := f.svc.Export(ctx, valid)
	assert.ErrorIs(t, err, exportdomain.ErrCompanyMissing)

	upload := valid
	upload.Upload = true
	_, err = f.svc.Export(ctx, upload)
	assert.ErrorIs(t, err, exportdomain.ErrUploadUnavailable)

	f.seed.Company(func(c *schooldomain.Company) { c.NIF = "" })
	_, err = f.svc.Export(ctx, valid)
	assert.ErrorIs(t, err, exportdomain.ErrCompanyNIFMissing)
}
