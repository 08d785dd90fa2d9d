package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/escolar/internal/amount"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	"github.com/smallbiznis/escolar/internal/eligibility"
	execlogdomain "github.com/smallbiznis/escolar/internal/executionlog/domain"
	execlogrepo "github.com/smallbiznis/escolar/internal/executionlog/repository"
	execlogservice "github.com/smallbiznis/escolar/internal/executionlog/service"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/escolar/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/escolar/internal/invoice/service"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	schoolrepo "github.com/smallbiznis/escolar/internal/school/repository"
	"github.com/smallbiznis/escolar/internal/snapshot"
	taxservice "github.com/smallbiznis/escolar/internal/tax/service"
	"github.com/smallbiznis/escolar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type harness struct {
	db       *gorm.DB
	seed     *testutil.Seeder
	clk      *clock.FakeClock
	sched    *Scheduler
	invoices invoicedomain.Repository
	school   schooldomain.Repository
	execLog  execlogdomain.Service
	cfg      config.BillingConfig
}

// failingInvoices refuses to create invoices for one enrollment.
type failingInvoices struct {
	invoicedomain.Service
	failFor string
}

func (f *failingInvoices) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.Invoice, error) {
	if len(req.Enrollment.Refs) == 1 && req.Enrollment.Refs[0].ID.String() == f.failFor {
		return nil, errors.New("disk full")
	}
	return f.Service.Create(ctx, req)
}

func newHarness(t *testing.T, wrap ...func(invoicedomain.Service) invoicedomain.Service) *harness {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	cfg := config.DefaultBillingConfig()
	billing := config.NewStaticBillingConfigHolder(cfg)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	school := schoolrepo.NewRepository(db)
	invoices := invoicerepo.NewRepository(db)
	var invoiceSvc invoicedomain.Service = invoiceservice.NewService(invoiceservice.ServiceParam{
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Repo:     invoices,
		School:   school,
		Snapshot: snapshot.NewBuilder(snapshot.Params{Log: log, Clock: clk, School: school}),
		Tax:      taxservice.NewResolver(taxservice.ResolverParam{Billing: billing}),
		Billing:  billing,
	})
	for _, fn := range wrap {
		invoiceSvc = fn(invoiceSvc)
	}
	execLog := execlogservice.NewService(execlogservice.Params{Log: log, GenID: node, Clock: clk, Repo: execlogrepo.Provide(db)})

	sched, err := New(Params{
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Billing:    billing,
		School:     school,
		Invoices:   invoices,
		InvoiceSvc: invoiceSvc,
		ExecLog:    execLog,
	})
	require.NoError(t, err)

	return &harness{
		db:       db,
		seed:     testutil.NewSeeder(t, db),
		clk:      clk,
		sched:    sched,
		invoices: invoices,
		school:   school,
		execLog:  execLog,
		cfg:      cfg,
	}
}

func madrid(y int, m time.Month, d int) time.Time {
	loc, _ := time.LoadLocation("Europe/Madrid")
	return time.Date(y, m, d, 6, 0, 0, 0, loc)
}

func (h *harness) invoicesOf(t *testing.T, category invoicedomain.Category) []invoicedomain.Invoice {
	t.Helper()
	var out []invoicedomain.Invoice
	require.NoError(t, h.db.Where("category = ?", category).Order("id").Find(&out).Error)
	return out
}

func (h *harness) enrollmentWithComedor(t *testing.T) *schooldomain.Enrollment {
	t.Helper()
	student := h.seed.Student("Lucía")
	guardian := h.seed.Guardian()
	comedor := h.seed.Service("Comedor", 120, schooldomain.ServiceStatusActive)
	canceled := h.seed.Service("Transporte", 60, schooldomain.ServiceStatusCanceled)
	period := h.seed.SchoolPeriod(
		schooldomain.Segment{Start: "2023-09-08", End: "2023-12-22", Year: 2023},
		schooldomain.Segment{Start: "2024-01-08", End: "2024-06-21", Year: 2024},
	)
	return h.seed.Enrollment(func(e *schooldomain.Enrollment) {
		e.StudentID = &student.ID
		e.GuardianIDs = testutil.IDs(guardian.ID)
		e.ServiceIDs = testutil.IDs(comedor.ID, canceled.ID)
		e.SchoolPeriodID = &period.ID
		e.AdditionalAmount = datatypes.JSONMap{"Material extra": 15}
	})
}

func TestRunOnceEnrollmentScenario(t *testing.T) {
	h := newHarness(t)
	h.seed.Company()
	enr := h.enrollmentWithComedor(t)

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: madrid(2024, time.March, 1), Mode: ModeEnrollments})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, "2024-03", summary.MonthKey)

	invs := h.invoicesOf(t, invoicedomain.CategoryEnrollment)
	require.Len(t, invs, 1)
	inv := invs[0]
	assert.Equal(t, []amount.Line{
		{Concept: "comedor", Amount: 120},
		{Concept: "Material extra", Amount: 15},
	}, []amount.Line(inv.Amounts))
	assert.Equal(t, "135.00", inv.Total.StringFixed(2))
	assert.Equal(t, invoicedomain.StatusUnpaid, inv.Status)
	require.NotNil(t, inv.EnrollmentID)
	assert.Equal(t, enr.ID, *inv.EnrollmentID)

	snap, err := inv.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []amount.Line(inv.Amounts), snap.Billing.Amounts)
	assert.Equal(t, "135.00", snap.Billing.Total)

	reloaded, err := h.school.GetEnrollment(context.Background(), enr.ID)
	require.NoError(t, err)
	entry, ok := reloaded.BillingControl.Data()["2024-03"]
	require.True(t, ok)
	assert.Equal(t, inv.DocumentID, entry.InvoiceDocumentID)

	logs, err := h.execLog.List(context.Background(), execlogdomain.ListFilter{Title: "Facturación recurrente"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, execlogdomain.LevelInfo, logs[0].Level)
}

func TestRunOnceIsIdempotentWithinMonth(t *testing.T) {
	h := newHarness(t)
	h.seed.Company()
	h.enrollmentWithComedor(t)
	ctx := context.Background()

	first, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 20)})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, second.SkipReasons[string(eligibility.AlreadyBilled)])

	assert.Len(t, h.invoicesOf(t, invoicedomain.CategoryEnrollment), 1)

	april, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.April, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, april.Created)
}

func TestRunOnceSkipsWhenInvoiceExistsWithoutLedger(t *testing.T) {
	h := newHarness(t)
	enr := h.enrollmentWithComedor(t)
	ctx := context.Background()

	_, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 1)})
	require.NoError(t, err)

	// wipe the ledger: the invoice lookup alone must block a second invoice
	require.NoError(t, h.db.Model(&schooldomain.Enrollment{}).Where("id = ?", enr.ID).
		Update("billing_control", datatypes.NewJSONType(schooldomain.BillingLedger{})).Error)

	summary, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 2)})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, summary.SkipReasons[string(eligibility.AlreadyBilled)])
}

func TestRunOnceSkipReasons(t *testing.T) {
	h := newHarness(t)
	h.enrollmentWithComedor(t)
	h.seed.Enrollment(func(e *schooldomain.Enrollment) { e.IsActive = false })
	h.seed.Enrollment()
	summer := h.seed.SchoolPeriod(schooldomain.Segment{Start: "2024-07-01", End: "2024-07-31"})
	h.seed.Enrollment(func(e *schooldomain.Enrollment) { e.SchoolPeriodID = &summer.ID })

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: madrid(2024, time.March, 1), Mode: ModeEnrollments})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	// inactive rows are filtered by the query itself
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 2, summary.SkipReasons[string(eligibility.IneligibleOutOfWindow)])
}

func TestRunOnceZeroAmountIsSkipped(t *testing.T) {
	h := newHarness(t)
	period := h.seed.SchoolPeriod(schooldomain.Segment{Start: "2024-01-01", End: "2024-12-31"})
	free := h.seed.Service("Comedor", 0, schooldomain.ServiceStatusActive)
	h.seed.Enrollment(func(e *schooldomain.Enrollment) {
		e.SchoolPeriodID = &period.ID
		e.ServiceIDs = testutil.IDs(free.ID)
	})

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: madrid(2024, time.March, 1)})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, summary.SkipReasons[skipZeroAmount])
}

func TestRunOnceContinuesAfterEntityFailure(t *testing.T) {
	failing := &failingInvoices{}
	h := newHarness(t, func(svc invoicedomain.Service) invoicedomain.Service {
		failing.Service = svc
		return failing
	})
	broken := h.enrollmentWithComedor(t)
	h.enrollmentWithComedor(t)
	failing.failFor = broken.ID.String()

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: madrid(2024, time.March, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, broken.DocumentID, summary.Errors[0].EntityID)
	assert.Contains(t, summary.Errors[0].Message, "disk full")

	reloaded, err := h.school.GetEnrollment(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.BillingControl.Data().Has("2024-03"))

	logs, err := h.execLog.List(context.Background(), execlogdomain.ListFilter{Level: execlogdomain.LevelError})
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestRunOnceEmployeeMonthlySalary(t *testing.T) {
	h := newHarness(t)
	emp := h.seed.Employee(func(e *schooldomain.Employee) {
		e.Terms = datatypes.NewJSONSlice([]schooldomain.Term{
			{Start: "2022-09-01", End: "2023-06-30", HourlyRate: 8, WorkedHours: 100, PaymentPeriod: schooldomain.PaymentPeriodMonthly},
			{Start: "2023-09-01", HourlyRate: 10, WorkedHours: 160, PaymentPeriod: schooldomain.PaymentPeriodMonthly},
		})
		e.AdditionalAmount = datatypes.JSONMap{"Bonus": 50}
	})

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: madrid(2024, time.March, 1), Mode: ModeEmployees})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	invs := h.invoicesOf(t, invoicedomain.CategoryEmployee)
	require.Len(t, invs, 1)
	assert.Equal(t, []amount.Line{
		{Concept: "Salario base", Amount: 1600},
		{Concept: "Bonus", Amount: 50},
	}, []amount.Line(invs[0].Amounts))
	assert.Equal(t, "1650.00", invs[0].Total.StringFixed(2))
	require.NotNil(t, invs[0].EmployeeID)
	assert.Equal(t, emp.ID, *invs[0].EmployeeID)
}

func TestRunOnceOverflowingEmployeeFailsAlone(t *testing.T) {
	h := newHarness(t)
	terms := datatypes.NewJSONSlice([]schooldomain.Term{
		{Start: "2023-09-01", HourlyRate: 10, WorkedHours: 160, PaymentPeriod: schooldomain.PaymentPeriodMonthly},
	})
	extreme := h.seed.Employee(func(e *schooldomain.Employee) {
		e.Terms = terms
		e.AdditionalAmount = datatypes.JSONMap{"Bonus": 1.7e308, "Plus": 1.7e308}
	})
	regular := h.seed.Employee(func(e *schooldomain.Employee) {
		e.Terms = terms
	})

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: madrid(2024, time.March, 1), Mode: ModeEmployees})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, extreme.DocumentID, summary.Errors[0].EntityID)
	assert.Contains(t, summary.Errors[0].Message, "amount_overflow")

	invs := h.invoicesOf(t, invoicedomain.CategoryEmployee)
	require.Len(t, invs, 1)
	require.NotNil(t, invs[0].EmployeeID)
	assert.Equal(t, regular.ID, *invs[0].EmployeeID)
	assert.Equal(t, "1600.00", invs[0].Total.StringFixed(2))
}

func TestRunOnceBiweeklyGate(t *testing.T) {
	h := newHarness(t)
	h.seed.Employee(func(e *schooldomain.Employee) {
		e.Terms = datatypes.NewJSONSlice([]schooldomain.Term{
			{Start: "2024-01-01", End: "2024-12-31", HourlyRate: 12, WorkedHours: 160, PaymentPeriod: schooldomain.PaymentPeriodBiweekly},
		})
	})
	ctx := context.Background()

	summary, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 10), Mode: ModeEmployees})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Equal(t, 1, summary.SkipReasons[string(eligibility.IneligibleFrequency)])
	assert.Empty(t, h.invoicesOf(t, invoicedomain.CategoryEmployee))

	summary, err = h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 15), Mode: ModeEmployees})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	invs := h.invoicesOf(t, invoicedomain.CategoryEmployee)
	require.Len(t, invs, 1)
	assert.Equal(t, "960.00", invs[0].Total.StringFixed(2))
}

func TestSnapshotSurvivesSourceChanges(t *testing.T) {
	h := newHarness(t)
	enr := h.enrollmentWithComedor(t)
	ctx := context.Background()

	_, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 1)})
	require.NoError(t, err)

	require.NoError(t, h.db.Model(&schooldomain.Student{}).Where("id = ?", *enr.StudentID).Update("name", "Lucía María").Error)

	invs := h.invoicesOf(t, invoicedomain.CategoryEnrollment)
	require.Len(t, invs, 1)
	snap, err := invs[0].Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap.Student)
	assert.Equal(t, "Lucía", snap.Student.Name)

	// a later month captures the new name without touching the old invoice
	_, err = h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.April, 1)})
	require.NoError(t, err)
	invs = h.invoicesOf(t, invoicedomain.CategoryEnrollment)
	require.Len(t, invs, 2)
	first, _ := invs[0].Snapshot()
	second, _ := invs[1].Snapshot()
	assert.Equal(t, "Lucía", first.Student.Name)
	assert.Equal(t, "Lucía María", second.Student.Name)
}

func TestRunOncePagesThroughBatches(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.enrollmentWithComedor(t)
	}
	schedule := h.cfg
	schedule.BatchSize = 2

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: madrid(2024, time.March, 1), Schedule: &schedule})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Created)
	assert.Len(t, summary.InvoiceIDs, 5)
}

func TestRunOnceTracksExecutionState(t *testing.T) {
	h := newHarness(t)
	now := madrid(2024, time.March, 1)

	summary, err := h.sched.RunOnce(context.Background(), RunRequest{Now: now})
	require.NoError(t, err)
	assert.Equal(t, now.UTC(), summary.LastExecution)
	assert.Equal(t, madrid(2024, time.April, 1).UTC(), summary.NextExecution)
	assert.Equal(t, ExecutionState{LastExecution: summary.LastExecution, NextExecution: summary.NextExecution}, h.sched.State())
}

func TestRunOnceRejectsUnknownMode(t *testing.T) {
	h := newHarness(t)
	_, err := h.sched.RunOnce(context.Background(), RunRequest{Mode: "teachers"})
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestSimulate(t *testing.T) {
	h := newHarness(t)
	enr := h.enrollmentWithComedor(t)
	h.seed.Employee(func(e *schooldomain.Employee) {
		e.Terms = datatypes.NewJSONSlice([]schooldomain.Term{
			{Start: "2024-01-01", HourlyRate: 10, WorkedHours: 160, PaymentPeriod: schooldomain.PaymentPeriodBiweekly},
		})
	})
	ctx := context.Background()

	res, err := h.sched.Simulate(ctx, SimulationRequest{Year: 2024, Months: []int{3, 2, 3}, Tag: "plan-2024"})
	require.NoError(t, err)
	assert.Equal(t, "plan-2024", res.Tag)
	require.Len(t, res.Months, 2)
	assert.Equal(t, "2024-02", res.Months[0].MonthKey)
	assert.Equal(t, 4, res.Created)

	var sims []invoicedomain.Invoice
	require.NoError(t, h.db.Where("simulation = ?", true).Find(&sims).Error)
	require.Len(t, sims, 4)
	for _, inv := range sims {
		assert.Equal(t, "plan-2024", inv.SimulationTag)
		assert.Regexp(t, `^SIM-2024\d{2}-\d{6}$`, inv.InvoiceNumber)
	}

	reloaded, err := h.school.GetEnrollment(ctx, enr.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.BillingControl.Data())

	again, err := h.sched.Simulate(ctx, SimulationRequest{Year: 2024, Months: []int{2, 3}, Tag: "plan-2024"})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 4, again.Skipped)

	fresh, err := h.sched.Simulate(ctx, SimulationRequest{Year: 2024, Months: []int{2, 3}, Tag: "plan-2024", DeleteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, int64(4), fresh.Deleted)
	assert.Equal(t, 4, fresh.Created)

	// simulations never block the real run
	live, err := h.sched.RunOnce(ctx, RunRequest{Now: madrid(2024, time.March, 1), Mode: ModeEnrollments})
	require.NoError(t, err)
	assert.Equal(t, 1, live.Created)
}

func TestSimulateValidation(t *testing.T) {
	h := newHarness(t)
	no := false

	_, err := h.sched.Simulate(context.Background(), SimulationRequest{Year: 1999})
	require.ErrorIs(t, err, ErrInvalidSimulation)

	_, err = h.sched.Simulate(context.Background(), SimulationRequest{Year: 2024, Months: []int{13}})
	require.ErrorIs(t, err, ErrInvalidSimulation)

	_, err = h.sched.Simulate(context.Background(), SimulationRequest{Year: 2024, IncludeEnrollments: &no, IncludeEmployees: &no})
	require.ErrorIs(t, err, ErrInvalidSimulation)
}
