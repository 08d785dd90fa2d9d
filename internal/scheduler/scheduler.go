// Package scheduler drives recurring billing: it pages through active
// enrollments and employees, decides eligibility and creates one invoice per
// entity and month.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/escolar/internal/calculator"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	"github.com/smallbiznis/escolar/internal/eligibility"
	execlogdomain "github.com/smallbiznis/escolar/internal/executionlog/domain"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/escolar/internal/observability/metrics"
	"github.com/smallbiznis/escolar/internal/ratelimit"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	runLockKey       = "escolar:billing:run"
	defaultBatchSize = 500
)

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Billing    *config.BillingConfigHolder
	School     schooldomain.Repository
	Invoices   invoicedomain.Repository
	InvoiceSvc invoicedomain.Service
	ExecLog    execlogdomain.Service
	Locker     *ratelimit.Locker   `optional:"true"`
	Metrics    *obsmetrics.Billing `optional:"true"`
	Config     Config              `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	billing    *config.BillingConfigHolder
	school     schooldomain.Repository
	invoices   invoicedomain.Repository
	invoiceSvc invoicedomain.Service
	execLog    execlogdomain.Service
	locker     *ratelimit.Locker
	metrics    *obsmetrics.Billing
	validate   *validator.Validate

	mu    sync.Mutex
	state ExecutionState
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Billing == nil || p.School == nil || p.Invoices == nil || p.InvoiceSvc == nil || p.ExecLog == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		billing:    p.Billing,
		school:     p.School,
		invoices:   p.Invoices,
		invoiceSvc: p.InvoiceSvc,
		execLog:    p.ExecLog,
		locker:     p.Locker,
		metrics:    p.Metrics,
		validate:   validator.New(),
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.startRun(ctx, name, batchSize)
	if owner {
		s.logRunStart(ctx, run)
	}

	err := fn(ctx)
	if owner {
		if err != nil && run.failures == 0 {
			run.failed()
		}
		s.logRunFinish(ctx, run)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger(ctx).Warn("billing pass timed out", zap.Duration("timeout", timeout), zap.Error(err))
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce bills every due entity for the month containing req.Now. Per-entity
// failures land in Summary.Errors; fetch failures abort the run.
func (s *Scheduler) RunOnce(ctx context.Context, req RunRequest) (Summary, error) {
	mode, err := parseMode(req.Mode)
	if err != nil {
		return Summary{}, err
	}
	cfg := s.billing.Get()
	if req.Schedule != nil {
		cfg = *req.Schedule
	}
	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}

	release, err := s.obtainRunLock(ctx, cfg)
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = release(context.Background()) }()

	started := time.Now()
	p := s.newPass(cfg, now, eligibility.Options{}, "")
	summary := newSummary(mode, p.monthKey)

	runErr := s.runPass(ctx, mode, p, summary)

	summary.LastExecution = now.UTC()
	summary.NextExecution = NextExecution(cfg, now)
	s.setState(ExecutionState{LastExecution: summary.LastExecution, NextExecution: summary.NextExecution})

	outcome := "success"
	switch {
	case runErr != nil:
		outcome = "failed"
	case len(summary.Errors) > 0:
		outcome = "partial"
	}
	s.metrics.ObserveRun(string(mode), outcome, time.Since(started))
	s.recordSummary(ctx, "Facturación recurrente", summary, runErr)

	if runErr != nil {
		s.log.Error("billing run failed", zap.String("mode", string(mode)), zap.Error(runErr))
		return *summary, runErr
	}
	return *summary, nil
}

func (s *Scheduler) runPass(ctx context.Context, mode Mode, p *pass, summary *Summary) error {
	batch := p.cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	if mode.enrollments() {
		if err := s.runJob(ctx, "billing_enrollments", batch, s.cfg.JobTimeout, func(ctx context.Context) error {
			return s.billEnrollments(ctx, p, batch, summary)
		}); err != nil {
			return err
		}
	}
	if mode.employees() {
		if err := s.runJob(ctx, "billing_employees", batch, s.cfg.JobTimeout, func(ctx context.Context) error {
			return s.billEmployees(ctx, p, batch, summary)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) obtainRunLock(ctx context.Context, cfg config.BillingConfig) (func(context.Context) error, error) {
	ttl := cfg.RunLockTTL
	if ttl <= 0 {
		ttl = config.DefaultBillingConfig().RunLockTTL
	}
	release, err := s.locker.Obtain(ctx, runLockKey, ttl)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		return release, ErrRunInProgress
	}
	if err != nil {
		return release, fmt.Errorf("obtain run lock: %w", err)
	}
	return release, nil
}

func (s *Scheduler) recordSummary(ctx context.Context, title string, summary *Summary, runErr error) {
	level := execlogdomain.LevelInfo
	message := fmt.Sprintf("%s: %d facturas creadas, %d omitidas, %d errores",
		summary.MonthKey, summary.Created, summary.Skipped, len(summary.Errors))
	if len(summary.Errors) > 0 {
		level = execlogdomain.LevelWarning
	}
	if runErr != nil {
		level = execlogdomain.LevelError
		message = fmt.Sprintf("%s (abortada: %v)", message, runErr)
	}
	payload := map[string]any{
		"mode":        string(summary.Mode),
		"month":       summary.MonthKey,
		"created":     summary.Created,
		"skipped":     summary.Skipped,
		"skipReasons": summary.SkipReasons,
		"errors":      summary.Errors,
	}
	if !summary.NextExecution.IsZero() {
		payload["nextExecution"] = summary.NextExecution.Format(time.RFC3339)
	}
	if err := s.execLog.Log(ctx, level, title, message, payload); err != nil {
		s.log.Warn("write execution log failed", zap.Error(err))
	}
}

// State returns the last and next execution tracked by RunForever.
func (s *Scheduler) State() ExecutionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st ExecutionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// RunForever checks on every tick whether the next execution is due.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	next := s.State().NextExecution
	if next.IsZero() {
		next = NextExecution(s.billing.Get(), s.clock.Now())
		s.setState(ExecutionState{NextExecution: next})
	}
	s.log.Info("billing schedule armed", zap.Time("next_execution", next))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := s.clock.Now()
		if now.Before(next) {
			continue
		}
		summary, err := s.RunOnce(ctx, RunRequest{Now: now})
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.log.Info("billing run skipped, another runner holds the lock")
			next = NextExecution(s.billing.Get(), now)
			s.setState(ExecutionState{LastExecution: s.State().LastExecution, NextExecution: next})
		case err != nil:
			s.log.Warn("scheduler run failed", zap.Error(err))
			next = s.State().NextExecution
		default:
			next = summary.NextExecution
		}
	}
}

// pass carries everything fixed for one billing instant.
type pass struct {
	cfg        config.BillingConfig
	now        time.Time
	loc        *time.Location
	monthKey   string
	monthStart time.Time
	monthEnd   time.Time
	engine     *eligibility.Engine
	calc       *calculator.Calculator
	opts       eligibility.Options
	tag        string
	periods    map[snowflake.ID]*schooldomain.SchoolPeriod
}

func (s *Scheduler) newPass(cfg config.BillingConfig, now time.Time, opts eligibility.Options, tag string) *pass {
	loc := cfg.Location()
	start, end := eligibility.MonthBounds(now, loc)
	return &pass{
		cfg:        cfg,
		now:        now,
		loc:        loc,
		monthKey:   eligibility.MonthKey(now, loc),
		monthStart: start,
		monthEnd:   end,
		engine:     eligibility.NewEngine(loc, cfg.Day, s.invoices),
		calc:       calculator.New(cfg.DefaultWorkedHours),
		opts:       opts,
		tag:        tag,
		periods:    map[snowflake.ID]*schooldomain.SchoolPeriod{},
	}
}

func (p *pass) simulation() bool { return p.tag != "" }
