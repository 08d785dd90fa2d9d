package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/escolar/internal/eligibility"
	"go.uber.org/zap"
)

// Simulate replays the billing run on the scheduled instant of each
// requested month and stores the result as simulation invoices tagged with
// req.Tag. Ledgers, the frequency gate and the real-invoice check are
// bypassed; a month already simulated under the same tag is skipped.
func (s *Scheduler) Simulate(ctx context.Context, req SimulationRequest) (SimulationResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return SimulationResult{}, fmt.Errorf("%w: %v", ErrInvalidSimulation, err)
	}

	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		tag = fmt.Sprintf("simulation-%d", req.Year)
	}
	mode, err := simulationMode(req)
	if err != nil {
		return SimulationResult{}, err
	}
	months := normalizeMonths(req.Months)

	cfg := s.billing.Get()
	release, err := s.obtainRunLock(ctx, cfg)
	if err != nil {
		return SimulationResult{}, err
	}
	defer func() { _ = release(context.Background()) }()

	result := SimulationResult{Tag: tag, Months: make([]Summary, 0, len(months))}
	if req.DeleteExisting {
		deleted, err := s.invoices.DeleteSimulation(ctx, tag)
		if err != nil {
			return result, fmt.Errorf("delete simulation %s: %w", tag, err)
		}
		result.Deleted = deleted
		s.log.Info("simulation invoices deleted", zap.String("tag", tag), zap.Int64("deleted", deleted))
	}

	opts := eligibility.Options{SkipLedger: true, SkipFrequency: true, SkipExistingCheck: true}
	for _, month := range months {
		started := time.Now()
		now := BillingInstant(cfg, req.Year, time.Month(month))
		p := s.newPass(cfg, now, opts, tag)
		summary := newSummary(mode, p.monthKey)

		runErr := s.runPass(ctx, mode, p, summary)
		summary.LastExecution = now.UTC()

		outcome := "success"
		if runErr != nil {
			outcome = "failed"
		}
		s.metrics.ObserveRun("simulation", outcome, time.Since(started))
		s.recordSummary(ctx, "Simulación de facturación", summary, runErr)

		result.Created += summary.Created
		result.Skipped += summary.Skipped
		result.Months = append(result.Months, *summary)
		if runErr != nil {
			return result, runErr
		}
	}
	return result, nil
}

func simulationMode(req SimulationRequest) (Mode, error) {
	enrollments := req.IncludeEnrollments == nil || *req.IncludeEnrollments
	employees := req.IncludeEmployees == nil || *req.IncludeEmployees
	switch {
	case enrollments && employees:
		return ModeAll, nil
	case enrollments:
		return ModeEnrollments, nil
	case employees:
		return ModeEmployees, nil
	}
	return "", fmt.Errorf("%w: nothing to include", ErrInvalidSimulation)
}

func normalizeMonths(months []int) []int {
	if len(months) == 0 {
		return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}
	seen := map[int]bool{}
	out := make([]int, 0, len(months))
	for _, m := range months {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Ints(out)
	return out
}
