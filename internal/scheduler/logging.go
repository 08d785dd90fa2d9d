package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/escolar/internal/observability/logger"
	"go.uber.org/zap"
)

// billingRun counts what one pass over enrollments or employees touched.
// It rides on the context so nested passes report into the outer run.
type billingRun struct {
	pass      string
	runID     string
	batchSize int
	startedAt time.Time
	entities  int
	failures  int
}

type billingRunKey struct{}

func (r *billingRun) seen(n int) {
	if r != nil && n > 0 {
		r.entities += n
	}
}

func (r *billingRun) failed() {
	if r != nil {
		r.failures++
	}
}

// startRun attaches a new billingRun unless ctx already carries one. owner
// reports whether the caller created it and must log its end.
func (s *Scheduler) startRun(ctx context.Context, pass string, batchSize int) (context.Context, *billingRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := runFrom(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &billingRun{
		pass:      pass,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, billingRunKey{}, run)
	ctx = obslogger.WithRun(ctx, pass, run.runID)
	return ctx, run, true
}

func runFrom(ctx context.Context) *billingRun {
	if ctx == nil {
		return nil
	}
	run, _ := ctx.Value(billingRunKey{}).(*billingRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logRunStart(ctx context.Context, run *billingRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("billing.pass.start", zap.Int("batch_size", run.batchSize))
}

// logRunFinish warns when any entity of the pass failed.
func (s *Scheduler) logRunFinish(ctx context.Context, run *billingRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.Duration("elapsed", time.Since(run.startedAt)),
		zap.Int("entities", run.entities),
		zap.Int("entity_failures", run.failures),
	}
	if run.failures > 0 {
		s.logger(ctx).Warn("billing.pass.finish", fields...)
		return
	}
	s.logger(ctx).Info("billing.pass.finish", fields...)
}

func (s *Scheduler) logEntityError(ctx context.Context, msg, category, entityID string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	runFrom(ctx).failed()
	base := []zap.Field{
		zap.String("category", category),
		zap.String("entity_id", entityID),
		zap.Error(err),
	}
	s.logger(ctx).Error(msg, append(base, fields...)...)
}
