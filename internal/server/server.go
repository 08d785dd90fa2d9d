// Package server exposes the admin HTTP surface: billing triggers, SEPA
// exports, manual invoice maintenance and the snapshot backfill.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/escolar/internal/config"
	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	"github.com/smallbiznis/escolar/internal/observability"
	obslogger "github.com/smallbiznis/escolar/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/escolar/internal/observability/metrics"
	obstracing "github.com/smallbiznis/escolar/internal/observability/tracing"
	"github.com/smallbiznis/escolar/internal/ratelimit"
	"github.com/smallbiznis/escolar/internal/scheduler"
	"github.com/smallbiznis/escolar/internal/snapshot"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultAddr = ":8080"

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// BillingRunner is the part of the scheduler the admin surface triggers.
type BillingRunner interface {
	RunOnce(ctx context.Context, req scheduler.RunRequest) (scheduler.Summary, error)
	Simulate(ctx context.Context, req scheduler.SimulationRequest) (scheduler.SimulationResult, error)
}

type SnapshotBackfiller interface {
	Run(ctx context.Context, req snapshot.BackfillRequest) (snapshot.BackfillResult, error)
}

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.RequestLogConfig{
		Debug:    obsCfg.Debug(),
		Classify: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = defaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	log        *zap.Logger
	billing    BillingRunner
	exporter   exportdomain.Service
	invoiceSvc invoicedomain.Service
	backfiller SnapshotBackfiller
	limiter    *ratelimit.AdminLimiter
	metrics    *obsmetrics.Billing
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Log        *zap.Logger
	Scheduler  *scheduler.Scheduler
	Exporter   exportdomain.Service
	InvoiceSvc invoicedomain.Service
	Backfiller *snapshot.Backfiller
	Limiter    *ratelimit.AdminLimiter `optional:"true"`
	Metrics    *obsmetrics.Billing     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		log:        p.Log.Named("http.server"),
		billing:    p.Scheduler,
		exporter:   p.Exporter,
		invoiceSvc: p.InvoiceSvc,
		backfiller: p.Backfiller,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
	}
	svc.registerAdminRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/billing/run", s.AdminRateLimit("billing_run"), s.RunBilling)
	admin.POST("/billing/simulate", s.AdminRateLimit("billing_simulate"), s.SimulateBilling)

	admin.GET("/exports/sepa", s.AdminRateLimit("export_sepa"), s.ExportSEPA)

	admin.POST("/invoices", s.CreateInvoice)
	admin.POST("/invoices/backfill-snapshots", s.AdminRateLimit("backfill_snapshots"), s.BackfillSnapshots)
	admin.PATCH("/invoices/:documentId", s.UpdateInvoice)
	admin.DELETE("/invoices/:documentId", s.DeleteInvoice)
}
