package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels attached to every billing series.
type Config struct {
	ServiceName string
	Environment string
}

// Billing captures recurring billing and export health signals.
// A nil *Billing is valid and records nothing.
type Billing struct {
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	invoicesCreated *prometheus.CounterVec
	entitiesSkipped *prometheus.CounterVec
	entityErrors    *prometheus.CounterVec
	exports         *prometheus.CounterVec
	exportWarnings  *prometheus.CounterVec
	adminThrottled  *prometheus.CounterVec
}

// NewBilling registers billing metrics on the default registerer.
func NewBilling(cfg Config) (*Billing, error) {
	return newBilling(prometheus.DefaultRegisterer, cfg)
}

func newBilling(registerer prometheus.Registerer, cfg Config) (*Billing, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "escolar"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	m := &Billing{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "escolar_billing_runs_total",
			Help:        "Billing runs by mode and outcome.",
			ConstLabels: constLabels,
		}, []string{"mode", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "escolar_billing_run_duration_seconds",
			Help:        "Wall time of a billing run.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"mode"}),
		invoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "escolar_billing_invoices_created_total",
			Help:        "Invoices created by the billing orchestrator.",
			ConstLabels: constLabels,
		}, []string{"category", "simulation"}),
		entitiesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "escolar_billing_entities_skipped_total",
			Help:        "Billable entities skipped, by reason.",
			ConstLabels: constLabels,
		}, []string{"category", "reason"}),
		entityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "escolar_billing_entity_errors_total",
			Help:        "Per-entity failures that did not abort the run.",
			ConstLabels: constLabels,
		}, []string{"category"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "escolar_export_batches_total",
			Help:        "Financial batch exports produced.",
			ConstLabels: constLabels,
		}, []string{"type", "format"}),
		exportWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "escolar_export_warnings_total",
			Help:        "Per-invoice warnings recorded in export notes.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		adminThrottled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "escolar_admin_throttled_total",
			Help:        "Admin triggers refused by the rate limiter.",
			ConstLabels: constLabels,
		}, []string{"action"}),
	}

	collectors := []prometheus.Collector{
		m.runs, m.runDuration, m.invoicesCreated, m.entitiesSkipped,
		m.entityErrors, m.exports, m.exportWarnings, m.adminThrottled,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = already
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Billing) ObserveRun(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(mode, outcome).Inc()
	m.runDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Billing) IncInvoiceCreated(category string, simulation bool) {
	if m == nil {
		return
	}
	sim := "false"
	if simulation {
		sim = "true"
	}
	m.invoicesCreated.WithLabelValues(category, sim).Inc()
}

func (m *Billing) IncSkipped(category, reason string) {
	if m == nil {
		return
	}
	m.entitiesSkipped.WithLabelValues(category, reason).Inc()
}

func (m *Billing) IncEntityError(category string) {
	if m == nil {
		return
	}
	m.entityErrors.WithLabelValues(category).Inc()
}

func (m *Billing) IncExport(exportType, format string, warnings int) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(exportType, format).Inc()
	if warnings > 0 {
		m.exportWarnings.WithLabelValues(exportType).Add(float64(warnings))
	}
}

func (m *Billing) IncAdminThrottled(action string) {
	if m == nil {
		return
	}
	m.adminThrottled.WithLabelValues(action).Inc()
}
