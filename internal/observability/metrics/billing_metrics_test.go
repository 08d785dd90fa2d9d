package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBillingCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := newBilling(registry, Config{ServiceName: "escolar", Environment: "test"})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.IncInvoiceCreated("enrollment", false)
	m.IncInvoiceCreated("enrollment", false)
	m.IncSkipped("employee", "ineligible_frequency")
	m.IncExport("enrollment", "cuaderno", 3)
	m.ObserveRun("enrollments", "ok", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.invoicesCreated.WithLabelValues("enrollment", "false")); got != 2 {
		t.Fatalf("expected 2 invoices, got %v", got)
	}
	if got := testutil.ToFloat64(m.entitiesSkipped.WithLabelValues("employee", "ineligible_frequency")); got != 1 {
		t.Fatalf("expected 1 skip, got %v", got)
	}
	if got := testutil.ToFloat64(m.exportWarnings.WithLabelValues("enrollment")); got != 3 {
		t.Fatalf("expected 3 warnings, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("enrollments", "ok")); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
}

func TestBillingRegistersTwice(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := newBilling(registry, Config{}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := newBilling(registry, Config{}); err != nil {
		t.Fatalf("second registration should be tolerated: %v", err)
	}
}

func TestNilBillingIsSafe(t *testing.T) {
	var m *Billing
	m.IncInvoiceCreated("employee", true)
	m.IncSkipped("employee", "x")
	m.IncEntityError("employee")
	m.IncExport("employee", "xml", 1)
	m.ObserveRun("employees", "error", time.Second)
}
