// Package eligibility decides whether an enrollment or employee is due for
// billing on a given day.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
)

type Decision string

const (
	Eligible              Decision = "eligible"
	IneligibleInactive    Decision = "ineligible_inactive"
	IneligibleOutOfWindow Decision = "ineligible_out_of_window"
	IneligibleNoTerms     Decision = "ineligible_no_terms"
	IneligibleFrequency   Decision = "ineligible_frequency"
	AlreadyBilled         Decision = "already_billed"
)

func (d Decision) Eligible() bool { return d == Eligible }

// InvoiceChecker is the best-effort existence check run right before an
// invoice would be created.
type InvoiceChecker interface {
	ExistsForPeriod(ctx context.Context, category invoicedomain.Category, entityID snowflake.ID, start, end time.Time) (bool, error)
}

// Options relax the gates for simulation runs.
type Options struct {
	SkipLedger        bool
	SkipFrequency     bool
	SkipExistingCheck bool
}

type Engine struct {
	loc        *time.Location
	billingDay int
	checker    InvoiceChecker
}

func NewEngine(loc *time.Location, billingDay int, checker InvoiceChecker) *Engine {
	return &Engine{loc: orUTC(loc), billingDay: billingDay, checker: checker}
}

func (e *Engine) Location() *time.Location { return e.loc }

// EvaluateEnrollment walks the gates in order: active, school period
// window, ledger, existing invoice. A nil period is out of window.
func (e *Engine) EvaluateEnrollment(ctx context.Context, enr schooldomain.Enrollment, period *schooldomain.SchoolPeriod, now time.Time, opts Options) (Decision, error) {
	if !enr.IsActive {
		return IneligibleInactive, nil
	}
	if period == nil || !InSegments(period.Segments, now, e.loc) {
		return IneligibleOutOfWindow, nil
	}
	return e.checkBilled(ctx, invoicedomain.CategoryEnrollment, enr.ID, enr.BillingControl.Data(), now, opts)
}

// EvaluateEmployee walks the gates in order: active, terms present, last
// term window, payment frequency, ledger, existing invoice.
func (e *Engine) EvaluateEmployee(ctx context.Context, emp schooldomain.Employee, now time.Time, opts Options) (Decision, error) {
	if !emp.IsActive {
		return IneligibleInactive, nil
	}
	term, ok := emp.LastTerm()
	if !ok {
		return IneligibleNoTerms, nil
	}
	if !InTerm(term, now, e.loc) {
		return IneligibleOutOfWindow, nil
	}
	if !opts.SkipFrequency && !FrequencyFires(term.PaymentPeriod, now, e.billingDay, e.loc) {
		return IneligibleFrequency, nil
	}
	return e.checkBilled(ctx, invoicedomain.CategoryEmployee, emp.ID, emp.BillingControl.Data(), now, opts)
}

func (e *Engine) checkBilled(ctx context.Context, category invoicedomain.Category, entityID snowflake.ID, ledger schooldomain.BillingLedger, now time.Time, opts Options) (Decision, error) {
	if !opts.SkipLedger && ledger.Has(MonthKey(now, e.loc)) {
		return AlreadyBilled, nil
	}
	if opts.SkipExistingCheck || e.checker == nil {
		return Eligible, nil
	}
	start, end := MonthBounds(now, e.loc)
	exists, err := e.checker.ExistsForPeriod(ctx, category, entityID, start, end)
	if err != nil {
		return "", fmt.Errorf("check existing %s invoice: %w", category, err)
	}
	if exists {
		return AlreadyBilled, nil
	}
	return Eligible, nil
}
