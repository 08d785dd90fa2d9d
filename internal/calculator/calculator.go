// Package calculator derives itemized charges for enrollments and salaries
// for employees.
package calculator

import (
	"errors"
	"math"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escolar/internal/amount"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
)

const (
	ConceptMatricula  = "matricula"
	ConceptComedor    = "comedor"
	ConceptTransporte = "transporte"
	ConceptMaterial   = "material"

	ConceptBaseSalary = "Salario base"

	// DefaultWorkedHours is the monthly baseline when a term has no hours.
	DefaultWorkedHours = 160.0
	// WorkingDaysPerMonth divides the monthly salary for daily payments.
	WorkingDaysPerMonth = 22
)

var (
	// ErrNothingToBill marks an entity whose charges add up to zero.
	ErrNothingToBill = errors.New("nothing_to_bill")
	// ErrAmountOverflow marks charges that do not fit a float64 amount.
	ErrAmountOverflow = errors.New("amount_overflow")
)

// conceptRules map slug fragments to fiscal reporting buckets, first match wins.
var conceptRules = []struct {
	fragment string
	concept  string
}{
	{"matric", ConceptMatricula},
	{"comed", ConceptComedor},
	{"transp", ConceptTransporte},
	{"material", ConceptMaterial},
}

// ServiceConcept classifies a service title. Unknown titles keep their trimmed text.
func ServiceConcept(title string) string {
	s := slug.Make(title)
	for _, rule := range conceptRules {
		if strings.Contains(s, rule.fragment) {
			return rule.concept
		}
	}
	return strings.TrimSpace(title)
}

// Result is the normalized line list and its decimal subtotal.
type Result struct {
	Lines    []amount.Line
	Subtotal decimal.Decimal
}

type Calculator struct {
	defaultWorkedHours float64
}

func New(defaultWorkedHours float64) *Calculator {
	if defaultWorkedHours <= 0 || math.IsNaN(defaultWorkedHours) || math.IsInf(defaultWorkedHours, 0) {
		defaultWorkedHours = DefaultWorkedHours
	}
	return &Calculator{defaultWorkedHours: defaultWorkedHours}
}

// Enrollment sums active services by concept and adds every additional
// amount under its own label. It returns ErrNothingToBill when the
// subtotal is zero.
func (c *Calculator) Enrollment(services []schooldomain.Service, additional map[string]any) (Result, error) {
	lines := make([]amount.Line, 0, len(services)+len(additional))
	for _, svc := range services {
		if svc.ServiceStatus != schooldomain.ServiceStatusActive {
			continue
		}
		lines = append(lines, amount.Line{Concept: ServiceConcept(svc.Title), Amount: svc.Amount})
	}
	lines = append(lines, additionalLines(additional)...)
	return finish(lines)
}

// Employee bills the last contract term plus additional amounts.
func (c *Calculator) Employee(emp schooldomain.Employee, additional map[string]any) (Result, error) {
	term, ok := emp.LastTerm()
	if !ok {
		return Result{}, ErrNothingToBill
	}
	base := c.BaseSalary(term)
	if !amount.Finite(base) {
		return Result{}, ErrAmountOverflow
	}
	lines := []amount.Line{{Concept: ConceptBaseSalary, Amount: base.InexactFloat64()}}
	lines = append(lines, additionalLines(additional)...)
	return finish(lines)
}

// BaseSalary is hourlyRate x workedHours scaled by the payment period.
// Annual terms reuse the monthly figure.
func (c *Calculator) BaseSalary(term schooldomain.Term) decimal.Decimal {
	if !amount.Valid(term.HourlyRate) {
		return decimal.Zero
	}
	hours := term.WorkedHours
	if hours <= 0 || !amount.Valid(hours) {
		hours = c.defaultWorkedHours
	}
	monthly := decimal.NewFromFloat(term.HourlyRate).Mul(decimal.NewFromFloat(hours))
	return monthly.Mul(PeriodFactor(term.PaymentPeriod)).Round(2)
}

// PeriodFactor scales a monthly amount to one payment of the period.
func PeriodFactor(period schooldomain.PaymentPeriod) decimal.Decimal {
	switch period {
	case schooldomain.PaymentPeriodBiweekly:
		return decimal.NewFromFloat(0.5)
	case schooldomain.PaymentPeriodWeekly:
		return decimal.NewFromFloat(0.25)
	case schooldomain.PaymentPeriodDaily:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(WorkingDaysPerMonth))
	default:
		return decimal.NewFromInt(1)
	}
}

// additionalLines keeps non-zero entries in sorted key order.
func additionalLines(additional map[string]any) []amount.Line {
	normalized := amount.Normalize(additional)
	out := make([]amount.Line, 0, len(normalized))
	for _, line := range normalized {
		if line.Amount == 0 {
			continue
		}
		out = append(out, line)
	}
	return out
}

func finish(lines []amount.Line) (Result, error) {
	normalized := amount.NormalizeLines(lines)
	subtotal := amount.Sum(normalized)
	if !amount.Finite(subtotal) {
		return Result{}, ErrAmountOverflow
	}
	if !subtotal.IsPositive() {
		return Result{}, ErrNothingToBill
	}
	return Result{Lines: normalized, Subtotal: subtotal}, nil
}
