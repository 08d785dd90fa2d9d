package calculator

import (
	"math"
	"testing"

	"github.com/smallbiznis/escolar/internal/amount"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestServiceConcept(t *testing.T) {
	cases := map[string]string{
		"Matrícula 2024":      ConceptMatricula,
		"Comedor":             ConceptComedor,
		"COMEDOR escolar":     ConceptComedor,
		"Transporte ruta A":   ConceptTransporte,
		"Material didáctico":  ConceptMaterial,
		"  Clases de piano  ": "Clases de piano",
	}
	for title, want := range cases {
		assert.Equal(t, want, ServiceConcept(title), title)
	}
}

func TestEnrollmentScenario(t *testing.T) {
	calc := New(0)
	services := []schooldomain.Service{
		{Title: "Comedor", Amount: 120, ServiceStatus: schooldomain.ServiceStatusActive},
		{Title: "Transporte", Amount: 40, ServiceStatus: schooldomain.ServiceStatusCanceled},
		{Title: "Piano", Amount: 25, ServiceStatus: schooldomain.ServiceStatusInactive},
	}

	res, err := calc.Enrollment(services, map[string]any{"Material extra": 15.0, "Descuento": 0.0})
	require.NoError(t, err)
	assert.Equal(t, []amount.Line{
		{Concept: "comedor", Amount: 120},
		{Concept: "Material extra", Amount: 15},
	}, res.Lines)
	assert.Equal(t, "135.00", res.Subtotal.StringFixed(2))
}

func TestEnrollmentMergesSameBucket(t *testing.T) {
	res, err := New(0).Enrollment([]schooldomain.Service{
		{Title: "Comedor mediodía", Amount: 100, ServiceStatus: schooldomain.ServiceStatusActive},
		{Title: "Comedor desayuno", Amount: 30, ServiceStatus: schooldomain.ServiceStatusActive},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []amount.Line{{Concept: "comedor", Amount: 130}}, res.Lines)
}

func TestEnrollmentNothingToBill(t *testing.T) {
	_, err := New(0).Enrollment(nil, map[string]any{"x": -10.0})
	assert.ErrorIs(t, err, ErrNothingToBill)

	_, err = New(0).Enrollment([]schooldomain.Service{{Title: "Comedor", Amount: 0, ServiceStatus: schooldomain.ServiceStatusActive}}, nil)
	assert.ErrorIs(t, err, ErrNothingToBill)
}

func TestEnrollmentOverflow(t *testing.T) {
	_, err := New(0).Enrollment([]schooldomain.Service{
		{Title: "Comedor", Amount: math.MaxFloat64, ServiceStatus: schooldomain.ServiceStatusActive},
		{Title: "Transporte", Amount: math.MaxFloat64, ServiceStatus: schooldomain.ServiceStatusActive},
	}, nil)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func employeeWith(term schooldomain.Term) schooldomain.Employee {
	return schooldomain.Employee{IsActive: true, Terms: datatypes.NewJSONSlice([]schooldomain.Term{term})}
}

func TestEmployeeMonthlyScenario(t *testing.T) {
	emp := employeeWith(schooldomain.Term{HourlyRate: 10, WorkedHours: 160, PaymentPeriod: schooldomain.PaymentPeriodMonthly})

	res, err := New(160).Employee(emp, map[string]any{"Bonus": 50.0})
	require.NoError(t, err)
	assert.Equal(t, []amount.Line{
		{Concept: ConceptBaseSalary, Amount: 1600},
		{Concept: "Bonus", Amount: 50},
	}, res.Lines)
	assert.Equal(t, "1650.00", res.Subtotal.StringFixed(2))
}

func TestEmployeePeriodFactors(t *testing.T) {
	calc := New(0)
	cases := map[schooldomain.PaymentPeriod]string{
		schooldomain.PaymentPeriodMonthly:  "1600.00",
		schooldomain.PaymentPeriodBiweekly: "800.00",
		schooldomain.PaymentPeriodWeekly:   "400.00",
		schooldomain.PaymentPeriodDaily:    "72.73",
		schooldomain.PaymentPeriodAnnual:   "1600.00",
	}
	for period, want := range cases {
		// zero hours fall back to the 160h baseline
		got := calc.BaseSalary(schooldomain.Term{HourlyRate: 10, PaymentPeriod: period})
		assert.Equal(t, want, got.StringFixed(2), string(period))
	}
}

func TestEmployeeWithoutRate(t *testing.T) {
	_, err := New(0).Employee(employeeWith(schooldomain.Term{PaymentPeriod: schooldomain.PaymentPeriodMonthly}), nil)
	assert.ErrorIs(t, err, ErrNothingToBill)

	_, err = New(0).Employee(schooldomain.Employee{IsActive: true}, map[string]any{"Bonus": 50.0})
	assert.ErrorIs(t, err, ErrNothingToBill)
}

func TestEmployeeOverflow(t *testing.T) {
	emp := employeeWith(schooldomain.Term{HourlyRate: 10, WorkedHours: 160, PaymentPeriod: schooldomain.PaymentPeriodMonthly})

	// case-only duplicates keep the first finite sum, distinct keys overflow the subtotal
	_, err := New(0).Employee(emp, map[string]any{"Bonus": 1.7e308, "bonus ": 1.7e308})
	require.NoError(t, err)

	_, err = New(0).Employee(emp, map[string]any{"Bonus": 1.7e308, "Plus": 1.7e308})
	assert.ErrorIs(t, err, ErrAmountOverflow)

	huge := employeeWith(schooldomain.Term{HourlyRate: math.MaxFloat64, WorkedHours: 160, PaymentPeriod: schooldomain.PaymentPeriodMonthly})
	_, err = New(0).Employee(huge, nil)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}
