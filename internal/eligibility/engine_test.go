package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) ExistsForPeriod(ctx context.Context, category invoicedomain.Category, entityID snowflake.ID, start, end time.Time) (bool, error) {
	args := m.Called(ctx, category, entityID, start, end)
	return args.Bool(0), args.Error(1)
}

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return loc
}

func at(loc *time.Location, y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 6, 0, 0, 0, loc)
}

func TestInSegmentsInclusiveBounds(t *testing.T) {
	loc := madrid(t)
	segments := []schooldomain.Segment{{Start: "2024-01-15", End: "2024-06-30", Year: 2024}}

	assert.True(t, InSegments(segments, at(loc, 2024, time.January, 15), loc))
	assert.True(t, InSegments(segments, at(loc, 2024, time.June, 30), loc))
	assert.False(t, InSegments(segments, at(loc, 2024, time.January, 14), loc))
	assert.False(t, InSegments(segments, at(loc, 2024, time.July, 1), loc))

	// late evening UTC on the last day is already the next day in Madrid
	assert.False(t, InSegments(segments, time.Date(2024, time.June, 30, 23, 30, 0, 0, time.UTC), loc))
}

func TestInSegmentsDisjoint(t *testing.T) {
	loc := time.UTC
	segments := []schooldomain.Segment{
		{Start: "2024-09-01", End: "2024-12-20"},
		{Start: "2025-01-08", End: "2025-06-20"},
	}
	assert.True(t, InSegments(segments, at(loc, 2024, time.October, 1), loc))
	assert.False(t, InSegments(segments, at(loc, 2025, time.January, 2), loc))
	assert.True(t, InSegments(segments, at(loc, 2025, time.March, 1), loc))
	assert.False(t, InSegments(nil, at(loc, 2025, time.March, 1), loc))
}

func TestInTermOpenBounds(t *testing.T) {
	loc := time.UTC
	day := at(loc, 2024, time.March, 1)

	assert.True(t, InTerm(schooldomain.Term{}, day, loc))
	assert.True(t, InTerm(schooldomain.Term{Start: "2024-03-01"}, day, loc))
	assert.False(t, InTerm(schooldomain.Term{Start: "2024-03-02"}, day, loc))
	assert.True(t, InTerm(schooldomain.Term{End: "2024-03-01"}, day, loc))
	assert.False(t, InTerm(schooldomain.Term{End: "2024-02-29"}, day, loc))
}

func TestFrequencyFires(t *testing.T) {
	loc := time.UTC

	for d := 1; d <= 31; d++ {
		day := at(loc, 2024, time.March, d)
		want := d == 1 || d == 2 || d == 15 || d == 16
		assert.Equal(t, want, FrequencyFires(schooldomain.PaymentPeriodBiweekly, day, 0, loc), "biweekly day %d", d)
	}

	// 2024-03-04 is a Monday
	assert.True(t, FrequencyFires(schooldomain.PaymentPeriodWeekly, at(loc, 2024, time.March, 4), 0, loc))
	assert.False(t, FrequencyFires(schooldomain.PaymentPeriodWeekly, at(loc, 2024, time.March, 5), 0, loc))

	assert.True(t, FrequencyFires(schooldomain.PaymentPeriodDaily, at(loc, 2024, time.March, 17), 0, loc))

	assert.True(t, FrequencyFires(schooldomain.PaymentPeriodAnnual, at(loc, 2024, time.January, 2), 0, loc))
	assert.False(t, FrequencyFires(schooldomain.PaymentPeriodAnnual, at(loc, 2024, time.January, 3), 0, loc))
	assert.False(t, FrequencyFires(schooldomain.PaymentPeriodAnnual, at(loc, 2024, time.February, 1), 0, loc))

	assert.True(t, FrequencyFires(schooldomain.PaymentPeriodMonthly, at(loc, 2024, time.March, 2), 0, loc))
	assert.False(t, FrequencyFires(schooldomain.PaymentPeriodMonthly, at(loc, 2024, time.March, 3), 0, loc))
	assert.True(t, FrequencyFires(schooldomain.PaymentPeriodMonthly, at(loc, 2024, time.March, 5), 5, loc))
	assert.False(t, FrequencyFires(schooldomain.PaymentPeriodMonthly, at(loc, 2024, time.March, 1), 5, loc))
	// day 31 clamps to the end of February
	assert.True(t, FrequencyFires(schooldomain.PaymentPeriodMonthly, at(loc, 2024, time.February, 29), 31, loc))
}

func TestMonthKeyAndBounds(t *testing.T) {
	loc := madrid(t)
	// 2024-03-31 23:30 UTC is already April in Madrid
	now := time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-04", MonthKey(now, loc))

	start, end := MonthBounds(now, loc)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, time.May, 1, 0, 0, 0, 0, loc), end)
}

func activeEnrollment(id snowflake.ID) schooldomain.Enrollment {
	return schooldomain.Enrollment{ID: id, IsActive: true}
}

func TestEvaluateEnrollment(t *testing.T) {
	loc := time.UTC
	now := at(loc, 2024, time.March, 1)
	period := &schooldomain.SchoolPeriod{Segments: datatypes.NewJSONSlice([]schooldomain.Segment{{Start: "2024-01-15", End: "2024-06-30"}})}
	start, end := MonthBounds(now, loc)

	t.Run("inactive", func(t *testing.T) {
		engine := NewEngine(loc, 0, nil)
		d, err := engine.EvaluateEnrollment(context.Background(), schooldomain.Enrollment{ID: 1}, period, now, Options{})
		require.NoError(t, err)
		assert.Equal(t, IneligibleInactive, d)
	})

	t.Run("no period", func(t *testing.T) {
		engine := NewEngine(loc, 0, nil)
		d, err := engine.EvaluateEnrollment(context.Background(), activeEnrollment(1), nil, now, Options{})
		require.NoError(t, err)
		assert.Equal(t, IneligibleOutOfWindow, d)
	})

	t.Run("ledger", func(t *testing.T) {
		checker := new(mockChecker)
		engine := NewEngine(loc, 0, checker)
		enr := activeEnrollment(1)
		enr.BillingControl = datatypes.NewJSONType(schooldomain.BillingLedger{"2024-03": {InvoiceDocumentID: "x"}})

		d, err := engine.EvaluateEnrollment(context.Background(), enr, period, now, Options{})
		require.NoError(t, err)
		assert.Equal(t, AlreadyBilled, d)
		checker.AssertNotCalled(t, "ExistsForPeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("existing invoice", func(t *testing.T) {
		checker := new(mockChecker)
		checker.On("ExistsForPeriod", mock.Anything, invoicedomain.CategoryEnrollment, snowflake.ID(1), start, end).Return(true, nil)
		engine := NewEngine(loc, 0, checker)

		d, err := engine.EvaluateEnrollment(context.Background(), activeEnrollment(1), period, now, Options{})
		require.NoError(t, err)
		assert.Equal(t, AlreadyBilled, d)
		checker.AssertExpectations(t)
	})

	t.Run("eligible", func(t *testing.T) {
		checker := new(mockChecker)
		checker.On("ExistsForPeriod", mock.Anything, invoicedomain.CategoryEnrollment, snowflake.ID(1), start, end).Return(false, nil)
		engine := NewEngine(loc, 0, checker)

		d, err := engine.EvaluateEnrollment(context.Background(), activeEnrollment(1), period, now, Options{})
		require.NoError(t, err)
		assert.Equal(t, Eligible, d)
	})

	t.Run("checker failure", func(t *testing.T) {
		checker := new(mockChecker)
		checker.On("ExistsForPeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("db down"))
		engine := NewEngine(loc, 0, checker)

		_, err := engine.EvaluateEnrollment(context.Background(), activeEnrollment(1), period, now, Options{})
		assert.Error(t, err)
	})
}

func TestEvaluateEmployee(t *testing.T) {
	loc := time.UTC
	employee := func(period schooldomain.PaymentPeriod) schooldomain.Employee {
		return schooldomain.Employee{
			ID:       7,
			IsActive: true,
			Terms: datatypes.NewJSONSlice([]schooldomain.Term{
				{Start: "2020-01-01", End: "2020-12-31", PaymentPeriod: schooldomain.PaymentPeriodMonthly},
				{Start: "2024-01-01", PaymentPeriod: period, HourlyRate: 10},
			}),
		}
	}

	engine := NewEngine(loc, 0, nil)

	d, err := engine.EvaluateEmployee(context.Background(), schooldomain.Employee{ID: 7, IsActive: true}, at(loc, 2024, time.March, 1), Options{})
	require.NoError(t, err)
	assert.Equal(t, IneligibleNoTerms, d)

	d, err = engine.EvaluateEmployee(context.Background(), employee(schooldomain.PaymentPeriodBiweekly), at(loc, 2024, time.March, 10), Options{})
	require.NoError(t, err)
	assert.Equal(t, IneligibleFrequency, d)

	d, err = engine.EvaluateEmployee(context.Background(), employee(schooldomain.PaymentPeriodBiweekly), at(loc, 2024, time.March, 10), Options{SkipFrequency: true})
	require.NoError(t, err)
	assert.Equal(t, Eligible, d)

	d, err = engine.EvaluateEmployee(context.Background(), employee(schooldomain.PaymentPeriodBiweekly), at(loc, 2024, time.March, 15), Options{})
	require.NoError(t, err)
	assert.Equal(t, Eligible, d)

	// only the last term counts: 2023 is before it
	d, err = engine.EvaluateEmployee(context.Background(), employee(schooldomain.PaymentPeriodMonthly), at(loc, 2023, time.March, 1), Options{})
	require.NoError(t, err)
	assert.Equal(t, IneligibleOutOfWindow, d)
}
