package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escolar/internal/config"
	taxdomain "github.com/smallbiznis/escolar/internal/tax/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateZeroRateRoundsHalfUp(t *testing.T) {
	engine, err := NewEngine(taxdomain.Policy{Rate: decimal.Zero})
	require.NoError(t, err)

	res := engine.Calculate(decimal.NewFromFloat(123.456))
	assert.Equal(t, "123.46", res.Total.StringFixed(2))
	assert.True(t, res.Tax.IsZero())

	res = engine.Calculate(decimal.RequireFromString("0.125"))
	assert.Equal(t, "0.13", res.Total.StringFixed(2))
}

func TestCalculateExclusiveRate(t *testing.T) {
	engine, err := NewEngine(taxdomain.Policy{Rate: decimal.RequireFromString("0.21")})
	require.NoError(t, err)

	res := engine.Calculate(decimal.NewFromInt(100))
	assert.Equal(t, "21.00", res.Tax.StringFixed(2))
	assert.Equal(t, "121.00", res.Total.StringFixed(2))
}

func TestCalculateInclusiveRate(t *testing.T) {
	engine, err := NewEngine(taxdomain.Policy{Rate: decimal.RequireFromString("0.21"), Mode: taxdomain.TaxModeInclusive})
	require.NoError(t, err)

	res := engine.Calculate(decimal.NewFromInt(121))
	assert.Equal(t, "21.00", res.Tax.StringFixed(2))
	assert.Equal(t, "100.00", res.Subtotal.StringFixed(2))
	assert.Equal(t, "121.00", res.Total.StringFixed(2))
}

func TestCalculateNegativeSubtotal(t *testing.T) {
	engine, err := NewEngine(taxdomain.Policy{Rate: decimal.RequireFromString("0.21")})
	require.NoError(t, err)
	res := engine.Calculate(decimal.NewFromInt(-5))
	assert.True(t, res.Total.IsZero())
}

func TestNewEngineRejectsNegativeRate(t *testing.T) {
	_, err := NewEngine(taxdomain.Policy{Rate: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, taxdomain.ErrInvalidTaxRate)
}

func TestResolverFollowsBillingConfig(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.VATRate = 0.1
	r := NewResolver(ResolverParam{Billing: config.NewStaticBillingConfigHolder(cfg)})

	res := r.Current().Calculate(decimal.NewFromInt(50))
	assert.Equal(t, "55.00", res.Total.StringFixed(2))
}
