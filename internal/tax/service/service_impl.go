package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escolar/internal/config"
	taxdomain "github.com/smallbiznis/escolar/internal/tax/domain"
	"go.uber.org/fx"
)

// Places is the precision of every stored money value.
const Places = 2

// Engine applies a tax policy with half-up rounding to two decimals.
type Engine struct {
	policy taxdomain.Policy
}

func NewEngine(policy taxdomain.Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.Mode == "" {
		policy.Mode = taxdomain.TaxModeExclusive
	}
	return &Engine{policy: policy}, nil
}

// Calculate never fails: negative subtotals are treated as zero.
func (e *Engine) Calculate(subtotal decimal.Decimal) taxdomain.Result {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	subtotal = Round(subtotal)

	var tax decimal.Decimal
	switch e.policy.Mode {
	case taxdomain.TaxModeInclusive:
		tax = ComputeTaxInclusive(subtotal, e.policy.Rate)
		return taxdomain.Result{Subtotal: subtotal.Sub(tax), Tax: tax, Total: subtotal}
	default:
		tax = ComputeTaxExclusive(subtotal, e.policy.Rate)
		return taxdomain.Result{Subtotal: subtotal, Tax: tax, Total: Round(subtotal.Add(tax))}
	}
}

// Round is half-up for the non-negative values billing produces.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(Places)
}

// ComputeTaxExclusive calculates tax added on top of subtotal.
func ComputeTaxExclusive(subtotal, rate decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return Round(subtotal.Mul(rate))
}

// ComputeTaxInclusive calculates the tax portion already included in subtotal.
func ComputeTaxInclusive(subtotal, rate decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return Round(subtotal.Mul(rate).Div(decimal.NewFromInt(1).Add(rate)))
}

type ResolverParam struct {
	fx.In

	Billing *config.BillingConfigHolder
}

type resolver struct {
	billing *config.BillingConfigHolder
}

func NewResolver(p ResolverParam) taxdomain.Resolver {
	return &resolver{billing: p.Billing}
}

// Current reads the VAT rate on every call so config reloads apply to the next invoice.
func (r *resolver) Current() taxdomain.Calculator {
	cfg := r.billing.Get()
	engine, err := NewEngine(taxdomain.Policy{
		Rate: decimal.NewFromFloat(cfg.VATRate),
		Mode: taxdomain.TaxMode(cfg.VATMode),
	})
	if err != nil {
		engine, _ = NewEngine(taxdomain.Policy{Rate: decimal.Zero})
	}
	return engine
}
