package domain

import "github.com/shopspring/decimal"

// TaxMode represents how tax is applied to the invoice total.
type TaxMode string

const (
	TaxModeExclusive TaxMode = "exclusive" // subtotal + tax
	TaxModeInclusive TaxMode = "inclusive" // subtotal already includes tax
)

// Policy is the VAT rule in force for a billing run. A zero rate disables VAT.
type Policy struct {
	Rate decimal.Decimal
	Mode TaxMode
}

func (p Policy) Validate() error {
	if p.Rate.IsNegative() {
		return ErrInvalidTaxRate
	}
	if p.Mode != "" && p.Mode != TaxModeExclusive && p.Mode != TaxModeInclusive {
		return ErrInvalidTaxMode
	}
	return nil
}

// Result keeps tax and total separate so each can be rounded and stored on its own.
type Result struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type Calculator interface {
	Calculate(subtotal decimal.Decimal) Result
}

// Resolver returns the calculator for the currently configured policy.
type Resolver interface {
	Current() Calculator
}
