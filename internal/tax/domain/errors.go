package domain

import "errors"

var (
	ErrInvalidTaxMode = errors.New("invalid_tax_mode")
	ErrInvalidTaxRate = errors.New("invalid_tax_rate")
)
