package domain

import "errors"

var (
	ErrNotFound           = errors.New("invoice_not_found")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrInvalidType        = errors.New("invalid_type")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidRelation    = errors.New("invalid_relation")
	ErrInvalidDates       = errors.New("invalid_dates")
	ErrEmptyAmounts       = errors.New("empty_amounts")
	ErrAmountOverflow     = errors.New("amount_overflow")
	ErrImmutableInvoice   = errors.New("invoice_immutable")
	ErrSimulationTag      = errors.New("invalid_simulation_tag")
	ErrNumberingExhausted = errors.New("invoice_numbering_exhausted")
)
