package sepa

import "errors"

var (
	ErrRecordLength  = errors.New("invalid_record_length")
	ErrRecordCode    = errors.New("unexpected_record_code")
	ErrFieldOverflow = errors.New("field_overflow")
	ErrNotNumeric    = errors.New("field_not_numeric")
	ErrTotalMismatch = errors.New("total_mismatch")
	ErrEmptyBatch    = errors.New("empty_batch")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidNIF    = errors.New("invalid_nif")
)
