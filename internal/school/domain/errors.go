package domain

import "errors"

var (
	ErrNotFound        = errors.New("not_found")
	ErrCompanyNotFound = errors.New("company_not_found")
	ErrInvalidID       = errors.New("invalid_id")
)
