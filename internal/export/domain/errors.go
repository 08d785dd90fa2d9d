package domain

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid_export_request")
	ErrCompanyMissing    = errors.New("company_missing")
	ErrCompanyNIFMissing = errors.New("company_nif_missing")
	ErrUploadUnavailable = errors.New("upload_unavailable")
)
