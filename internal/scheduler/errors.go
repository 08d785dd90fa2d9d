package scheduler

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid_scheduler_config")
	ErrInvalidMode       = errors.New("invalid_billing_mode")
	ErrInvalidSimulation = errors.New("invalid_simulation_request")
	ErrRunInProgress     = errors.New("billing_run_in_progress")
)
