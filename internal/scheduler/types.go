package scheduler

import (
	"time"

	"github.com/smallbiznis/escolar/internal/config"
)

type Mode string

const (
	ModeAll         Mode = "all"
	ModeEnrollments Mode = "enrollments"
	ModeEmployees   Mode = "employees"
)

func (m Mode) enrollments() bool { return m == ModeAll || m == ModeEnrollments }
func (m Mode) employees() bool   { return m == ModeAll || m == ModeEmployees }

func parseMode(m Mode) (Mode, error) {
	switch m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeEnrollments, ModeEmployees:
		return m, nil
	}
	return "", ErrInvalidMode
}

// RunRequest is one billing invocation. A zero Now means the clock's now;
// a nil Schedule means the current billing.yml.
type RunRequest struct {
	Now      time.Time
	Mode     Mode
	Schedule *config.BillingConfig
}

// EntityError is one enrollment or employee that could not be billed.
type EntityError struct {
	Category string `json:"category"`
	EntityID string `json:"entityId"`
	Message  string `json:"message"`
}

// Summary is the outcome of a run. LastExecution and NextExecution are
// returned for the caller to persist; the scheduler only keeps them in memory.
type Summary struct {
	Mode          Mode           `json:"mode"`
	MonthKey      string         `json:"month"`
	Created       int            `json:"created"`
	Skipped       int            `json:"skipped"`
	Errors        []EntityError  `json:"errors"`
	SkipReasons   map[string]int `json:"skipReasons"`
	InvoiceIDs    []string       `json:"invoiceIds,omitempty"`
	LastExecution time.Time      `json:"lastExecution"`
	NextExecution time.Time      `json:"nextExecution"`
}

func newSummary(mode Mode, monthKey string) *Summary {
	return &Summary{
		Mode:        mode,
		MonthKey:    monthKey,
		Errors:      []EntityError{},
		SkipReasons: map[string]int{},
	}
}

func (s *Summary) skip(reason string) {
	s.Skipped++
	s.SkipReasons[reason]++
}

// ExecutionState is the in-memory bookkeeping of the ticker.
type ExecutionState struct {
	LastExecution time.Time `json:"lastExecution"`
	NextExecution time.Time `json:"nextExecution"`
}

// SimulationRequest replays billing over the months of a year without
// touching ledgers. Nil include flags default to true.
type SimulationRequest struct {
	Year               int    `json:"year" validate:"required,min=2000,max=2100"`
	Months             []int  `json:"months" validate:"omitempty,max=12,dive,min=1,max=12"`
	IncludeEnrollments *bool  `json:"includeEnrollments"`
	IncludeEmployees   *bool  `json:"includeEmployees"`
	DeleteExisting     bool   `json:"deleteExisting"`
	Tag                string `json:"tag" validate:"omitempty,max=64"`
}

type SimulationResult struct {
	Tag     string    `json:"tag"`
	Deleted int64     `json:"deleted"`
	Created int       `json:"created"`
	Skipped int       `json:"skipped"`
	Months  []Summary `json:"months"`
}
