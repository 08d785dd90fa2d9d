package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/escolar/pkg/relation"
)

// CreateRequest is shared by the billing orchestrator and manual entry.
// Amounts accepts anything amount.Normalize accepts.
type CreateRequest struct {
	Category       Category       `json:"category"`
	Type           Type           `json:"type"`
	Status         Status         `json:"status"`
	Amounts        any            `json:"amounts"`
	EmissionDate   time.Time      `json:"emissionDate"`
	ExpirationDate time.Time      `json:"expirationDate"`
	Enrollment     relation.Input `json:"enrollment"`
	Employee       relation.Input `json:"employee"`
	Guardian       relation.Input `json:"guardian"`
	Simulation     bool           `json:"simulation"`
	SimulationTag  string         `json:"simulationTag"`
	Notes          string         `json:"notes"`
}

// UpdateRequest carries the only fields editable after creation.
type UpdateRequest struct {
	Status *Status `json:"status"`
	Notes  *string `json:"notes"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Invoice, error)
	Update(ctx context.Context, documentID string, req UpdateRequest) (*Invoice, error)
	Delete(ctx context.Context, documentID string) error
	GetByDocumentID(ctx context.Context, documentID string) (*Invoice, error)
}

// EditableFields are the JSON keys UpdateRequest accepts.
var EditableFields = map[string]bool{"status": true, "notes": true}
