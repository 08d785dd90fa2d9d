package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository persists invoices. Time ranges are half-open: [start, end).
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	FindByDocumentID(ctx context.Context, documentID string) (*Invoice, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, id snowflake.ID) error

	// ExistsForPeriod looks for a non-simulation invoice of category tied
	// to entityID with emissionDate in [start, end).
	ExistsForPeriod(ctx context.Context, category Category, entityID snowflake.ID, start, end time.Time) (bool, error)
	// ExistsSimulation is ExistsForPeriod restricted to simulation invoices carrying tag.
	ExistsSimulation(ctx context.Context, category Category, entityID snowflake.ID, tag string, start, end time.Time) (bool, error)
	DeleteSimulation(ctx context.Context, tag string) (int64, error)

	// ListForExport returns invoices of category whose expirationDate is in
	// [start, end) and whose status is one of statuses, ordered by id.
	ListForExport(ctx context.Context, category Category, start, end time.Time, statuses []Status) ([]Invoice, error)

	ListWithoutSnapshot(ctx context.Context, afterID snowflake.ID, limit int) ([]Invoice, error)
	// SetSnapshotIfEmpty writes data only when the row has no snapshot yet.
	SetSnapshotIfEmpty(ctx context.Context, id snowflake.ID, data []byte) (bool, error)

	// LastNumberWithPrefix returns the highest invoice number starting with prefix.
	LastNumberWithPrefix(ctx context.Context, prefix string) (string, error)
}
