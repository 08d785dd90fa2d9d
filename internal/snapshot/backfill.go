package snapshot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	"go.uber.org/zap"
)

const defaultBackfillBatch = 200

type BackfillRequest struct {
	BatchSize int
	DryRun    bool
}

type BackfillResult struct {
	Scanned int      `json:"scanned"`
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// Backfiller captures snapshots for invoices created before snapshots
// existed. Rows that already carry one are never touched, so it can be
// re-run safely.
type Backfiller struct {
	log      *zap.Logger
	builder  *Builder
	invoices invoicedomain.Repository
}

func NewBackfiller(log *zap.Logger, builder *Builder, invoices invoicedomain.Repository) *Backfiller {
	return &Backfiller{
		log:      log.Named("snapshot.backfill"),
		builder:  builder,
		invoices: invoices,
	}
}

func (b *Backfiller) Run(ctx context.Context, req BackfillRequest) (BackfillResult, error) {
	batch := req.BatchSize
	if batch <= 0 {
		batch = defaultBackfillBatch
	}

	var (
		result BackfillResult
		after  snowflake.ID
	)
	for {
		items, err := b.invoices.ListWithoutSnapshot(ctx, after, batch)
		if err != nil {
			return result, fmt.Errorf("list invoices without snapshot: %w", err)
		}
		for _, inv := range items {
			after = inv.ID
			result.Scanned++

			data, err := b.builder.Encode(ctx, Input{
				Category:     inv.Category,
				EnrollmentID: inv.EnrollmentID,
				EmployeeID:   inv.EmployeeID,
				Lines:        inv.Amounts,
				IVA:          inv.IVA,
				Total:        inv.Total,
			})
			if err != nil {
				b.log.Error("build snapshot failed", zap.String("invoice", inv.DocumentID), zap.Error(err))
				result.Failed = append(result.Failed, inv.DocumentID)
				continue
			}
			if req.DryRun {
				continue
			}
			updated, err := b.invoices.SetSnapshotIfEmpty(ctx, inv.ID, data)
			if err != nil {
				b.log.Error("store snapshot failed", zap.String("invoice", inv.DocumentID), zap.Error(err))
				result.Failed = append(result.Failed, inv.DocumentID)
				continue
			}
			if updated {
				result.Updated++
			}
		}
		if len(items) < batch {
			break
		}
	}

	b.log.Info("snapshot backfill finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("failed", len(result.Failed)),
		zap.Bool("dry_run", req.DryRun),
	)
	return result, nil
}
