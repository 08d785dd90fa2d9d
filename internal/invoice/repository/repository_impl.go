package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	"github.com/smallbiznis/escolar/pkg/db/option"
	"github.com/smallbiznis/escolar/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db       *gorm.DB
	invoices repository.Repository[invoicedomain.Invoice]
}

func NewRepository(db *gorm.DB) invoicedomain.Repository {
	return &repo{
		db:       db,
		invoices: repository.ProvideStore[invoicedomain.Invoice](db),
	}
}

func (r *repo) Create(ctx context.Context, inv *invoicedomain.Invoice) error {
	return r.invoices.Create(ctx, inv)
}

func (r *repo) FindByDocumentID(ctx context.Context, documentID string) (*invoicedomain.Invoice, error) {
	if documentID == "" {
		return nil, nil
	}
	return r.invoices.FindOne(ctx, nil, option.WithWhere("document_id = ?", documentID))
}

func (r *repo) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.invoices.Update(ctx, id, fields)
}

func (r *repo) Delete(ctx context.Context, id snowflake.ID) error {
	return r.invoices.Delete(ctx, id)
}

func entityColumn(category invoicedomain.Category) (string, error) {
	switch category {
	case invoicedomain.CategoryEnrollment:
		return "enrollment_id", nil
	case invoicedomain.CategoryEmployee:
		return "employee_id", nil
	case invoicedomain.CategoryService, invoicedomain.CategoryGeneral, invoicedomain.CategorySupplier:
		return "guardian_id", nil
	default:
		return "", invoicedomain.ErrInvalidCategory
	}
}

func (r *repo) ExistsForPeriod(ctx context.Context, category invoicedomain.Category, entityID snowflake.ID, start, end time.Time) (bool, error) {
	column, err := entityColumn(category)
	if err != nil {
		return false, err
	}
	count, err := r.invoices.Count(ctx, nil,
		option.WithWhere("category = ?", category),
		option.WithWhere(column+" = ?", entityID),
		option.WithWhere("simulation = ?", false),
		option.ApplyOperator(option.Condition{Field: "emission_date", Operator: option.GTE, Value: start.UTC()}),
		option.ApplyOperator(option.Condition{Field: "emission_date", Operator: option.LT, Value: end.UTC()}),
	)
	return count > 0, err
}

func (r *repo) ExistsSimulation(ctx context.Context, category invoicedomain.Category, entityID snowflake.ID, tag string, start, end time.Time) (bool, error) {
	column, err := entityColumn(category)
	if err != nil {
		return false, err
	}
	count, err := r.invoices.Count(ctx, nil,
		option.WithWhere("category = ?", category),
		option.WithWhere(column+" = ?", entityID),
		option.WithWhere("simulation = ?", true),
		option.WithWhere("simulation_tag = ?", tag),
		option.ApplyOperator(option.Condition{Field: "emission_date", Operator: option.GTE, Value: start.UTC()}),
		option.ApplyOperator(option.Condition{Field: "emission_date", Operator: option.LT, Value: end.UTC()}),
	)
	return count > 0, err
}

func (r *repo) DeleteSimulation(ctx context.Context, tag string) (int64, error) {
	if tag == "" {
		return 0, invoicedomain.ErrSimulationTag
	}
	res := r.db.WithContext(ctx).
		Where("simulation = ? AND simulation_tag = ?", true, tag).
		Delete(&invoicedomain.Invoice{})
	return res.RowsAffected, res.Error
}

func (r *repo) ListForExport(ctx context.Context, category invoicedomain.Category, start, end time.Time, statuses []invoicedomain.Status) ([]invoicedomain.Invoice, error) {
	opts := []option.QueryOption{
		option.WithWhere("category = ?", category),
		option.WithWhere("simulation = ?", false),
		option.ApplyOperator(option.Condition{Field: "expiration_date", Operator: option.GTE, Value: start.UTC()}),
		option.ApplyOperator(option.Condition{Field: "expiration_date", Operator: option.LT, Value: end.UTC()}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id"}),
	}
	if len(statuses) > 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.IN, Value: statuses}))
	}
	items, err := r.invoices.Find(ctx, nil, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *repo) ListWithoutSnapshot(ctx context.Context, afterID snowflake.ID, limit int) ([]invoicedomain.Invoice, error) {
	items, err := r.invoices.Find(ctx, nil,
		option.WithWhere("party_snapshot IS NULL"),
		option.WithWhere("id > ?", afterID),
		option.WithSortBy(option.QuerySortBy{SortBy: "id"}),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	out := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *repo) SetSnapshotIfEmpty(ctx context.Context, id snowflake.ID, data []byte) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invoices SET party_snapshot = ?, updated_at = ? WHERE id = ? AND party_snapshot IS NULL`,
		string(data),
		time.Now().UTC(),
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) LastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var row struct {
		InvoiceNumber string
	}
	err := r.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Select("invoice_number").
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return row.InvoiceNumber, err
}
