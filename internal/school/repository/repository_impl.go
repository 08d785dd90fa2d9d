package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/smallbiznis/escolar/pkg/db/option"
	"github.com/smallbiznis/escolar/pkg/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// lookupTables are the tables relation payloads may point at.
var lookupTables = map[string]bool{
	"students":       true,
	"guardians":      true,
	"classrooms":     true,
	"school_periods": true,
	"services":       true,
	"enrollments":    true,
	"employees":      true,
	"companies":      true,
	"invoices":       true,
}

type repo struct {
	db *gorm.DB

	enrollments repository.Repository[schooldomain.Enrollment]
	employees   repository.Repository[schooldomain.Employee]
	students    repository.Repository[schooldomain.Student]
	guardians   repository.Repository[schooldomain.Guardian]
	classrooms  repository.Repository[schooldomain.Classroom]
	periods     repository.Repository[schooldomain.SchoolPeriod]
	services    repository.Repository[schooldomain.Service]
	companies   repository.Repository[schooldomain.Company]
}

func NewRepository(db *gorm.DB) schooldomain.Repository {
	return &repo{
		db:          db,
		enrollments: repository.ProvideStore[schooldomain.Enrollment](db),
		employees:   repository.ProvideStore[schooldomain.Employee](db),
		students:    repository.ProvideStore[schooldomain.Student](db),
		guardians:   repository.ProvideStore[schooldomain.Guardian](db),
		classrooms:  repository.ProvideStore[schooldomain.Classroom](db),
		periods:     repository.ProvideStore[schooldomain.SchoolPeriod](db),
		services:    repository.ProvideStore[schooldomain.Service](db),
		companies:   repository.ProvideStore[schooldomain.Company](db),
	}
}

func page(offset, limit int) []option.QueryOption {
	return []option.QueryOption{
		option.WithWhere("is_active = ?", true),
		option.WithSortBy(option.QuerySortBy{SortBy: "id"}),
		option.WithOffset(offset),
		option.WithLimit(limit),
	}
}

func (r *repo) ListActiveEnrollments(ctx context.Context, offset, limit int) ([]schooldomain.Enrollment, error) {
	items, err := r.enrollments.Find(ctx, nil, page(offset, limit)...)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (r *repo) ListActiveEmployees(ctx context.Context, offset, limit int) ([]schooldomain.Employee, error) {
	items, err := r.employees.Find(ctx, nil, page(offset, limit)...)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (r *repo) GetEnrollment(ctx context.Context, id snowflake.ID) (*schooldomain.Enrollment, error) {
	return r.enrollments.FindOne(ctx, nil, byID(id))
}

func (r *repo) GetEmployee(ctx context.Context, id snowflake.ID) (*schooldomain.Employee, error) {
	return r.employees.FindOne(ctx, nil, byID(id))
}

func (r *repo) GetStudent(ctx context.Context, id snowflake.ID) (*schooldomain.Student, error) {
	return r.students.FindOne(ctx, nil, byID(id))
}

func (r *repo) GetGuardian(ctx context.Context, id snowflake.ID) (*schooldomain.Guardian, error) {
	return r.guardians.FindOne(ctx, nil, byID(id))
}

func (r *repo) GetClassroom(ctx context.Context, id snowflake.ID) (*schooldomain.Classroom, error) {
	return r.classrooms.FindOne(ctx, nil, byID(id))
}

func (r *repo) GetSchoolPeriod(ctx context.Context, id snowflake.ID) (*schooldomain.SchoolPeriod, error) {
	return r.periods.FindOne(ctx, nil, byID(id))
}

func (r *repo) GetCompany(ctx context.Context) (*schooldomain.Company, error) {
	return r.companies.FindOne(ctx, nil, option.WithSortBy(option.QuerySortBy{SortBy: "id"}))
}

func (r *repo) GuardiansByIDs(ctx context.Context, ids []snowflake.ID) ([]schooldomain.Guardian, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := r.guardians.Find(ctx, nil, option.WithIDs(ids))
	if err != nil {
		return nil, err
	}
	return inOrder(ids, items, func(g *schooldomain.Guardian) snowflake.ID { return g.ID }), nil
}

func (r *repo) ServicesByIDs(ctx context.Context, ids []snowflake.ID) ([]schooldomain.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := r.services.Find(ctx, nil, option.WithIDs(ids))
	if err != nil {
		return nil, err
	}
	return inOrder(ids, items, func(s *schooldomain.Service) snowflake.ID { return s.ID }), nil
}

func (r *repo) MarkEnrollmentBilled(ctx context.Context, id snowflake.ID, monthKey, invoiceDocumentID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row schooldomain.Enrollment
		if err := tx.Select("id", "billing_control").Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		ledger := withEntry(row.BillingControl.Data(), monthKey, invoiceDocumentID, at)
		return tx.Model(&schooldomain.Enrollment{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"billing_control": datatypes.NewJSONType(ledger),
				"updated_at":      at,
			}).Error
	})
}

func (r *repo) MarkEmployeeBilled(ctx context.Context, id snowflake.ID, monthKey, invoiceDocumentID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row schooldomain.Employee
		if err := tx.Select("id", "billing_control").Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		ledger := withEntry(row.BillingControl.Data(), monthKey, invoiceDocumentID, at)
		return tx.Model(&schooldomain.Employee{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"billing_control": datatypes.NewJSONType(ledger),
				"updated_at":      at,
			}).Error
	})
}

func (r *repo) LookupDocumentIDs(ctx context.Context, table string, documentIDs []string) (map[string]snowflake.ID, error) {
	if !lookupTables[table] {
		return nil, fmt.Errorf("%w: table %s", schooldomain.ErrInvalidID, table)
	}
	out := make(map[string]snowflake.ID, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ID         snowflake.ID
		DocumentID string
	}
	err := r.db.WithContext(ctx).
		Table(table).
		Select("id", "document_id").
		Where("document_id IN ?", documentIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.DocumentID] = row.ID
	}
	return out, nil
}

// byID matches nothing for the zero id.
func byID(id snowflake.ID) option.QueryOption {
	if id == 0 {
		return option.WithWhere("1 = 0")
	}
	return option.WithWhere("id = ?", id)
}

func withEntry(ledger schooldomain.BillingLedger, key, invoiceDocumentID string, at time.Time) schooldomain.BillingLedger {
	next := make(schooldomain.BillingLedger, len(ledger)+1)
	for k, v := range ledger {
		next[k] = v
	}
	next[key] = schooldomain.LedgerEntry{InvoiceDocumentID: invoiceDocumentID, BilledAt: at.UTC()}
	return next
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}

func inOrder[T any](ids []snowflake.ID, items []*T, key func(*T) snowflake.ID) []T {
	byID := make(map[snowflake.ID]*T, len(items))
	for _, item := range items {
		if item != nil {
			byID[key(item)] = item
		}
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}
