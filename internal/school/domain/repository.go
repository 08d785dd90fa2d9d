package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository reads school entities and writes the billing ledgers.
// Single lookups return nil, nil when the row does not exist.
type Repository interface {
	ListActiveEnrollments(ctx context.Context, offset, limit int) ([]Enrollment, error)
	ListActiveEmployees(ctx context.Context, offset, limit int) ([]Employee, error)

	GetEnrollment(ctx context.Context, id snowflake.ID) (*Enrollment, error)
	GetEmployee(ctx context.Context, id snowflake.ID) (*Employee, error)
	GetStudent(ctx context.Context, id snowflake.ID) (*Student, error)
	GetGuardian(ctx context.Context, id snowflake.ID) (*Guardian, error)
	GetClassroom(ctx context.Context, id snowflake.ID) (*Classroom, error)
	GetSchoolPeriod(ctx context.Context, id snowflake.ID) (*SchoolPeriod, error)
	GetCompany(ctx context.Context) (*Company, error)

	// GuardiansByIDs and ServicesByIDs keep the order of ids and skip missing rows.
	GuardiansByIDs(ctx context.Context, ids []snowflake.ID) ([]Guardian, error)
	ServicesByIDs(ctx context.Context, ids []snowflake.ID) ([]Service, error)

	MarkEnrollmentBilled(ctx context.Context, id snowflake.ID, monthKey string, invoiceDocumentID string, at time.Time) error
	MarkEmployeeBilled(ctx context.Context, id snowflake.ID, monthKey string, invoiceDocumentID string, at time.Time) error

	// LookupDocumentIDs maps document ids of one table to internal ids.
	LookupDocumentIDs(ctx context.Context, table string, documentIDs []string) (map[string]snowflake.ID, error)
}
