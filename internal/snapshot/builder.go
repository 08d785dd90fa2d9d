// Package snapshot freezes the parties of an invoice at emission time.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escolar/internal/amount"
	"github.com/smallbiznis/escolar/internal/clock"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/ttacon/libphonenumber"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DefaultPhoneRegion is used for numbers stored without a country prefix.
const DefaultPhoneRegion = "ES"

// Input carries resolved relation ids and the money fields to mirror.
type Input struct {
	Category     invoicedomain.Category
	EnrollmentID *snowflake.ID
	EmployeeID   *snowflake.ID
	Lines        []amount.Line
	IVA          decimal.Decimal
	Total        decimal.Decimal
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	School schooldomain.Repository
}

type Builder struct {
	log    *zap.Logger
	clock  clock.Clock
	school schooldomain.Repository
}

func NewBuilder(p Params) *Builder {
	return &Builder{
		log:    p.Log.Named("snapshot.builder"),
		clock:  p.Clock,
		school: p.School,
	}
}

// Build resolves the parties of in. Missing relations leave nil
// sub-objects; only storage failures are returned.
func (b *Builder) Build(ctx context.Context, in Input) (invoicedomain.PartySnapshot, error) {
	snap := invoicedomain.PartySnapshot{
		PartyType:  invoicedomain.PartyCompany,
		CapturedAt: b.clock.Now().UTC(),
		Billing: invoicedomain.BillingInfo{
			Amounts: append([]amount.Line(nil), in.Lines...),
			IVA:     in.IVA.StringFixed(2),
			Total:   in.Total.StringFixed(2),
		},
	}

	company, err := b.school.GetCompany(ctx)
	if err != nil {
		return invoicedomain.PartySnapshot{}, fmt.Errorf("load company: %w", err)
	}
	if company != nil {
		snap.Company = &invoicedomain.CompanyInfo{
			DocumentID: company.DocumentID,
			Name:       company.Name,
			NIF:        strings.ToUpper(strings.TrimSpace(company.NIF)),
			Address:    company.Address,
		}
		snap.Refs.Company = company.DocumentID
	}

	switch in.Category {
	case invoicedomain.CategoryEnrollment:
		snap.PartyType = invoicedomain.PartyEnrollment
		if in.EnrollmentID != nil {
			if err := b.fillEnrollment(ctx, *in.EnrollmentID, &snap); err != nil {
				return invoicedomain.PartySnapshot{}, err
			}
		}
	case invoicedomain.CategoryEmployee:
		snap.PartyType = invoicedomain.PartyEmployee
		if in.EmployeeID != nil {
			if err := b.fillEmployee(ctx, *in.EmployeeID, &snap); err != nil {
				return invoicedomain.PartySnapshot{}, err
			}
		}
	}
	return snap, nil
}

// Encode builds and serializes a snapshot for storage.
func (b *Builder) Encode(ctx context.Context, in Input) ([]byte, error) {
	snap, err := b.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

func (b *Builder) fillEnrollment(ctx context.Context, id snowflake.ID, snap *invoicedomain.PartySnapshot) error {
	enr, err := b.school.GetEnrollment(ctx, id)
	if err != nil {
		return fmt.Errorf("load enrollment: %w", err)
	}
	if enr == nil {
		b.log.Warn("enrollment not found for snapshot", zap.String("enrollment_id", id.String()))
		return nil
	}
	snap.Refs.Enrollment = enr.DocumentID

	if enr.StudentID != nil {
		student, err := b.school.GetStudent(ctx, *enr.StudentID)
		if err != nil {
			return fmt.Errorf("load student: %w", err)
		}
		if student != nil {
			snap.Student = &invoicedomain.PersonInfo{
				DocumentID: student.DocumentID,
				Name:       student.Name,
				LastName:   student.LastName,
				DNI:        student.DNI,
			}
			snap.Refs.Student = student.DocumentID
		}
	}

	guardians, err := b.school.GuardiansByIDs(ctx, enr.GuardianIDs)
	if err != nil {
		return fmt.Errorf("load guardians: %w", err)
	}
	for _, g := range schooldomain.SortGuardians(guardians) {
		info := guardianInfo(g)
		snap.Guardians = append(snap.Guardians, info)
		snap.Refs.Guardians = append(snap.Refs.Guardians, g.DocumentID)
	}
	if len(snap.Guardians) > 0 {
		primary := snap.Guardians[0]
		snap.Primary = &primary
	}

	if enr.ClassroomID != nil {
		classroom, err := b.school.GetClassroom(ctx, *enr.ClassroomID)
		if err != nil {
			return fmt.Errorf("load classroom: %w", err)
		}
		if classroom != nil {
			snap.Classroom = &invoicedomain.NamedInfo{DocumentID: classroom.DocumentID, Name: classroom.Name}
			snap.Refs.Classroom = classroom.DocumentID
		}
	}

	if enr.SchoolPeriodID != nil {
		period, err := b.school.GetSchoolPeriod(ctx, *enr.SchoolPeriodID)
		if err != nil {
			return fmt.Errorf("load school period: %w", err)
		}
		if period != nil {
			snap.Period = &invoicedomain.NamedInfo{DocumentID: period.DocumentID, Name: period.Name}
			snap.Refs.SchoolPeriod = period.DocumentID
		}
	}
	return nil
}

func (b *Builder) fillEmployee(ctx context.Context, id snowflake.ID, snap *invoicedomain.PartySnapshot) error {
	emp, err := b.school.GetEmployee(ctx, id)
	if err != nil {
		return fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		b.log.Warn("employee not found for snapshot", zap.String("employee_id", id.String()))
		return nil
	}
	snap.Employee = &invoicedomain.EmployeeInfo{
		PersonInfo: invoicedomain.PersonInfo{
			DocumentID: emp.DocumentID,
			Name:       emp.Name,
			LastName:   emp.LastName,
			DNI:        emp.DNI,
		},
		Role:    emp.Role,
		Email:   strings.TrimSpace(emp.Email),
		Phone:   NormalizePhone(emp.Phone),
		Address: emp.Address,
	}
	snap.Refs.Employee = emp.DocumentID
	return nil
}

func guardianInfo(g schooldomain.Guardian) invoicedomain.GuardianInfo {
	return invoicedomain.GuardianInfo{
		PersonInfo: invoicedomain.PersonInfo{
			DocumentID: g.DocumentID,
			Name:       g.Name,
			LastName:   g.LastName,
			DNI:        g.DNI,
		},
		GuardianType: string(g.GuardianType),
		Email:        strings.TrimSpace(g.Email),
		Phone:        NormalizePhone(g.Phone),
		Address:      g.Address,
	}
}

// NormalizePhone formats parseable numbers as E.164 and returns anything
// else trimmed but unchanged.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, DefaultPhoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
