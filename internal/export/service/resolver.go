package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
)

var (
	errNoGuardian = errors.New("sin tutor asociado")
	errNoEmployee = errors.New("sin empleado asociado")
)

// counterpart is the debtor of a collection or the beneficiary of a transfer.
type counterpart struct {
	name    string
	taxID   string
	address string
	iban    string
	bic     string
	mandate string
	signed  *time.Time
}

// resolver loads counterparts, caching the primary guardian per enrollment.
type resolver struct {
	school    schooldomain.Repository
	guardians map[string]*schooldomain.Guardian
}

func (r *resolver) counterpart(ctx context.Context, t exportdomain.Type, inv invoicedomain.Invoice) (counterpart, error) {
	if t == exportdomain.TypeEmployee {
		return r.employee(ctx, inv)
	}
	return r.guardian(ctx, inv)
}

func (r *resolver) guardian(ctx context.Context, inv invoicedomain.Invoice) (counterpart, error) {
	g, err := r.findGuardian(ctx, inv)
	if err != nil {
		return counterpart{}, fmt.Errorf("error al cargar el tutor: %w", err)
	}
	if g == nil {
		return counterpart{}, errNoGuardian
	}
	return counterpart{
		name:    g.FullName(),
		taxID:   g.DNI,
		address: g.Address,
		iban:    g.IBAN,
		bic:     g.BIC,
		mandate: g.MandateReference,
		signed:  g.MandateSignedAt,
	}, nil
}

// findGuardian prefers the guardian set on the invoice and falls back to the
// enrollment's primary guardian.
func (r *resolver) findGuardian(ctx context.Context, inv invoicedomain.Invoice) (*schooldomain.Guardian, error) {
	if inv.GuardianID != nil {
		g, err := r.school.GetGuardian(ctx, *inv.GuardianID)
		if err != nil || g != nil {
			return g, err
		}
	}
	if inv.EnrollmentID == nil {
		return nil, nil
	}

	key := inv.EnrollmentID.String()
	if g, ok := r.guardians[key]; ok {
		return g, nil
	}
	enr, err := r.school.GetEnrollment(ctx, *inv.EnrollmentID)
	if err != nil {
		return nil, err
	}
	var primary *schooldomain.Guardian
	if enr != nil && len(enr.GuardianIDs) > 0 {
		guardians, err := r.school.GuardiansByIDs(ctx, enr.GuardianIDs)
		if err != nil {
			return nil, err
		}
		primary = schooldomain.PrimaryGuardian(guardians)
	}
	r.guardians[key] = primary
	return primary, nil
}

func (r *resolver) employee(ctx context.Context, inv invoicedomain.Invoice) (counterpart, error) {
	if inv.EmployeeID == nil {
		return counterpart{}, errNoEmployee
	}
	emp, err := r.school.GetEmployee(ctx, *inv.EmployeeID)
	if err != nil {
		return counterpart{}, fmt.Errorf("error al cargar el empleado: %w", err)
	}
	if emp == nil {
		return counterpart{}, errNoEmployee
	}
	return counterpart{
		name:    emp.FullName(),
		taxID:   emp.DNI,
		address: emp.Address,
		iban:    emp.IBAN,
		bic:     emp.BIC,
	}, nil
}
