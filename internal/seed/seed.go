// Package seed loads a small demo school: one company, one course, a
// classroom with a service, a billed family and one employee.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoCompanyID   = "demo-company"
	demoPeriodID    = "demo-period"
	demoClassroomID = "demo-classroom"
	demoServiceID   = "demo-service-tuition"
	demoLunchID     = "demo-service-lunch"
	demoStudentID   = "demo-student"
	demoGuardianID  = "demo-guardian"
	demoEnrollID    = "demo-enrollment"
	demoEmployeeID  = "demo-employee"
)

// Result lists the documentIds inserted by the run. Rows already present are
// left untouched and not listed.
type Result struct {
	Created []string `json:"created"`
}

// EnsureDemoSchool seeds the demo dataset for the course starting in
// September of year. It is safe to run more than once.
func EnsureDemoSchool(ctx context.Context, db *gorm.DB, node *snowflake.Node, year int) (*Result, error) {
	if db == nil || node == nil {
		return nil, errors.New("seed database handle and id node are required")
	}
	if year <= 0 {
		return nil, fmt.Errorf("seed year %d out of range", year)
	}

	res := &Result{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := seeder{ctx: ctx, tx: tx, res: res}

		ensure(&s, demoCompanyID, &schooldomain.Company{
			ID:             node.Generate(),
			DocumentID:     demoCompanyID,
			Name:           "Colegio Demo S.L.",
			NIF:            "B12345674",
			IBAN:           "ES9121000418450200051332",
			BIC:            "CAIXESBBXXX",
			Address:        "Calle Mayor 1, 28013 Madrid",
			CreditorSuffix: "000",
		})
		period := &schooldomain.SchoolPeriod{
			ID:         node.Generate(),
			DocumentID: demoPeriodID,
			Name:       fmt.Sprintf("Curso %d-%d", year, year+1),
			Segments: datatypes.NewJSONSlice([]schooldomain.Segment{{
				Start: fmt.Sprintf("%d-09-01", year),
				End:   fmt.Sprintf("%d-06-30", year+1),
			}}),
		}
		ensure(&s, demoPeriodID, period)
		classroom := &schooldomain.Classroom{
			ID:         node.Generate(),
			DocumentID: demoClassroomID,
			Name:       "1º Primaria A",
			Level:      "primaria",
		}
		ensure(&s, demoClassroomID, classroom)
		tuition := &schooldomain.Service{
			ID:            node.Generate(),
			DocumentID:    demoServiceID,
			Title:         "Escolaridad",
			Amount:        250,
			ServiceStatus: schooldomain.ServiceStatusActive,
		}
		ensure(&s, demoServiceID, tuition)
		lunch := &schooldomain.Service{
			ID:            node.Generate(),
			DocumentID:    demoLunchID,
			Title:         "Comedor",
			Amount:        95.5,
			ServiceStatus: schooldomain.ServiceStatusActive,
		}
		ensure(&s, demoLunchID, lunch)
		student := &schooldomain.Student{
			ID:         node.Generate(),
			DocumentID: demoStudentID,
			Name:       "Lucía",
			LastName:   "García Pérez",
		}
		ensure(&s, demoStudentID, student)
		guardian := &schooldomain.Guardian{
			ID:               node.Generate(),
			DocumentID:       demoGuardianID,
			Name:             "Marta",
			LastName:         "Pérez López",
			DNI:              "12345678Z",
			GuardianType:     schooldomain.GuardianTypeParent,
			IsPrimary:        true,
			Email:            "marta.perez@example.com",
			IBAN:             "ES7921000813610123456789",
			BIC:              "CAIXESBBXXX",
			MandateReference: "DEMO-0001",
		}
		ensure(&s, demoGuardianID, guardian)
		ensure(&s, demoEnrollID, &schooldomain.Enrollment{
			ID:             node.Generate(),
			DocumentID:     demoEnrollID,
			IsActive:       true,
			StudentID:      &student.ID,
			GuardianIDs:    datatypes.NewJSONSlice([]snowflake.ID{guardian.ID}),
			ServiceIDs:     datatypes.NewJSONSlice([]snowflake.ID{tuition.ID, lunch.ID}),
			ClassroomID:    &classroom.ID,
			SchoolPeriodID: &period.ID,
		})
		ensure(&s, demoEmployeeID, &schooldomain.Employee{
			ID:         node.Generate(),
			DocumentID: demoEmployeeID,
			IsActive:   true,
			Name:       "Javier",
			LastName:   "Ruiz Martín",
			DNI:        "87654321X",
			Role:       "teacher",
			IBAN:       "ES6000491500051234567892",
			BIC:        "BSCHESMMXXX",
			Terms: datatypes.NewJSONSlice([]schooldomain.Term{{
				Start:         fmt.Sprintf("%d-09-01", year),
				HourlyRate:    15,
				WorkedHours:   80,
				PaymentPeriod: schooldomain.PaymentPeriodMonthly,
			}}),
		})
		return s.err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type seeder struct {
	ctx context.Context
	tx  *gorm.DB
	res *Result
	err error
}

// ensure loads the row with documentID into dest, creating dest when no such
// row exists. Later references read the persisted id from dest.
func ensure[T any](s *seeder, documentID string, dest *T) {
	if s.err != nil {
		return
	}

	var existing T
	err := s.tx.WithContext(s.ctx).Where("document_id = ?", documentID).Take(&existing).Error
	switch {
	case err == nil:
		*dest = existing
		return
	case !errors.Is(err, gorm.ErrRecordNotFound):
		s.err = fmt.Errorf("seed %s: %w", documentID, err)
		return
	}
	if err := s.tx.WithContext(s.ctx).Create(dest).Error; err != nil {
		s.err = fmt.Errorf("seed %s: %w", documentID, err)
		return
	}
	s.res.Created = append(s.res.Created, documentID)
}
