package testutil

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Seeder inserts school entities with generated ids.
type Seeder struct {
	t    testing.TB
	db   *gorm.DB
	node *snowflake.Node
}

func NewSeeder(t testing.TB, db *gorm.DB) *Seeder {
	return &Seeder{t: t, db: db, node: Node(t)}
}

func (s *Seeder) create(v any) {
	s.t.Helper()
	if err := s.db.Create(v).Error; err != nil {
		s.t.Fatalf("seed %T: %v", v, err)
	}
}

func (s *Seeder) Company(mutate ...func(*schooldomain.Company)) *schooldomain.Company {
	c := &schooldomain.Company{
		ID:             s.node.Generate(),
		DocumentID:     uuid.NewString(),
		Name:           "Colegio San Miguel S.L.",
		NIF:            "B12345674",
		IBAN:           "ES9121000418450200051332",
		BIC:            "CAIXESBBXXX",
		Address:        "Calle Mayor 1, Madrid",
		CreditorSuffix: "000",
	}
	for _, fn := range mutate {
		fn(c)
	}
	s.create(c)
	return c
}

func (s *Seeder) Student(name string) *schooldomain.Student {
	st := &schooldomain.Student{
		ID:         s.node.Generate(),
		DocumentID: uuid.NewString(),
		Name:       name,
		LastName:   "García",
		DNI:        "00000000T",
	}
	s.create(st)
	return st
}

func (s *Seeder) Guardian(mutate ...func(*schooldomain.Guardian)) *schooldomain.Guardian {
	g := &schooldomain.Guardian{
		ID:               s.node.Generate(),
		DocumentID:       uuid.NewString(),
		Name:             "Ana",
		LastName:         "García",
		DNI:              "12345678Z",
		GuardianType:     schooldomain.GuardianTypeParent,
		Phone:            "612 345 678",
		IBAN:             "ES7921000813610123456789",
		BIC:              "CAIXESBBXXX",
		MandateReference: "MND-0001",
	}
	for _, fn := range mutate {
		fn(g)
	}
	s.create(g)
	return g
}

func (s *Seeder) Service(title string, amount float64, status schooldomain.ServiceStatus) *schooldomain.Service {
	svc := &schooldomain.Service{
		ID:            s.node.Generate(),
		DocumentID:    uuid.NewString(),
		Title:         title,
		Amount:        amount,
		ServiceStatus: status,
	}
	s.create(svc)
	return svc
}

func (s *Seeder) Classroom(name string) *schooldomain.Classroom {
	c := &schooldomain.Classroom{ID: s.node.Generate(), DocumentID: uuid.NewString(), Name: name, Level: "primaria"}
	s.create(c)
	return c
}

func (s *Seeder) SchoolPeriod(segments ...schooldomain.Segment) *schooldomain.SchoolPeriod {
	p := &schooldomain.SchoolPeriod{
		ID:         s.node.Generate(),
		DocumentID: uuid.NewString(),
		Name:       "Curso",
		Segments:   datatypes.NewJSONSlice(segments),
	}
	s.create(p)
	return p
}

func (s *Seeder) Enrollment(mutate ...func(*schooldomain.Enrollment)) *schooldomain.Enrollment {
	e := &schooldomain.Enrollment{
		ID:               s.node.Generate(),
		DocumentID:       uuid.NewString(),
		IsActive:         true,
		AdditionalAmount: datatypes.JSONMap{},
		BillingControl:   datatypes.NewJSONType(schooldomain.BillingLedger{}),
	}
	for _, fn := range mutate {
		fn(e)
	}
	s.create(e)
	if !e.IsActive {
		// gorm skips zero-valued fields that carry a default
		s.db.Model(e).Update("is_active", false)
	}
	return e
}

func (s *Seeder) Employee(mutate ...func(*schooldomain.Employee)) *schooldomain.Employee {
	e := &schooldomain.Employee{
		ID:               s.node.Generate(),
		DocumentID:       uuid.NewString(),
		IsActive:         true,
		Name:             "Luis",
		LastName:         "Pérez",
		DNI:              "87654321X",
		Role:             "teacher",
		Phone:            "+34 600 111 222",
		IBAN:             "ES6000491500051234567892",
		BIC:              "BSCHESMMXXX",
		AdditionalAmount: datatypes.JSONMap{},
		BillingControl:   datatypes.NewJSONType(schooldomain.BillingLedger{}),
	}
	for _, fn := range mutate {
		fn(e)
	}
	s.create(e)
	if !e.IsActive {
		s.db.Model(e).Update("is_active", false)
	}
	return e
}

// IDs is a helper for relation columns.
func IDs(ids ...snowflake.ID) datatypes.JSONSlice[snowflake.ID] {
	return datatypes.NewJSONSlice(ids)
}
