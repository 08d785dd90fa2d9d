// Package domain contains the school entities billing reads from.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ServiceStatus string

const (
	ServiceStatusActive   ServiceStatus = "active"
	ServiceStatusInactive ServiceStatus = "inactive"
	ServiceStatusCanceled ServiceStatus = "canceled"
)

type GuardianType string

const (
	GuardianTypeParent        GuardianType = "parent"
	GuardianTypeLegalGuardian GuardianType = "legal_guardian"
	GuardianTypeRelative      GuardianType = "relative"
	GuardianTypeOther         GuardianType = "other"
)

type PaymentPeriod string

const (
	PaymentPeriodMonthly  PaymentPeriod = "monthly"
	PaymentPeriodBiweekly PaymentPeriod = "biweekly"
	PaymentPeriodWeekly   PaymentPeriod = "weekly"
	PaymentPeriodDaily    PaymentPeriod = "daily"
	PaymentPeriodAnnual   PaymentPeriod = "annual"
)

type Student struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	DocumentID string       `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	LastName   string       `gorm:"type:text" json:"lastname"`
	DNI        string       `gorm:"column:dni;type:text" json:"dni"`
	BirthDate  *time.Time   `json:"birthdate,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Student) TableName() string { return "students" }

type Guardian struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	DocumentID       string       `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	Name             string       `gorm:"type:text;not null" json:"name"`
	LastName         string       `gorm:"type:text" json:"lastname"`
	DNI              string       `gorm:"column:dni;type:text" json:"dni"`
	GuardianType     GuardianType `gorm:"type:text" json:"guardianType"`
	IsPrimary        bool         `gorm:"not null;default:false" json:"isPrimary"`
	Email            string       `gorm:"type:text" json:"email"`
	Phone            string       `gorm:"type:text" json:"phone"`
	Address          string       `gorm:"type:text" json:"address"`
	IBAN             string       `gorm:"column:iban;type:text" json:"iban"`
	BIC              string       `gorm:"column:bic;type:text" json:"bic"`
	MandateReference string       `gorm:"type:text" json:"mandateReference"`
	MandateSignedAt  *time.Time   `json:"mandateSignedAt,omitempty"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Guardian) TableName() string { return "guardians" }

func (g Guardian) FullName() string { return joinName(g.Name, g.LastName) }

type Classroom struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	DocumentID string       `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Level      string       `gorm:"type:text" json:"level"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Classroom) TableName() string { return "classrooms" }

// Segment is one contiguous stretch of a school period. Dates are calendar
// days formatted as YYYY-MM-DD.
type Segment struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Year  int    `json:"year,omitempty"`
}

type SchoolPeriod struct {
	ID         snowflake.ID                 `gorm:"primaryKey" json:"id"`
	DocumentID string                       `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	Name       string                       `gorm:"type:text;not null" json:"name"`
	Segments   datatypes.JSONSlice[Segment] `gorm:"type:jsonb" json:"segments"`
	CreatedAt  time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt  time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (SchoolPeriod) TableName() string { return "school_periods" }

type Service struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	DocumentID    string        `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	Title         string        `gorm:"type:text;not null" json:"title"`
	Amount        float64       `gorm:"type:numeric(12,2);not null;default:0" json:"amount"`
	ServiceStatus ServiceStatus `gorm:"type:text;not null;default:'active'" json:"serviceStatus"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Service) TableName() string { return "services" }

// LedgerEntry records the invoice that settled a billing month.
type LedgerEntry struct {
	InvoiceDocumentID string    `json:"invoiceDocumentId"`
	BilledAt          time.Time `json:"billedAt"`
}

// BillingLedger is keyed by YYYY-MM month keys.
type BillingLedger map[string]LedgerEntry

func (l BillingLedger) Has(key string) bool {
	_, ok := l[key]
	return ok
}

type Enrollment struct {
	ID               snowflake.ID                      `gorm:"primaryKey" json:"id"`
	DocumentID       string                            `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	IsActive         bool                              `gorm:"not null;default:true;index" json:"isActive"`
	StudentID        *snowflake.ID                     `gorm:"index" json:"studentId,omitempty"`
	GuardianIDs      datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"guardianIds"`
	ServiceIDs       datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"serviceIds"`
	EmployeeIDs      datatypes.JSONSlice[snowflake.ID] `gorm:"type:jsonb" json:"employeeIds"`
	ClassroomID      *snowflake.ID                     `json:"classroomId,omitempty"`
	SchoolPeriodID   *snowflake.ID                     `json:"schoolPeriodId,omitempty"`
	AdditionalAmount datatypes.JSONMap                 `gorm:"type:jsonb" json:"additionalAmount"`
	BillingControl   datatypes.JSONType[BillingLedger] `gorm:"type:jsonb" json:"billingControl"`
	CreatedAt        time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt        time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Enrollment) TableName() string { return "enrollments" }

// Term is one contract term. Only the last term of an employee is billed.
type Term struct {
	Start            string        `json:"start,omitempty"`
	End              string        `json:"end,omitempty"`
	HourlyRate       float64       `json:"hourlyRate"`
	WorkedHours      float64       `json:"workedHours"`
	PaymentPeriod    PaymentPeriod `json:"paymentPeriod"`
	ContractDuration string        `json:"contractDuration,omitempty"`
}

type Employee struct {
	ID               snowflake.ID                      `gorm:"primaryKey" json:"id"`
	DocumentID       string                            `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	IsActive         bool                              `gorm:"not null;default:true;index" json:"isActive"`
	Name             string                            `gorm:"type:text;not null" json:"name"`
	LastName         string                            `gorm:"type:text" json:"lastname"`
	DNI              string                            `gorm:"column:dni;type:text" json:"dni"`
	Email            string                            `gorm:"type:text" json:"email"`
	Phone            string                            `gorm:"type:text" json:"phone"`
	Address          string                            `gorm:"type:text" json:"address"`
	Role             string                            `gorm:"type:text" json:"role"`
	IBAN             string                            `gorm:"column:iban;type:text" json:"iban"`
	BIC              string                            `gorm:"column:bic;type:text" json:"bic"`
	Terms            datatypes.JSONSlice[Term]         `gorm:"type:jsonb" json:"terms"`
	AdditionalAmount datatypes.JSONMap                 `gorm:"type:jsonb" json:"additionalAmount"`
	BillingControl   datatypes.JSONType[BillingLedger] `gorm:"type:jsonb" json:"billingControl"`
	CreatedAt        time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt        time.Time                         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Employee) TableName() string { return "employees" }

func (e Employee) FullName() string { return joinName(e.Name, e.LastName) }

// LastTerm returns the authoritative contract term, if any.
func (e Employee) LastTerm() (Term, bool) {
	if len(e.Terms) == 0 {
		return Term{}, false
	}
	return e.Terms[len(e.Terms)-1], true
}

// Company is the declarant. There is at most one row.
type Company struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	DocumentID     string       `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	NIF            string       `gorm:"column:nif;type:text" json:"nif"`
	IBAN           string       `gorm:"column:iban;type:text" json:"iban"`
	BIC            string       `gorm:"column:bic;type:text" json:"bic"`
	Address        string       `gorm:"type:text" json:"address"`
	CreditorSuffix string       `gorm:"type:text" json:"creditorSuffix"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Company) TableName() string { return "companies" }

func (s Student) FullName() string { return joinName(s.Name, s.LastName) }

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
