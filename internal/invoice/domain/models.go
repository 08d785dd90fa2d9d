// Package domain contains persistence models for invoicing.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escolar/internal/amount"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Category string

const (
	CategoryEnrollment Category = "enrollment"
	CategoryEmployee   Category = "employee"
	CategoryService    Category = "service"
	CategoryGeneral    Category = "general"
	CategorySupplier   Category = "supplier"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryEnrollment, CategoryEmployee, CategoryService, CategoryGeneral, CategorySupplier:
		return true
	}
	return false
}

type Type string

const (
	TypeCharge  Type = "charge"
	TypePayment Type = "payment"
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCharge, TypePayment, TypeIncome, TypeExpense:
		return true
	}
	return false
}

type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusInProcess Status = "inprocess"
	StatusPaid      Status = "paid"
	StatusCanceled  Status = "canceled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusInProcess, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

// Invoice is the central financial record. Once persisted only Status and
// Notes change; PartySnapshot is written once.
type Invoice struct {
	ID             snowflake.ID                     `gorm:"primaryKey" json:"id"`
	DocumentID     string                           `gorm:"type:text;not null;uniqueIndex" json:"documentId"`
	InvoiceNumber  string                           `gorm:"type:text;index" json:"invoiceNumber"`
	Category       Category                         `gorm:"type:text;not null;index" json:"category"`
	Type           Type                             `gorm:"type:text;not null" json:"type"`
	Status         Status                           `gorm:"type:text;not null;default:'unpaid'" json:"status"`
	Amounts        datatypes.JSONSlice[amount.Line] `gorm:"type:jsonb" json:"amounts"`
	IVA            decimal.Decimal                  `gorm:"column:iva;type:numeric(12,2);not null;default:0" json:"IVA"`
	Total          decimal.Decimal                  `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	EmissionDate   time.Time                        `gorm:"not null;index" json:"emissionDate"`
	ExpirationDate time.Time                        `gorm:"not null;index" json:"expirationDate"`
	EnrollmentID   *snowflake.ID                    `gorm:"index" json:"enrollmentId,omitempty"`
	EmployeeID     *snowflake.ID                    `gorm:"index" json:"employeeId,omitempty"`
	GuardianID     *snowflake.ID                    `gorm:"index" json:"guardianId,omitempty"`
	PartySnapshot  datatypes.JSON                   `gorm:"type:jsonb" json:"partySnapshot,omitempty"`
	Simulation     bool                             `gorm:"not null;default:false;index" json:"simulation"`
	SimulationTag  string                           `gorm:"type:text;index" json:"simulationTag,omitempty"`
	Notes          string                           `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time                        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt      time.Time                        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// BeforeSave keeps amounts canonical on every write path.
func (i *Invoice) BeforeSave(*gorm.DB) error {
	i.Amounts = amount.NormalizeLines(i.Amounts)
	return nil
}

// Subtotal is the sum of the invoice lines.
func (i Invoice) Subtotal() decimal.Decimal {
	return amount.Sum(i.Amounts)
}

// HasSnapshot reports whether a party snapshot has been captured.
func (i Invoice) HasSnapshot() bool {
	return len(i.PartySnapshot) > 0 && string(i.PartySnapshot) != "null"
}

// Snapshot decodes the stored party snapshot, nil when absent.
func (i Invoice) Snapshot() (*PartySnapshot, error) {
	if !i.HasSnapshot() {
		return nil, nil
	}
	var snap PartySnapshot
	if err := json.Unmarshal(i.PartySnapshot, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// EntityID is the billed entity for enrollment and employee invoices.
func (i Invoice) EntityID() *snowflake.ID {
	switch i.Category {
	case CategoryEnrollment:
		return i.EnrollmentID
	case CategoryEmployee:
		return i.EmployeeID
	default:
		return i.GuardianID
	}
}
