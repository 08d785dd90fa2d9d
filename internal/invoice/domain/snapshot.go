package domain

import (
	"time"

	"github.com/smallbiznis/escolar/internal/amount"
)

type PartyType string

const (
	PartyEnrollment PartyType = "enrollment"
	PartyEmployee   PartyType = "employee"
	PartyCompany    PartyType = "company"
)

// PartySnapshot is the frozen copy of the parties an invoice refers to.
// Sub-objects are nil when the relation could not be resolved.
type PartySnapshot struct {
	PartyType  PartyType      `json:"partyType"`
	CapturedAt time.Time      `json:"capturedAt"`
	Refs       SnapshotRefs   `json:"refs"`
	Company    *CompanyInfo   `json:"company,omitempty"`
	Student    *PersonInfo    `json:"student,omitempty"`
	Guardians  []GuardianInfo `json:"guardians,omitempty"`
	Primary    *GuardianInfo  `json:"primaryGuardian,omitempty"`
	Classroom  *NamedInfo     `json:"classroom,omitempty"`
	Period     *NamedInfo     `json:"schoolPeriod,omitempty"`
	Employee   *EmployeeInfo  `json:"employee,omitempty"`
	Billing    BillingInfo    `json:"billing"`
}

// SnapshotRefs keeps document ids for later re-query.
type SnapshotRefs struct {
	Enrollment   string   `json:"enrollment,omitempty"`
	Student      string   `json:"student,omitempty"`
	Guardians    []string `json:"guardians,omitempty"`
	Classroom    string   `json:"classroom,omitempty"`
	SchoolPeriod string   `json:"schoolPeriod,omitempty"`
	Employee     string   `json:"employee,omitempty"`
	Company      string   `json:"company,omitempty"`
}

type PersonInfo struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	LastName   string `json:"lastname,omitempty"`
	DNI        string `json:"dni,omitempty"`
}

type GuardianInfo struct {
	PersonInfo
	GuardianType string `json:"guardianType,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
}

type NamedInfo struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
}

type EmployeeInfo struct {
	PersonInfo
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type CompanyInfo struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	NIF        string `json:"nif,omitempty"`
	Address    string `json:"address,omitempty"`
}

// BillingInfo mirrors the invoice money fields at creation time.
type BillingInfo struct {
	Amounts []amount.Line `json:"amounts"`
	IVA     string        `json:"IVA"`
	Total   string        `json:"total"`
}
