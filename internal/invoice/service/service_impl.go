package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/escolar/internal/amount"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	"github.com/smallbiznis/escolar/internal/invoice/format"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/smallbiznis/escolar/internal/snapshot"
	taxdomain "github.com/smallbiznis/escolar/internal/tax/domain"
	"github.com/smallbiznis/escolar/pkg/relation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SimulationNumberTemplate keeps simulated invoices out of the real sequence.
const SimulationNumberTemplate = "SIM-{YYYY}{MM}-{SEQ6}"

const maxNumberSequence = 999999

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     invoicedomain.Repository
	School   schooldomain.Repository
	Snapshot *snapshot.Builder
	Tax      taxdomain.Resolver
	Billing  *config.BillingConfigHolder
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo     invoicedomain.Repository
	school   schooldomain.Repository
	snapshot *snapshot.Builder
	tax      taxdomain.Resolver
	billing  *config.BillingConfigHolder
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:     p.Repo,
		school:   p.School,
		snapshot: p.Snapshot,
		tax:      p.Tax,
		billing:  p.Billing,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateRequest) (*invoicedomain.Invoice, error) {
	category, invType, status, err := normalizeClassification(req)
	if err != nil {
		return nil, err
	}

	lines := amount.Normalize(req.Amounts)
	if len(lines) == 0 {
		return nil, invoicedomain.ErrEmptyAmounts
	}

	tag := strings.TrimSpace(req.SimulationTag)
	if req.Simulation && tag == "" {
		return nil, invoicedomain.ErrSimulationTag
	}
	if !req.Simulation && tag != "" {
		return nil, invoicedomain.ErrSimulationTag
	}

	enrollmentID, employeeID, guardianID, err := s.resolveRelations(ctx, category, req)
	if err != nil {
		return nil, err
	}

	cfg := s.billing.Get()
	emission := req.EmissionDate
	if emission.IsZero() {
		emission = s.clock.Now()
	}
	expiration := req.ExpirationDate
	if expiration.IsZero() {
		expiration = emission.AddDate(0, 0, cfg.ExpirationDays)
	}
	if expiration.Before(emission) {
		return nil, invoicedomain.ErrInvalidDates
	}

	subtotal := amount.Sum(lines)
	if !amount.Finite(subtotal) {
		return nil, invoicedomain.ErrAmountOverflow
	}
	result := s.tax.Current().Calculate(subtotal)

	data, err := s.snapshot.Encode(ctx, snapshot.Input{
		Category:     category,
		EnrollmentID: enrollmentID,
		EmployeeID:   employeeID,
		Lines:        lines,
		IVA:          result.Tax,
		Total:        result.Total,
	})
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	template := format.DefaultInvoiceNumberTemplate
	if req.Simulation {
		template = SimulationNumberTemplate
	}
	number, err := s.nextNumber(ctx, template, emission.In(cfg.Location()))
	if err != nil {
		return nil, err
	}

	inv := &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		DocumentID:     uuid.NewString(),
		InvoiceNumber:  number,
		Category:       category,
		Type:           invType,
		Status:         status,
		Amounts:        lines,
		IVA:            result.Tax,
		Total:          result.Total,
		EmissionDate:   emission.UTC(),
		ExpirationDate: expiration.UTC(),
		EnrollmentID:   enrollmentID,
		EmployeeID:     employeeID,
		GuardianID:     guardianID,
		PartySnapshot:  data,
		Simulation:     req.Simulation,
		SimulationTag:  tag,
		Notes:          strings.TrimSpace(req.Notes),
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	s.log.Debug("invoice created",
		zap.String("document_id", inv.DocumentID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("category", string(inv.Category)),
		zap.String("total", inv.Total.StringFixed(2)),
		zap.Bool("simulation", inv.Simulation),
	)
	return inv, nil
}

func (s *Service) Update(ctx context.Context, documentID string, req invoicedomain.UpdateRequest) (*invoicedomain.Invoice, error) {
	inv, err := s.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, invoicedomain.ErrInvalidStatus
		}
		fields["status"] = *req.Status
		inv.Status = *req.Status
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		fields["notes"] = notes
		inv.Notes = notes
	}
	if len(fields) == 0 {
		return inv, nil
	}

	now := s.clock.Now()
	fields["updated_at"] = now
	if err := s.repo.UpdateFields(ctx, inv.ID, fields); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	inv.UpdatedAt = now
	return inv, nil
}

func (s *Service) Delete(ctx context.Context, documentID string) error {
	inv, err := s.GetByDocumentID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, inv.ID); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	s.log.Info("invoice deleted",
		zap.String("document_id", inv.DocumentID),
		zap.String("invoice_number", inv.InvoiceNumber),
	)
	return nil
}

func (s *Service) GetByDocumentID(ctx context.Context, documentID string) (*invoicedomain.Invoice, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, invoicedomain.ErrNotFound
	}
	inv, err := s.repo.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return inv, nil
}

func normalizeClassification(req invoicedomain.CreateRequest) (invoicedomain.Category, invoicedomain.Type, invoicedomain.Status, error) {
	category := invoicedomain.Category(strings.ToLower(strings.TrimSpace(string(req.Category))))
	if !category.Valid() {
		return "", "", "", invoicedomain.ErrInvalidCategory
	}

	invType := invoicedomain.Type(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if invType == "" {
		invType = defaultType(category)
	}
	if !invType.Valid() {
		return "", "", "", invoicedomain.ErrInvalidType
	}

	status := invoicedomain.Status(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if status == "" {
		status = invoicedomain.StatusUnpaid
	}
	if !status.Valid() {
		return "", "", "", invoicedomain.ErrInvalidStatus
	}
	return category, invType, status, nil
}

func defaultType(category invoicedomain.Category) invoicedomain.Type {
	switch category {
	case invoicedomain.CategoryEmployee, invoicedomain.CategorySupplier:
		return invoicedomain.TypeExpense
	default:
		return invoicedomain.TypeCharge
	}
}

// resolveRelations enforces one party per category: enrollment invoices
// point at an enrollment, employee invoices at an employee, and the rest
// at an optional guardian.
func (s *Service) resolveRelations(ctx context.Context, category invoicedomain.Category, req invoicedomain.CreateRequest) (enrollmentID, employeeID, guardianID *snowflake.ID, err error) {
	if enrollmentID, err = s.resolve(ctx, "enrollments", req.Enrollment); err != nil {
		return nil, nil, nil, err
	}
	if employeeID, err = s.resolve(ctx, "employees", req.Employee); err != nil {
		return nil, nil, nil, err
	}
	if guardianID, err = s.resolve(ctx, "guardians", req.Guardian); err != nil {
		return nil, nil, nil, err
	}

	switch category {
	case invoicedomain.CategoryEnrollment:
		if enrollmentID == nil || employeeID != nil || guardianID != nil {
			return nil, nil, nil, invoicedomain.ErrInvalidRelation
		}
	case invoicedomain.CategoryEmployee:
		if employeeID == nil || enrollmentID != nil || guardianID != nil {
			return nil, nil, nil, invoicedomain.ErrInvalidRelation
		}
	default:
		if enrollmentID != nil || employeeID != nil {
			return nil, nil, nil, invoicedomain.ErrInvalidRelation
		}
	}
	return enrollmentID, employeeID, guardianID, nil
}

func (s *Service) resolve(ctx context.Context, table string, in relation.Input) (*snowflake.ID, error) {
	lookup := func(ctx context.Context, docIDs []string) (map[string]snowflake.ID, error) {
		return s.school.LookupDocumentIDs(ctx, table, docIDs)
	}
	id, err := relation.ResolveOne(ctx, in, lookup)
	if err != nil {
		if errors.Is(err, relation.ErrInvalidRelation) || errors.Is(err, relation.ErrUnresolvedRelation) {
			return nil, fmt.Errorf("%w: %s: %v", invoicedomain.ErrInvalidRelation, table, err)
		}
		return nil, err
	}
	return id, nil
}

// nextNumber continues the highest sequence issued under the month prefix.
// Runs are sequential, so read-then-write is sufficient.
func (s *Service) nextNumber(ctx context.Context, template string, issuedAt time.Time) (string, error) {
	prefix := format.NumberPrefix(template, issuedAt)
	last, err := s.repo.LastNumberWithPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("read invoice sequence: %w", err)
	}
	seq := int64(1)
	if current, ok := format.ParseSequence(last, prefix); ok {
		seq = current + 1
	}
	if seq > maxNumberSequence {
		return "", invoicedomain.ErrNumberingExhausted
	}
	return format.FormatInvoiceNumber(template, issuedAt, seq)
}
