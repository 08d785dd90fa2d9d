package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escolar/internal/calculator"
	execlogdomain "github.com/smallbiznis/escolar/internal/executionlog/domain"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/smallbiznis/escolar/pkg/relation"
	"go.uber.org/zap"
)

const (
	skipZeroAmount       = "zero_amount"
	skipAlreadySimulated = "already_simulated"
)

func (s *Scheduler) billEnrollments(ctx context.Context, p *pass, batch int, summary *Summary) error {
	run := runFrom(ctx)
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := s.school.ListActiveEnrollments(ctx, offset, batch)
		if err != nil {
			return fmt.Errorf("list enrollments at offset %d: %w", offset, err)
		}
		for i := range items {
			s.billEnrollment(ctx, p, items[i], summary)
		}
		run.seen(len(items))
		offset += len(items)
		if len(items) < batch {
			return nil
		}
	}
}

func (s *Scheduler) billEmployees(ctx context.Context, p *pass, batch int, summary *Summary) error {
	run := runFrom(ctx)
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := s.school.ListActiveEmployees(ctx, offset, batch)
		if err != nil {
			return fmt.Errorf("list employees at offset %d: %w", offset, err)
		}
		for i := range items {
			s.billEmployee(ctx, p, items[i], summary)
		}
		run.seen(len(items))
		offset += len(items)
		if len(items) < batch {
			return nil
		}
	}
}

func (s *Scheduler) billEnrollment(ctx context.Context, p *pass, enr schooldomain.Enrollment, summary *Summary) {
	category := invoicedomain.CategoryEnrollment

	period, err := s.schoolPeriod(ctx, p, enr.SchoolPeriodID)
	if err != nil {
		s.entityFailed(ctx, summary, category, enr.DocumentID, fmt.Errorf("load school period: %w", err))
		return
	}
	decision, err := p.engine.EvaluateEnrollment(ctx, enr, period, p.now, p.opts)
	if err != nil {
		s.entityFailed(ctx, summary, category, enr.DocumentID, fmt.Errorf("evaluate eligibility: %w", err))
		return
	}
	if !decision.Eligible() {
		s.skipped(summary, category, string(decision))
		return
	}
	if done, err := s.simulatedAlready(ctx, p, category, enr.ID); err != nil {
		s.entityFailed(ctx, summary, category, enr.DocumentID, err)
		return
	} else if done {
		s.skipped(summary, category, skipAlreadySimulated)
		return
	}

	services, err := s.school.ServicesByIDs(ctx, enr.ServiceIDs)
	if err != nil {
		s.entityFailed(ctx, summary, category, enr.DocumentID, fmt.Errorf("load services: %w", err))
		return
	}
	result, err := p.calc.Enrollment(services, enr.AdditionalAmount)
	if errors.Is(err, calculator.ErrNothingToBill) {
		s.skipped(summary, category, skipZeroAmount)
		return
	}
	if err != nil {
		s.entityFailed(ctx, summary, category, enr.DocumentID, fmt.Errorf("calculate amounts: %w", err))
		return
	}

	inv, err := s.invoiceSvc.Create(ctx, invoicedomain.CreateRequest{
		Category:      category,
		Type:          invoicedomain.TypeCharge,
		Status:        invoicedomain.StatusUnpaid,
		Amounts:       result.Lines,
		EmissionDate:  p.now,
		Enrollment:    relation.ByRawID(enr.ID),
		Simulation:    p.simulation(),
		SimulationTag: p.tag,
	})
	if err != nil {
		s.entityFailed(ctx, summary, category, enr.DocumentID, fmt.Errorf("create invoice: %w", err))
		return
	}

	if !p.simulation() {
		if err := s.school.MarkEnrollmentBilled(ctx, enr.ID, p.monthKey, inv.DocumentID, p.now); err != nil {
			// The invoice exists, so the existence check still blocks a second one.
			s.logEntityError(ctx, "billing ledger update failed", string(category), enr.DocumentID, err,
				zap.String("invoice_id", inv.DocumentID))
		}
	}
	s.created(ctx, p, summary, inv, enr.DocumentID, result)
}

func (s *Scheduler) billEmployee(ctx context.Context, p *pass, emp schooldomain.Employee, summary *Summary) {
	category := invoicedomain.CategoryEmployee

	decision, err := p.engine.EvaluateEmployee(ctx, emp, p.now, p.opts)
	if err != nil {
		s.entityFailed(ctx, summary, category, emp.DocumentID, fmt.Errorf("evaluate eligibility: %w", err))
		return
	}
	if !decision.Eligible() {
		s.skipped(summary, category, string(decision))
		return
	}
	if done, err := s.simulatedAlready(ctx, p, category, emp.ID); err != nil {
		s.entityFailed(ctx, summary, category, emp.DocumentID, err)
		return
	} else if done {
		s.skipped(summary, category, skipAlreadySimulated)
		return
	}

	result, err := p.calc.Employee(emp, emp.AdditionalAmount)
	if errors.Is(err, calculator.ErrNothingToBill) {
		s.skipped(summary, category, skipZeroAmount)
		return
	}
	if err != nil {
		s.entityFailed(ctx, summary, category, emp.DocumentID, fmt.Errorf("calculate amounts: %w", err))
		return
	}

	inv, err := s.invoiceSvc.Create(ctx, invoicedomain.CreateRequest{
		Category:      category,
		Type:          invoicedomain.TypeExpense,
		Status:        invoicedomain.StatusUnpaid,
		Amounts:       result.Lines,
		EmissionDate:  p.now,
		Employee:      relation.ByRawID(emp.ID),
		Simulation:    p.simulation(),
		SimulationTag: p.tag,
	})
	if err != nil {
		s.entityFailed(ctx, summary, category, emp.DocumentID, fmt.Errorf("create invoice: %w", err))
		return
	}

	if !p.simulation() {
		if err := s.school.MarkEmployeeBilled(ctx, emp.ID, p.monthKey, inv.DocumentID, p.now); err != nil {
			s.logEntityError(ctx, "billing ledger update failed", string(category), emp.DocumentID, err,
				zap.String("invoice_id", inv.DocumentID))
		}
	}
	s.created(ctx, p, summary, inv, emp.DocumentID, result)
}

// simulatedAlready dedupes simulation runs against invoices carrying the same tag.
func (s *Scheduler) simulatedAlready(ctx context.Context, p *pass, category invoicedomain.Category, id snowflake.ID) (bool, error) {
	if !p.simulation() {
		return false, nil
	}
	exists, err := s.invoices.ExistsSimulation(ctx, category, id, p.tag, p.monthStart, p.monthEnd)
	if err != nil {
		return false, fmt.Errorf("check simulation: %w", err)
	}
	return exists, nil
}

func (s *Scheduler) schoolPeriod(ctx context.Context, p *pass, id *snowflake.ID) (*schooldomain.SchoolPeriod, error) {
	if id == nil {
		return nil, nil
	}
	if cached, ok := p.periods[*id]; ok {
		return cached, nil
	}
	period, err := s.school.GetSchoolPeriod(ctx, *id)
	if err != nil {
		return nil, err
	}
	p.periods[*id] = period
	return period, nil
}

func (s *Scheduler) skipped(summary *Summary, category invoicedomain.Category, reason string) {
	summary.skip(reason)
	s.metrics.IncSkipped(string(category), reason)
}

func (s *Scheduler) entityFailed(ctx context.Context, summary *Summary, category invoicedomain.Category, entityID string, err error) {
	s.logEntityError(ctx, "billing entity failed", string(category), entityID, err)
	summary.Errors = append(summary.Errors, EntityError{
		Category: string(category),
		EntityID: entityID,
		Message:  err.Error(),
	})
	s.metrics.IncEntityError(string(category))
	if logErr := s.execLog.Log(ctx, execlogdomain.LevelError, "Error de facturación",
		fmt.Sprintf("%s %s: %v", category, entityID, err),
		map[string]any{"category": string(category), "entity": entityID, "month": summary.MonthKey},
	); logErr != nil {
		s.log.Warn("write execution log failed", zap.Error(logErr))
	}
}

func (s *Scheduler) created(ctx context.Context, p *pass, summary *Summary, inv *invoicedomain.Invoice, entityID string, result calculator.Result) {
	summary.Created++
	summary.InvoiceIDs = append(summary.InvoiceIDs, inv.DocumentID)
	s.metrics.IncInvoiceCreated(string(inv.Category), inv.Simulation)

	title := "Factura generada"
	if inv.Simulation {
		title = "Factura simulada"
	}
	payload := map[string]any{
		"invoice":       inv.DocumentID,
		"invoiceNumber": inv.InvoiceNumber,
		"category":      string(inv.Category),
		"entity":        entityID,
		"month":         p.monthKey,
		"subtotal":      result.Subtotal.StringFixed(2),
		"total":         inv.Total.StringFixed(2),
	}
	if inv.Simulation {
		payload["tag"] = inv.SimulationTag
	}
	if err := s.execLog.Log(ctx, execlogdomain.LevelInfo, title,
		fmt.Sprintf("%s %s por %s EUR", inv.InvoiceNumber, entityID, inv.Total.StringFixed(2)),
		payload,
	); err != nil {
		s.log.Warn("write execution log failed", zap.Error(err))
	}

	s.logger(ctx).Debug("invoice.generated",
		zap.String("invoice_id", inv.DocumentID),
		zap.String("category", string(inv.Category)),
		zap.String("entity_id", entityID),
		zap.String("month", p.monthKey),
		zap.Bool("simulation", inv.Simulation),
	)
}
