package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
)

// IntegrityStatus summarises a validation run.
type IntegrityStatus string

const (
	IntegrityClean      IntegrityStatus = "clean"
	IntegrityViolations IntegrityStatus = "violations"
)

// ViolationKind classifies an integrity violation.
type ViolationKind string

const (
	ViolationBalance          ViolationKind = "balance_mismatch"
	ViolationNegativeBalance  ViolationKind = "negative_remaining"
	ViolationTotalDue         ViolationKind = "total_due_mismatch"
	ViolationPaymentSum       ViolationKind = "payment_sum_mismatch"
	ViolationMissingDebt      ViolationKind = "missing_debt"
	ViolationDuplicateDebt    ViolationKind = "duplicate_debt"
	ViolationOpeningAmount    ViolationKind = "opening_amount_mismatch"
	ViolationInvoiceNumber    ViolationKind = "invoice_number_mismatch"
	ViolationOrphanDebt       ViolationKind = "orphan_debt"
	ViolationInvoiceNotClosed ViolationKind = "invoice_not_converted"
	ViolationCurrency         ViolationKind = "currency_mismatch"
)

// Violation is one broken invariant. It is reported, never repaired.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Entity   string        `json:"entity"`
	EntityID uuid.UUID     `json:"entity_id"`
	Number   string        `json:"number"`
	Detail   string        `json:"detail"`
}

// IntegrityReport is the result of a validation run.
type IntegrityReport struct {
	Status          IntegrityStatus `json:"status"`
	Violations      []Violation     `json:"violations"`
	InvoicesChecked int             `json:"invoices_checked"`
	DebtsChecked    int             `json:"debts_checked"`
	CheckedAt       time.Time       `json:"checked_at"`
}

// Clean reports whether no violation was found.
func (r IntegrityReport) Clean() bool { return len(r.Violations) == 0 }

// CountByKind groups violations for metrics.
func (r IntegrityReport) CountByKind() map[ViolationKind]int {
	out := make(map[ViolationKind]int)
	for _, v := range r.Violations {
		out[v.Kind]++
	}
	return out
}

// ValidateIntegrity loads the ledger and checks its invariants. It never
// writes. The three reads run concurrently and may observe slightly
// different snapshots; a violation caused only by that skew disappears on
// the next run.
func (s *Service) ValidateIntegrity(ctx context.Context) (IntegrityReport, error) {
	var (
		invoices []Invoice
		debts    []Debt
		payments map[uuid.UUID]PaymentTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = s.repo.ListInvoices(gctx, InvoiceFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		debts, err = s.repo.ListDebts(gctx, DebtFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.repo.ListPaymentTotals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return IntegrityReport{}, s.fail("integrity.validate", err)
	}

	report := CheckIntegrity(invoices, debts, payments, s.now())
	if report.Clean() {
		s.logger.Info("ledger integrity clean",
			slog.Int("invoices", report.InvoicesChecked),
			slog.Int("debts", report.DebtsChecked),
		)
	} else {
		for _, v := range report.Violations {
			s.logger.Error("ledger integrity violation",
				slog.String("kind", string(v.Kind)),
				slog.String("entity", v.Entity),
				slog.String("entity_id", v.EntityID.String()),
				slog.String("number", v.Number),
				slog.String("detail", v.Detail),
			)
		}
	}
	return report, nil
}

// CheckIntegrity is the pure core of ValidateIntegrity.
func CheckIntegrity(invoices []Invoice, debts []Debt, payments map[uuid.UUID]PaymentTotal, at time.Time) IntegrityReport {
	report := IntegrityReport{
		Status:          IntegrityClean,
		Violations:      []Violation{},
		InvoicesChecked: len(invoices),
		DebtsChecked:    len(debts),
		CheckedAt:       at,
	}
	add := func(kind ViolationKind, entity string, id uuid.UUID, number, format string, args ...any) {
		report.Violations = append(report.Violations, Violation{
			Kind: kind, Entity: entity, EntityID: id, Number: number,
			Detail: fmt.Sprintf(format, args...),
		})
	}

	invoicesByID := make(map[uuid.UUID]Invoice, len(invoices))
	for _, inv := range invoices {
		invoicesByID[inv.ID] = inv
	}
	debtsByInvoice := make(map[uuid.UUID][]Debt)

	for _, d := range debts {
		debtsByInvoice[d.InvoiceID] = append(debtsByInvoice[d.InvoiceID], d)
		checkDebtBalance(d, payments, add)

		inv, ok := invoicesByID[d.InvoiceID]
		if !ok {
			add(ViolationOrphanDebt, "debt", d.ID, d.Number, "references missing invoice %s", d.InvoiceID)
			continue
		}
		if inv.Status != InvoiceConverted {
			add(ViolationInvoiceNotClosed, "debt", d.ID, d.Number, "invoice %s is %s", inv.Number, inv.Status)
		}
		if d.InvoiceNumber != inv.Number {
			add(ViolationInvoiceNumber, "debt", d.ID, d.Number, "invoice_number %q, invoice has %q", d.InvoiceNumber, inv.Number)
		}
	}

	for _, inv := range invoices {
		if inv.Status != InvoiceConverted {
			continue
		}
		linked := debtsByInvoice[inv.ID]
		switch len(linked) {
		case 0:
			add(ViolationMissingDebt, "invoice", inv.ID, inv.Number, "converted invoice has no debt")
			continue
		case 1:
		default:
			add(ViolationDuplicateDebt, "invoice", inv.ID, inv.Number, "%d debts reference this invoice", len(linked))
		}
		for _, d := range linked {
			if !d.OriginalAmount.Equal(inv.TotalAmount) {
				add(ViolationOpeningAmount, "invoice", inv.ID, inv.Number,
					"debt %s original_amount %s, invoice total %s", d.Number, d.OriginalAmount, inv.TotalAmount)
			}
		}
	}

	if len(report.Violations) > 0 {
		report.Status = IntegrityViolations
	}
	return report
}

func checkDebtBalance(d Debt, payments map[uuid.UUID]PaymentTotal, add func(ViolationKind, string, uuid.UUID, string, string, ...any)) {
	if d.RemainingAmount.IsNegative() {
		add(ViolationNegativeBalance, "debt", d.ID, d.Number, "remaining_amount %s", d.RemainingAmount)
	}
	sum, err := d.PaidAmount.Add(d.RemainingAmount)
	if err != nil {
		add(ViolationCurrency, "debt", d.ID, d.Number, "%v", err)
		return
	}
	if !sum.WithinMinorUnit(d.OriginalAmount) {
		add(ViolationBalance, "debt", d.ID, d.Number,
			"paid %s + remaining %s != original %s", d.PaidAmount, d.RemainingAmount, d.OriginalAmount)
	}
	due, err := d.RemainingAmount.Add(d.LateFees)
	if err == nil && !due.WithinMinorUnit(d.TotalDue) {
		add(ViolationTotalDue, "debt", d.ID, d.Number,
			"remaining %s + late fees %s != total_due %s", d.RemainingAmount, d.LateFees, d.TotalDue)
	}
	if payments == nil {
		return
	}
	total, ok := payments[d.ID]
	applied := money.Zero(d.Currency)
	if ok {
		applied = total.Applied
	}
	if !applied.WithinMinorUnit(d.PaidAmount) {
		add(ViolationPaymentSum, "debt", d.ID, d.Number,
			"payments sum to %s, paid_amount is %s", applied, d.PaidAmount)
	}
}
