package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
	"github.com/mafiaidola/13-8-office-sub005/internal/shared"
)

type invoiceTotals struct {
	subtotal money.Money
	discount money.Money
	tax      money.Money
	total    money.Money
}

// priceItems validates caller lines and derives every amount server side.
// subtotal = quantity*unit_price - discount, total = subtotal + tax.
func priceItems(inputs []ItemInput, currency string) ([]InvoiceItem, invoiceTotals, error) {
	totals := invoiceTotals{
		subtotal: money.Zero(currency),
		discount: money.Zero(currency),
		tax:      money.Zero(currency),
		total:    money.Zero(currency),
	}
	if len(inputs) == 0 {
		return nil, totals, invalid("items", "must contain at least one item")
	}
	items := make([]InvoiceItem, 0, len(inputs))
	for i, in := range inputs {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		switch {
		case strings.TrimSpace(in.ProductID) == "":
			return nil, totals, invalid(field("product_id"), "is required")
		case !in.Quantity.IsPositive():
			return nil, totals, invalid(field("quantity"), "must be greater than zero")
		case in.UnitPrice.IsNegative():
			return nil, totals, invalid(field("unit_price"), "must not be negative")
		case in.DiscountAmount.IsNegative():
			return nil, totals, invalid(field("discount_amount"), "must not be negative")
		case in.TaxAmount.IsNegative():
			return nil, totals, invalid(field("tax_amount"), "must not be negative")
		}

		item := InvoiceItem{
			ProductID:      strings.TrimSpace(in.ProductID),
			Description:    in.Description,
			Quantity:       in.Quantity,
			UnitPrice:      money.New(in.UnitPrice, currency),
			DiscountAmount: money.New(in.DiscountAmount, currency),
			TaxAmount:      money.New(in.TaxAmount, currency),
		}
		gross := item.UnitPrice.Mul(item.Quantity)
		subtotal, err := gross.Sub(item.DiscountAmount)
		if err != nil {
			return nil, totals, err
		}
		if subtotal.IsNegative() {
			return nil, totals, invalid(field("discount_amount"), "exceeds the line amount")
		}
		item.Subtotal = subtotal
		if item.Total, err = subtotal.Add(item.TaxAmount); err != nil {
			return nil, totals, err
		}
		items = append(items, item)
	}
	if err := totals.accumulate(items); err != nil {
		return nil, totals, err
	}
	return items, totals, nil
}

func (t *invoiceTotals) accumulate(items []InvoiceItem) error {
	var err error
	for _, item := range items {
		if t.subtotal, err = t.subtotal.Add(item.Subtotal); err != nil {
			return err
		}
		if t.discount, err = t.discount.Add(item.DiscountAmount); err != nil {
			return err
		}
		if t.tax, err = t.tax.Add(item.TaxAmount); err != nil {
			return err
		}
		if t.total, err = t.total.Add(item.Total); err != nil {
			return err
		}
	}
	return nil
}

func (t invoiceTotals) apply(inv *Invoice) {
	inv.Subtotal = t.subtotal
	inv.Discount = t.discount
	inv.Tax = t.tax
	inv.TotalAmount = t.total
}

// CreateInvoice validates and prices the items, issues an invoice number and
// stores the invoice as DRAFT.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	inv, err := s.buildInvoice(in)
	if err != nil {
		return Invoice{}, s.fail("invoice.create", err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextNumber(ctx, sequence.Invoice)
		if err != nil {
			return err
		}
		inv.Number = sequence.Number(sequence.Invoice, inv.InvoiceDate, seq)
		return tx.InsertInvoice(ctx, inv)
	})
	if err != nil {
		return Invoice{}, s.fail("invoice.create", err, slog.String("clinic_id", inv.ClinicID))
	}

	s.logger.Info("invoice created",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("invoice_number", inv.Number),
		slog.String("total", inv.TotalAmount.String()),
	)
	s.afterCommit(ctx, committed{
		op:       "invoice.create",
		actor:    inv.CreatedBy,
		entity:   "invoice",
		entityID: inv.ID,
		meta:     map[string]any{"number": inv.Number, "total": inv.TotalAmount.Amount().String()},
	})
	return inv, nil
}

func (s *Service) buildInvoice(in CreateInvoiceInput) (Invoice, error) {
	if err := requireActor("created_by", in.CreatedBy); err != nil {
		return Invoice{}, err
	}
	if strings.TrimSpace(in.ClinicID) == "" {
		return Invoice{}, invalid("clinic_id", "is required")
	}
	if strings.TrimSpace(in.SalesRepID) == "" {
		return Invoice{}, invalid("sales_rep_id", "is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.cfg.Currency
	}
	if err := money.ValidateCurrency(currency); err != nil {
		return Invoice{}, invalid("currency", err.Error())
	}
	rate := in.ExchangeRate
	switch {
	case rate.IsZero():
		rate = decimal.NewFromInt(1)
	case rate.IsNegative():
		return Invoice{}, invalid("exchange_rate", "must be greater than zero")
	}
	if currency == s.cfg.Currency && !rate.Equal(decimal.NewFromInt(1)) {
		return Invoice{}, invalid("exchange_rate", "must be 1 for the base currency")
	}

	items, totals, err := priceItems(in.Items, currency)
	if err != nil {
		return Invoice{}, err
	}

	now := s.now()
	invoiceDate := in.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = now
	}
	due := in.DueDate
	if due.IsZero() {
		due = dateOf(invoiceDate).AddDate(0, 0, s.cfg.DefaultDueDays)
	}
	if dateOf(due).Before(dateOf(invoiceDate)) {
		return Invoice{}, invalid("due_date", "must not precede the invoice date")
	}

	inv := Invoice{
		ID:           uuid.New(),
		Parties:      in.Parties,
		Currency:     currency,
		ExchangeRate: rate,
		Items:        items,
		Status:       InvoiceDraft,
		InvoiceDate:  invoiceDate,
		DueDate:      dateOf(due),
		Notes:        in.Notes,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	totals.apply(&inv)
	return inv, nil
}

// UpdateItems replaces the items of a DRAFT or PENDING invoice and
// re-derives its totals.
func (s *Service) UpdateItems(ctx context.Context, id uuid.UUID, inputs []ItemInput, actor string) (Invoice, error) {
	if err := requireActor("actor", actor); err != nil {
		return Invoice{}, s.fail("invoice.update_items", err)
	}
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.Editable() {
			return &TransitionError{Entity: "invoice", ID: id, From: string(current.Status), Action: "edit"}
		}
		items, totals, err := priceItems(inputs, current.Currency)
		if err != nil {
			return err
		}
		current.Items = items
		totals.apply(&current)
		current.UpdatedAt = s.now()
		if err := tx.ReplaceInvoiceItems(ctx, id, items); err != nil {
			return err
		}
		if err := tx.UpdateInvoice(ctx, current); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return Invoice{}, s.fail("invoice.update_items", err, slog.String("invoice_id", id.String()))
	}
	s.logger.Info("invoice items updated",
		slog.String("invoice_id", id.String()),
		slog.String("total", inv.TotalAmount.String()),
	)
	s.afterCommit(ctx, committed{
		op: "invoice.update_items", actor: actor, entity: "invoice", entityID: id,
		meta: map[string]any{"items": len(inv.Items), "total": inv.TotalAmount.Amount().String()},
	})
	return inv, nil
}

// SubmitInvoice moves a DRAFT invoice to PENDING.
func (s *Service) SubmitInvoice(ctx context.Context, id uuid.UUID, actor string) (Invoice, error) {
	return s.transition(ctx, id, ActionSubmit, actor, shared.ApprovalSubmit, "", func(inv *Invoice, now time.Time) {
		inv.SubmittedBy = actor
		inv.SubmittedAt = &now
	})
}

// RejectInvoice moves a PENDING invoice to REJECTED.
func (s *Service) RejectInvoice(ctx context.Context, id uuid.UUID, actor, reason string) (Invoice, error) {
	if strings.TrimSpace(reason) == "" {
		return Invoice{}, s.fail("invoice.reject", invalid("reason", "is required"))
	}
	return s.transition(ctx, id, ActionReject, actor, shared.ApprovalReject, reason, func(inv *Invoice, now time.Time) {
		inv.RejectedBy = actor
		inv.RejectedAt = &now
		inv.RejectionReason = reason
	})
}

// CancelInvoice cancels a DRAFT or PENDING invoice.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID, actor string) (Invoice, error) {
	return s.transition(ctx, id, ActionCancel, actor, shared.ApprovalCancel, "", func(inv *Invoice, now time.Time) {
		inv.CancelledBy = actor
		inv.CancelledAt = &now
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, action InvoiceAction, actor string, approval shared.ApprovalAction, note string, stamp func(*Invoice, time.Time)) (Invoice, error) {
	op := "invoice." + string(action)
	if err := requireActor("actor", actor); err != nil {
		return Invoice{}, s.fail(op, err)
	}
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		next, ok := current.Status.Next(action)
		if !ok {
			return &TransitionError{Entity: "invoice", ID: id, From: string(current.Status), Action: string(action)}
		}
		now := s.now()
		current.Status = next
		current.UpdatedAt = now
		stamp(&current, now)
		if err := tx.UpdateInvoice(ctx, current); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return Invoice{}, s.fail(op, err, slog.String("invoice_id", id.String()))
	}
	s.logger.Info("invoice "+string(action),
		slog.String("invoice_id", id.String()),
		slog.String("invoice_number", inv.Number),
		slog.String("status", string(inv.Status)),
	)
	s.afterCommit(ctx, committed{
		op: op, actor: actor, entity: "invoice", entityID: id,
		meta:     map[string]any{"status": string(inv.Status)},
		approval: approval, note: note,
	})
	return inv, nil
}

// ApproveInvoice moves a PENDING invoice to APPROVED. With convertToDebt the
// debt is created in the same transaction, so the invoice is never left
// approved but unconverted.
func (s *Service) ApproveInvoice(ctx context.Context, id uuid.UUID, approver string, convertToDebt bool) (Invoice, *Debt, error) {
	if err := requireActor("approved_by", approver); err != nil {
		return Invoice{}, nil, s.fail("invoice.approve", err)
	}
	var (
		inv  Invoice
		debt *Debt
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		next, ok := current.Status.Next(ActionApprove)
		if !ok {
			return &TransitionError{Entity: "invoice", ID: id, From: string(current.Status), Action: string(ActionApprove)}
		}
		now := s.now()
		current.Status = next
		current.ApprovedBy = approver
		current.ApprovedAt = &now
		current.UpdatedAt = now
		if convertToDebt {
			d, err := s.convertLocked(ctx, tx, &current, approver, now)
			if err != nil {
				return err
			}
			debt = &d
		}
		if err := tx.UpdateInvoice(ctx, current); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return Invoice{}, nil, s.fail("invoice.approve", err, slog.String("invoice_id", id.String()))
	}

	attrs := []any{
		slog.String("invoice_id", id.String()),
		slog.String("invoice_number", inv.Number),
		slog.String("approved_by", approver),
	}
	if debt != nil {
		attrs = append(attrs, slog.String("debt_number", debt.Number))
	}
	s.logger.Info("invoice approved", attrs...)
	s.afterCommit(ctx, committed{
		op: "invoice.approve", actor: approver, entity: "invoice", entityID: id,
		meta:     map[string]any{"status": string(inv.Status), "converted": debt != nil},
		approval: shared.ApprovalApprove,
	})
	if debt != nil {
		s.afterCommit(ctx, s.debtCreated(*debt, approver))
	}
	return inv, debt, nil
}

// GetInvoice loads an invoice with its items.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, s.fail("invoice.get", err, slog.String("invoice_id", id.String()))
	}
	return inv, nil
}

// ListInvoices returns invoices matching filter. An empty result is an empty
// slice, never an error.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown invoice status %q", filter.Status))
	}
	invoices, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, s.fail("invoice.list", err)
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	return invoices, nil
}
