package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
)

// ConvertInvoice materializes the debt of an APPROVED invoice and flips the
// invoice to CONVERTED_TO_DEBT in one transaction. A second call fails with
// AlreadyConvertedError.
func (s *Service) ConvertInvoice(ctx context.Context, id uuid.UUID, actor string) (Debt, error) {
	if err := requireActor("actor", actor); err != nil {
		return Debt{}, s.fail("invoice.convert", err)
	}
	var debt Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if debt, err = s.convertLocked(ctx, tx, &inv, actor, s.now()); err != nil {
			return err
		}
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return Debt{}, s.fail("invoice.convert", err, slog.String("invoice_id", id.String()))
	}
	s.afterCommit(ctx, s.debtCreated(debt, actor))
	return debt, nil
}

// convertLocked expects inv to be locked by tx. It inserts the debt and
// updates inv in memory; the caller persists inv.
func (s *Service) convertLocked(ctx context.Context, tx TxRepository, inv *Invoice, actor string, now time.Time) (Debt, error) {
	if inv.DebtID != nil {
		return Debt{}, &AlreadyConvertedError{InvoiceID: inv.ID, DebtID: *inv.DebtID}
	}
	existing, found, err := tx.DebtIDByInvoice(ctx, inv.ID)
	if err != nil {
		return Debt{}, err
	}
	if found {
		return Debt{}, &AlreadyConvertedError{InvoiceID: inv.ID, DebtID: existing}
	}
	if inv.Status == InvoiceConverted {
		return Debt{}, &AlreadyConvertedError{InvoiceID: inv.ID}
	}
	next, ok := inv.Status.Next(ActionConvert)
	if !ok {
		return Debt{}, &TransitionError{Entity: "invoice", ID: inv.ID, From: string(inv.Status), Action: string(ActionConvert)}
	}

	seq, err := tx.NextNumber(ctx, sequence.Debt)
	if err != nil {
		return Debt{}, err
	}
	zero := money.Zero(inv.Currency)
	debt := Debt{
		ID:                 uuid.New(),
		Number:             sequence.Number(sequence.Debt, now, seq),
		InvoiceID:          inv.ID,
		InvoiceNumber:      inv.Number,
		Parties:            inv.Parties,
		Currency:           inv.Currency,
		ExchangeRate:       inv.ExchangeRate,
		OriginalAmount:     inv.TotalAmount,
		OriginalDueDate:    inv.DueDate,
		PaidAmount:         zero,
		RemainingAmount:    inv.TotalAmount,
		LateFees:           zero,
		TotalDue:           inv.TotalAmount,
		ExcessAmount:       zero,
		CollectionAttempts: 0,
		Status:             DebtPending,
		CreatedBy:          actor,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	debt.DaysOverdue, debt.AgingCategory = ComputeAging(debt, now)
	if err := tx.InsertDebt(ctx, debt); err != nil {
		return Debt{}, err
	}

	inv.Status = next
	inv.ConvertedAt = &now
	inv.DebtID = &debt.ID
	inv.UpdatedAt = now
	return debt, nil
}

func (s *Service) debtCreated(d Debt, actor string) committed {
	s.logger.Info("debt created",
		slog.String("debt_id", d.ID.String()),
		slog.String("debt_number", d.Number),
		slog.String("invoice_number", d.InvoiceNumber),
		slog.String("original_amount", d.OriginalAmount.String()),
	)
	return committed{
		op: "debt.create", actor: actor, entity: "debt", entityID: d.ID,
		meta: map[string]any{
			"invoice_id":      d.InvoiceID.String(),
			"number":          d.Number,
			"original_amount": d.OriginalAmount.Amount().String(),
		},
	}
}
