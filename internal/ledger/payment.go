package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
)

// ApplyPayment appends a payment record and re-derives the debt balance from
// original_amount and the cumulative paid_amount.
//
// An overpayment is accepted: only the remaining balance is applied, the rest
// is stored as excess on the record and the debt for manual follow-up, and
// nothing is refunded. collection_attempts is incremented for every call that
// reaches an existing debt, including calls rejected because it is closed.
func (s *Service) ApplyPayment(ctx context.Context, in PaymentInput) (PaymentRecord, Debt, error) {
	if err := validatePayment(in); err != nil {
		return PaymentRecord{}, Debt{}, s.fail("payment.apply", err)
	}

	var (
		record   PaymentRecord
		debt     Debt
		rejected error
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rejected = nil
		d, err := tx.LockDebt(ctx, in.DebtID)
		if err != nil {
			return err
		}
		amount, err := positiveAmount("amount", in.Amount, d.Currency)
		if err != nil {
			return err
		}
		now := s.now()
		d.CollectionAttempts++
		d.UpdatedAt = now

		if d.Status.Closed() {
			rejected = &DebtClosedError{DebtID: d.ID, Status: d.Status}
			if err := tx.UpdateDebt(ctx, d); err != nil {
				return err
			}
			d.Version++
			debt = d
			return nil
		}

		applied, excess := amount, money.Zero(d.Currency)
		if amount.Cmp(d.RemainingAmount) > 0 {
			applied = d.RemainingAmount
			if excess, err = amount.Sub(applied); err != nil {
				return err
			}
		}
		if d.PaidAmount, err = d.PaidAmount.Add(applied); err != nil {
			return err
		}
		if d.ExcessAmount, err = d.ExcessAmount.Add(excess); err != nil {
			return err
		}
		if err := d.settle(); err != nil {
			return err
		}
		if d.Status.Closed() {
			d.ClosedAt = &now
		}
		d.LastPaymentAt = &now
		d.DaysOverdue, d.AgingCategory = ComputeAging(d, now)

		paymentSeq, err := tx.NextNumber(ctx, sequence.Payment)
		if err != nil {
			return err
		}
		receiptSeq, err := tx.NextNumber(ctx, sequence.Receipt)
		if err != nil {
			return err
		}
		paymentDate := in.PaymentDate
		if paymentDate.IsZero() {
			paymentDate = now
		}
		record = PaymentRecord{
			ID:            uuid.New(),
			DebtID:        d.ID,
			PaymentNumber: sequence.Number(sequence.Payment, now, paymentSeq),
			ReceiptNumber: sequence.Number(sequence.Receipt, now, receiptSeq),
			Amount:        amount,
			ExcessAmount:  excess,
			Method:        in.Method,
			PaymentDate:   paymentDate,
			CollectedBy:   in.CollectedBy,
			Reference:     in.Reference,
			Notes:         in.Notes,
			CreatedAt:     now,
		}
		if err := tx.InsertPayment(ctx, record); err != nil {
			return err
		}
		if err := tx.UpdateDebt(ctx, d); err != nil {
			return err
		}
		d.Version++
		d.Payments = append(d.Payments, record)
		debt = d
		return nil
	})
	if err != nil {
		return PaymentRecord{}, Debt{}, s.fail("payment.apply", err, slog.String("debt_id", in.DebtID.String()))
	}
	if rejected != nil {
		s.logger.Info("payment rejected on closed debt",
			slog.String("debt_id", debt.ID.String()),
			slog.String("status", string(debt.Status)),
			slog.Int("collection_attempts", debt.CollectionAttempts),
		)
		return PaymentRecord{}, debt, s.fail("payment.apply", rejected)
	}

	s.logger.Info("payment applied",
		slog.String("debt_id", debt.ID.String()),
		slog.String("debt_number", debt.Number),
		slog.String("payment_number", record.PaymentNumber),
		slog.String("amount", record.Amount.String()),
		slog.String("remaining", debt.RemainingAmount.String()),
		slog.String("status", string(debt.Status)),
	)
	if record.ExcessAmount.IsPositive() {
		s.metrics.overpayment()
		s.logger.Warn("overpayment recorded for manual follow-up",
			slog.String("debt_id", debt.ID.String()),
			slog.String("payment_number", record.PaymentNumber),
			slog.String("excess", record.ExcessAmount.String()),
		)
	}
	s.metrics.addCollected(record.Applied())
	s.afterCommit(ctx, committed{
		op: "payment.apply", actor: in.CollectedBy, entity: "debt", entityID: debt.ID,
		meta: map[string]any{
			"payment_id":     record.ID.String(),
			"payment_number": record.PaymentNumber,
			"amount":         record.Amount.Amount().String(),
			"excess":         record.ExcessAmount.Amount().String(),
			"status":         string(debt.Status),
		},
	})
	return record, debt, nil
}

func validatePayment(in PaymentInput) error {
	switch {
	case in.DebtID == uuid.Nil:
		return invalid("debt_id", "is required")
	case !in.Amount.IsPositive():
		return invalid("amount", "must be greater than zero")
	case !in.Method.Valid():
		return invalid("payment_method", fmt.Sprintf("unknown method %q", in.Method))
	case strings.TrimSpace(in.CollectedBy) == "":
		return invalid("collected_by", "is required")
	}
	return nil
}

// positiveAmount rounds amount to the minor unit of currency and rejects
// anything that rounds to zero.
func positiveAmount(field string, amount decimal.Decimal, currency string) (money.Money, error) {
	m := money.New(amount, currency)
	if !m.IsPositive() {
		return money.Money{}, invalid(field, "must be at least one minor unit")
	}
	return m, nil
}

// VerifyPayment stamps verified_by on a payment record. It is the only change
// a record accepts after creation and can happen once.
func (s *Service) VerifyPayment(ctx context.Context, debtID, paymentID uuid.UUID, verifier string) (PaymentRecord, error) {
	if err := requireActor("verified_by", verifier); err != nil {
		return PaymentRecord{}, s.fail("payment.verify", err)
	}
	var record PaymentRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPayment(ctx, debtID, paymentID)
		if err != nil {
			return err
		}
		verified := &TransitionError{Entity: "payment", ID: paymentID, From: "VERIFIED", Action: "verify"}
		if p.VerifiedBy != "" {
			return verified
		}
		now := s.now()
		changed, err := tx.MarkPaymentVerified(ctx, paymentID, verifier, now)
		if err != nil {
			return err
		}
		if !changed {
			return verified
		}
		p.VerifiedBy = verifier
		p.VerifiedAt = &now
		record = p
		return nil
	})
	if err != nil {
		return PaymentRecord{}, s.fail("payment.verify", err, slog.String("payment_id", paymentID.String()))
	}
	s.logger.Info("payment verified",
		slog.String("payment_id", paymentID.String()),
		slog.String("payment_number", record.PaymentNumber),
		slog.String("verified_by", verifier),
	)
	s.afterCommit(ctx, committed{
		op: "payment.verify", actor: verifier, entity: "payment", entityID: paymentID,
		meta: map[string]any{"debt_id": debtID.String()},
	})
	return record, nil
}

// AssessLateFee adds a late fee to an open debt. total_due is re-derived;
// paid and remaining amounts are untouched.
func (s *Service) AssessLateFee(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal, actor string) (Debt, error) {
	if err := requireActor("actor", actor); err != nil {
		return Debt{}, s.fail("debt.late_fee", err)
	}
	if !amount.IsPositive() {
		return Debt{}, s.fail("debt.late_fee", invalid("amount", "must be greater than zero"))
	}
	debt, err := s.mutateOpenDebt(ctx, debtID, func(d *Debt) error {
		fee, err := positiveAmount("amount", amount, d.Currency)
		if err != nil {
			return err
		}
		if d.LateFees, err = d.LateFees.Add(fee); err != nil {
			return err
		}
		return d.settle()
	})
	if err != nil {
		return Debt{}, s.fail("debt.late_fee", err, slog.String("debt_id", debtID.String()))
	}
	s.logger.Info("late fee assessed",
		slog.String("debt_id", debtID.String()),
		slog.String("late_fees", debt.LateFees.String()),
		slog.String("total_due", debt.TotalDue.String()),
	)
	s.afterCommit(ctx, committed{
		op: "debt.late_fee", actor: actor, entity: "debt", entityID: debtID,
		meta: map[string]any{"amount": amount.String(), "late_fees": debt.LateFees.Amount().String()},
	})
	return debt, nil
}

// WriteOff closes an open debt as uncollectible. The record is kept.
func (s *Service) WriteOff(ctx context.Context, debtID uuid.UUID, actor, reason string) (Debt, error) {
	if err := requireActor("actor", actor); err != nil {
		return Debt{}, s.fail("debt.write_off", err)
	}
	if strings.TrimSpace(reason) == "" {
		return Debt{}, s.fail("debt.write_off", invalid("reason", "is required"))
	}
	debt, err := s.mutateOpenDebt(ctx, debtID, func(d *Debt) error {
		now := s.now()
		d.Status = DebtWrittenOff
		d.ClosedAt = &now
		d.WrittenOffBy = actor
		d.WriteOffReason = reason
		return d.settle()
	})
	if err != nil {
		return Debt{}, s.fail("debt.write_off", err, slog.String("debt_id", debtID.String()))
	}
	s.logger.Info("debt written off",
		slog.String("debt_id", debtID.String()),
		slog.String("debt_number", debt.Number),
		slog.String("remaining", debt.RemainingAmount.String()),
	)
	s.afterCommit(ctx, committed{
		op: "debt.write_off", actor: actor, entity: "debt", entityID: debtID,
		meta: map[string]any{"reason": reason, "remaining": debt.RemainingAmount.Amount().String()},
	})
	return debt, nil
}

func (s *Service) mutateOpenDebt(ctx context.Context, id uuid.UUID, mutate func(*Debt) error) (Debt, error) {
	var debt Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.LockDebt(ctx, id)
		if err != nil {
			return err
		}
		if d.Status.Closed() {
			return &DebtClosedError{DebtID: d.ID, Status: d.Status}
		}
		if err := mutate(&d); err != nil {
			return err
		}
		now := s.now()
		d.UpdatedAt = now
		d.DaysOverdue, d.AgingCategory = ComputeAging(d, now)
		if err := tx.UpdateDebt(ctx, d); err != nil {
			return err
		}
		d.Version++
		debt = d
		return nil
	})
	return debt, err
}

// GetDebt loads a debt with its payments. Aging is recomputed on read.
func (s *Service) GetDebt(ctx context.Context, id uuid.UUID) (Debt, error) {
	d, err := s.repo.GetDebt(ctx, id)
	if err != nil {
		return Debt{}, s.fail("debt.get", err, slog.String("debt_id", id.String()))
	}
	d.DaysOverdue, d.AgingCategory = ComputeAging(d, s.now())
	return d, nil
}

// ListDebts returns debts matching filter with aging recomputed.
func (s *Service) ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown debt status %q", filter.Status))
	}
	debts, err := s.repo.ListDebts(ctx, filter)
	if err != nil {
		return nil, s.fail("debt.list", err)
	}
	now := s.now()
	for i := range debts {
		debts[i].DaysOverdue, debts[i].AgingCategory = ComputeAging(debts[i], now)
	}
	if debts == nil {
		debts = []Debt{}
	}
	return debts, nil
}
