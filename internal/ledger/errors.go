package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation             = errors.New("ledger: validation failed")
	ErrInvalidStateTransition = errors.New("ledger: invalid state transition")
	ErrAlreadyConverted       = errors.New("ledger: invoice already converted")
	ErrDebtClosed             = errors.New("ledger: debt closed")
	ErrStorageContention      = errors.New("ledger: storage contention")
	ErrNotFound               = errors.New("ledger: not found")
)

// ValidationError describes a rejected input field. No state was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError reports an action attempted from the wrong state.
type TransitionError struct {
	Entity string
	ID     uuid.UUID
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// AlreadyConvertedError is returned when an invoice already has its debt.
type AlreadyConvertedError struct {
	InvoiceID uuid.UUID
	DebtID    uuid.UUID
}

func (e *AlreadyConvertedError) Error() string {
	if e.DebtID == uuid.Nil {
		return fmt.Sprintf("invoice %s already converted to debt", e.InvoiceID)
	}
	return fmt.Sprintf("invoice %s already converted to debt %s", e.InvoiceID, e.DebtID)
}

func (e *AlreadyConvertedError) Unwrap() error { return ErrAlreadyConverted }

// DebtClosedError is returned for mutations against a collected or written
// off debt.
type DebtClosedError struct {
	DebtID uuid.UUID
	Status DebtStatus
}

func (e *DebtClosedError) Error() string {
	return fmt.Sprintf("debt %s is closed (%s)", e.DebtID, e.Status)
}

func (e *DebtClosedError) Unwrap() error { return ErrDebtClosed }

// Contention marks err as safe to retry with backoff.
func Contention(err error) error {
	if err == nil || errors.Is(err, ErrStorageContention) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageContention, err)
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageContention)
}
