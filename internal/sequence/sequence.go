// Package sequence issues strictly increasing document numbers per document
// type. Every backend relies on a storage-level atomic increment; there is no
// read-then-write fallback.
package sequence

import (
	"context"
	"errors"
	"fmt"
)

// DocumentType identifies an independently numbered document series.
type DocumentType string

const (
	Invoice DocumentType = "invoice"
	Debt    DocumentType = "debt"
	Payment DocumentType = "payment"
	Receipt DocumentType = "receipt"
)

var prefixes = map[DocumentType]string{
	Invoice: "INV",
	Debt:    "DEBT",
	Payment: "PAY",
	Receipt: "RCP",
}

var (
	// ErrUnknownDocumentType is returned for series the ledger does not number.
	ErrUnknownDocumentType = errors.New("sequence: unknown document type")
	// ErrUnavailable wraps any failure of the backing store's increment.
	ErrUnavailable = errors.New("sequence: backend unavailable")
)

// Prefix returns the document number prefix, e.g. INV.
func (t DocumentType) Prefix() string { return prefixes[t] }

// Valid reports whether t is a known series.
func (t DocumentType) Valid() bool {
	_, ok := prefixes[t]
	return ok
}

// ParseDocumentType converts user input into a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
	}
	return t, nil
}

// DocumentTypes lists every numbered series.
func DocumentTypes() []DocumentType {
	return []DocumentType{Invoice, Debt, Payment, Receipt}
}

// Sequencer is the only writer of the per-type counters.
type Sequencer interface {
	// Next atomically increments the counter for t and returns the new value.
	// A missing counter starts at zero, so the first call returns 1.
	Next(ctx context.Context, t DocumentType) (int64, error)
	// Peek returns the last issued value without incrementing.
	Peek(ctx context.Context, t DocumentType) (int64, error)
}

func unavailable(t DocumentType, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, t, err)
}

func checkType(t DocumentType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDocumentType, string(t))
	}
	return nil
}
