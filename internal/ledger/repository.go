package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mafiaidola/13-8-office-sub005/internal/sequence"
)

// Repository defines ledger data access.
type Repository interface {
	// WithTx runs fn atomically. Any error rolls back every write made
	// through the TxRepository, including issued document numbers when the
	// sequencer participates in the transaction.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	GetDebt(ctx context.Context, id uuid.UUID) (Debt, error)
	ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error)
	ListPaymentTotals(ctx context.Context) (map[uuid.UUID]PaymentTotal, error)
	UpdateAging(ctx context.Context, updates []AgingUpdate) (int, error)
}

// TxRepository defines operations within a transaction. Lock* methods
// return the row locked for the rest of the transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, t sequence.DocumentType) (int64, error)

	InsertInvoice(ctx context.Context, inv Invoice) error
	LockInvoice(ctx context.Context, id uuid.UUID) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	ReplaceInvoiceItems(ctx context.Context, invoiceID uuid.UUID, items []InvoiceItem) error

	DebtIDByInvoice(ctx context.Context, invoiceID uuid.UUID) (uuid.UUID, bool, error)
	InsertDebt(ctx context.Context, debt Debt) error
	LockDebt(ctx context.Context, id uuid.UUID) (Debt, error)
	// UpdateDebt persists debt if its Version still matches the stored row
	// and bumps the stored version. A mismatch is ErrStorageContention.
	UpdateDebt(ctx context.Context, debt Debt) error

	InsertPayment(ctx context.Context, p PaymentRecord) error
	GetPayment(ctx context.Context, debtID, paymentID uuid.UUID) (PaymentRecord, error)
	// MarkPaymentVerified sets verified_by only when it is still empty and
	// reports whether the row was changed.
	MarkPaymentVerified(ctx context.Context, paymentID uuid.UUID, verifier string, at time.Time) (bool, error)
}
