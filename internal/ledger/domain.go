package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
)

// InvoiceStatus enumerates the invoice approval states.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoicePending   InvoiceStatus = "PENDING"
	InvoiceApproved  InvoiceStatus = "APPROVED"
	InvoiceRejected  InvoiceStatus = "REJECTED"
	InvoiceConverted InvoiceStatus = "CONVERTED_TO_DEBT"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// InvoiceAction names an invoice transition.
type InvoiceAction string

const (
	ActionSubmit  InvoiceAction = "submit"
	ActionApprove InvoiceAction = "approve"
	ActionReject  InvoiceAction = "reject"
	ActionCancel  InvoiceAction = "cancel"
	ActionConvert InvoiceAction = "convert"
)

type transition struct {
	from []InvoiceStatus
	to   InvoiceStatus
}

// Transitions only move forward.
var invoiceTransitions = map[InvoiceAction]transition{
	ActionSubmit:  {from: []InvoiceStatus{InvoiceDraft}, to: InvoicePending},
	ActionApprove: {from: []InvoiceStatus{InvoicePending}, to: InvoiceApproved},
	ActionReject:  {from: []InvoiceStatus{InvoicePending}, to: InvoiceRejected},
	ActionCancel:  {from: []InvoiceStatus{InvoiceDraft, InvoicePending}, to: InvoiceCancelled},
	ActionConvert: {from: []InvoiceStatus{InvoiceApproved}, to: InvoiceConverted},
}

// Next returns the state reached by applying action, or false when the
// action is not permitted from s.
func (s InvoiceStatus) Next(action InvoiceAction) (InvoiceStatus, bool) {
	t, ok := invoiceTransitions[action]
	if !ok {
		return s, false
	}
	for _, from := range t.from {
		if from == s {
			return t.to, true
		}
	}
	return s, false
}

// Editable reports whether items may still change.
func (s InvoiceStatus) Editable() bool {
	return s == InvoiceDraft || s == InvoicePending
}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoicePending, InvoiceApproved, InvoiceRejected, InvoiceConverted, InvoiceCancelled:
		return true
	}
	return false
}

// DebtStatus enumerates collection states.
type DebtStatus string

const (
	DebtPending            DebtStatus = "PENDING"
	DebtPartiallyCollected DebtStatus = "PARTIALLY_COLLECTED"
	DebtFullyCollected     DebtStatus = "FULLY_COLLECTED"
	DebtWrittenOff         DebtStatus = "WRITTEN_OFF"
)

// Closed reports whether the debt accepts no further payments or charges.
func (s DebtStatus) Closed() bool {
	return s == DebtFullyCollected || s == DebtWrittenOff
}

func (s DebtStatus) Valid() bool {
	switch s {
	case DebtPending, DebtPartiallyCollected, DebtFullyCollected, DebtWrittenOff:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted collection methods.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCheque       PaymentMethod = "CHEQUE"
	PaymentCard         PaymentMethod = "CARD"
	PaymentMobileWallet PaymentMethod = "MOBILE_WALLET"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentCheque, PaymentCard, PaymentMobileWallet:
		return true
	}
	return false
}

// Parties carries identifiers owned by external collaborators. The ledger
// never validates them for existence.
type Parties struct {
	ClinicID     string `json:"clinic_id"`
	ClinicName   string `json:"clinic_name,omitempty"`
	SalesRepID   string `json:"sales_rep_id"`
	SalesRepName string `json:"sales_rep_name,omitempty"`
	LineID       string `json:"line_id,omitempty"`
	AreaID       string `json:"area_id,omitempty"`
}

// InvoiceItem is a priced line. Subtotal and Total are always derived.
type InvoiceItem struct {
	ProductID      string          `json:"product_id"`
	Description    string          `json:"description,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      money.Money     `json:"unit_price"`
	DiscountAmount money.Money     `json:"discount_amount"`
	TaxAmount      money.Money     `json:"tax_amount"`
	Subtotal       money.Money     `json:"subtotal"`
	Total          money.Money     `json:"total"`
}

// Invoice is owned by the invoice lifecycle; conversion only reads it.
type Invoice struct {
	ID           uuid.UUID       `json:"id"`
	Number       string          `json:"invoice_number"`
	Parties                      // clinic / rep / line / area
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Items        []InvoiceItem   `json:"items"`
	Subtotal     money.Money     `json:"subtotal"`
	Discount     money.Money     `json:"discount"`
	Tax          money.Money     `json:"tax"`
	TotalAmount  money.Money     `json:"total_amount"`
	Status       InvoiceStatus   `json:"status"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	DueDate      time.Time       `json:"due_date"`
	Notes        string          `json:"notes,omitempty"`

	CreatedBy       string     `json:"created_by"`
	SubmittedBy     string     `json:"submitted_by,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CancelledBy     string     `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	ConvertedAt     *time.Time `json:"converted_at,omitempty"`
	DebtID          *uuid.UUID `json:"debt_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Debt is the long-lived collectible created from a converted invoice.
// OriginalAmount and OriginalDueDate are an immutable snapshot.
type Debt struct {
	ID              uuid.UUID       `json:"id"`
	Number          string          `json:"debt_number"`
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	Parties                         // copied from the invoice
	Currency        string          `json:"currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	OriginalAmount  money.Money     `json:"original_amount"`
	OriginalDueDate time.Time       `json:"original_due_date"`

	PaidAmount         money.Money     `json:"paid_amount"`
	RemainingAmount    money.Money     `json:"remaining_amount"`
	LateFees           money.Money     `json:"late_fees"`
	TotalDue           money.Money     `json:"total_due"`
	// ExcessAmount is the overpaid part of all payments. PaidAmount excludes
	// it, so PaidAmount never exceeds OriginalAmount.
	ExcessAmount       money.Money     `json:"excess_amount"`
	CollectionAttempts int             `json:"collection_attempts"`
	Status             DebtStatus      `json:"status"`
	AgingCategory      AgingCategory   `json:"aging_category"`
	DaysOverdue        int             `json:"days_overdue"`
	Payments           []PaymentRecord `json:"payments,omitempty"`

	LastPaymentAt  *time.Time `json:"last_payment_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	WrittenOffBy   string     `json:"written_off_by,omitempty"`
	WriteOffReason string     `json:"write_off_reason,omitempty"`
	CreatedBy      string     `json:"created_by"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Outstanding reports whether the debt counts toward receivables.
func (d Debt) Outstanding() bool { return !d.Status.Closed() }

// settle re-derives the balance fields from the original amount and the
// cumulative paid amount, never from the previous remaining amount.
func (d *Debt) settle() error {
	remaining, err := d.OriginalAmount.Sub(d.PaidAmount)
	if err != nil {
		return err
	}
	d.RemainingAmount = remaining.ClampZero()
	if d.TotalDue, err = d.RemainingAmount.Add(d.LateFees); err != nil {
		return err
	}
	if d.Status == DebtWrittenOff {
		return nil
	}
	switch {
	case d.RemainingAmount.IsZero():
		d.Status = DebtFullyCollected
	case d.PaidAmount.IsPositive():
		d.Status = DebtPartiallyCollected
	}
	return nil
}

// PaymentRecord is append-only. Only VerifiedBy may be set after creation,
// and only once.
type PaymentRecord struct {
	ID            uuid.UUID     `json:"id"`
	DebtID        uuid.UUID     `json:"debt_id"`
	PaymentNumber string        `json:"payment_number"`
	ReceiptNumber string        `json:"receipt_number"`
	Amount        money.Money   `json:"amount"`
	ExcessAmount  money.Money   `json:"excess_amount"`
	Method        PaymentMethod `json:"payment_method"`
	PaymentDate   time.Time     `json:"payment_date"`
	CollectedBy   string        `json:"collected_by"`
	VerifiedBy    string        `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time    `json:"verified_at,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Applied is the part of the payment that reduced the debt.
func (p PaymentRecord) Applied() money.Money {
	applied, err := p.Amount.Sub(p.ExcessAmount)
	if err != nil {
		return p.Amount
	}
	return applied
}

// ItemInput is a caller-supplied line. Subtotal and Total are accepted for
// wire compatibility and always overwritten.
type ItemInput struct {
	ProductID      string
	Description    string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
}

// CreateInvoiceInput carries everything needed to open a draft invoice.
// Aggregate totals are never accepted.
type CreateInvoiceInput struct {
	Parties
	Currency     string
	ExchangeRate decimal.Decimal
	InvoiceDate  time.Time
	DueDate      time.Time
	Items        []ItemInput
	Notes        string
	CreatedBy    string
}

// PaymentInput describes a collection against a debt.
type PaymentInput struct {
	DebtID      uuid.UUID
	Amount      decimal.Decimal
	Method      PaymentMethod
	PaymentDate time.Time
	CollectedBy string
	Reference   string
	Notes       string
}

// InvoiceFilter narrows invoice listings. Zero values match everything and
// Limit 0 means no limit.
type InvoiceFilter struct {
	Status     InvoiceStatus
	ClinicID   string
	SalesRepID string
	AreaID     string
	Limit      int
	Offset     int
}

// DebtFilter narrows debt listings.
type DebtFilter struct {
	Status     DebtStatus
	ClinicID   string
	SalesRepID string
	AreaID     string
	Limit      int
	Offset     int
}

// PaymentTotal aggregates the payment records of one debt.
type PaymentTotal struct {
	Count   int
	Applied money.Money
}

// AgingUpdate is the persisted aging snapshot of one debt. Version is the
// debt version the snapshot was computed from; a newer row is left alone.
type AgingUpdate struct {
	DebtID      uuid.UUID
	Version     int64
	DaysOverdue int
	Category    AgingCategory
}
