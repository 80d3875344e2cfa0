package ledgerhttp

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mafiaidola/13-8-office-sub005/internal/ledger"
)

type itemRequest struct {
	ProductID      string          `json:"product_id" validate:"required"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	// Accepted for compatibility with clients that send computed values;
	// always recomputed.
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

func (i itemRequest) input() ledger.ItemInput {
	return ledger.ItemInput{
		ProductID:      i.ProductID,
		Description:    i.Description,
		Quantity:       i.Quantity,
		UnitPrice:      i.UnitPrice,
		DiscountAmount: i.DiscountAmount,
		TaxAmount:      i.TaxAmount,
		Subtotal:       i.Subtotal,
		Total:          i.Total,
	}
}

func itemInputs(items []itemRequest) []ledger.ItemInput {
	out := make([]ledger.ItemInput, 0, len(items))
	for _, i := range items {
		out = append(out, i.input())
	}
	return out
}

type createInvoiceRequest struct {
	ClinicID     string          `json:"clinic_id" validate:"required"`
	ClinicName   string          `json:"clinic_name"`
	SalesRepID   string          `json:"sales_rep_id" validate:"required"`
	SalesRepName string          `json:"sales_rep_name"`
	LineID       string          `json:"line_id"`
	AreaID       string          `json:"area_id"`
	Currency     string          `json:"currency" validate:"omitempty,len=3,alpha"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	InvoiceDate  string          `json:"invoice_date"`
	DueDate      string          `json:"due_date"`
	Items        []itemRequest   `json:"items" validate:"required,min=1,dive"`
	Notes        string          `json:"notes" validate:"max=2000"`
}

func (req createInvoiceRequest) input(actor string) (ledger.CreateInvoiceInput, error) {
	invoiceDate, err := parseDate("invoice_date", req.InvoiceDate)
	if err != nil {
		return ledger.CreateInvoiceInput{}, err
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return ledger.CreateInvoiceInput{}, err
	}
	return ledger.CreateInvoiceInput{
		Parties: ledger.Parties{
			ClinicID:     req.ClinicID,
			ClinicName:   req.ClinicName,
			SalesRepID:   req.SalesRepID,
			SalesRepName: req.SalesRepName,
			LineID:       req.LineID,
			AreaID:       req.AreaID,
		},
		Currency:     req.Currency,
		ExchangeRate: req.ExchangeRate,
		InvoiceDate:  invoiceDate,
		DueDate:      dueDate,
		Items:        itemInputs(req.Items),
		Notes:        req.Notes,
		CreatedBy:    actor,
	}, nil
}

type updateItemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type approveRequest struct {
	ConvertToDebt bool `json:"convert_to_debt"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=CASH BANK_TRANSFER CHEQUE CARD MOBILE_WALLET"`
	PaymentDate   string          `json:"payment_date"`
	Reference     string          `json:"reference" validate:"max=120"`
	Notes         string          `json:"notes" validate:"max=2000"`
}

type lateFeeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type paymentResponse struct {
	Payment ledger.PaymentRecord `json:"payment"`
	Debt    ledger.Debt          `json:"debt"`
}

type approveResponse struct {
	Invoice ledger.Invoice `json:"invoice"`
	Debt    *ledger.Debt   `json:"debt,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// parseDate accepts a calendar date or an RFC3339 timestamp. Empty input is
// the zero time, letting the service apply its defaults.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: field, Reason: fmt.Sprintf("invalid date %q", value)}
	}
	return t.UTC(), nil
}
