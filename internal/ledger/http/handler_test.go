package ledgerhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mafiaidola/13-8-office-sub005/internal/ledger"
	"github.com/mafiaidola/13-8-office-sub005/internal/money"
	"github.com/mafiaidola/13-8-office-sub005/internal/platform/httpx"
	"github.com/mafiaidola/13-8-office-sub005/internal/shared"
)

var errNotStubbed = errors.New("not stubbed")

type stubLedgerService struct {
	createInvoiceFn   func(ctx context.Context, in ledger.CreateInvoiceInput) (ledger.Invoice, error)
	getInvoiceFn      func(ctx context.Context, id uuid.UUID) (ledger.Invoice, error)
	listInvoicesFn    func(ctx context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, error)
	updateItemsFn     func(ctx context.Context, id uuid.UUID, items []ledger.ItemInput, actor string) (ledger.Invoice, error)
	submitInvoiceFn   func(ctx context.Context, id uuid.UUID, actor string) (ledger.Invoice, error)
	approveInvoiceFn  func(ctx context.Context, id uuid.UUID, approver string, convert bool) (ledger.Invoice, *ledger.Debt, error)
	rejectInvoiceFn   func(ctx context.Context, id uuid.UUID, actor, reason string) (ledger.Invoice, error)
	cancelInvoiceFn   func(ctx context.Context, id uuid.UUID, actor string) (ledger.Invoice, error)
	convertInvoiceFn  func(ctx context.Context, id uuid.UUID, actor string) (ledger.Debt, error)
	getDebtFn         func(ctx context.Context, id uuid.UUID) (ledger.Debt, error)
	listDebtsFn       func(ctx context.Context, filter ledger.DebtFilter) ([]ledger.Debt, error)
	applyPaymentFn    func(ctx context.Context, in ledger.PaymentInput) (ledger.PaymentRecord, ledger.Debt, error)
	verifyPaymentFn   func(ctx context.Context, debtID, paymentID uuid.UUID, verifier string) (ledger.PaymentRecord, error)
	assessLateFeeFn   func(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal, actor string) (ledger.Debt, error)
	writeOffFn        func(ctx context.Context, debtID uuid.UUID, actor, reason string) (ledger.Debt, error)
	agingReportFn     func(ctx context.Context, filter ledger.DebtFilter) (ledger.AgingAnalysis, error)
	financialSummary  func(ctx context.Context, filter ledger.SummaryFilter) (ledger.FinancialSummary, error)
	validateIntegrity func(ctx context.Context) (ledger.IntegrityReport, error)
}

func (s *stubLedgerService) CreateInvoice(ctx context.Context, in ledger.CreateInvoiceInput) (ledger.Invoice, error) {
	if s.createInvoiceFn == nil {
		return ledger.Invoice{}, errNotStubbed
	}
	return s.createInvoiceFn(ctx, in)
}

func (s *stubLedgerService) GetInvoice(ctx context.Context, id uuid.UUID) (ledger.Invoice, error) {
	if s.getInvoiceFn == nil {
		return ledger.Invoice{}, errNotStubbed
	}
	return s.getInvoiceFn(ctx, id)
}

func (s *stubLedgerService) ListInvoices(ctx context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, error) {
	if s.listInvoicesFn == nil {
		return nil, errNotStubbed
	}
	return s.listInvoicesFn(ctx, filter)
}

func (s *stubLedgerService) UpdateItems(ctx context.Context, id uuid.UUID, items []ledger.ItemInput, actor string) (ledger.Invoice, error) {
	if s.updateItemsFn == nil {
		return ledger.Invoice{}, errNotStubbed
	}
	return s.updateItemsFn(ctx, id, items, actor)
}

func (s *stubLedgerService) SubmitInvoice(ctx context.Context, id uuid.UUID, actor string) (ledger.Invoice, error) {
	if s.submitInvoiceFn == nil {
		return ledger.Invoice{}, errNotStubbed
	}
	return s.submitInvoiceFn(ctx, id, actor)
}

func (s *stubLedgerService) ApproveInvoice(ctx context.Context, id uuid.UUID, approver string, convert bool) (ledger.Invoice, *ledger.Debt, error) {
	if s.approveInvoiceFn == nil {
		return ledger.Invoice{}, nil, errNotStubbed
	}
	return s.approveInvoiceFn(ctx, id, approver, convert)
}

func (s *stubLedgerService) RejectInvoice(ctx context.Context, id uuid.UUID, actor, reason string) (ledger.Invoice, error) {
	if s.rejectInvoiceFn == nil {
		return ledger.Invoice{}, errNotStubbed
	}
	return s.rejectInvoiceFn(ctx, id, actor, reason)
}

func (s *stubLedgerService) CancelInvoice(ctx context.Context, id uuid.UUID, actor string) (ledger.Invoice, error) {
	if s.cancelInvoiceFn == nil {
		return ledger.Invoice{}, errNotStubbed
	}
	return s.cancelInvoiceFn(ctx, id, actor)
}

func (s *stubLedgerService) ConvertInvoice(ctx context.Context, id uuid.UUID, actor string) (ledger.Debt, error) {
	if s.convertInvoiceFn == nil {
		return ledger.Debt{}, errNotStubbed
	}
	return s.convertInvoiceFn(ctx, id, actor)
}

func (s *stubLedgerService) GetDebt(ctx context.Context, id uuid.UUID) (ledger.Debt, error) {
	if s.getDebtFn == nil {
		return ledger.Debt{}, errNotStubbed
	}
	return s.getDebtFn(ctx, id)
}

func (s *stubLedgerService) ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]ledger.Debt, error) {
	if s.listDebtsFn == nil {
		return nil, errNotStubbed
	}
	return s.listDebtsFn(ctx, filter)
}

func (s *stubLedgerService) ApplyPayment(ctx context.Context, in ledger.PaymentInput) (ledger.PaymentRecord, ledger.Debt, error) {
	if s.applyPaymentFn == nil {
		return ledger.PaymentRecord{}, ledger.Debt{}, errNotStubbed
	}
	return s.applyPaymentFn(ctx, in)
}

func (s *stubLedgerService) VerifyPayment(ctx context.Context, debtID, paymentID uuid.UUID, verifier string) (ledger.PaymentRecord, error) {
	if s.verifyPaymentFn == nil {
		return ledger.PaymentRecord{}, errNotStubbed
	}
	return s.verifyPaymentFn(ctx, debtID, paymentID, verifier)
}

func (s *stubLedgerService) AssessLateFee(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal, actor string) (ledger.Debt, error) {
	if s.assessLateFeeFn == nil {
		return ledger.Debt{}, errNotStubbed
	}
	return s.assessLateFeeFn(ctx, debtID, amount, actor)
}

func (s *stubLedgerService) WriteOff(ctx context.Context, debtID uuid.UUID, actor, reason string) (ledger.Debt, error) {
	if s.writeOffFn == nil {
		return ledger.Debt{}, errNotStubbed
	}
	return s.writeOffFn(ctx, debtID, actor, reason)
}

func (s *stubLedgerService) AgingReport(ctx context.Context, filter ledger.DebtFilter) (ledger.AgingAnalysis, error) {
	if s.agingReportFn == nil {
		return ledger.AgingAnalysis{}, errNotStubbed
	}
	return s.agingReportFn(ctx, filter)
}

func (s *stubLedgerService) FinancialSummary(ctx context.Context, filter ledger.SummaryFilter) (ledger.FinancialSummary, error) {
	if s.financialSummary == nil {
		return ledger.FinancialSummary{}, errNotStubbed
	}
	return s.financialSummary(ctx, filter)
}

func (s *stubLedgerService) ValidateIntegrity(ctx context.Context) (ledger.IntegrityReport, error) {
	if s.validateIntegrity == nil {
		return ledger.IntegrityReport{}, errNotStubbed
	}
	return s.validateIntegrity(ctx)
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]struct{})
	}
	if _, ok := m.keys[module+"/"+key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+"/"+key] = struct{}{}
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+"/"+key)
	return nil
}

func newTestRouter(svc ledgerService) (*Handler, chi.Router) {
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	router := chi.NewRouter()
	router.Route("/ledger", handler.MountRoutes)
	return handler, router
}

func do(t *testing.T, router http.Handler, method, target, actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	return problem
}

func TestCreateInvoiceRequiresActor(t *testing.T) {
	_, router := newTestRouter(&stubLedgerService{})

	rr := do(t, router, http.MethodPost, "/ledger/invoices", "", `{"clinic_id":"c","sales_rep_id":"r","items":[{"product_id":"p","quantity":"1","unit_price":"10"}]}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateInvoicePassesInput(t *testing.T) {
	var captured ledger.CreateInvoiceInput
	id := uuid.New()
	svc := &stubLedgerService{
		createInvoiceFn: func(_ context.Context, in ledger.CreateInvoiceInput) (ledger.Invoice, error) {
			captured = in
			return ledger.Invoice{ID: id, Number: "INV-20250315-0001", Status: ledger.InvoiceDraft}, nil
		},
	}
	_, router := newTestRouter(svc)

	body := `{
		"clinic_id": "clinic-1",
		"sales_rep_id": "rep-7",
		"area_id": "giza",
		"currency": "USD",
		"exchange_rate": "48.5",
		"invoice_date": "2025-03-01",
		"due_date": "2025-04-01T00:00:00Z",
		"items": [{"product_id": "amoxicillin", "quantity": "2", "unit_price": "12.50", "total": "999"}]
	}`
	rr := do(t, router, http.MethodPost, "/ledger/invoices", "rep-7", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "/ledger/invoices/"+id.String(), rr.Header().Get("Location"))

	require.Equal(t, "rep-7", captured.CreatedBy)
	require.Equal(t, "clinic-1", captured.ClinicID)
	require.Equal(t, "giza", captured.AreaID)
	require.Equal(t, "USD", captured.Currency)
	require.Equal(t, "48.5", captured.ExchangeRate.String())
	require.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), captured.InvoiceDate)
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), captured.DueDate)
	require.Len(t, captured.Items, 1)
	require.Equal(t, "12.5", captured.Items[0].UnitPrice.String())

	var inv ledger.Invoice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))
	require.Equal(t, "INV-20250315-0001", inv.Number)
}

func TestCreateInvoiceRejectsBadBodies(t *testing.T) {
	called := false
	svc := &stubLedgerService{
		createInvoiceFn: func(context.Context, ledger.CreateInvoiceInput) (ledger.Invoice, error) {
			called = true
			return ledger.Invoice{}, nil
		},
	}
	_, router := newTestRouter(svc)

	tests := []struct {
		name string
		body string
	}{
		{"no items", `{"clinic_id":"c","sales_rep_id":"r","items":[]}`},
		{"missing clinic", `{"sales_rep_id":"r","items":[{"product_id":"p"}]}`},
		{"item without product", `{"clinic_id":"c","sales_rep_id":"r","items":[{"quantity":"1"}]}`},
		{"bad currency", `{"clinic_id":"c","sales_rep_id":"r","currency":"EURO","items":[{"product_id":"p"}]}`},
		{"unknown field", `{"clinic_id":"c","sales_rep_id":"r","status":"APPROVED","items":[{"product_id":"p"}]}`},
		{"bad date", `{"clinic_id":"c","sales_rep_id":"r","due_date":"next week","items":[{"product_id":"p"}]}`},
		{"not json", `clinic`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, http.MethodPost, "/ledger/invoices", "rep-7", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}
	require.False(t, called)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &ledger.ValidationError{Field: "items", Reason: "required"}, http.StatusBadRequest, "validation"},
		{"not found", fmt.Errorf("invoice %s: %w", id, ledger.ErrNotFound), http.StatusNotFound, "not_found"},
		{"transition", &ledger.TransitionError{Entity: "invoice", ID: id, From: "DRAFT", Action: "approve"}, http.StatusConflict, "invalid_state_transition"},
		{"already converted", &ledger.AlreadyConvertedError{InvoiceID: id}, http.StatusConflict, "already_converted"},
		{"closed debt", &ledger.DebtClosedError{DebtID: id, Status: ledger.DebtWrittenOff}, http.StatusConflict, "debt_closed"},
		{"contention", ledger.Contention(errors.New("serialization failure")), http.StatusServiceUnavailable, "storage_contention"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubLedgerService{
				submitInvoiceFn: func(context.Context, uuid.UUID, string) (ledger.Invoice, error) {
					return ledger.Invoice{}, tt.err
				},
			}
			_, router := newTestRouter(svc)

			rr := do(t, router, http.MethodPost, "/ledger/invoices/"+id.String()+"/submit", "rep-7", "")
			require.Equal(t, tt.status, rr.Code)
			problem := decodeProblem(t, rr)
			require.Equal(t, tt.code, problem.Code)
			if tt.status == http.StatusInternalServerError {
				require.Empty(t, problem.Detail)
			}
			if tt.status == http.StatusServiceUnavailable {
				require.Equal(t, "1", rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestInvalidPathID(t *testing.T) {
	_, router := newTestRouter(&stubLedgerService{})

	rr := do(t, router, http.MethodGet, "/ledger/debts/not-a-uuid", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/ledger/debts/"+uuid.NewString()+"/payments/nope/verify", "manager-1", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproveWithoutBody(t *testing.T) {
	id := uuid.New()
	var gotConvert *bool
	svc := &stubLedgerService{
		approveInvoiceFn: func(_ context.Context, got uuid.UUID, approver string, convert bool) (ledger.Invoice, *ledger.Debt, error) {
			require.Equal(t, id, got)
			require.Equal(t, "manager-1", approver)
			gotConvert = &convert
			if !convert {
				return ledger.Invoice{ID: id, Status: ledger.InvoiceApproved}, nil, nil
			}
			debt := ledger.Debt{ID: uuid.New(), Number: "DEBT-20250315-0001"}
			return ledger.Invoice{ID: id, Status: ledger.InvoiceConverted}, &debt, nil
		},
	}
	_, router := newTestRouter(svc)

	rr := do(t, router, http.MethodPost, "/ledger/invoices/"+id.String()+"/approve", "manager-1", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, gotConvert)
	require.False(t, *gotConvert)
	require.NotContains(t, rr.Body.String(), `"debt"`)

	rr = do(t, router, http.MethodPost, "/ledger/invoices/"+id.String()+"/approve", "manager-1", `{"convert_to_debt":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, *gotConvert)
	require.Contains(t, rr.Body.String(), "DEBT-20250315-0001")
}

func TestRejectRequiresReason(t *testing.T) {
	_, router := newTestRouter(&stubLedgerService{})

	rr := do(t, router, http.MethodPost, "/ledger/invoices/"+uuid.NewString()+"/reject", "manager-1", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decodeProblem(t, rr).Detail, "Reason")
}

func TestApplyPayment(t *testing.T) {
	debtID := uuid.New()
	var captured ledger.PaymentInput
	svc := &stubLedgerService{
		applyPaymentFn: func(_ context.Context, in ledger.PaymentInput) (ledger.PaymentRecord, ledger.Debt, error) {
			captured = in
			return ledger.PaymentRecord{ID: uuid.New(), DebtID: in.DebtID, PaymentNumber: "PAY-20250315-0001", Amount: money.MustParse("100", "EGP")},
				ledger.Debt{ID: in.DebtID, Status: ledger.DebtPartiallyCollected}, nil
		},
	}
	_, router := newTestRouter(svc)

	rr := do(t, router, http.MethodPost, "/ledger/debts/"+debtID.String()+"/payments", "rep-7",
		`{"amount":"100","payment_method":"CASH","payment_date":"2025-03-15","reference":"rcpt-77"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, debtID, captured.DebtID)
	require.Equal(t, "rep-7", captured.CollectedBy)
	require.Equal(t, ledger.PaymentCash, captured.Method)
	require.Equal(t, "100", captured.Amount.String())
	require.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), captured.PaymentDate)

	var resp struct {
		Payment ledger.PaymentRecord `json:"payment"`
		Debt    ledger.Debt          `json:"debt"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "PAY-20250315-0001", resp.Payment.PaymentNumber)
	require.Equal(t, ledger.DebtPartiallyCollected, resp.Debt.Status)

	rr = do(t, router, http.MethodPost, "/ledger/debts/"+debtID.String()+"/payments", "rep-7", `{"amount":"100","payment_method":"BARTER"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApplyPaymentIdempotencyKey(t *testing.T) {
	debtID := uuid.New()
	calls := 0
	fail := false
	svc := &stubLedgerService{
		applyPaymentFn: func(_ context.Context, in ledger.PaymentInput) (ledger.PaymentRecord, ledger.Debt, error) {
			calls++
			if fail {
				return ledger.PaymentRecord{}, ledger.Debt{}, ledger.Contention(errors.New("deadlock detected"))
			}
			return ledger.PaymentRecord{ID: uuid.New(), DebtID: in.DebtID}, ledger.Debt{ID: in.DebtID}, nil
		},
	}
	handler, router := newTestRouter(svc)
	handler.SetIdempotencyStore(&memoryIdempotency{})

	post := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ledger/debts/"+debtID.String()+"/payments",
			strings.NewReader(`{"amount":"10","payment_method":"CARD"}`))
		req.Header.Set(ActorHeader, "rep-7")
		req.Header.Set(IdempotencyHeader, key)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, post("k-1").Code)
	replay := post("k-1")
	require.Equal(t, http.StatusConflict, replay.Code)
	require.Equal(t, "duplicate_request", decodeProblem(t, replay).Code)
	require.Equal(t, 1, calls)

	fail = true
	require.Equal(t, http.StatusServiceUnavailable, post("k-2").Code)
	fail = false
	require.Equal(t, http.StatusCreated, post("k-2").Code)
	require.Equal(t, 3, calls)
}

func TestIdempotencyKeyIsScopedToDebt(t *testing.T) {
	var paid []uuid.UUID
	svc := &stubLedgerService{
		applyPaymentFn: func(_ context.Context, in ledger.PaymentInput) (ledger.PaymentRecord, ledger.Debt, error) {
			paid = append(paid, in.DebtID)
			return ledger.PaymentRecord{ID: uuid.New(), DebtID: in.DebtID}, ledger.Debt{ID: in.DebtID}, nil
		},
	}
	handler, router := newTestRouter(svc)
	store := &memoryIdempotency{}
	handler.SetIdempotencyStore(store)

	post := func(debtID uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ledger/debts/"+debtID.String()+"/payments",
			strings.NewReader(`{"amount":"10","payment_method":"CASH"}`))
		req.Header.Set(ActorHeader, "rep-7")
		req.Header.Set(IdempotencyHeader, "receipt-0042")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	first, second := uuid.New(), uuid.New()
	require.Equal(t, http.StatusCreated, post(first).Code)
	require.Equal(t, http.StatusCreated, post(second).Code)
	require.Equal(t, http.StatusConflict, post(first).Code)
	require.Equal(t, []uuid.UUID{first, second}, paid)
	require.Contains(t, store.keys, "ledger.payment/"+first.String()+":receipt-0042")
}

func TestListDebtsParsesFilter(t *testing.T) {
	var captured ledger.DebtFilter
	svc := &stubLedgerService{
		listDebtsFn: func(_ context.Context, filter ledger.DebtFilter) ([]ledger.Debt, error) {
			captured = filter
			return []ledger.Debt{}, nil
		},
	}
	_, router := newTestRouter(svc)

	rr := do(t, router, http.MethodGet, "/ledger/debts?status=pending&clinic_id=c-1&limit=5000&offset=20", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, ledger.DebtPending, captured.Status)
	require.Equal(t, "c-1", captured.ClinicID)
	require.Equal(t, maxPageLimit, captured.Limit)
	require.Equal(t, 20, captured.Offset)
	require.JSONEq(t, `{"items":[],"count":0}`, rr.Body.String())

	rr = do(t, router, http.MethodGet, "/ledger/debts?limit=-1", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReportsAreReadOnlyAndPublic(t *testing.T) {
	svc := &stubLedgerService{
		agingReportFn: func(context.Context, ledger.DebtFilter) (ledger.AgingAnalysis, error) {
			return ledger.AgingAnalysis{TotalCount: 3}, nil
		},
		financialSummary: func(_ context.Context, filter ledger.SummaryFilter) (ledger.FinancialSummary, error) {
			return ledger.FinancialSummary{DebtCount: 2, Filter: filter}, nil
		},
		validateIntegrity: func(context.Context) (ledger.IntegrityReport, error) {
			return ledger.IntegrityReport{Status: ledger.IntegrityClean, Violations: []ledger.Violation{}}, nil
		},
	}
	_, router := newTestRouter(svc)

	rr := do(t, router, http.MethodGet, "/ledger/aging", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodGet, "/ledger/summary?sales_rep_id=rep-7", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "rep-7")

	rr = do(t, router, http.MethodGet, "/ledger/integrity", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), string(ledger.IntegrityClean))
}
