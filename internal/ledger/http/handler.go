// Package ledgerhttp exposes the ledger service over JSON.
package ledgerhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mafiaidola/13-8-office-sub005/internal/ledger"
	"github.com/mafiaidola/13-8-office-sub005/internal/platform/httpx"
	"github.com/mafiaidola/13-8-office-sub005/internal/shared"
)

const (
	// ActorHeader carries the authenticated user id set by the gateway.
	ActorHeader = "X-Actor-ID"
	// IdempotencyHeader lets clients retry payment posts safely.
	IdempotencyHeader = "Idempotency-Key"

	paymentIdempotencyModule = "ledger.payment"
	maxPageLimit             = 500
)

type ledgerService interface {
	CreateInvoice(ctx context.Context, in ledger.CreateInvoiceInput) (ledger.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (ledger.Invoice, error)
	ListInvoices(ctx context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, error)
	UpdateItems(ctx context.Context, id uuid.UUID, items []ledger.ItemInput, actor string) (ledger.Invoice, error)
	SubmitInvoice(ctx context.Context, id uuid.UUID, actor string) (ledger.Invoice, error)
	ApproveInvoice(ctx context.Context, id uuid.UUID, approver string, convertToDebt bool) (ledger.Invoice, *ledger.Debt, error)
	RejectInvoice(ctx context.Context, id uuid.UUID, actor, reason string) (ledger.Invoice, error)
	CancelInvoice(ctx context.Context, id uuid.UUID, actor string) (ledger.Invoice, error)
	ConvertInvoice(ctx context.Context, id uuid.UUID, actor string) (ledger.Debt, error)

	GetDebt(ctx context.Context, id uuid.UUID) (ledger.Debt, error)
	ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]ledger.Debt, error)
	ApplyPayment(ctx context.Context, in ledger.PaymentInput) (ledger.PaymentRecord, ledger.Debt, error)
	VerifyPayment(ctx context.Context, debtID, paymentID uuid.UUID, verifier string) (ledger.PaymentRecord, error)
	AssessLateFee(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal, actor string) (ledger.Debt, error)
	WriteOff(ctx context.Context, debtID uuid.UUID, actor, reason string) (ledger.Debt, error)

	AgingReport(ctx context.Context, filter ledger.DebtFilter) (ledger.AgingAnalysis, error)
	FinancialSummary(ctx context.Context, filter ledger.SummaryFilter) (ledger.FinancialSummary, error)
	ValidateIntegrity(ctx context.Context) (ledger.IntegrityReport, error)
}

type idempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Handler wires HTTP endpoints for invoices, debts and ledger reports.
type Handler struct {
	logger      *slog.Logger
	service     ledgerService
	validator   *validator.Validate
	idempotency idempotencyStore
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service ledgerService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// SetIdempotencyStore enables Idempotency-Key handling on payment posts.
func (h *Handler) SetIdempotencyStore(store idempotencyStore) { h.idempotency = store }

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.getInvoice)
		r.Put("/{id}/items", h.updateItems)
		r.Post("/{id}/submit", h.submitInvoice)
		r.Post("/{id}/approve", h.approveInvoice)
		r.Post("/{id}/reject", h.rejectInvoice)
		r.Post("/{id}/cancel", h.cancelInvoice)
		r.Post("/{id}/convert", h.convertInvoice)
	})
	r.Route("/debts", func(r chi.Router) {
		r.Get("/", h.listDebts)
		r.Get("/{id}", h.getDebt)
		r.Post("/{id}/payments", h.applyPayment)
		r.Post("/{id}/payments/{paymentID}/verify", h.verifyPayment)
		r.Post("/{id}/late-fees", h.assessLateFee)
		r.Post("/{id}/write-off", h.writeOff)
	})
	r.Get("/aging", h.agingReport)
	r.Get("/summary", h.financialSummary)
	r.Get("/integrity", h.integrity)
}

// ============================================================================
// INVOICES
// ============================================================================

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.input(actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/ledger/invoices/"+inv.ID.String())
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := pageParams(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	invoices, err := h.service.ListInvoices(r.Context(), ledger.InvoiceFilter{
		Status:     ledger.InvoiceStatus(strings.ToUpper(q.Get("status"))),
		ClinicID:   q.Get("clinic_id"),
		SalesRepID: q.Get("sales_rep_id"),
		AreaID:     q.Get("area_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[ledger.Invoice]{Items: invoices, Count: len(invoices)})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateItems(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req updateItemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.UpdateItems(r.Context(), id, itemInputs(req.Items), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) submitInvoice(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	inv, err := h.service.SubmitInvoice(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) approveInvoice(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	inv, debt, err := h.service.ApproveInvoice(r.Context(), id, actor, req.ConvertToDebt)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, approveResponse{Invoice: inv, Debt: debt})
}

func (h *Handler) rejectInvoice(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.RejectInvoice(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	inv, err := h.service.CancelInvoice(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) convertInvoice(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	debt, err := h.service.ConvertInvoice(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/ledger/debts/"+debt.ID.String())
	httpx.JSON(w, http.StatusCreated, debt)
}

// ============================================================================
// DEBTS
// ============================================================================

func (h *Handler) listDebts(w http.ResponseWriter, r *http.Request) {
	filter, err := debtFilter(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	debts, err := h.service.ListDebts(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[ledger.Debt]{Items: debts, Count: len(debts)})
}

func (h *Handler) getDebt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	debt, err := h.service.GetDebt(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	debtID, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	paymentDate, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" {
		// Keys are per debt; the same client key on another debt is a new request.
		key = debtID.String() + ":" + key
	}
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, paymentIdempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, httpx.Classify(httpx.ErrConflict, "duplicate_request", err))
				return
			}
			h.respondError(w, r, err)
			return
		}
	}

	record, debt, err := h.service.ApplyPayment(r.Context(), ledger.PaymentInput{
		DebtID:      debtID,
		Amount:      req.Amount,
		Method:      ledger.PaymentMethod(req.PaymentMethod),
		PaymentDate: paymentDate,
		CollectedBy: actor,
		Reference:   req.Reference,
		Notes:       req.Notes,
	})
	if err != nil {
		// No payment record exists, so the key may be reused.
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(r.Context(), key, paymentIdempotencyModule); derr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentResponse{Payment: record, Debt: debt})
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	debtID, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	paymentID, ok := h.pathID(w, r, "paymentID")
	if !ok {
		return
	}
	record, err := h.service.VerifyPayment(r.Context(), debtID, paymentID, actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) assessLateFee(w http.ResponseWriter, r *http.Request) {
	debtID, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req lateFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	debt, err := h.service.AssessLateFee(r.Context(), debtID, req.Amount, actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

func (h *Handler) writeOff(w http.ResponseWriter, r *http.Request) {
	debtID, actor, ok := h.mutation(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	debt, err := h.service.WriteOff(r.Context(), debtID, actor, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

// ============================================================================
// REPORTS
// ============================================================================

func (h *Handler) agingReport(w http.ResponseWriter, r *http.Request) {
	filter, err := debtFilter(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	report, err := h.service.AgingReport(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) financialSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.service.FinancialSummary(r.Context(), ledger.SummaryFilter{
		ClinicID:   q.Get("clinic_id"),
		SalesRepID: q.Get("sales_rep_id"),
		AreaID:     q.Get("area_id"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ValidateIntegrity(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := strings.TrimSpace(r.Header.Get(ActorHeader))
	if actor == "" {
		httpx.RespondError(w, fmt.Errorf("%w: missing %s header", httpx.ErrUnauthorized, ActorHeader))
		return "", false
	}
	return actor, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid %s", httpx.ErrValidation, param))
		return uuid.Nil, false
	}
	return id, true
}

// mutation resolves the {id} path parameter and the acting user.
func (h *Handler) mutation(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return uuid.Nil, "", false
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return uuid.Nil, "", false
	}
	return id, actor, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			err = fmt.Errorf("%w: %s failed on %s", httpx.ErrValidation, fe.Namespace(), fe.Tag())
		} else {
			err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
		}
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	classified := classify(err)
	if !errors.Is(classified, httpx.ErrValidation) && !errors.Is(classified, httpx.ErrNotFound) &&
		!errors.Is(classified, httpx.ErrConflict) {
		h.logger.Error("ledger request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	httpx.RespondError(w, classified)
}

// classify maps ledger errors onto transport classes.
func classify(err error) error {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return httpx.Classify(httpx.ErrValidation, "validation", err)
	case errors.Is(err, ledger.ErrNotFound):
		return httpx.Classify(httpx.ErrNotFound, "not_found", err)
	case errors.Is(err, ledger.ErrInvalidStateTransition):
		return httpx.Classify(httpx.ErrConflict, "invalid_state_transition", err)
	case errors.Is(err, ledger.ErrAlreadyConverted):
		return httpx.Classify(httpx.ErrConflict, "already_converted", err)
	case errors.Is(err, ledger.ErrDebtClosed):
		return httpx.Classify(httpx.ErrConflict, "debt_closed", err)
	case errors.Is(err, ledger.ErrStorageContention):
		return httpx.Classify(httpx.ErrUnavailable, "storage_contention", err)
	default:
		return err
	}
}

func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		return 0, 0, err
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit, offset, nil
}

func intParam(value, field string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, &ledger.ValidationError{Field: field, Reason: "must be a non-negative integer"}
	}
	return n, nil
}

func debtFilter(r *http.Request) (ledger.DebtFilter, error) {
	q := r.URL.Query()
	limit, offset, err := pageParams(r)
	if err != nil {
		return ledger.DebtFilter{}, err
	}
	return ledger.DebtFilter{
		Status:     ledger.DebtStatus(strings.ToUpper(q.Get("status"))),
		ClinicID:   q.Get("clinic_id"),
		SalesRepID: q.Get("sales_rep_id"),
		AreaID:     q.Get("area_id"),
		Limit:      limit,
		Offset:     offset,
	}, nil
}
