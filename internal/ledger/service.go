// Package ledger implements the integrated financial ledger: the invoice
// approval lifecycle, conversion of approved invoices into debts, payment
// application, aging and the read-only integrity validator.
//
// Every mutation runs inside Repository.WithTx and touches a bounded set of
// rows. Reads (aging, summaries, integrity) never lock and tolerate staleness.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mafiaidola/13-8-office-sub005/internal/shared"
)

const approvalModule = "ledger.invoice"

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalRecorder persists invoice approval history.
type ApprovalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Config holds ledger defaults.
type Config struct {
	// Currency is the base currency for new invoices and for aggregates.
	Currency string
	// DefaultDueDays is added to the invoice date when no due date is given.
	DefaultDueDays int
}

// Service orchestrates ledger operations.
type Service struct {
	repo      Repository
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	audit     AuditRecorder
	approvals ApprovalRecorder
	cache     SummaryCache
	metrics   *Metrics
	flight    singleflight.Group
}

// NewService constructs a ledger service.
func NewService(repo Repository, cfg Config, logger *slog.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "EGP"
	}
	if cfg.DefaultDueDays <= 0 {
		cfg.DefaultDueDays = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ledger")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetAuditRecorder injects the audit trail writer.
func (s *Service) SetAuditRecorder(r AuditRecorder) { s.audit = r }

// SetApprovalRecorder injects the approval history writer.
func (s *Service) SetApprovalRecorder(r ApprovalRecorder) { s.approvals = r }

// SetSummaryCache enables caching of financial summaries.
func (s *Service) SetSummaryCache(c SummaryCache) { s.cache = c }

// SetMetrics enables Prometheus instrumentation.
func (s *Service) SetMetrics(m *Metrics) { s.metrics = m }

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// BaseCurrency returns the configured base currency.
func (s *Service) BaseCurrency() string { return s.cfg.Currency }

// fail logs unexpected storage failures. Domain errors are the caller's
// concern and are returned untouched.
func (s *Service) fail(op string, err error, attrs ...any) error {
	s.metrics.observe(op, err)
	if isDomainError(err) {
		return err
	}
	args := append([]any{slog.String("op", op), slog.Any("error", err)}, attrs...)
	if Retryable(err) {
		s.logger.Warn("ledger storage contention", args...)
	} else {
		s.logger.Error("ledger storage failure", args...)
	}
	return err
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrAlreadyConverted) ||
		errors.Is(err, ErrDebtClosed) ||
		errors.Is(err, ErrNotFound)
}

type committed struct {
	op       string
	actor    string
	entity   string
	entityID uuid.UUID
	meta     map[string]any
	approval shared.ApprovalAction
	note     string
}

// afterCommit runs the advisory side effects of a successful mutation.
// Failures are logged and never undo the committed write.
func (s *Service) afterCommit(ctx context.Context, c committed) {
	s.metrics.observe(c.op, nil)
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  c.actor,
			Action:   c.op,
			Entity:   c.entity,
			EntityID: c.entityID.String(),
			Meta:     c.meta,
			At:       s.now(),
		})
		if err != nil {
			s.logger.Warn("record audit log", slog.String("op", c.op), slog.Any("error", err))
		}
	}
	if s.approvals != nil && c.approval != "" {
		err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  approvalModule,
			RefID:   c.entityID,
			ActorID: c.actor,
			Action:  c.approval,
			Note:    c.note,
			At:      s.now(),
		})
		if err != nil {
			s.logger.Warn("record approval", slog.String("op", c.op), slog.Any("error", err))
		}
	}
	s.invalidateSummaries(ctx)
}

func requireActor(field, actor string) error {
	if actor == "" {
		return invalid(field, "is required")
	}
	return nil
}
