package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mafiaidola/13-8-office-sub005/internal/jobs"
	"github.com/mafiaidola/13-8-office-sub005/internal/ledger"
)

// ErrIntegrityViolations is returned by the integrity job when the payload
// asks for failure on violations.
var ErrIntegrityViolations = errors.New("ledger integrity violations found")

type agingRefresher interface {
	RefreshAging(ctx context.Context) (int, error)
}

type integrityValidator interface {
	ValidateIntegrity(ctx context.Context) (ledger.IntegrityReport, error)
}

// AgingRefreshJob persists recomputed aging buckets for all debts.
type AgingRefreshJob struct {
	service agingRefresher
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAgingRefreshJob initialises the aging refresh handler.
func NewAgingRefreshJob(service agingRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *AgingRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgingRefreshJob{service: service, logger: logger, metrics: metrics}
}

// Handle executes the aging refresh.
func (j *AgingRefreshJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.service == nil {
		return errors.New("aging refresh: handler not configured")
	}
	var payload AgingRefreshPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	tracker := j.metrics.Track(TaskLedgerAgingRefresh)
	defer func() { err = tracker.End(err) }()

	logger := j.logger.With(slog.String("job", TaskLedgerAgingRefresh), slog.String("trigger", payload.Trigger))
	start := time.Now()
	updated, err := j.service.RefreshAging(ctx)
	if err != nil {
		logger.Error("aging refresh failed", slog.Any("error", err))
		return fmt.Errorf("aging refresh: %w", err)
	}
	j.metrics.AddRefreshed(updated)
	logger.Info("aging refresh completed",
		slog.Int("updated", updated),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// IntegrityCheckJob runs the integrity validator and reports the outcome.
type IntegrityCheckJob struct {
	service integrityValidator
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIntegrityCheckJob initialises the integrity check handler.
func NewIntegrityCheckJob(service integrityValidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityCheckJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityCheckJob{service: service, logger: logger, metrics: metrics}
}

// Handle executes the integrity check. Violations are logged and counted,
// never repaired.
func (j *IntegrityCheckJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.service == nil {
		return errors.New("integrity check: handler not configured")
	}
	var payload IntegrityCheckPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	tracker := j.metrics.Track(TaskLedgerIntegrityCheck)
	defer func() { err = tracker.End(err) }()

	logger := j.logger.With(slog.String("job", TaskLedgerIntegrityCheck), slog.String("trigger", payload.Trigger))
	report, err := j.service.ValidateIntegrity(ctx)
	if err != nil {
		logger.Error("integrity check failed", slog.Any("error", err))
		return fmt.Errorf("integrity check: %w", err)
	}

	for kind, count := range report.CountByKind() {
		j.metrics.AddViolations(string(kind), count)
	}
	for _, v := range report.Violations {
		logger.Warn("ledger integrity violation",
			slog.String("kind", string(v.Kind)),
			slog.String("entity", v.Entity),
			slog.String("entity_id", v.EntityID.String()),
			slog.String("number", v.Number),
			slog.String("detail", v.Detail),
		)
	}
	logger.Info("integrity check completed",
		slog.String("status", string(report.Status)),
		slog.Int("invoices", report.InvoicesChecked),
		slog.Int("debts", report.DebtsChecked),
		slog.Int("violations", len(report.Violations)),
	)
	if payload.FailOnViolation && !report.Clean() {
		return fmt.Errorf("%w: %d", ErrIntegrityViolations, len(report.Violations))
	}
	return nil
}
