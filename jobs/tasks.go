package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerAgingRefresh recomputes persisted aging buckets.
	TaskLedgerAgingRefresh = "ledger:aging_refresh"
	// TaskLedgerIntegrityCheck runs the read-only integrity validator.
	TaskLedgerIntegrityCheck = "ledger:integrity_check"
)

// Trigger values recorded on payloads.
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// AgingRefreshPayload describes an aging refresh run.
type AgingRefreshPayload struct {
	Trigger string `json:"trigger"`
}

// IntegrityCheckPayload describes an integrity check run.
type IntegrityCheckPayload struct {
	Trigger string `json:"trigger"`
	// FailOnViolation makes the task error when violations are found so
	// asynq records it as failed.
	FailOnViolation bool `json:"fail_on_violation,omitempty"`
}

// NewAgingRefreshTask constructs the aging refresh task.
func NewAgingRefreshTask(trigger string) (*asynq.Task, error) {
	data, err := json.Marshal(AgingRefreshPayload{Trigger: defaultTrigger(trigger)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerAgingRefresh, data, asynq.Queue(QueueDefault), asynq.Timeout(10*time.Minute)), nil
}

// NewIntegrityCheckTask constructs the integrity check task.
func NewIntegrityCheckTask(trigger string, failOnViolation bool) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityCheckPayload{Trigger: defaultTrigger(trigger), FailOnViolation: failOnViolation})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityCheck, data, asynq.Queue(QueueDefault), asynq.Timeout(10*time.Minute)), nil
}

// NewTask builds a supported task by type name with a manual trigger.
func NewTask(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskLedgerAgingRefresh:
		return NewAgingRefreshTask(TriggerManual)
	case TaskLedgerIntegrityCheck:
		return NewIntegrityCheckTask(TriggerManual, false)
	default:
		return nil, fmt.Errorf("jobs: unsupported task %q", taskType)
	}
}

func defaultTrigger(trigger string) string {
	if trigger == "" {
		return TriggerManual
	}
	return trigger
}

func decodePayload(t *asynq.Task, target any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), target); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", asynq.SkipRetry, t.Type(), err)
	}
	return nil
}
