package ledger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mafiaidola/13-8-office-sub005/internal/money"
)

// Metrics exposes Prometheus collectors for ledger mutations.
type Metrics struct {
	operations   *prometheus.CounterVec
	overpayments prometheus.Counter
	collected    *prometheus.CounterVec
}

// NewMetrics registers the ledger collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	overpayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_overpayments_total",
		Help: "Payments whose amount exceeded the remaining balance.",
	})
	collected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_collected_amount_total",
		Help: "Amount applied to debts, per currency.",
	}, []string{"currency"})
	registerer.MustRegister(operations, overpayments, collected)
	return &Metrics{operations: operations, overpayments: overpayments, collected: collected}
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) overpayment() {
	if m == nil {
		return
	}
	m.overpayments.Inc()
}

func (m *Metrics) addCollected(amount money.Money) {
	if m == nil || !amount.IsPositive() {
		return
	}
	m.collected.WithLabelValues(amount.Currency()).Add(amount.Amount().InexactFloat64())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAlreadyConverted):
		return "already_converted"
	case errors.Is(err, ErrDebtClosed):
		return "debt_closed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageContention):
		return "contention"
	default:
		return "error"
	}
}
