package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:aging_refresh").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:aging_refresh").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:aging_refresh", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:aging_refresh", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:aging_refresh")))
	require.Positive(t, testutil.ToFloat64(m.lastRun.WithLabelValues("ledger:aging_refresh")))
}

func TestCountersIgnoreEmptyValues(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddViolations("balance_mismatch", 0)
	m.AddViolations("balance_mismatch", 2)
	m.AddRefreshed(-1)
	m.AddRefreshed(4)

	require.Equal(t, 2.0, testutil.ToFloat64(m.violations.WithLabelValues("balance_mismatch")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.refreshed))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddViolations("x", 1)
	m.AddRefreshed(1)
	require.NoError(t, m.Track("job").End(nil))
}
