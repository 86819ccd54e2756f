// internal/metrics/metrics_test.go
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDomain(t *testing.T) {
	before := testutil.ToFloat64(sweepsTotal.WithLabelValues("ram"))

	RecordDomain("ram", true, 42, 2)
	RecordDomain("ram", true, 7, 0)

	assert.Equal(t, before+2, testutil.ToFloat64(sweepsTotal.WithLabelValues("ram")))
	assert.Equal(t, 7.0, testutil.ToFloat64(sweepElapsed.WithLabelValues("ram")))
	assert.Equal(t, 1.0, testutil.ToFloat64(domainState.WithLabelValues("ram")))

	RecordDomain("ram", false, 0, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(domainState.WithLabelValues("ram")))
}

func TestRecordHardError(t *testing.T) {
	before := testutil.ToFloat64(hardErrors.WithLabelValues("voltage_exceeded", "permanent"))
	RecordHardError("voltage_exceeded", true)
	assert.Equal(t, before+1, testutil.ToFloat64(hardErrors.WithLabelValues("voltage_exceeded", "permanent")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordPeriod(time.Millisecond)
	RecordWatchdogKick()
	RecordMonitorFlags(3)
	RecordStatusWriteError()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"supervisor_periods_total",
		"supervisor_period_duration_seconds",
		"supervisor_watchdog_kicks_total",
		"supervisor_monitor_flags 3",
		"supervisor_status_write_errors_total",
	} {
		assert.True(t, strings.Contains(body, name), name)
	}
}
