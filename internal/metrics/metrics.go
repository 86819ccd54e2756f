// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// periodsTotal counts executed safety periods
	periodsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supervisor_periods_total",
		Help: "Total safety periods executed",
	})

	// periodDuration tracks the work time of one safety period
	periodDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "supervisor_period_duration_seconds",
		Help:    "Safety period execution time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us to ~100ms
	})

	// sweepsTotal counts completed cyclic sweeps per domain
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supervisor_selftest_sweeps_total",
		Help: "Completed cyclic self-test sweeps by domain",
	}, []string{"domain"})

	// sweepElapsed tracks ticks since the last completed sweep
	sweepElapsed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "supervisor_selftest_elapsed_ticks",
		Help: "Ticks since the last completed sweep by domain",
	}, []string{"domain"})

	// domainState is 1 while the domain scheduler is configured
	domainState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "supervisor_selftest_configured",
		Help: "1 while the cyclic scheduler of the domain is configured",
	}, []string{"domain"})

	// watchdogKicks counts window watchdog triggers
	watchdogKicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supervisor_watchdog_kicks_total",
		Help: "Total window watchdog triggers",
	})

	// monitorFlags mirrors the out-of-limit flags of the supply monitor
	monitorFlags = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "supervisor_monitor_flags",
		Help: "Supply monitor channels currently out of limits (bitset)",
	})

	// statusWriteErrors counts failed status block writes
	statusWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supervisor_status_write_errors_total",
		Help: "Total failed status block writes",
	})

	// hardErrors counts entered hard errors by code and channel
	hardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supervisor_hard_errors_total",
		Help: "Hard errors entered by code and channel",
	}, []string{"code", "channel"})
)

// RecordPeriod records one executed safety period.
func RecordPeriod(d time.Duration) {
	periodsTotal.Inc()
	periodDuration.Observe(d.Seconds())
}

// RecordDomain records scheduler progress of one domain. Sweep counters only
// move forward; newSweeps is the number completed since the last call.
func RecordDomain(domain string, configured bool, elapsedTicks uint32, newSweeps uint64) {
	if newSweeps > 0 {
		sweepsTotal.WithLabelValues(domain).Add(float64(newSweeps))
	}
	sweepElapsed.WithLabelValues(domain).Set(float64(elapsedTicks))
	v := 0.0
	if configured {
		v = 1
	}
	domainState.WithLabelValues(domain).Set(v)
}

// RecordWatchdogKick records one window watchdog trigger.
func RecordWatchdogKick() {
	watchdogKicks.Inc()
}

// RecordMonitorFlags records the monitor flag bitset.
func RecordMonitorFlags(flags uint16) {
	monitorFlags.Set(float64(flags))
}

// RecordStatusWriteError records one failed status write.
func RecordStatusWriteError() {
	statusWriteErrors.Inc()
}

// RecordHardError records an entered hard error.
func RecordHardError(code string, permanent bool) {
	ch := "transient"
	if permanent {
		ch = "permanent"
	}
	hardErrors.WithLabelValues(code, ch).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
