// Package metrics exposes Prometheus collectors for the scraping service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsTotal       *prometheus.CounterVec
	casesExtractedTotal prometheus.Counter
	casesSkippedTotal   *prometheus.CounterVec
	captchaTotal        *prometheus.CounterVec
	recoveryAttempts    prometheus.Counter
	activeSessions      prometheus.Gauge

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times; every
// recording helper calls it, so callers never race an uninitialized state.
func Init() {
	once.Do(func() {
		sessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courts_sessions_total",
				Help: "Total attorney scraping sessions, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		casesExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "courts_cases_extracted_total",
				Help: "Total case records extracted and stored.",
			},
		)
		casesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courts_cases_skipped_total",
				Help: "Total cases seen but not stored, labeled by reason.",
			},
			[]string{"reason"},
		)
		captchaTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courts_captcha_resolutions_total",
				Help: "Total captcha resolutions, labeled by mode.",
			},
			[]string{"mode"},
		)
		recoveryAttempts = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "courts_session_recovery_attempts_total",
				Help: "Total session recovery attempts.",
			},
		)
		activeSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "courts_active_sessions",
				Help: "Number of scraping sessions currently running.",
			},
		)
	})
}

// SessionStarted bumps the active-session gauge.
func SessionStarted() {
	Init()
	activeSessions.Inc()
}

// SessionFinished records an outcome and releases the gauge.
func SessionFinished(success bool) {
	Init()
	activeSessions.Dec()
	outcome := "failed"
	if success {
		outcome = "done"
	}
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// CaseExtracted counts a stored case record.
func CaseExtracted() {
	Init()
	casesExtractedTotal.Inc()
}

// CaseSkipped counts a case that was seen but not stored.
func CaseSkipped(reason string) {
	Init()
	casesSkippedTotal.WithLabelValues(reason).Inc()
}

// CaptchaResolved counts a cleared captcha by resolution mode.
func CaptchaResolved(manual bool) {
	Init()
	mode := "service"
	if manual {
		mode = "manual"
	}
	captchaTotal.WithLabelValues(mode).Inc()
}

// RecoveryAttempt counts one session recovery attempt.
func RecoveryAttempt() {
	Init()
	recoveryAttempts.Inc()
}
