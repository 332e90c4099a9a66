package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordingHelpers(t *testing.T) {
	Init()

	SessionStarted()
	require.Equal(t, float64(1), testutil.ToFloat64(activeSessions))

	SessionFinished(true)
	require.Equal(t, float64(0), testutil.ToFloat64(activeSessions))
	require.Equal(t, float64(1), testutil.ToFloat64(sessionsTotal.WithLabelValues("done")))

	SessionStarted()
	SessionFinished(false)
	require.Equal(t, float64(1), testutil.ToFloat64(sessionsTotal.WithLabelValues("failed")))

	CaseExtracted()
	require.Equal(t, float64(1), testutil.ToFloat64(casesExtractedTotal))

	CaseSkipped("keyword_miss")
	CaseSkipped("keyword_miss")
	require.Equal(t, float64(2), testutil.ToFloat64(casesSkippedTotal.WithLabelValues("keyword_miss")))

	CaptchaResolved(false)
	CaptchaResolved(true)
	require.Equal(t, float64(1), testutil.ToFloat64(captchaTotal.WithLabelValues("service")))
	require.Equal(t, float64(1), testutil.ToFloat64(captchaTotal.WithLabelValues("manual")))

	RecoveryAttempt()
	require.Equal(t, float64(1), testutil.ToFloat64(recoveryAttempts))
}
