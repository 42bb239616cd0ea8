package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pusher91/fieldbutton/internal/domain"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveAttempt("userfieldtype.add", domain.OutcomeAPIError, 20*time.Millisecond)
	m.ObserveAttempt("userfieldtype.add.json", domain.OutcomeSuccess, 30*time.Millisecond)
	m.ObserveResult(domain.OutcomeSuccess)
	m.RateLimited()
	m.RateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("userfieldtype.add", "api_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rateLimited))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveResult(domain.OutcomeCached)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fieldbutton_registrations_total{outcome="cached"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAttempt("x", domain.OutcomeSuccess, time.Millisecond)
	m.ObserveResult(domain.OutcomeSuccess)
	m.RateLimited()
}
