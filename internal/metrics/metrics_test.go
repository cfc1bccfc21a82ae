package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Registration("created")
	m.Registration("conflict")
	m.Login("success")
	m.Login("invalid_credentials")
	m.Login("invalid_credentials")
	m.GateRejected("missing")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateRejections.WithLabelValues("missing")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Registration("created")
		m.Login("success")
		m.GateRejected("invalid")
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).Login("success")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `blogcms_auth_logins_total{outcome="success"} 1`)
}
