// internal/metrics/registry_test.go
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.RecordExchange("holding", "read", true, 0.01)
	r.RecordSweep()
	r.RecordAlarm("x")
	r.RecordBridgeRequest("get", "3", "ok")
	r.SetBreakerState(2)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.RecordSweep()
	a.RecordSweep()
	b.RecordSweep()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.Sweeps))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Sweeps))
}

func TestHandlerExposesBridgeMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordBridgeRequest("set", "16", "ok")
	r.RecordExchange("coil", "write", false, 0.002)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `bridge_api_requests_total{func_code="16",op="set",result="ok"} 1`))
	assert.True(t, strings.Contains(body, `bridge_modbus_exchanges_total{kind="coil",op="write",result="error"} 1`))
}
