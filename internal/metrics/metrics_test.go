package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(GateDecisions.WithLabelValues("approve"))
	GateDecisions.WithLabelValues("approve").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(GateDecisions.WithLabelValues("approve")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	DiffRecords.WithLabelValues("line").Add(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `reqevo_diff_records_total{strategy="line"}`)
	assert.Contains(t, string(body), "go_goroutines")
}
