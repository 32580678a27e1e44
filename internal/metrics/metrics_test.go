package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/workflow/execctx"
	"github.com/meikuraledutech/workflow/run"
)

var (
	_ execctx.Recorder = (*Metrics)(nil)
	_ run.Recorder     = (*Metrics)(nil)
)

func TestCounters(t *testing.T) {
	m := New()

	m.ConnectionRejected("cycle")
	m.ConnectionRejected("cycle")
	m.PacketOmitted("record_not_found")
	m.ContextBuilt(3, 1)
	m.RunEvaluated("OK", true)
	m.RunEvaluated("NO_OUTPUT", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsRejected.WithLabelValues("cycle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.packetsOmitted.WithLabelValues("record_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.contextsBuilt))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsEvaluated.WithLabelValues("OK", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsEvaluated.WithLabelValues("NO_OUTPUT", "false")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ContextBuilt(2, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "workflow_contexts_built_total 1"))
	assert.Contains(t, string(body), "workflow_context_packets_count 1")
}

func TestRegistry(t *testing.T) {
	m := New()
	m.ConnectionRejected("cycle")
	m.ConnectionRejected("duplicate")
	m.RunEvaluated("OK", true)

	n, err := testutil.GatherAndCount(m.Registry(), "workflow_connections_rejected_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(m.Registry(), "workflow_runs_evaluated_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
