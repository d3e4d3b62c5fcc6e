package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(FramesSavedTotal.WithLabelValues("expressions"))
	FramesSavedTotal.WithLabelValues("expressions").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FramesSavedTotal.WithLabelValues("expressions")))

	changes := testutil.ToFloat64(ExpressionChangesTotal)
	ExpressionChangesTotal.Add(2)
	assert.Equal(t, changes+2, testutil.ToFloat64(ExpressionChangesTotal))
}

func TestMuxServesMetricsAndHealth(t *testing.T) {
	FramesReadTotal.WithLabelValues("extract").Inc()

	srv := httptest.NewServer(NewMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "vsframes_frames_read_total")
}

func TestStartServerDisabled(t *testing.T) {
	assert.Nil(t, StartServer(0))
}
