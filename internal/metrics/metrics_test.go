// SPDX-License-Identifier: MIT

package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davips/cdict/internal/metrics"
)

func scrape(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Exposure(t *testing.T) {
	metrics.ObserveEntryOp("get", "hit", 3*time.Millisecond)
	metrics.ObserveEntryOp("put", "ok", time.Millisecond)
	metrics.AddEntryBytes("in", 1024)
	metrics.AddEntryBytes("out", 0) // no-op
	metrics.SetStoreStats("memory", 12, 30, 10)
	metrics.IncDictRestore(true)

	body := scrape(t)
	for _, want := range []string{
		`cdict_entry_ops_total{op="get",status="hit"}`,
		`cdict_entry_ops_total{op="put",status="ok"}`,
		"cdict_entry_op_duration_seconds_bucket",
		`cdict_entry_bytes_total{direction="in"} 1024`,
		`cdict_store_entries{backend="memory"} 12`,
		`cdict_store_hit_ratio{backend="memory"} 0.75`,
		`cdict_dict_restores_total{outcome="true"}`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %s", want)
	}
	assert.False(t, strings.Contains(body, `direction="out"`),
		"zero-byte payloads should not create a series")
}
