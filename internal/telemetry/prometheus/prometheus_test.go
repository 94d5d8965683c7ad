package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Client) string {
	t.Helper()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	bs, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(bs)
}

func TestClient_Incr(t *testing.T) {
	c := New(Config{})

	c.Incr(metricname.COUNTER_PROXY_RESPONSES, []string{"status:200"}, 1)
	c.Incr(metricname.COUNTER_PROXY_RESPONSES, []string{"status:200"}, 1)
	c.Incr(metricname.COUNTER_PROXY_RESPONSES, []string{"status:429", "ignored:x"}, 1)
	c.Incr(metricname.COUNTER_UPSTREAM_RETRIES, nil, 1)
	c.Incr("not_registered", nil, 1)

	out := scrape(t, c)
	assert.Contains(t, out, `keyrelay_proxy_responses{status="200"} 2`)
	assert.Contains(t, out, `keyrelay_proxy_responses{status="429"} 1`)
	assert.Contains(t, out, `keyrelay_upstream_retries 1`)
	assert.NotContains(t, out, "not_registered")
}

func TestClient_Timing(t *testing.T) {
	c := New(Config{})

	c.Timing(metricname.HISTOGRAM_UPSTREAM_LATENCY, 150*time.Millisecond, []string{"result:terminal"}, 1)

	out := scrape(t, c)
	assert.Contains(t, out, `keyrelay_upstream_latency_count{result="terminal"} 1`)
	assert.Contains(t, out, `keyrelay_upstream_latency_sum{result="terminal"} 0.15`)
}

func TestClient_NilIsNoop(t *testing.T) {
	var c *Client
	assert.NotPanics(t, func() {
		c.Incr(metricname.COUNTER_PROXY_REQUESTS, nil, 1)
		c.Timing(metricname.HISTOGRAM_PROXY_LATENCY, time.Second, nil, 1)
	})
}

func TestLabelsFromTags(t *testing.T) {
	labels := labelsFromTags([]string{"status", "reason"}, []string{"status:401", "bogus", "other:1"})
	assert.Equal(t, "401", labels["status"])
	assert.Equal(t, "", labels["reason"])
	assert.NotContains(t, labels, "other")
}
