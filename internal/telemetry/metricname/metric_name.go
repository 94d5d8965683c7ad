package metricname

const (
	COUNTER_PROXY_REQUESTS            = "keyrelay_proxy_requests"
	COUNTER_PROXY_RESPONSES           = "keyrelay_proxy_responses"
	COUNTER_PROXY_ROUTE_NOT_FOUND     = "keyrelay_proxy_route_not_found"
	COUNTER_PROXY_INVALID_JSON        = "keyrelay_proxy_invalid_json"
	COUNTER_PROXY_BODY_TOO_LARGE      = "keyrelay_proxy_body_too_large"
	COUNTER_GATEKEEPER_REJECTIONS     = "keyrelay_gatekeeper_rejections"
	COUNTER_UPSTREAM_ATTEMPTS         = "keyrelay_upstream_attempts"
	COUNTER_UPSTREAM_RETRIES          = "keyrelay_upstream_retries"
	COUNTER_UPSTREAM_EXHAUSTED        = "keyrelay_upstream_exhausted"
	COUNTER_RELAY_STREAMING_REQUESTS  = "keyrelay_relay_streaming_requests"
	COUNTER_RELAY_READ_ERRORS         = "keyrelay_relay_read_errors"
	HISTOGRAM_PROXY_LATENCY           = "keyrelay_proxy_latency"
	HISTOGRAM_UPSTREAM_LATENCY        = "keyrelay_upstream_latency"
	HISTOGRAM_RELAY_STREAMING_LATENCY = "keyrelay_relay_streaming_latency"
)

// CounterLabels and HistogramLabels list the tag keys each metric is
// reported with. Tags are passed as "key:value" strings.
var CounterLabels = map[string][]string{
	COUNTER_PROXY_REQUESTS:           {},
	COUNTER_PROXY_RESPONSES:          {"status"},
	COUNTER_PROXY_ROUTE_NOT_FOUND:    {},
	COUNTER_PROXY_INVALID_JSON:       {},
	COUNTER_PROXY_BODY_TOO_LARGE:     {},
	COUNTER_GATEKEEPER_REJECTIONS:    {"reason"},
	COUNTER_UPSTREAM_ATTEMPTS:        {"result"},
	COUNTER_UPSTREAM_RETRIES:         {},
	COUNTER_UPSTREAM_EXHAUSTED:       {"cause"},
	COUNTER_RELAY_STREAMING_REQUESTS: {},
	COUNTER_RELAY_READ_ERRORS:        {},
}

var HistogramLabels = map[string][]string{
	HISTOGRAM_PROXY_LATENCY:           {},
	HISTOGRAM_UPSTREAM_LATENCY:        {"result"},
	HISTOGRAM_RELAY_STREAMING_LATENCY: {},
}
