package prometheus

import (
	"strings"

	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/prometheus/client_golang/prometheus"
)

var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

func (c *Client) initMetrics() {
	for name, labels := range metricname.CounterLabels {
		c.CounterMetrics[name] = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name,
				Help: helpText(name),
			},
			labels,
		)
		c.Registry.MustRegister(c.CounterMetrics[name])
	}

	for name, labels := range metricname.HistogramLabels {
		c.HistogramMetrics[name] = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name,
				Help:    helpText(name) + " in seconds",
				Buckets: latencyBuckets,
			},
			labels,
		)
		c.Registry.MustRegister(c.HistogramMetrics[name])
	}
}

func helpText(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "keyrelay_"), "_", " ")
}

// labelsFromTags maps statsd style "key:value" tags onto the declared label
// names. Undeclared tags are dropped and missing ones are left empty.
func labelsFromTags(names []string, tags []string) prometheus.Labels {
	labels := prometheus.Labels{}
	for _, n := range names {
		labels[n] = ""
	}

	for _, tag := range tags {
		k, v, found := strings.Cut(tag, ":")
		if !found {
			continue
		}

		if _, declared := labels[k]; declared {
			labels[k] = v
		}
	}

	return labels
}
