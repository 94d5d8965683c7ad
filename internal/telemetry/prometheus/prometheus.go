package prometheus

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Enabled bool
	Port    string
}

type Client struct {
	Config           Config
	Registry         *prometheus.Registry
	CounterMetrics   map[string]*prometheus.CounterVec
	HistogramMetrics map[string]*prometheus.HistogramVec

	server *http.Server
}

func New(cfg Config) *Client {
	c := &Client{
		Config:           cfg,
		Registry:         prometheus.NewRegistry(),
		CounterMetrics:   make(map[string]*prometheus.CounterVec),
		HistogramMetrics: make(map[string]*prometheus.HistogramVec),
	}

	c.initMetrics()

	return c
}

// Init builds the client and, when enabled, serves /metrics on the configured
// port in the background.
func Init(cfg Config) (*Client, error) {
	c := New(cfg)
	if !cfg.Enabled {
		return c, nil
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = c.server.Serve(ln)
	}()

	return c, nil
}

func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

func (c *Client) Incr(name string, tags []string, rate float64) {
	if c == nil {
		return
	}

	counterMetric, exists := c.CounterMetrics[name]
	if !exists {
		return
	}

	counter, err := counterMetric.GetMetricWith(labelsFromTags(metricname.CounterLabels[name], tags))
	if err != nil {
		return
	}

	counter.Inc()
}

func (c *Client) Timing(name string, value time.Duration, tags []string, rate float64) {
	if c == nil {
		return
	}

	histogramMetric, exists := c.HistogramMetrics[name]
	if !exists {
		return
	}

	observer, err := histogramMetric.GetMetricWith(labelsFromTags(metricname.HistogramLabels[name], tags))
	if err != nil {
		return
	}

	observer.Observe(value.Seconds())
}

func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}

	return c.server.Shutdown(ctx)
}
