package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	configPkg "github.com/bricks-cloud/keyrelay/internal/config"
	"github.com/bricks-cloud/keyrelay/internal/telemetry/prometheus"
	"github.com/bricks-cloud/keyrelay/internal/telemetry/stats"
)

type ProviderType string

const (
	PROVIDER_NONE       ProviderType = ""
	PROVIDER_DATADOG    ProviderType = "statsd"
	PROVIDER_PROMETHEUS ProviderType = "prometheus"
)

type Provider interface {
	Incr(name string, tags []string, rate float64)
	Timing(name string, value time.Duration, tags []string, rate float64)
}

type Client struct {
	Provider Provider
}

var Singleton *Client

// Init selects the metrics provider. An empty provider leaves telemetry
// disabled and every call a no-op.
func Init(cfg *configPkg.Config) error {
	if cfg == nil {
		return errors.New("config is empty")
	}

	switch ProviderType(cfg.TelemetryProvider) {
	case PROVIDER_NONE:
		Singleton = nil
		return nil

	case PROVIDER_DATADOG:
		c, err := stats.InitializeClient(stats.Config{
			Enabled: cfg.StatsEnabled,
			Address: cfg.StatsAddress,
		})

		if err != nil {
			return err
		}

		Singleton = &Client{
			Provider: c,
		}

		return nil

	case PROVIDER_PROMETHEUS:
		p, err := prometheus.Init(prometheus.Config{
			Enabled: cfg.PrometheusEnabled,
			Port:    cfg.PrometheusPort,
		})

		if err != nil {
			return err
		}

		Singleton = &Client{
			Provider: p,
		}

		return nil
	}

	return fmt.Errorf("unsupported telemetry provider: %s", cfg.TelemetryProvider)
}

// Use installs an already built provider. Passing nil disables telemetry.
func Use(p Provider) {
	if p == nil {
		Singleton = nil
		return
	}

	Singleton = &Client{
		Provider: p,
	}
}

func Incr(name string, tags []string, rate float64) {
	if Singleton != nil {
		Singleton.Provider.Incr(name, tags, rate)
	}
}

func Timing(name string, value time.Duration, tags []string, rate float64) {
	if Singleton != nil {
		Singleton.Provider.Timing(name, value, tags, rate)
	}
}

// Shutdown releases whatever the active provider holds open.
func Shutdown(ctx context.Context) error {
	if Singleton == nil {
		return nil
	}

	switch p := Singleton.Provider.(type) {
	case *prometheus.Client:
		return p.Shutdown(ctx)
	case *stats.Client:
		return p.Close()
	}

	return nil
}
