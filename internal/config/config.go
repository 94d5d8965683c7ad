package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string        `env:"PORT" envDefault:"8080"`
	ApiKeysJson           string        `env:"API_KEYS"`
	ProxyKey              string        `env:"PROXY_KEY"`
	UpstreamUrl           string        `env:"UPSTREAM_URL" envDefault:"https://api.anthropic.com/v1/complete"`
	AnthropicVersion      string        `env:"ANTHROPIC_VERSION" envDefault:"2023-06-01"`
	UpstreamUserAgent     string        `env:"UPSTREAM_USER_AGENT" envDefault:"Anthropic/Python 0.3.1"`
	UpstreamTimeout       time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10m"`
	MaxRequestBodyBytes   int           `env:"MAX_REQUEST_BODY_BYTES" envDefault:"10485760"`
	TelemetryProvider     string        `env:"TELEMETRY_PROVIDER"`
	StatsEnabled          bool          `env:"STATS_ENABLED" envDefault:"false"`
	StatsAddress          string        `env:"STATS_ADDRESS" envDefault:"127.0.0.1:8125"`
	PrometheusEnabled     bool          `env:"PROMETHEUS_ENABLED" envDefault:"false"`
	PrometheusPort        string        `env:"PROMETHEUS_PORT" envDefault:"2112"`
	OpenTelemetryEnabled  bool          `env:"OTEL_ENABLED" envDefault:"false"`
	OpenTelemetryEndpoint string        `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`

	// ApiKeys is decoded from ApiKeysJson.
	ApiKeys []string
}

// LoadDotEnv loads variables from the given files into the process
// environment. Missing files are not an error; variables that are already set
// win over the file.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	existing := []string{}
	for _, f := range filenames {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

func ParseEnvVariables() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, err
	}

	keys, err := ParseApiKeys(cfg.ApiKeysJson)
	if err != nil {
		return nil, err
	}
	cfg.ApiKeys = keys

	if len(cfg.ProxyKey) == 0 {
		return nil, errors.New("PROXY_KEY is required")
	}

	if cfg.UpstreamTimeout <= 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", cfg.UpstreamTimeout)
	}

	if cfg.MaxRequestBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_BYTES must be positive, got %d", cfg.MaxRequestBodyBytes)
	}

	return cfg, nil
}

// ParseApiKeys decodes a JSON array of upstream api keys.
func ParseApiKeys(raw string) ([]string, error) {
	if len(strings.TrimSpace(raw)) == 0 {
		return nil, errors.New("API_KEYS is required")
	}

	keys := []string{}
	err := json.Unmarshal([]byte(raw), &keys)
	if err != nil {
		return nil, fmt.Errorf("API_KEYS must be a json array of strings: %w", err)
	}

	if len(keys) == 0 {
		return nil, errors.New("API_KEYS must contain at least one key")
	}

	for i, k := range keys {
		if len(strings.TrimSpace(k)) == 0 {
			return nil, fmt.Errorf("API_KEYS entry %d is empty", i)
		}
	}

	return keys, nil
}
