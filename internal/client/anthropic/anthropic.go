package anthropic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bricks-cloud/keyrelay/internal/credential"
	"github.com/bricks-cloud/keyrelay/internal/telemetry"
	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultUrl         = "https://api.anthropic.com/v1/complete"
	DefaultVersion     = "2023-06-01"
	DefaultUserAgent   = "Anthropic/Python 0.3.1"
	DefaultMaxAttempts = 2
)

type Selector interface {
	Select() string
}

type Config struct {
	Url         string
	Version     string
	UserAgent   string
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if len(c.Url) == 0 {
		c.Url = DefaultUrl
	}

	if len(c.Version) == 0 {
		c.Version = DefaultVersion
	}

	if len(c.UserAgent) == 0 {
		c.UserAgent = DefaultUserAgent
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	return c
}

// Client sends completion requests upstream and rotates api keys across
// attempts when a key is rejected or throttled.
type Client struct {
	httpClient *http.Client
	selector   Selector
	config     Config
	log        *zap.Logger
}

func NewClient(hc *http.Client, s Selector, cfg Config, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		httpClient: hc,
		selector:   s,
		config:     cfg.withDefaults(),
		log:        log,
	}
}

func (c *Client) MaxAttempts() int {
	return c.config.MaxAttempts
}

// Send posts body upstream, making up to MaxAttempts sequential attempts with
// a freshly selected key each time. Only transport errors, 401 and 429 are
// retried. The returned error is reserved for failures inside the proxy; all
// upstream results, including exhaustion, are reported through the Outcome.
func (c *Client) Send(ctx context.Context, cid string, body []byte) (*Outcome, error) {
	attempts := 0
	var terminal *Outcome
	var internalErr error

	// MaxAttempts is at least 1 after withDefaults. WithMaxRetries counts
	// retries after the first attempt, so zero retries stops after one call.
	b := backoff.WithContext(
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(c.config.MaxAttempts-1)),
		ctx,
	)

	operation := func() error {
		attempts++

		key := c.selector.Select()
		req, err := c.newRequest(ctx, key, body)
		if err != nil {
			internalErr = fmt.Errorf("error when creating anthropic http request: %w", err)
			return backoff.Permanent(internalErr)
		}

		start := time.Now()
		res, err := c.httpClient.Do(req)
		dur := time.Since(start)

		fields := []zap.Field{
			zap.String("correlationId", cid),
			zap.Int("attempt", attempts),
			zap.String("credential", credential.Fingerprint(key)),
			zap.Duration("latency", dur),
		}

		if classify(res, err) == verdictRetryable {
			f, ferr := remember(res, err)
			if ferr != nil {
				internalErr = ferr
				return backoff.Permanent(internalErr)
			}

			result := "retryable_status"
			if err != nil {
				result = "transport_error"
				fields = append(fields, zap.Error(err))
			} else {
				fields = append(fields, zap.Int("status", f.statusCode))
			}

			telemetry.Incr(metricname.COUNTER_UPSTREAM_ATTEMPTS, []string{"result:" + result}, 1)
			telemetry.Timing(metricname.HISTOGRAM_UPSTREAM_LATENCY, dur, []string{"result:" + result}, 1)
			c.log.Debug("retryable anthropic response", fields...)

			return f
		}

		telemetry.Incr(metricname.COUNTER_UPSTREAM_ATTEMPTS, []string{"result:terminal"}, 1)
		telemetry.Timing(metricname.HISTOGRAM_UPSTREAM_LATENCY, dur, []string{"result:terminal"}, 1)
		c.log.Debug("terminal anthropic response", append(fields, zap.Int("status", res.StatusCode))...)

		terminal, err = settle(res, attempts)
		if err != nil {
			internalErr = err
			return backoff.Permanent(internalErr)
		}

		return nil
	}

	notify := func(err error, _ time.Duration) {
		telemetry.Incr(metricname.COUNTER_UPSTREAM_RETRIES, nil, 1)
		c.log.Debug("retrying anthropic request with another key",
			zap.String("correlationId", cid),
			zap.Int("nextAttempt", attempts+1),
			zap.String("reason", err.Error()),
		)
	}

	err := backoff.RetryNotify(operation, b, notify)
	if internalErr != nil {
		return nil, internalErr
	}

	if err == nil {
		return terminal, nil
	}

	var f *failure
	if errors.As(err, &f) {
		cause := "status"
		if f.err != nil {
			cause = "transport_error"
		}
		telemetry.Incr(metricname.COUNTER_UPSTREAM_EXHAUSTED, []string{"cause:" + cause}, 1)

		return f.outcome(attempts), nil
	}

	// the context ended between attempts
	telemetry.Incr(metricname.COUNTER_UPSTREAM_EXHAUSTED, []string{"cause:context"}, 1)
	return (&failure{err: err}).outcome(attempts), nil
}

func (c *Client) newRequest(ctx context.Context, key string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", c.config.Version)
	req.Header.Set("User-Agent", c.config.UserAgent)

	return req, nil
}

// remember captures a retryable attempt and releases its connection.
func remember(res *http.Response, err error) (*failure, error) {
	if err != nil {
		return &failure{err: err}, nil
	}

	defer res.Body.Close()

	bs, rerr := io.ReadAll(res.Body)
	if rerr != nil {
		// the key was rejected either way, so this still counts as retryable
		return &failure{err: fmt.Errorf("error when reading anthropic response body: %w", rerr)}, nil
	}

	return &failure{
		statusCode: res.StatusCode,
		header:     res.Header.Clone(),
		text:       string(bs),
	}, nil
}

// settle turns a terminal response into an Outcome. Only 2xx bodies are left
// open for streaming; anything else is read in full.
func settle(res *http.Response, attempts int) (*Outcome, error) {
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return &Outcome{
			Kind:       OutcomeSuccess,
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       res.Body,
			Attempts:   attempts,
		}, nil
	}

	defer res.Body.Close()

	bs, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error when reading anthropic error response body: %w", err)
	}

	return &Outcome{
		Kind:       OutcomeUpstreamError,
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Text:       string(bs),
		Attempts:   attempts,
	}, nil
}
