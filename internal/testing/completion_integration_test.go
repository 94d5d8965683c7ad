//go:build integration

package testing

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bricks-cloud/keyrelay/internal/provider/anthropic"
	"github.com/caarlos0/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against a live keyrelay instance backed by real anthropic
// keys: go test -tags integration ./internal/testing/...
type config struct {
	ProxyUrl string `env:"KEYRELAY_URL" envDefault:"http://localhost:8080/v1/complete"`
	ProxyKey string `env:"PROXY_KEY"`
}

func parseEnvVariables() (*config, error) {
	cfg := &config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func completionRequest(url string, request *anthropic.CompletionRequest, proxyKey string) (*http.Response, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", proxyKey)

	return http.DefaultClient.Do(req)
}

func TestKeyrelay_Completion(t *testing.T) {
	c, err := parseEnvVariables()
	require.Nil(t, err)

	request := &anthropic.CompletionRequest{
		Model:             "claude-2",
		Prompt:            "\n\nHuman: Say hello in one word.\n\nAssistant:",
		MaxTokensToSample: 16,
	}

	t.Run("when proxy key is valid", func(t *testing.T) {
		res, err := completionRequest(c.ProxyUrl, request, c.ProxyKey)
		require.Nil(t, err)
		defer res.Body.Close()

		bs, err := io.ReadAll(res.Body)
		require.Nil(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode, string(bs))

		cr := &anthropic.CompletionResponse{}
		require.Nil(t, json.Unmarshal(bs, cr))
		assert.NotEmpty(t, cr.Completion)
	})

	t.Run("when proxy key is wrong", func(t *testing.T) {
		res, err := completionRequest(c.ProxyUrl, request, c.ProxyKey+"-wrong")
		require.Nil(t, err)
		defer res.Body.Close()

		bs, err := io.ReadAll(res.Body)
		require.Nil(t, err)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "Unauthorized.", string(bs))
	})

	t.Run("when streaming", func(t *testing.T) {
		streaming := *request
		streaming.Stream = true

		res, err := completionRequest(c.ProxyUrl, &streaming, c.ProxyKey)
		require.Nil(t, err)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/event-stream"))

		events := 0
		scanner := bufio.NewScanner(res.Body)
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "data:") {
				events++
			}
		}

		require.Nil(t, scanner.Err())
		assert.Greater(t, events, 0)
	})
}
