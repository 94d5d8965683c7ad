package proxy

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/bricks-cloud/keyrelay/internal/client/anthropic"
	"github.com/bricks-cloud/keyrelay/internal/telemetry"
	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const relayBufferSize = 32 * 1024

// relay writes the final upstream outcome to the caller. Upstream statuses and
// bodies are passed through untouched.
func relay(c *gin.Context, log *zap.Logger, prod, private bool, cid string, o *anthropic.Outcome, stream bool) {
	switch o.Kind {
	case anthropic.OutcomeSuccess:
		relayBody(c, log, prod, private, cid, o, stream)

	case anthropic.OutcomeUpstreamError:
		logAnthropicError(log, prod, cid, o.StatusCode, o.Text)
		Text(c, o.StatusCode, o.Text)

	case anthropic.OutcomeExhausted:
		if o.Err != nil {
			logError(log, "error when sending http request to anthropic", prod, cid, o.Err)
			Text(c, http.StatusInternalServerError, o.Err.Error())
			return
		}

		logAnthropicError(log, prod, cid, o.StatusCode, o.Text)
		Text(c, o.StatusCode, o.Text)

	default:
		Text(c, http.StatusInternalServerError, "unknown upstream outcome")
	}
}

// relayBody streams a successful upstream body, flushing after every read so
// server sent events reach the caller as they arrive. The loop stops when the
// upstream ends or the caller goes away.
func relayBody(c *gin.Context, log *zap.Logger, prod, private bool, cid string, o *anthropic.Outcome, stream bool) {
	defer o.Close()

	if ct := o.Header.Get("Content-Type"); len(ct) != 0 {
		c.Header("Content-Type", ct)
	}

	if cl := o.Header.Get("Content-Length"); len(cl) != 0 {
		c.Header("Content-Length", cl)
	}

	if stream {
		telemetry.Incr(metricname.COUNTER_RELAY_STREAMING_REQUESTS, nil, 1)
		c.Header("Connection", "keep-alive")
	}

	c.Status(o.StatusCode)

	start := time.Now()
	buf := make([]byte, relayBufferSize)
	captured := &bytes.Buffer{}

	c.Stream(func(w io.Writer) bool {
		n, err := o.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				logError(log, "error when writing anthropic response to client", prod, cid, werr)
				return false
			}

			if !stream {
				captured.Write(buf[:n])
			}
		}

		if err != nil {
			if err != io.EOF {
				telemetry.Incr(metricname.COUNTER_RELAY_READ_ERRORS, nil, 1)
				logError(log, "error when reading anthropic response body", prod, cid, err)
			}

			return false
		}

		return true
	})

	if stream {
		telemetry.Timing(metricname.HISTOGRAM_RELAY_STREAMING_LATENCY, time.Since(start), nil, 1)
		return
	}

	logCompletionResponse(log, captured.Bytes(), prod, private, cid)
}
