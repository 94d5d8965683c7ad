package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/bricks-cloud/keyrelay/internal/provider/anthropic"
	"github.com/bricks-cloud/keyrelay/internal/telemetry"
	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestTooLargeMessage = "request entity too large"

type mediaTypeError interface {
	MediaType()
}

type validationError interface {
	Validation()
}

type notAuthorizedError interface {
	Authenticated()
}

func getCompletionHandler(prod, private bool, v validator, client upstreamClient, log *zap.Logger, maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.Incr(metricname.COUNTER_PROXY_REQUESTS, nil, 1)
		cid := c.GetString(correlationId)

		data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				telemetry.Incr(metricname.COUNTER_PROXY_BODY_TOO_LARGE, nil, 1)
				Text(c, http.StatusRequestEntityTooLarge, requestTooLargeMessage)
				return
			}

			logError(log, "error when reading completion request body", prod, cid, err)
			Text(c, http.StatusBadRequest, err.Error())
			return
		}

		contentType := c.GetHeader("Content-Type")
		body, err := decodeBody(contentType, data)
		if err != nil {
			telemetry.Incr(metricname.COUNTER_PROXY_INVALID_JSON, nil, 1)
			logError(log, "error when decoding completion request body", prod, cid, err)
			Text(c, http.StatusBadRequest, err.Error())
			return
		}

		err = v.Validate(contentType, body, c.GetHeader("x-api-key"))
		if _, ok := err.(mediaTypeError); ok {
			telemetry.Incr(metricname.COUNTER_GATEKEEPER_REJECTIONS, []string{"reason:media_type"}, 1)
			Text(c, http.StatusUnsupportedMediaType, err.Error())
			return
		}

		if _, ok := err.(validationError); ok {
			telemetry.Incr(metricname.COUNTER_GATEKEEPER_REJECTIONS, []string{"reason:validation"}, 1)
			Text(c, http.StatusBadRequest, err.Error())
			return
		}

		if _, ok := err.(notAuthorizedError); ok {
			telemetry.Incr(metricname.COUNTER_GATEKEEPER_REJECTIONS, []string{"reason:unauthorized"}, 1)
			Text(c, http.StatusUnauthorized, err.Error())
			return
		}

		if err != nil {
			logError(log, "error when validating completion request", prod, cid, err)
			Text(c, http.StatusInternalServerError, err.Error())
			return
		}

		payload, err := json.Marshal(anthropic.FilterCompletionRequest(body))
		if err != nil {
			logError(log, "error when encoding filtered completion request", prod, cid, err)
			Text(c, http.StatusInternalServerError, err.Error())
			return
		}

		logCompletionRequest(log, payload, prod, private, cid)

		stream, _ := body["stream"].(bool)

		ctx, cancel := context.WithTimeout(c.Request.Context(), c.GetDuration("requestTimeout"))
		defer cancel()

		outcome, err := client.Send(ctx, cid, payload)
		if err != nil {
			logError(log, "error when sending completion request to anthropic", prod, cid, err)
			Text(c, http.StatusInternalServerError, err.Error())
			return
		}

		relay(c, log, prod, private, cid, outcome, stream)
	}
}

// decodeBody parses a JSON request body into an object. Bodies that are not
// declared as JSON, and empty bodies, decode to an empty object. A top-level
// array carries no completion fields and also decodes to an empty object.
func decodeBody(contentType string, data []byte) (map[string]interface{}, error) {
	body := map[string]interface{}{}

	if !isJsonMediaType(contentType) || len(bytes.TrimSpace(data)) == 0 {
		return body, nil
	}

	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	var v interface{}
	if err := d.Decode(&v); err != nil {
		return nil, err
	}

	if _, err := d.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}

	switch parsed := v.(type) {
	case map[string]interface{}:
		return parsed, nil
	case []interface{}:
		return body, nil
	}

	return nil, errors.New("request body must be a json object")
}

func isJsonMediaType(contentType string) bool {
	if len(contentType) == 0 {
		return false
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mt == "application/json"
}

// logCompletionRequest reads the log fields straight from the forwarded
// payload, so values of unexpected types are logged as they are.
func logCompletionRequest(log *zap.Logger, data []byte, prod, private bool, cid string) {
	if !prod {
		return
	}

	fields := []zapcore.Field{
		zap.String(correlationId, cid),
		zap.String("model", gjson.GetBytes(data, "model").String()),
		zap.Int64("max_tokens_to_sample", gjson.GetBytes(data, "max_tokens_to_sample").Int()),
		zap.Float64("temperature", gjson.GetBytes(data, "temperature").Float()),
		zap.Float64("top_p", gjson.GetBytes(data, "top_p").Float()),
		zap.Int64("top_k", gjson.GetBytes(data, "top_k").Int()),
		zap.Bool("stream", gjson.GetBytes(data, "stream").Bool()),
	}

	if userId := gjson.GetBytes(data, "metadata.user_id"); userId.Exists() {
		fields = append(fields, zap.String("user_id", userId.String()))
	}

	if !private {
		fields = append(fields, zap.String("prompt", gjson.GetBytes(data, "prompt").String()))
	}

	log.Info("anthropic completion request", fields...)
}

func logCompletionResponse(log *zap.Logger, data []byte, prod, private bool, cid string) {
	cr := &anthropic.CompletionResponse{}
	err := json.Unmarshal(data, cr)
	if err != nil {
		logError(log, "error when unmarshalling anthropic completion response", prod, cid, err)
		return
	}

	if prod {
		fields := []zapcore.Field{
			zap.String(correlationId, cid),
			zap.String("stop_reason", cr.StopReason),
			zap.String("model", cr.Model),
		}

		if !private {
			fields = append(fields, zap.String("completion", cr.Completion))
		}

		log.Info("anthropic completion response", fields...)
	}
}

func logAnthropicError(log *zap.Logger, prod bool, cid string, status int, text string) {
	fields := []zapcore.Field{
		zap.String(correlationId, cid),
		zap.Int("status", status),
	}

	errRes := &anthropic.ErrorResponse{}
	if err := json.Unmarshal([]byte(text), errRes); err == nil && errRes.Error != nil {
		fields = append(fields,
			zap.String("type", errRes.Error.Type),
			zap.String("message", errRes.Error.Message),
		)
	}

	if prod {
		log.Info("anthropic error response", fields...)
		return
	}

	log.Sugar().Debugf("correlationId:%s | anthropic error response | %d", cid, status)
}
