package proxy

import (
	"strconv"
	"time"

	"github.com/bricks-cloud/keyrelay/internal/telemetry"
	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/bricks-cloud/keyrelay/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, HEAD, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization",
}

// getMiddleware runs in front of every route, including unknown ones.
func getMiddleware(prod bool, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := util.NewUuid()
		c.Set(correlationId, cid)
		start := time.Now()

		for k, v := range corsHeaders {
			c.Header(k, v)
		}
		c.Header("Cache-Control", "no-cache")

		c.Next()

		dur := time.Since(start)
		latency := int(dur.Milliseconds())
		path := c.FullPath()
		if len(path) == 0 {
			path = c.Request.URL.Path
		}

		if !prod {
			log.Sugar().Infof("proxy | %d | %s | %s | %dms", c.Writer.Status(), c.Request.Method, path, latency)
		} else {
			log.Info("response to proxy",
				zap.String(correlationId, cid),
				zap.Int("code", c.Writer.Status()),
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("latencyInMs", latency),
			)
		}

		telemetry.Timing(metricname.HISTOGRAM_PROXY_LATENCY, dur, nil, 1)
		telemetry.Incr(metricname.COUNTER_PROXY_RESPONSES, []string{
			"status:" + strconv.Itoa(c.Writer.Status()),
		}, 1)
	}
}
