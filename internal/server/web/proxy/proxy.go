package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/bricks-cloud/keyrelay/internal/client/anthropic"
	"github.com/bricks-cloud/keyrelay/internal/config"
	"github.com/bricks-cloud/keyrelay/internal/telemetry"
	"github.com/bricks-cloud/keyrelay/internal/telemetry/metricname"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	correlationId  string = "correlationId"
	completionPath string = "/v1/complete"
)

type validator interface {
	Validate(contentType string, body map[string]interface{}, key string) error
}

type upstreamClient interface {
	Send(ctx context.Context, cid string, body []byte) (*anthropic.Outcome, error)
}

type ProxyServer struct {
	server *http.Server
	log    *zap.Logger
	port   string
}

func NewProxyServer(log *zap.Logger, mode, privacyMode string, cfg *config.Config, v validator, client upstreamClient, timeOut time.Duration) (*ProxyServer, error) {
	router := gin.New()
	prod := mode == "production"
	private := privacyMode == "strict"

	// only the exact completion path is served
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	if cfg.OpenTelemetryEnabled {
		router.Use(getOtelMiddlware())
	}

	router.Use(getMiddleware(prod, log))

	router.OPTIONS(completionPath, getPreflightHandler())
	router.POST(completionPath, getTimeoutMiddleware(timeOut), getCompletionHandler(prod, private, v, client, log, int64(cfg.MaxRequestBodyBytes)))
	router.NoRoute(getNotFoundHandler())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	return &ProxyServer{
		log:    log,
		server: srv,
		port:   cfg.Port,
	}, nil
}

func getPreflightHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Max-Age", "1728000")
		c.Status(http.StatusNoContent)
	}
}

func getNotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.Incr(metricname.COUNTER_PROXY_ROUTE_NOT_FOUND, nil, 1)
		Text(c, http.StatusNotFound, "Not found")
	}
}

// Text writes a plain text body, the format of every response the proxy
// produces itself.
func Text(c *gin.Context, code int, message string) {
	c.Data(code, "text/plain; charset=utf-8", []byte(message))
}

func (ps *ProxyServer) Run() {
	go func() {
		ps.log.Sugar().Infof("proxy server listening at %s", ps.port)
		ps.log.Sugar().Infof("PORT %s | POST    | %s is ready for forwarding completion requests to anthropic", ps.port, completionPath)
		ps.log.Sugar().Infof("PORT %s | OPTIONS | %s is ready for answering preflight requests", ps.port, completionPath)

		if err := ps.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ps.log.Sugar().Fatalf("error proxy server listening: %v", err)
			return
		}
	}()
}

func logError(log *zap.Logger, msg string, prod bool, id string, err error) {
	if prod {
		log.Debug(msg, zap.String(correlationId, id), zap.Error(err))
		return
	}

	log.Sugar().Debugf("correlationId:%s | %s | %v", id, msg, err)
}

func (ps *ProxyServer) Shutdown(ctx context.Context) error {
	if err := ps.server.Shutdown(ctx); err != nil {
		ps.log.Sugar().Infof("error shutting down proxy server: %v", err)

		return err
	}

	return nil
}
