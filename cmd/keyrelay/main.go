package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bricks-cloud/keyrelay/internal/client/anthropic"
	"github.com/bricks-cloud/keyrelay/internal/config"
	"github.com/bricks-cloud/keyrelay/internal/credential"
	"github.com/bricks-cloud/keyrelay/internal/gatekeeper"
	"github.com/bricks-cloud/keyrelay/internal/logger/zap"
	"github.com/bricks-cloud/keyrelay/internal/server/web/proxy"
	"github.com/bricks-cloud/keyrelay/internal/telemetry"
	"github.com/gin-gonic/gin"
)

func main() {
	modePtr := flag.String("m", "dev", "select the mode that keyrelay runs in")
	privacyPtr := flag.String("p", "default", "select the privacy mode that keyrelay runs in")
	flag.Parse()

	log := zap.NewLogger(*modePtr)
	lg := log.Sugar()

	gin.SetMode(gin.ReleaseMode)

	if err := config.LoadDotEnv(); err != nil {
		lg.Fatalf("cannot load .env file: %v", err)
	}

	cfg, err := config.ParseEnvVariables()
	if err != nil {
		lg.Fatalf("cannot parse environment variables: %v", err)
	}

	err = telemetry.Init(cfg)
	if err != nil {
		lg.Fatalf("cannot initialize telemetry: %v", err)
	}

	otelShutdown, err := telemetry.SetupOTelSDK(context.Background(), cfg)
	if err != nil {
		lg.Fatalf("cannot set up opentelemetry: %v", err)
	}

	pool, err := credential.NewPool(cfg.ApiKeys)
	if err != nil {
		lg.Fatalf("cannot create credential pool: %v", err)
	}

	lg.Infof("loaded %d anthropic api keys", pool.Size())

	client := anthropic.NewClient(
		proxy.NewUpstreamHttpClient(cfg.OpenTelemetryEnabled),
		pool,
		anthropic.Config{
			Url:       cfg.UpstreamUrl,
			Version:   cfg.AnthropicVersion,
			UserAgent: cfg.UpstreamUserAgent,
		},
		log,
	)

	ps, err := proxy.NewProxyServer(log, *modePtr, *privacyPtr, cfg, gatekeeper.New(cfg.ProxyKey), client, cfg.UpstreamTimeout)
	if err != nil {
		lg.Fatalf("error creating proxy http server: %v", err)
	}

	ps.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ps.Shutdown(ctx); err != nil {
		lg.Debugf("proxy server shutdown: %v", err)
	}

	if err := telemetry.Shutdown(ctx); err != nil {
		lg.Debugf("telemetry shutdown: %v", err)
	}

	if err := otelShutdown(ctx); err != nil {
		lg.Debugf("opentelemetry shutdown: %v", err)
	}

	select {
	case <-ctx.Done():
		lg.Infof("timeout of 5 seconds")
	default:
	}

	lg.Info("server exited")
}
