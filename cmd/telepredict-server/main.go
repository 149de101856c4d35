package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/telepredict/internal/api/http"
	"github.com/spec-kit/telepredict/internal/api/http/handlers"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/internal/persistence"
	"github.com/spec-kit/telepredict/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := observability.SetupTracing(ctx, cfg.App.Name+"-server", cfg.Telemetry, logger)
	defer func() {
		flushCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = shutdownTracing(flushCtx)
	}()

	deps := map[string]handlers.Pinger{}
	if cfg.Store.Backend == config.StoreRedis {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		deps["redis"] = redis
	}

	metrics := observability.NewMetrics()
	server := httptransport.NewServer(*cfg, logger, metrics, deps)
	worker.StartNotificationWorker(server.Notifications)
	defer server.Notifications.Close()

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr()))
		if err := server.App.Listen(cfg.Server.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.App.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
