// Command telepredict is the terminal client of the churn prediction service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/apiclient"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/credstore"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/internal/persistence"
	"github.com/spec-kit/telepredict/internal/session"
	"github.com/spec-kit/telepredict/pkg/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", util.ToDomainError(err).Message)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "telepredict",
		Short:         "Customer churn prediction client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		watchCmd(),
		registerCmd(),
		profileCmd(),
		addStaffCmd(),
		feedbackCmd(),
		historyCmd(),
		exportCmd(),
		predictCmd(),
	)
	return cmd
}

// app is one client context: a session over the shared store and a remote client.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	redis    *persistence.Redis
	store    credstore.Store
	session  *session.Manager
	remote   *apiclient.Client
	shutdown func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}
	a.shutdown = observability.SetupTracing(ctx, cfg.App.Name, cfg.Telemetry, logger)

	if cfg.Store.Backend == config.StoreRedis {
		a.redis = persistence.NewRedis(cfg.Redis, logger)
	}
	a.store, err = credstore.Open(cfg.Store, a.redis, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.session = session.NewManager(a.store, logger, a.metrics)
	if _, err := a.session.Init(ctx); err != nil {
		logger.Warn("session init", zap.Error(err))
	}
	a.remote = apiclient.New(cfg.API, a.session, logger, apiclient.WithMetrics(a.metrics))
	return a, nil
}

func (a *app) close() {
	if a.session != nil {
		a.session.Teardown()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.redis.Close()
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.shutdown(ctx)
	}
	_ = a.logger.Sync()
}

// withApp runs fn with a ready app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
