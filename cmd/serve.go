package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/api"
	"github.com/macrofeed/series-crawler/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, worker pool, and admin API",
		Long: `Starts the long-running crawler service: the scheduler queue is
built from the catalog, workers poll it for due jobs, and the HTTP API
exposes stats and manual controls until SIGTERM.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnvironment()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer application.Close()

	apiServer := api.NewServer(
		application.Scheduler,
		application.Tracker,
		application.Catalog,
		cfg,
		logger.Named("api"),
	)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	poolDone := make(chan struct{})
	go func() {
		logger.Info("worker pool started",
			zap.Int("workers", cfg.Scheduler.MaxConcurrentJobs))
		application.Pool.Run(ctx)
		close(poolDone)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker pool did not drain before deadline")
	}
	logger.Info("shutdown complete")
	return nil
}
