package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web API and the polling monitor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfgs, logger, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	a, err := newApp(ctx, cfgs, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer a.Close()

	cfg := cfgs.Current()
	scheduler := a.Scheduler()
	scheduler.Journal().Record(monitor.LevelInfo, "monitoring ready")
	if cfg.Monitor.Autostart {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("autostart failed", zap.Error(err))
			scheduler.Journal().Record(monitor.LevelError, fmt.Sprintf("autostart failed: %v", err))
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.Server().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Warn("monitor shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return runErr
}
