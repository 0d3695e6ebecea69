package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/coordtrans/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	// A full batch waits on the provider for every row.
	writeTimeout = 10 * time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := bootstrap(os.Stdout)
			if err != nil {
				return err
			}

			// Create a context that will be canceled when an interrupt signal is received.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, application)
		},
	}
}

// runServer serves the API until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, application *app) error {
	logger := application.log
	cfg := application.cfg

	if cfg.Env == envLocal {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	api := server.New(
		logger,
		application.client,
		application.validator,
		application.batch,
		application.registry,
		server.Options{
			ProviderName:  application.client.ProviderName(),
			MaxUploadSize: cfg.Limits.MaxUploadSize,
			CORSOrigins:   cfg.CORSOrigins,
			StaticDir:     cfg.StaticDir,
		},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.InfoContext(ctx, "Starting HTTP server", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.InfoContext(ctx, "Application stopped gracefully.")
		return nil
	})

	return group.Wait()
}
