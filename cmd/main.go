package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/UnknownOlympus/coordtrans/internal/config"
	"github.com/UnknownOlympus/coordtrans/internal/geocoding"
	"github.com/UnknownOlympus/coordtrans/internal/metrics"
	"github.com/UnknownOlympus/coordtrans/internal/service"
	"github.com/UnknownOlympus/coordtrans/internal/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coordtrans",
		Short: "Convert addresses to coordinates and back, one at a time or by the spreadsheet",
		Long: `
coordtrans geocodes addresses and reverse geocodes "lon,lat" points through Amap,
Google Maps or Nominatim. It runs as an HTTP service or directly from the command line.
`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd(), newBatchCmd(), newGeoCmd(), newRegeoCmd())

	return rootCmd
}

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	client    *geocoding.Client
	validator *validation.Validator
	executor  *service.Executor
	batch     *service.BatchService
}

// bootstrap loads the configuration and wires the provider, client and batch pipeline.
// Logs are written to logOut so commands printing results can keep stdout clean.
func bootstrap(logOut io.Writer) (*app, error) {
	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env, logOut)

	// Create a separate registry for metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Create geocoding provider using factory pattern based on configuration.
	geoProvider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Provider.Type),
		APIKey:    cfg.Provider.APIKey,
		BaseURL:   cfg.Provider.BaseURL,
		RateLimit: cfg.Provider.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	client := geocoding.NewClient(geoProvider, cfg.Provider.Type, geocoding.ClientConfig{
		Timeout:    cfg.Provider.Timeout,
		RetryDelay: cfg.Provider.RetryDelay,
	}, appMetrics, logger)

	validator := validation.New(validation.Limits{
		MaxAddressLength: cfg.Limits.MaxAddressLength,
		MaxCityLength:    cfg.Limits.MaxCityLength,
	})
	executor := service.NewExecutor(logger, client, appMetrics, cfg.Workers)
	batch := service.NewBatchService(logger, executor, validator, service.BatchLimits{
		MaxRows:       cfg.Limits.MaxBatchRows,
		MaxUploadSize: cfg.Limits.MaxUploadSize,
	})

	logger.Info("Geocoding provider initialized", "type", cfg.Provider.Type, "workers", cfg.Workers)

	return &app{
		cfg:       cfg,
		log:       logger,
		registry:  reg,
		metrics:   appMetrics,
		client:    client,
		validator: validator,
		executor:  executor,
		batch:     batch,
	}, nil
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string, out io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(out, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				AddSource:   false,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelError,
				AddSource:   false,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}

	return a
}
