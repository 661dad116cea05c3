package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/yt-fetchd/internal/artifacts"
	"github.com/ytget/yt-fetchd/internal/config"
	"github.com/ytget/yt-fetchd/internal/delivery"
	"github.com/ytget/yt-fetchd/internal/download"
	"github.com/ytget/yt-fetchd/internal/events"
	"github.com/ytget/yt-fetchd/internal/jobs"
	"github.com/ytget/yt-fetchd/internal/metrics"
	"github.com/ytget/yt-fetchd/internal/platform"
	"github.com/ytget/yt-fetchd/internal/retention"
	"github.com/ytget/yt-fetchd/internal/server"
	"github.com/ytget/yt-fetchd/internal/telemetry"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return serve(ctx, settings)
		},
	}
}

func serve(parent context.Context, settings config.Settings) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := telemetry.NewLogger(settings.LogLevel, settings.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, version, settings.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// State is in-memory only, so files left by a previous process are unreachable
	if err := platform.CreateDirectoryIfNotExists(settings.TempDownloadFolder); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	if removed, err := platform.PurgeDirectory(settings.TempDownloadFolder); err != nil {
		logger.Warn("startup purge failed", "dir", settings.TempDownloadFolder, "error", err)
	} else if removed > 0 {
		logger.Info("startup purge", "dir", settings.TempDownloadFolder, "removed", removed)
	}

	registry := jobs.NewRegistry(settings.MaxConcurrentDownloads)
	store := artifacts.NewStore(logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(promRegistry, registry, store)

	ytdlp := platform.NewYTDLP(platform.ClientConfig{
		Binary:    settings.YTDLPPath,
		Cookies:   settings.Cookies,
		CookieDir: os.TempDir(),
	}, logger)

	coordinatorOpts := []download.Option{
		download.WithPlaylistLister(platform.NewPlaylistLister()),
		download.WithRecorder(recorder),
	}
	var publisher *events.Publisher
	if settings.NATSURL != "" {
		publisher, err = events.Connect(settings.NATSURL, settings.NATSSubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		coordinatorOpts = append(coordinatorOpts, download.WithPublisher(publisher))
	}

	coordinator, err := download.NewCoordinator(registry, store, ytdlp, ytdlp, download.Config{
		OutputDir:    settings.TempDownloadFolder,
		FetchTimeout: settings.FetchTimeout,
		InfoTimeout:  settings.InfoTimeout,
	}, logger, coordinatorOpts...)
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	sweeper, err := retention.New(store, registry, retention.Config{
		Retention: settings.RetentionWindow(),
		Interval:  settings.SweepInterval(),
	}, logger, retention.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("init sweeper: %w", err)
	}

	gate := delivery.NewGate(store, registry, settings.DeliveryGracePeriod, logger,
		delivery.WithRecorder(recorder),
		delivery.WithRetention(settings.RetentionWindow()))

	api, err := server.New(server.Deps{
		Fetch:     coordinator,
		Jobs:      registry,
		Cache:     store,
		Delivery:  gate,
		Purger:    sweeper,
		Metrics:   promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		Telemetry: telemetry.Middleware(serviceName, logger),
	}, server.Config{
		CleanupAfterMinutes: settings.CleanupAfterMinutes,
		RequestTimeout:      settings.InfoTimeout + 30*time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr, "version", version,
			"max_concurrent", settings.MaxConcurrentDownloads, "temp_dir", settings.TempDownloadFolder)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := coordinator.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("coordinator shutdown: %w", err))
		}
		gate.Flush()
		if _, err := platform.PurgeDirectory(settings.TempDownloadFolder); err != nil {
			errs = append(errs, fmt.Errorf("purge temp dir: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
		return err
	}
	logger.Info("service stopped")
	return nil
}
