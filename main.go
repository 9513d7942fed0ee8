package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"diabetesrisk/config"
	dhttp "diabetesrisk/http"
	"diabetesrisk/logging"
	"diabetesrisk/ml"
	"diabetesrisk/monitoring"
	"diabetesrisk/pipeline"
)

func main() {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// 2. Build defaults and model; a failure here is fatal
	source, err := pipeline.NewSource(cfg.Reference.Source, cfg.Reference.Path)
	if err != nil {
		return err
	}
	build := pipeline.NewBuilder(source, pipeline.BuilderConfig{
		ModelType: cfg.Model.Type,
		ModelPath: cfg.Model.Path,
		CacheSize: cfg.Cache.Size,
	}, logger)

	predictor, err := build(context.Background())
	if err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	engine := ml.NewEngine()
	metrics := monitoring.NewMetrics(engine)
	if cfg.Monitor.Enabled {
		monitor := monitoring.NewRealtimeMonitor(cfg.Monitor.Heartbeat, logger)
		if err := monitor.Start(); err != nil {
			return err
		}
		defer monitor.Stop()
		metrics.AttachRealtime(monitor)
	}
	metrics.ObserveReload(engine.Publish(predictor), nil)
	logger.Info("predictor published",
		zap.String("model", cfg.Model.Path),
		zap.String("reference", cfg.Reference.Path),
	)

	// 3. Optional hot reload
	if cfg.Reload.Enabled {
		reloader, err := ml.NewReloader(engine, build, ml.ReloaderConfig{
			Paths:    []string{cfg.Model.Path, source.Path()},
			Debounce: cfg.Reload.Debounce,
			OnReload: metrics.ObserveReload,
		}, logger)
		if err != nil {
			return err
		}
		if err := reloader.Start(); err != nil {
			return err
		}
		defer reloader.Stop()
	}

	// 4. Start HTTP server
	server := dhttp.NewServer(dhttp.ServerConfig{
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		AllowedOrigins:  cfg.HTTP.CORSOrigins,
	}, dhttp.NewHandlers(engine, metrics, logger), logger)

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
