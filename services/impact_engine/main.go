// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/AleutianAI/CarbonFrame/pkg/logging"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/handlers"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/middleware"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/modelstore"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/observability"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/routes"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/run"
	"github.com/awnumar/memguard"
	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

// Model store configuration from environment. These are secrets and
// connection details; they never appear in the config file.
var (
	storeURL      = os.Getenv("MODEL_STORE_URL")
	storeToken    = os.Getenv("MODEL_STORE_TOKEN")
	webhookSecret = os.Getenv("IMPACT_ENGINE_WEBHOOK_SECRET")
)

// serviceConfig holds the reloadable service settings.
//
// The file at IMPACT_ENGINE_CONFIG is optional; when present it is
// watched and re-applied on change without a restart.
type serviceConfig struct {
	// LogLevel is the minimum level emitted: debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// VersionMessage is attached to every model version the engine
	// publishes.
	VersionMessage string `json:"version_message" yaml:"version_message"`

	// RunsPerSecond is the sustained per-client run trigger budget.
	RunsPerSecond float64 `json:"runs_per_second" yaml:"runs_per_second"`

	// RunBurst is the per-client trigger burst size.
	RunBurst int `json:"run_burst" yaml:"run_burst"`
}

// defaultServiceConfig returns the settings used when no file or
// environment overrides are present.
func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		LogLevel:       "info",
		VersionMessage: run.DefaultVersionMessage,
		RunsPerSecond:  middleware.DefaultRunsPerSecond,
		RunBurst:       middleware.DefaultRunBurst,
	}
}

// loadServiceConfig loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - configPath: Path to a YAML/JSON config file (optional, can be empty).
//
// Outputs:
//   - serviceConfig: Merged configuration.
//   - error: Non-nil if the file exists but is invalid.
func loadServiceConfig(configPath string) (serviceConfig, error) {
	// Start with defaults
	config := defaultServiceConfig()

	// Load from file if specified
	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	// Override from environment variables
	loadConfigFromEnv(&config)

	// Validate
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func loadConfigFile(path string, config *serviceConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}

	return nil
}

func loadConfigFromEnv(config *serviceConfig) {
	if v := os.Getenv("IMPACT_ENGINE_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("IMPACT_ENGINE_VERSION_MESSAGE"); v != "" {
		config.VersionMessage = v
	}
	if v := os.Getenv("IMPACT_ENGINE_RUNS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.RunsPerSecond = f
		}
	}
	if v := os.Getenv("IMPACT_ENGINE_RUN_BURST"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.RunBurst = i
		}
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: Non-nil if configuration is invalid.
func (c serviceConfig) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.RunsPerSecond <= 0 {
		return fmt.Errorf("runs_per_second must be > 0")
	}
	if c.RunBurst < 1 {
		return fmt.Errorf("run_burst must be >= 1")
	}
	return nil
}

// configuredExecutor injects the reloadable version message into each
// run config before handing it to the runner.
type configuredExecutor struct {
	runner  *run.Runner
	message atomic.Value // string
}

var _ handlers.RunExecutor = (*configuredExecutor)(nil)

func newConfiguredExecutor(runner *run.Runner, message string) *configuredExecutor {
	e := &configuredExecutor{runner: runner}
	e.message.Store(message)
	return e
}

// SetVersionMessage replaces the message attached to published versions.
// Empty messages are ignored so a sparse config file keeps the default.
func (e *configuredExecutor) SetVersionMessage(message string) {
	if message != "" {
		e.message.Store(message)
	}
}

// Execute runs one impact run with the configured version message.
func (e *configuredExecutor) Execute(ctx context.Context, cfg run.Config) (*run.Result, error) {
	if msg, ok := e.message.Load().(string); ok && msg != "" {
		cfg.VersionMessage = msg
	}
	return e.runner.Execute(ctx, cfg)
}

// watchConfig re-applies the service configuration whenever the file at
// path changes. It returns when ctx is cancelled or the watcher closes.
//
// The watch is held on the directory, not the file: editors and config
// mounts replace the file on save, which drops watches held on the file
// itself.
func watchConfig(ctx context.Context, path string, apply func(serviceConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// A non-atomic save truncates the file before writing the
			// new content; that first event reads back empty. Skip it —
			// the write event with the real content follows.
			if data, err := os.ReadFile(path); err != nil || len(bytes.TrimSpace(data)) == 0 {
				continue
			}
			config, err := loadServiceConfig(path)
			if err != nil {
				slog.Warn("Ignoring config reload", "path", path, "error", err)
				continue
			}
			apply(config)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

// waitForStore blocks until the model store answers a ping, so runs
// triggered right after boot do not hit a store that is still starting.
func waitForStore(store *modelstore.Client) bool {
	slog.Info("Waiting for the model store to be ready...")
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := store.Ping(ctx)
		cancel()
		if err == nil {
			return true
		}
		slog.Warn("Model store not ready, retrying...", "attempt", i+1, "error", err.Error())
		time.Sleep(3 * time.Second)
	}
	return false
}

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	// Get the collector URL from the env var we set in podman-compose.yml
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "carbonframe-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("impact-engine-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("IMPACT_ENGINE_PORT")
	if port == "" {
		port = "12310"
	}

	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	// Wipe token enclaves before the process exits.
	defer memguard.Purge()

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	configPath := os.Getenv("IMPACT_ENGINE_CONFIG")
	config, err := loadServiceConfig(configPath)
	if err != nil {
		log.Fatalf("invalid service configuration: %v", err)
	}
	if level, err := logging.ParseLevel(config.LogLevel); err == nil {
		levelVar.Set(level.SlogLevel())
	}

	// Sanitize: Trim quotes and whitespace just in case Podman passes them literally
	storeURL = strings.Trim(storeURL, "\"' ")
	if storeURL == "" {
		slog.Error("MODEL_STORE_URL environment variable is required")
		os.Exit(1)
	}
	if storeToken == "" {
		slog.Error("MODEL_STORE_TOKEN environment variable is required")
		os.Exit(1)
	}
	if webhookSecret == "" {
		slog.Error("IMPACT_ENGINE_WEBHOOK_SECRET environment variable is required")
		os.Exit(1)
	}

	slog.Info("Starting CarbonFrame Impact Engine",
		"store_url", storeURL,
		"config_path", configPath,
		"log_level", config.LogLevel)

	observability.InitMetrics()

	store, err := modelstore.NewClient(modelstore.ClientConfig{
		BaseURL: storeURL,
		Token:   storeToken,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create the model store client: %v", err)
	}

	if !waitForStore(store) {
		slog.Error("Failed to reach the model store after all retries")
		os.Exit(1)
	}
	slog.Info("Successfully connected to the model store")

	hub := handlers.NewEventHub(logger)
	sink := run.MultiSink{
		run.NewSlogSink(logger),
		handlers.NewEventSink(hub),
		observability.NewStatusRecorder(observability.DefaultMetrics),
	}
	runner := run.NewRunner(store, sink, logger)
	executor := newConfiguredExecutor(runner, config.VersionMessage)

	verifier, err := middleware.NewSharedSecretVerifier(webhookSecret)
	if err != nil {
		log.Fatalf("failed to create the webhook verifier: %v", err)
	}
	limiter := middleware.NewClientRateLimiter(rate.Limit(config.RunsPerSecond), config.RunBurst)

	applyConfig := func(next serviceConfig) {
		if level, err := logging.ParseLevel(next.LogLevel); err == nil {
			levelVar.Set(level.SlogLevel())
		}
		executor.SetVersionMessage(next.VersionMessage)
		limiter.SetRate(rate.Limit(next.RunsPerSecond), next.RunBurst)
		slog.Info("Applied service configuration",
			"log_level", next.LogLevel,
			"runs_per_second", next.RunsPerSecond,
			"run_burst", next.RunBurst)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("impact-engine-service"))

	routes.SetupRoutes(router, store, executor, hub, verifier, limiter)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Println("Starting the impact engine server on port ", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if configPath != "" {
		g.Go(func() error {
			return watchConfig(gCtx, configPath, applyConfig)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("impact engine exited: %v", err)
	}
	log.Println("Server exiting")
}
