package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parallaxlabs/deepresearch/internal/config"
	"github.com/parallaxlabs/deepresearch/internal/db"
	"github.com/parallaxlabs/deepresearch/internal/fetch"
	"github.com/parallaxlabs/deepresearch/internal/httpapi"
	"github.com/parallaxlabs/deepresearch/internal/llm"
	"github.com/parallaxlabs/deepresearch/internal/research"
	"github.com/parallaxlabs/deepresearch/internal/search"
	"github.com/parallaxlabs/deepresearch/internal/session"
	"github.com/parallaxlabs/deepresearch/internal/streaming"
	"github.com/parallaxlabs/deepresearch/internal/tracing"
)

func main() {
	configPath := flag.String("config", "config/deepresearch.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		log.Fatalf("invalid log level %q: %v", cfg.Logging.Level, err)
	}
	logger, err := buildLogger(cfg.Logging, logLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
	}, logger)
	if err != nil {
		logger.Fatal("Tracing init failed", zap.Error(err))
	}

	// Capability clients.
	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	searchClient := search.NewSerpAPIClient(search.Config{
		APIKey:        cfg.Search.APIKey,
		Engine:        cfg.Search.Engine,
		MaxResults:    cfg.Search.MaxResults,
		Timeout:       cfg.Search.Timeout,
		RatePerSecond: cfg.Search.RatePerSecond,
	}, logger)
	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		Timeout:       cfg.Fetch.Timeout,
		MaxBytes:      cfg.Fetch.MaxBytes,
		MaxChars:      cfg.Fetch.MaxChars,
		RatePerSecond: cfg.Fetch.RatePerSecond,
	}, logger)

	// Redis checkpoint store.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := session.NewStore(redisClient, logger, cfg.Redis.CheckpointTTL)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(ctx); err != nil {
			logger.Warn("Redis not reachable at startup", zap.Error(err))
		}
		cancel()
	}

	// Optional run persistence.
	var runsDB *db.Client
	if cfg.Postgres.Enabled {
		runsDB, err = db.NewClient(db.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal("Database init failed", zap.Error(err))
		}
		defer runsDB.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := runsDB.EnsureSchema(ctx); err != nil {
			logger.Fatal("Schema init failed", zap.Error(err))
		}
		cancel()
	}

	streams := streaming.NewManager(0)
	stages := research.NewStages(llmClient, searchClient, fetcher, cfg.ResearchConfig(), logger)
	pipeline := research.NewPipeline(stages, cfg.ResearchConfig(), logger, streams)

	// Hot-reload the dynamic config subset: log level and extra blocked hosts.
	watcher, err := config.NewWatcher(*configPath, config.Dynamic{
		LogLevel:          cfg.Logging.Level,
		ExtraBlockedHosts: cfg.Pipeline.ExtraBlockedHosts,
	}, logger)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		watcher.OnChange(func(d config.Dynamic) {
			if d.LogLevel != "" {
				if err := logLevel.UnmarshalText([]byte(d.LogLevel)); err != nil {
					logger.Warn("Ignoring invalid log level", zap.String("level", d.LogLevel))
				}
			}
			stages.SetExtraBlockedHosts(d.ExtraBlockedHosts)
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("Config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	// Metrics endpoint on its own port.
	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Metrics server listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	authMw := httpapi.Middleware(httpapi.NoAuth)
	if cfg.Auth.Enabled {
		authMw = httpapi.JWTAuth(cfg.Auth.Secret, logger)
	}

	handler := httpapi.NewHandler(pipeline, store, runsDB, streams, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authMw)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("Tracing shutdown incomplete", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("Redis close failed", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
