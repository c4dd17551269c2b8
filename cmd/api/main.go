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

	"github.com/leafsii/jsredis/internal/api"
	"github.com/leafsii/jsredis/internal/config"
	"github.com/leafsii/jsredis/internal/log"
	"github.com/leafsii/jsredis/internal/metrics"
	"github.com/leafsii/jsredis/pkg/jsredis"
	"github.com/leafsii/jsredis/pkg/kv"
	_ "github.com/leafsii/jsredis/pkg/kv/memory"
	_ "github.com/leafsii/jsredis/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting jsredis API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"backend", cfg.Store.Backend,
		"codec", cfg.Codec,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("jsredis-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Setup store; failover to memory is opt-in through JSR_KV_FAILOVER
	store, err := kv.NewStoreFromConfig(cfg.KVConfig(log.KVLogFunc(logger)))
	if err != nil {
		logger.Fatalw("Failed to setup store", "error", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(ctx); err != nil {
		logger.Warnw("Store ping failed", "error", err)
	} else {
		logger.Infow("Store connection established")
	}
	cancel()

	client := jsredis.New(store,
		jsredis.WithCodec(cfg.JSONCodec()),
		jsredis.WithLogger(logger.Named("jsredis")),
		jsredis.WithRecorder(metricsObj),
	)

	// Setup API handler and middleware
	handler := api.NewHandler(client, store, logger)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, api.RouterConfig{
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		RequestTimeout: cfg.RequestTimeout,
		MetricsHandler: metricsHandler,
	})

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server startup failed", "error", err)
		}
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
