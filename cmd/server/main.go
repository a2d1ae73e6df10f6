package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kippsai/tts-gateway/internal/config"
	"github.com/kippsai/tts-gateway/internal/observability"
	"github.com/kippsai/tts-gateway/internal/server"
	"github.com/kippsai/tts-gateway/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("kipps_url", cfg.KippsAPIURL).
		Int("sample_rate", cfg.SampleRate).
		Int("max_chunk_length", cfg.MaxChunkLength).
		Int("concurrency", cfg.Concurrency).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("TTS Gateway Service starting")

	client, err := tts.NewClient(tts.OptionsFromConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid synthesis client configuration")
	}
	defer client.Close()

	srv := server.New(client, cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Whole-file responses can take as long as the upstream request.
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("speak", fmt.Sprintf("http://localhost:%s/v1/speak", cfg.Port)).
			Str("stream", fmt.Sprintf("ws://localhost:%s/v1/stream", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
