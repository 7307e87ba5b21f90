package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/seanblong/resumematch/internal/ai"
	"github.com/seanblong/resumematch/internal/api"
	"github.com/seanblong/resumematch/internal/auth"
	"github.com/seanblong/resumematch/internal/config"
	"github.com/seanblong/resumematch/internal/ingest"
	"github.com/seanblong/resumematch/internal/match"
	"github.com/seanblong/resumematch/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("resumematch-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting resumematch api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := ai.ParseProvider(cfg.Provider)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid provider")
	}
	clientConfig := &ai.ClientConfig{
		APIKey:     cfg.APIKey,
		EmbedModel: cfg.EmbedModel,
		Dim:        cfg.Dim,
		ProjectID:  cfg.ProjectID,
		Location:   cfg.Location,
		Provider:   provider,
	}
	if provider == ai.ProviderTFIDF && cfg.IDFTable != "" {
		table, err := ai.LoadIDFTable(cfg.IDFTable)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load idf table")
		}
		clientConfig.IDF = table
		logger.Info().Str("path", cfg.IDFTable).Int("documents", table.Documents).Int("terms", len(table.Terms)).Msg("idf table loaded")
	}

	var client ai.Client
	client, err = ai.NewClient(ctx, clientConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create vector client")
	}
	logger.Info().Str("model", client.Model()).Int("embedding_dim", client.Dim()).Msg("vector client initialized")

	var health func(context.Context) error
	switch {
	case cfg.Database == "":
	case provider == ai.ProviderTFIDF:
		logger.Info().Msg("tfidf vectors are request-local; embedding cache not used")
	default:
		st, err := store.New(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer st.Close()

		if err := st.Migrate(ctx, client.Dim()); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
		client = ai.NewCachedClient(client, st)
		health = st.Ping
		logger.Info().Int("dim", client.Dim()).Msg("embedding cache enabled")
	}

	svc := match.NewService(ingest.New(), client, match.Options{
		WindowSize: cfg.Match.WindowSize,
		Overlap:    cfg.Match.Overlap,
		TopK:       cfg.Match.TopK,
		Timeout:    cfg.Match.Timeout,
		Workers:    cfg.Match.Workers,
	})

	server := api.NewServer(svc, logger, api.Options{
		MaxUploadBytes: cfg.Match.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		Auth:           auth.New(cfg.Auth.JwtSecret, cfg.Auth.Enabled),
		Health:         health,
	})

	s := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads and the pipeline deadline both fit inside the write timeout.
		WriteTimeout:      cfg.Match.Timeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.Addr).Msg("api server listening")
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
