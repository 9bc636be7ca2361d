package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/kepler/internal/api"
	"github.com/MikeSquared-Agency/kepler/internal/config"
	"github.com/MikeSquared-Agency/kepler/internal/hermes"
	"github.com/MikeSquared-Agency/kepler/internal/processor"
	"github.com/MikeSquared-Agency/kepler/internal/slack"
	"github.com/MikeSquared-Agency/kepler/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and NATS consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			setupLogging(cfg.LogLevel, os.Stdout)
			return serve(cfg)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port (overrides KEPLER_PORT)")
	return cmd
}

func serve(cfg config.Config) error {
	logger := slog.Default()
	logger.Info("kepler starting", "port", cfg.Port, "provider", cfg.Provider, "model", cfg.Model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newAgent(cfg, cfg.Clustering, logger)
	if err != nil {
		return err
	}
	opts := []processor.Option{}

	// Database (optional; without it runs are not kept)
	var runs api.RunReader
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, processor.WithStore(db))
		runs = db
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, runs will not be persisted")
	}

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer hermesClient.Close()
	opts = append(opts, processor.WithPublisher(hermesClient))
	logger.Info("NATS connected", "url", cfg.NatsURL)

	// Slack poster (optional)
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		opts = append(opts, processor.WithNotifier(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)))
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		logger.Warn("slack not configured, insights will not be posted")
	}

	proc := processor.New(a, logger, opts...)

	if err := hermesClient.Subscribe(hermes.SubjectAnalysisRequested, proc.HandleAnalysisRequested); err != nil {
		return err
	}
	if err := hermesClient.Subscribe(hermes.SubjectSlackReaction, proc.HandleReaction); err != nil {
		return err
	}

	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, runs, logger, api.WithBus(hermesClient))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"provider":  cfg.Provider,
		"model":     cfg.Model,
	}); err != nil {
		logger.Warn("failed to publish registration", "error", err)
	}

	logger.Info("kepler ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	cancel()
	logger.Info("kepler stopped")
	return nil
}
