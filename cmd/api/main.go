package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/app"
	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ragdesk",
		Short:        "Document ingestion and retrieval service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), ingestCmd())
	return root
}

// setup loads the configuration and builds the logger shared by every command.
func setup(memory bool) (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if memory {
		cfg.MemoryStore = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(memory)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApp(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("startup failed: %w", err)
			}
			defer application.Close()

			errCh := make(chan error, 1)
			go func() { errCh <- application.Server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return application.Server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "use in-memory stores instead of Postgres and S3")
	return cmd
}

func ingestCmd() *cobra.Command {
	var req ingestion_engine.Request
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one uploaded file synchronously and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApp(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("startup failed: %w", err)
			}
			defer application.Close()

			res, err := application.Ingestor.Ingest(logger.WithContext(ctx, log), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&req.FileID, "file", "", "id of the uploaded file")
	cmd.Flags().StringVar(&req.UserID, "user", "", "id of the owning user")
	cmd.Flags().StringVar(&req.Provider, "provider", "hosted", "embedding provider: hosted or local")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
