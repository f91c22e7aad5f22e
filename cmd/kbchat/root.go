package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ewfx/gaipl-booleans/internal/api"
	"github.com/ewfx/gaipl-booleans/internal/app"
	"github.com/ewfx/gaipl-booleans/internal/config"
	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
	"github.com/ewfx/gaipl-booleans/internal/logging"
	"github.com/ewfx/gaipl-booleans/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

type options struct {
	configPath   string
	articlesPath string
	port         int
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "kbchat",
		Short:         "Serve KB article matches over HTTP",
		Long:          `Answers POST /chat with the closest knowledge base article and the shell commands quoted in it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "configuration file (default $CONFIG_PATH or "+config.DefaultPath+")")
	cmd.Flags().StringVar(&opts.articlesPath, "articles", "", "KB articles JSON file")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port")

	return cmd
}

func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("articles") {
		cfg.KnowledgeBase.ArticlesPath = opts.articlesPath
	}
	if cmd.Flags().Changed("port") {
		cfg.API.Port = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.Setup(cfg.Logging)
	logger.Info("starting kbchat", "version", version, "commit", commit, "built", date)

	cfg.Tracing.ServiceVersion = version
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	articles, err := knowledgebase.LoadArticles(cfg.KnowledgeBase.ArticlesPath)
	if err != nil {
		return err
	}
	logger.Info("loaded KB articles", "path", cfg.KnowledgeBase.ArticlesPath, "count", len(articles))

	components, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("close components", "error", err)
		}
	}()

	service := knowledgebase.NewKnowledgeBaseService(
		components.Embedder,
		components.Index,
		knowledgebase.NewCatalog(articles),
		components.Publisher,
		knowledgebase.KBConfig{
			TopK:      cfg.KnowledgeBase.TopK,
			Dimension: cfg.VectorIndex.Dimension,
			Source:    "kbchat",
		},
		logger,
	)

	// Deferred after components.Close so pending match events flush first.
	defer service.Wait()

	gateway := api.NewGateway(cfg.API, service, components.HealthChecker(), logger)
	return run(ctx, gateway, logger)
}

type server interface {
	Start() error
	Stop(ctx context.Context) error
}

// run blocks until ctx is cancelled or the server fails, then shuts the server down.
func run(ctx context.Context, srv server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api gateway: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, stopping services")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	logger.Info("kbchat stopped")
	return nil
}
