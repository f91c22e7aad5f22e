package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ewfx/gaipl-booleans/internal/app"
	"github.com/ewfx/gaipl-booleans/internal/config"
	"github.com/ewfx/gaipl-booleans/internal/events"
	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
	"github.com/ewfx/gaipl-booleans/internal/logging"
	"github.com/ewfx/gaipl-booleans/internal/telemetry"
)

type options struct {
	configPath    string
	articlesPath  string
	skipProvision bool
	stats         bool
	createTopics  bool
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "kbingest",
		Short:         "Embed KB articles and load them into the vector index",
		Long:          `Creates the vector index when it does not exist, embeds every article in the KB file and upserts them in one batch.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("articles") {
				cfg.KnowledgeBase.ArticlesPath = opts.articlesPath
			}
			return ingest(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "configuration file (default $CONFIG_PATH or "+config.DefaultPath+")")
	cmd.Flags().StringVar(&opts.articlesPath, "articles", "", "KB articles JSON file")
	cmd.Flags().BoolVar(&opts.skipProvision, "skip-provision", false, "assume the index already exists")
	cmd.Flags().BoolVar(&opts.stats, "stats", true, "print index statistics after the upsert")
	cmd.Flags().BoolVar(&opts.createTopics, "create-topics", false, "create the Kafka event topics before publishing")

	return cmd
}

func ingest(ctx context.Context, cfg *config.Config, opts *options, out io.Writer) error {
	logger := logging.Setup(cfg.Logging)

	cfg.Tracing.ServiceName = "kbingest"
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

	components, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("close components", "error", err)
		}
	}()

	if opts.createTopics && components.Topics != nil {
		if err := components.Topics.EnsureTopics(ctx, events.Topics(cfg.Events)); err != nil {
			logger.Warn("kafka topics not created", "error", err)
		}
	}

	ingester := knowledgebase.NewIngester(
		components.Embedder,
		components.Index,
		components.Index,
		components.Publisher,
		knowledgebase.IngestConfig{
			IndexName:     cfg.VectorIndex.Name,
			Dimension:     cfg.VectorIndex.Dimension,
			SkipProvision: opts.skipProvision,
			CollectStats:  opts.stats,
			Source:        "kbingest",
		},
		logger,
	)

	report, err := ingester.Run(ctx, articles)
	if err != nil {
		return err
	}

	printSummary(out, cfg.VectorIndex.Name, report)
	return nil
}

func printSummary(out io.Writer, indexName string, report *knowledgebase.IngestReport) {
	created := ""
	if report.IndexCreated {
		created = " (created)"
	}
	fmt.Fprintf(out, "Index %s%s updated with %d articles\n", indexName, created, report.Upserted)
	if report.Stats != nil {
		fmt.Fprintf(out, "Index stats: dimension=%d total_vector_count=%d\n", report.Stats.Dimension, report.Stats.TotalVectorCount)
	}
}
