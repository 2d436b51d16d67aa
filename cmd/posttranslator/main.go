package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"PostTranslator/internal/app"
	"PostTranslator/internal/config"
	"PostTranslator/internal/domain"
	"PostTranslator/internal/logging"
	"PostTranslator/internal/modelconfig"
)

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	configPath string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "posttranslator",
		Short: "Machine translation service for forum posts",
		Long: `posttranslator keeps per-language translations of forum posts.

The host forum reports post lifecycle events to the HTTP hooks; translations
run in a background worker pool against an OpenAI-compatible provider and
progress is published on realtime channels.

Running without a subcommand is the same as "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML, or TOML by extension)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newTranslateCmd(),
		newBatchCmd(),
		newModelsCmd(),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level)
	for _, warning := range cfg.Warnings {
		logger.Warn("config", "warning", warning)
	}
	return cfg, logger, nil
}

func openApp(ctx context.Context) (*app.Application, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the translation workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	application, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}

// ---------------------------------------------------------------------------
// migrate
// ---------------------------------------------------------------------------

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			applied, err := application.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(os.Stderr, "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(os.Stderr, "applied %s\n", name)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// translate (one post, synchronously)
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		postID int64
		lang   string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate one post into one language and wait for the result",
		Long: `Run a single translation job in the foreground.

The post must already be known to the service (reported through the
post-created hook). Existing completed translations are kept unless --force
is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if _, err := application.Migrate(ctx); err != nil {
				return err
			}

			out := application.TranslateNow(ctx, domain.TranslateJobArgs{
				PostID:         postID,
				TargetLanguage: lang,
				ForceUpdate:    force,
			})

			report := map[string]any{"status": out.Status}
			if out.Reason != "" {
				report["reason"] = out.Reason
			}
			if out.Translation != nil {
				report["translated_content"] = out.Translation.TranslatedContent
				report["translated_title"] = out.Translation.TranslatedTitle
				report["source_language"] = out.Translation.SourceLanguage
			}
			if out.Err != nil {
				report["error"] = domain.UserMessage(out.Err)
			}
			if err := printJSON(report); err != nil {
				return err
			}
			if out.Err != nil {
				return fmt.Errorf("translation failed: %w", out.Err)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&postID, "post", 0, "Post id")
	cmd.Flags().StringVar(&lang, "lang", "", "Target language code, e.g. en or pt-BR")
	cmd.Flags().BoolVar(&force, "force", false, "Retranslate even if a completed translation exists")
	_ = cmd.MarkFlagRequired("post")
	_ = cmd.MarkFlagRequired("lang")

	return cmd
}

// ---------------------------------------------------------------------------
// batch (queue many posts, wait for the workers)
// ---------------------------------------------------------------------------

func newBatchCmd() *cobra.Command {
	var (
		postIDs []int64
		langs   []string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Queue translations for several posts and languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if _, err := application.Migrate(ctx); err != nil {
				return err
			}
			if err := application.StartWorkers(ctx); err != nil {
				return err
			}

			result, err := application.Translations().BatchTranslate(ctx, postIDs, langs, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "queued %d jobs, waiting for workers\n", result.Queued)

			if err := application.Drain(ctx); err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().Int64SliceVar(&postIDs, "posts", nil, "Comma-separated post ids")
	cmd.Flags().StringSliceVar(&langs, "langs", nil, "Comma-separated target languages")
	cmd.Flags().BoolVar(&force, "force", false, "Retranslate completed translations")
	_ = cmd.MarkFlagRequired("posts")
	_ = cmd.MarkFlagRequired("langs")

	return cmd
}

// ---------------------------------------------------------------------------
// models (preset catalogue)
// ---------------------------------------------------------------------------

func newModelsCmd() *cobra.Command {
	var provider, tier string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the preset model catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(modelconfig.List(modelconfig.Filter{
				Provider: modelconfig.Provider(provider),
				Tier:     modelconfig.Tier(tier),
			}))
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Only models of this provider (openai, xai, deepseek)")
	cmd.Flags().StringVar(&tier, "tier", "", "Only models of this tier")

	return cmd
}
