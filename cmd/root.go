package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"lyricgen/internal/config"
	"lyricgen/internal/drafts"
	"lyricgen/internal/logging"
	"lyricgen/internal/provider"
	"lyricgen/internal/session"
	"lyricgen/internal/store"
)

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "lyricgen",
		Short:         "Generate song lyrics with hosted language models",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&cc.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newGenerateCommand(cc))
	rootCmd.AddCommand(newModelsCommand(cc))
	rootCmd.AddCommand(newProvidersCommand(cc))
	rootCmd.AddCommand(newDraftsCommand(cc))

	return rootCmd
}

type commandContext struct {
	configPath string
	logLevel   string
}

// app holds the components shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	kv       *store.SQLite
	registry *provider.Registry
	drafts   *drafts.Library
	session  *session.Store
}

func (cc *commandContext) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(strings.TrimSpace(cc.configPath))
	if err != nil {
		return nil, err
	}
	if level := strings.TrimSpace(cc.logLevel); level != "" {
		cfg.Logging.Level = level
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	kv, err := store.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	logger.Debug("opened store", "path", kv.Path())

	ctx := cmd.Context()
	registry, err := provider.NewRegistry(cfg.Providers, kv, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	if err := registry.Load(ctx); err != nil {
		logger.Warn("ignoring saved providers", "error", err)
	}

	library, err := drafts.Open(ctx, kv, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		kv:       kv,
		registry: registry,
		drafts:   library,
		session:  session.New(kv),
	}, nil
}

func (a *app) Close() error {
	if err := a.kv.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// withApp opens the shared components for the duration of fn.
func (cc *commandContext) withApp(cmd *cobra.Command, fn func(*app) error) error {
	a, err := cc.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("close app", "error", cerr)
		}
	}()
	return fn(a)
}
