package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"lyricgen/internal/catalog"
	"lyricgen/internal/generator"
	"lyricgen/internal/prompt"
	"lyricgen/internal/provider/factory"
	"lyricgen/internal/server"
	"lyricgen/internal/store"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	var overridePort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				if overridePort != 0 {
					if overridePort < 0 || overridePort > 65535 {
						return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
					}
					a.cfg.Server.Port = overridePort
				}

				lock, err := store.AcquireLock(a.cfg.LockPath())
				if err != nil {
					return fmt.Errorf("data directory %s: %w", a.cfg.Storage.DataDir, err)
				}
				defer func() {
					if err := lock.Release(); err != nil {
						a.logger.Warn("release lock", "error", err)
					}
				}()

				slog.SetDefault(a.logger)

				prompts := prompt.NewLoader(a.cfg.Prompt.SystemPromptPath, a.logger)
				srv, err := server.New(a.cfg, server.Deps{
					Registry:  a.registry,
					Catalog:   newFetcher(a),
					Generator: newGenerator(a, prompts),
					Drafts:    a.drafts,
					Session:   a.session,
					Prompts:   prompts,
					Logger:    a.logger,
				})
				if err != nil {
					return err
				}
				return srv.Run(cmd.Context())
			})
		},
	}

	cmd.Flags().IntVar(&overridePort, "port", 0, "Override server port from configuration")
	return cmd
}

func newFetcher(a *app) *catalog.Fetcher {
	client := factory.NewHTTPClient(a.cfg.Generation.CatalogTimeout)
	return catalog.NewFetcher(client, a.cfg.Credentials(), a.logger)
}

func newGenerator(a *app, prompts generator.PromptSource) *generator.Generator {
	g := a.cfg.Generation
	return generator.New(
		a.registry,
		a.cfg.Credentials(),
		factory.NewHTTPClient(g.Timeout),
		prompts,
		generator.Settings{
			Temperature:    g.Temperature,
			MaxTokens:      g.MaxTokens,
			MinLyricChars:  g.MinLyricChars,
			RetryAttempts:  g.RetryAttempts,
			RetryBaseDelay: g.RetryBaseDelay,
		},
		generator.WithSession(a.session),
		generator.WithLogger(a.logger),
	)
}
