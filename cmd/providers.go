package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lyricgen/internal/models"
)

func newProvidersCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage configured providers",
	}
	cmd.AddCommand(newProvidersListCommand(cc))
	cmd.AddCommand(newProvidersAddCommand(cc))
	cmd.AddCommand(newProvidersRemoveCommand(cc))
	cmd.AddCommand(newProvidersTestCommand(cc))
	return cmd
}

func newProvidersListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List providers in registration order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				creds := a.cfg.Credentials()
				rows := make([][]string, 0)
				for _, p := range a.registry.List() {
					source := "custom"
					if p.Default {
						source = "default"
					}
					key := "missing"
					if _, ok := creds.Lookup(p.APIKeyRef); ok {
						key = "set"
					}
					rows = append(rows, []string{p.Name, string(p.Kind), p.ChatEndpoint, p.APIKeyRef, key, source})
				}
				printTable(cmd.OutOrStdout(),
					[]column{left("Name"), left("Kind"), left("Chat Endpoint"), left("Key Ref"), left("Key"), left("Source")},
					rows,
				)
				return nil
			})
		},
	}
}

func newProvidersAddCommand(cc *commandContext) *cobra.Command {
	var (
		p    models.Provider
		kind string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a custom provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Kind = models.Kind(strings.ToLower(strings.TrimSpace(kind)))
			return cc.withApp(cmd, func(a *app) error {
				return a.addProvider(cmd.Context(), cmd.OutOrStdout(), p)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&p.Name, "name", "", "Provider name")
	flags.StringVar(&kind, "kind", string(models.KindOpenAI), "Wire dialect: openai, openrouter or anthropic")
	flags.StringVar(&p.BaseURL, "base-url", "", "Base URL used to derive endpoints")
	flags.StringVar(&p.ChatEndpoint, "chat-endpoint", "", "Chat completion endpoint")
	flags.StringVar(&p.ModelsEndpoint, "models-endpoint", "", "Model catalog endpoint")
	flags.StringVar(&p.APIKeyRef, "key-ref", "", "Credential reference (defaults to NAME_API_KEY)")
	flags.StringVar(&p.AuthHeaderPrefix, "auth-prefix", "Bearer ", "Authorization header prefix")
	flags.StringVar(&p.ResponseModelsPath, "models-path", "", "Dotted path to the model array in the catalog response")
	flags.StringVar(&p.ModelIDField, "id-field", "", "Model id field")
	flags.StringVar(&p.ModelNameField, "name-field", "", "Model display name field")
	flags.BoolVar(&p.FilterChatModels, "filter", false, "Keep only chat-capable models")
	flags.BoolVar(&p.NameFromDescription, "name-from-description", false, "Derive model names from descriptions")
	flags.StringToStringVar(&p.Headers, "header", nil, "Extra request header as Name=value (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProvidersRemoveCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				return a.removeProvider(cmd.Context(), cmd.OutOrStdout(), args[0])
			})
		},
	}
}

func newProvidersTestCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Check that a provider answers with its model catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				p, err := a.registry.Lookup(args[0])
				if err != nil {
					return err
				}
				report := newFetcher(a).Test(cmd.Context(), p)
				elapsed := report.Duration.Round(time.Millisecond)
				if !report.OK {
					return fmt.Errorf("%s failed after %s: %w", p.Name, elapsed, report.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s OK: %d models in %s\n", p.Name, report.Models, elapsed)
				return nil
			})
		},
	}
}

func (a *app) addProvider(ctx context.Context, w io.Writer, p models.Provider) error {
	added, err := a.registry.Add(ctx, p)
	if err != nil {
		return err
	}
	if err := a.registry.PersistErr(); err != nil {
		return fmt.Errorf("provider %s was not saved: %w", added.Name, err)
	}
	fmt.Fprintf(w, "Added provider %s (%s)\n", added.Name, added.ChatEndpoint)
	fmt.Fprintf(w, "Set %s in the environment or the credentials section of the config.\n", added.APIKeyRef)
	return nil
}

// removeProvider refuses defaults since they come back from the config file
// on the next run.
func (a *app) removeProvider(ctx context.Context, w io.Writer, name string) error {
	p, err := a.registry.Lookup(name)
	if err != nil {
		return err
	}
	if p.Default {
		return fmt.Errorf("%s is a default provider; edit the providers list in the config file to drop it", p.Name)
	}
	a.registry.Remove(ctx, p.Name)
	if err := a.registry.PersistErr(); err != nil {
		return fmt.Errorf("removal of %s was not saved: %w", p.Name, err)
	}
	fmt.Fprintf(w, "Removed provider %s\n", p.Name)
	return nil
}
