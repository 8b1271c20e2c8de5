package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lyricgen/internal/drafts"
	"lyricgen/internal/models"
)

func newDraftsCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Manage saved lyric drafts",
	}
	cmd.AddCommand(newDraftsListCommand(cc))
	cmd.AddCommand(newDraftsShowCommand(cc))
	cmd.AddCommand(newDraftsAddCommand(cc))
	cmd.AddCommand(newDraftsRemoveCommand(cc))
	return cmd
}

func newDraftsListCommand(cc *commandContext) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				rows := make([][]string, 0)
				for _, d := range a.drafts.List() {
					if folder != "" && d.Folder != folder {
						continue
					}
					created := ""
					if !d.CreatedAt.IsZero() {
						created = d.CreatedAt.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{d.ID, d.Title, d.Folder, created})
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No drafts saved")
					return nil
				}
				printTable(out, []column{left("ID"), left("Title"), left("Folder"), left("Created")}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Only show drafts in this folder")
	return cmd
}

func newDraftsShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				for _, d := range a.drafts.List() {
					if d.ID == args[0] {
						fmt.Fprintln(cmd.OutOrStdout(), d.Content)
						return nil
					}
				}
				return fmt.Errorf("draft %s not found", args[0])
			})
		},
	}
}

func newDraftsAddCommand(cc *commandContext) *cobra.Command {
	var in drafts.Input
	var file string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save lyrics as a draft",
		Long:  "Save lyrics as a draft. Content is read from --file, or from stdin when --file is empty or \"-\".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, file)
			if err != nil {
				return err
			}
			in.Content = content
			return cc.withApp(cmd, func(a *app) error {
				d, err := a.saveDraft(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved draft %q (%s) in %s\n", d.Title, d.ID, d.Folder)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.Title, "title", "", "Draft title")
	flags.StringVar(&in.Folder, "folder", "", "Folder name (defaults to "+drafts.DefaultFolder+")")
	flags.StringVarP(&file, "file", "f", "", "Read content from this file")
	return cmd
}

func newDraftsRemoveCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				return a.removeDraft(cmd.Context(), cmd.OutOrStdout(), args[0])
			})
		},
	}
}

// saveDraft adds a draft and fails when the store did not take it.
func (a *app) saveDraft(ctx context.Context, in drafts.Input) (models.Draft, error) {
	d, err := a.drafts.Add(ctx, in)
	if err != nil {
		return models.Draft{}, err
	}
	if err := a.drafts.PersistErr(); err != nil {
		return models.Draft{}, fmt.Errorf("draft %s was not saved: %w", d.ID, err)
	}
	return d, nil
}

func (a *app) removeDraft(ctx context.Context, w io.Writer, id string) error {
	remaining := a.drafts.Remove(ctx, id)
	if err := a.drafts.PersistErr(); err != nil {
		return fmt.Errorf("removal of draft %s was not saved: %w", id, err)
	}
	fmt.Fprintf(w, "%d drafts remaining\n", len(remaining))
	return nil
}

func readContent(cmd *cobra.Command, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read draft content: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
