package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lyricgen/internal/drafts"
	"lyricgen/internal/models"
	"lyricgen/internal/prompt"
)

func newGenerateCommand(cc *commandContext) *cobra.Command {
	var (
		req        models.GenerationRequest
		saveDraft  bool
		draftTitle string
		folder     string
	)

	cmd := &cobra.Command{
		Use:   "generate [theme]",
		Short: "Generate lyrics for a theme",
		Long:  "Generate lyrics for a theme. Provider and model default to the last selection.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Theme = args[0]
			}
			if strings.TrimSpace(req.Theme) == "" {
				return errors.New("a theme is required, pass it as an argument or with --theme")
			}

			return cc.withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				if req.ProviderName == "" || req.ModelID == "" {
					last, ok, err := a.session.Load(ctx)
					if err != nil {
						a.logger.Warn("load last used selection", "error", err)
					}
					if ok && req.ProviderName == "" {
						req.ProviderName = last.Provider
					}
					if ok && req.ModelID == "" && req.ProviderName == last.Provider {
						req.ModelID = last.Model
					}
				}
				if req.ProviderName == "" || req.ModelID == "" {
					return errors.New("no provider/model selected, pass --provider and --model")
				}

				prompts := prompt.NewLoader(a.cfg.Prompt.SystemPromptPath, a.logger)
				res, err := newGenerator(a, prompts).Generate(ctx, req)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Lyrics)

				if saveDraft {
					d, err := a.saveDraft(ctx, drafts.Input{Title: draftTitle, Content: res.Lyrics, Folder: folder})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "\nSaved draft %q (%s) in %s\n", d.Title, d.ID, d.Folder)
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&req.ProviderName, "provider", "p", "", "Provider name")
	flags.StringVarP(&req.ModelID, "model", "m", "", "Model id")
	flags.StringVar(&req.Theme, "theme", "", "Lyric theme")
	flags.StringVar(&req.Mood, "mood", prompt.DefaultMood, "Mood, e.g. "+strings.Join(prompt.Moods, ", "))
	flags.IntVar(&req.RhymeDensity, "rhyme-density", 5, "Rhyme density from 1 to 10")
	flags.IntVar(&req.ProfanityLevel, "profanity", 5, "Profanity level from 0 to 10")
	flags.StringVar(&req.Persona, "persona", "None", "Persona style")
	flags.StringVar(&req.SystemPrompt, "system-prompt", "", "Override the system prompt text")
	flags.BoolVar(&saveDraft, "save", false, "Save the result as a draft")
	flags.StringVar(&draftTitle, "title", "", "Draft title when --save is set")
	flags.StringVar(&folder, "folder", "", "Draft folder when --save is set")
	return cmd
}
