package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newModelsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models <provider>",
		Short: "List the models a provider offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd, func(a *app) error {
				p, err := a.registry.Lookup(args[0])
				if err != nil {
					return err
				}
				list, err := newFetcher(a).Fetch(cmd.Context(), p)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintf(out, "%s returned no usable models\n", p.Name)
					return nil
				}

				rows := make([][]string, 0, len(list))
				for _, m := range list {
					contextLen := ""
					if m.MaxTokens > 0 {
						contextLen = strconv.Itoa(m.MaxTokens)
					}
					rows = append(rows, []string{m.ID, m.Name, contextLen})
				}
				printTable(out, []column{left("ID"), left("Name"), right("Context")}, rows)
				if list[0].Fallback {
					fmt.Fprintf(out, "%s catalog unavailable; showing configured fallback models\n", p.Name)
				}
				return nil
			})
		},
	}
}
