package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/axelrod/internal/templates"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates [key]",
		Short: "List built-in feature templates",
		Long: `List the built-in interpretable feature templates, or show one in detail.

Templates name each feature and state and carry the correlation used by the
correlated initializer. Use them with 'axelrod run --template <key>'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				tmpl, err := templates.Get(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, tmpl)
				}
				fmt.Fprintf(out, "%s (%s)\n", tmpl.Name, tmpl.Key)
				fmt.Fprintf(out, "  Correlation: %.2f\n\n", tmpl.Correlation)
				for _, f := range tmpl.Features {
					kind := "categorical"
					if f.Ordered {
						kind = "ordered"
					}
					labels := make([]string, f.States)
					for s := range labels {
						labels[s] = f.Label(s)
					}
					fmt.Fprintf(out, "  %-24s %-12s %s\n", f.Name, kind, strings.Join(labels, " | "))
				}
				return nil
			}

			all := templates.All()
			if jsonOut {
				return printJSON(cmd, map[string]interface{}{
					"templates": all,
					"count":     len(all),
				})
			}
			for _, tmpl := range all {
				fmt.Fprintf(out, "  %-22s %-36s F=%d  rho=%.2f\n", tmpl.Key, tmpl.Name, len(tmpl.Features), tmpl.Correlation)
			}
			return nil
		},
	}
}
