package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"searchq/internal/queueaccess"
)

func newEnginesCommand(ctx *commandContext) *cobra.Command {
	enginesCmd := &cobra.Command{
		Use:   "engines",
		Short: "Inspect search engines",
	}

	enginesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List engines in match order",
		Long: "List engines in the order used to tag captured searches. Engines the " +
			"browser reported come first when the daemon is running; engines only " +
			"referenced by queued searches are listed last.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			urls := make(map[string]string, len(cfg.Engines))
			for _, engine := range cfg.Engines {
				urls[engine.Name] = engine.SearchURL
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				names, err := access.Engines(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(names) == 0 {
					fmt.Fprintln(out, "No engines configured")
					return nil
				}
				rows := make([][]string, 0, len(names))
				for i, name := range names {
					url := urls[name]
					if url == "" {
						url = "(no search_url; cannot replay)"
					}
					rows = append(rows, []string{strconv.Itoa(i + 1), name, url})
				}
				writeTable(out, []column{numberCol("#"), col("Engine"), wrapCol("Search URL")}, rows)
				return nil
			})
		},
	})

	return enginesCmd
}
