package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/queueaccess"
	"searchq/internal/watcher"
)

// printInjector reports the halt script instead of running it.
type printInjector struct {
	out io.Writer
}

func (p printInjector) Inject(_ context.Context, tabID int, code, runAt string) error {
	_, err := fmt.Fprintf(p.out, "Inject into tab %d at %s: %s\n", tabID, runAt, code)
	return err
}

func newInterceptCommand(ctx *commandContext) *cobra.Command {
	var rawURL string
	var tabID int
	var transition string
	var force bool

	cmd := &cobra.Command{
		Use:   "intercept",
		Short: "Feed one committed navigation through the watcher",
		Long: "Feed one committed navigation through the same filter the native host " +
			"uses. A matching search is recorded in the queue and the decision is printed.",
		Example: "  searchq intercept --url 'https://www.google.com/search?q=cats'",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				out := cmd.OutOrStdout()
				w := watcher.New(
					watcher.OptionsFromConfig(cfg.Watcher),
					access,
					printInjector{out: out},
					engines.NewCatalog(cfg.Engines),
					ctx.cliLogger(cfg),
				)
				enabled := force
				if !force {
					current, err := access.Settings(cmd.Context())
					if err != nil {
						return err
					}
					enabled = current.Enabled
				}
				w.SetEnabled(enabled)

				decision := w.HandleCommitted(cmd.Context(), watcher.NavigationEvent{
					URL:            rawURL,
					TabID:          tabID,
					TransitionType: transition,
				})
				stats := w.Stats()
				switch {
				case !enabled:
					fmt.Fprintln(out, "Interception is disabled; navigation passes through")
				case decision.Cancel && stats.Recorded > 0:
					fmt.Fprintln(out, "Cancelled navigation and queued the search")
				case decision.Cancel:
					fmt.Fprintln(out, "Cancelled navigation but the search was not queued")
				default:
					fmt.Fprintln(out, "Navigation passes through")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", "", "Committed navigation URL")
	cmd.Flags().IntVar(&tabID, "tab", 0, "Browser tab id")
	cmd.Flags().StringVar(&transition, "transition", config.TransitionGenerated, "Navigation transition type")
	cmd.Flags().BoolVar(&force, "force", false, "Intercept even when interception is disabled")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
