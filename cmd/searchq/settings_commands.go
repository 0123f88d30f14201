package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"searchq/internal/queueaccess"
	"searchq/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change interception settings",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				current, err := access.Settings(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, current)
				}
				printSettings(cmd.OutOrStdout(), current)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON, "settings")
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var enabled bool
	var ordering string
	var removeAfterSearch bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		Example: "  searchq settings set --enabled=false\n" +
			"  searchq settings set --ordering stack --remove-after-search",
		RunE: func(cmd *cobra.Command, args []string) error {
			var update settings.Update
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				update.Enabled = settings.Bool(enabled)
			}
			if flags.Changed("ordering") {
				update.Ordering = settings.String(ordering)
			}
			if flags.Changed("remove-after-search") {
				update.RemoveAfterSearch = settings.Bool(removeAfterSearch)
			}
			if update.Empty() {
				return fmt.Errorf("nothing to change; pass --enabled, --ordering or --remove-after-search")
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				updated, err := access.UpdateSettings(cmd.Context(), update)
				if err != nil {
					return err
				}
				printSettings(cmd.OutOrStdout(), updated)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "Intercept address-bar searches")
	cmd.Flags().StringVar(&ordering, "ordering", "", "Display order: queue (oldest first) or stack (newest first)")
	cmd.Flags().BoolVar(&removeAfterSearch, "remove-after-search", false, "Drop a query from the queue once it is replayed")
	return cmd
}

func printSettings(out io.Writer, current settings.Settings) {
	rows := [][]string{
		{"enabled", yesNo(current.Enabled)},
		{"ordering", string(current.Ordering)},
		{"removeAfterSearch", yesNo(current.RemoveAfterSearch)},
	}
	writeTable(out, []column{col("Setting"), col("Value")}, rows)
}
