package main

import (
	"github.com/spf13/cobra"
)

const (
	groupDaemon  = "daemon"
	groupQueue   = "queue"
	groupBrowser = "browser"
	groupSetup   = "setup"
)

func newRootCommand() *cobra.Command {
	var configFlag, logLevelFlag string
	ctx := newCommandContext(&configFlag, &logLevelFlag)

	root := &cobra.Command{
		Use:   "searchq",
		Short: "Queue browser searches and replay them later",
		Long: "searchq parks address-bar searches instead of running them. " +
			"Queued searches can be listed, edited, re-tagged and replayed " +
			"from this CLI or from the management page the daemon serves.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddGroup(
		&cobra.Group{ID: groupDaemon, Title: "Daemon:"},
		&cobra.Group{ID: groupQueue, Title: "Queue:"},
		&cobra.Group{ID: groupBrowser, Title: "Browser integration:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)
	addToGroup(root, groupDaemon, newDaemonCommands(ctx)...)
	addToGroup(root, groupQueue, newQueueCommand(ctx), newSettingsCommand(ctx), newEnginesCommand(ctx))
	addToGroup(root, groupBrowser, newInterceptCommand(ctx), newNativeHostCommand(ctx))
	addToGroup(root, groupSetup, newConfigCommand(ctx))
	root.AddCommand(newDaemonRunCommand(ctx))
	return root
}

func addToGroup(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		root.AddCommand(cmd)
	}
}
