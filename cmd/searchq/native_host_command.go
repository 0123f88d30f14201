package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"searchq/internal/ipc"
	"searchq/internal/logging"
	"searchq/internal/nativehost"
	"searchq/internal/queueaccess"
)

func newNativeHostCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "native-host [origin]",
		Short: "Serve the browser extension over native messaging",
		Long: "Serve the browser extension over native messaging on stdin and stdout. " +
			"The browser starts this command and passes the extension origin or " +
			"manifest path as arguments, which are ignored. Logs go to " +
			"<log_dir>/native-host.log.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFileOnly(cfg, "native-host")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			backend := nativehost.Backend{
				Open: func() (queueaccess.Session, error) {
					return ctx.openSessionWith(cfg, logger)
				},
				Dial: func() (*ipc.Client, error) { return ipc.Dial(cfg.SocketPath()) },
			}
			host, err := nativehost.New(cfg, cmd.InOrStdin(), os.Stdout, nativehost.Options{
				Store:    backend,
				Reporter: backend,
				Searches: backend,
			}, logger)
			if err != nil {
				return err
			}
			return host.Run(cmd.Context())
		},
	}
}
