package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"searchq/internal/daemonctl"
	"searchq/internal/daemonrun"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

// openManagerPage is swapped in tests.
var openManagerPage = browser.OpenURL

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:          "daemon",
		Short:        "Run the searchq daemon in the foreground (internal)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: ctx.resolvedLogLevel(cfg),
				Stdout:   isatty.IsTerminal(os.Stdout.Fd()),
			})
		},
	}
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newRestartCommand(ctx),
		newStatusCommand(ctx),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var openPage bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the searchq daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			launch, err := newLaunchSpec(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.socketPath(), launch.exe, launch.opts, startWaitTimeout)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(out, "Daemon not running, launching...")
			}
			reportStart(out, result, "Daemon started")

			cfg := ctx.configValue()
			if cfg == nil || cfg.Paths.APIBind == "" {
				return nil
			}
			fmt.Fprintf(out, "Management page: %s\n", cfg.ManagerURL())
			if openPage {
				if err := openManagerPage(cfg.ManagerPageURL()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\n", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&openPage, "open", false, "Open the management page in the default browser")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the searchq daemon, killing it if it does not exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), ctx.configValue(), stopGracePeriod)
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			case err != nil:
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(out, "Stop request sent")
			}
			reportStop(out, result)
			return nil
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop the daemon if it is running, then start it again",
		RunE: func(cmd *cobra.Command, _ []string) error {
			launch, err := newLaunchSpec(ctx)
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(cmd.Context(), ctx.configValue(), launch.exe, launch.opts, stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.WasRunning {
				reportStop(out, result.Stop)
			}
			reportStart(out, result.Start, "Daemon restarted")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, environment and queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			renderStatus(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON, "the status snapshot")
	return cmd
}

func renderStatus(out io.Writer, snapshot daemonctl.StatusSnapshot) {
	printer := newStatusPrinter(out)
	printer.section("System Status")
	for _, line := range snapshot.Checks {
		printer.check(line)
	}

	printer.section("Queue")
	status := snapshot.Daemon
	rows := [][]string{
		{"Queued queries", strconv.Itoa(status.Records)},
		{"Interception enabled", yesNo(status.Settings.Enabled)},
		{"Ordering", string(status.Settings.Ordering)},
		{"Remove after search", yesNo(status.Settings.RemoveAfterSearch)},
	}
	if status.Running && status.ManagerURL != "" {
		rows = append(rows, []string{"Management page", status.ManagerURL})
	}
	writeTable(out, []column{col("Item"), wrapCol("Value")}, rows)
}

func reportStart(out io.Writer, result daemonctl.StartResult, done string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(out, done)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(out, "Daemon already running")
	case daemonctl.StartStateRequested:
		msg := strings.TrimSpace(result.Message)
		if msg == "" {
			msg = "Start request sent"
		}
		fmt.Fprintln(out, msg)
	}
}

func reportStop(out io.Writer, result daemonctl.StopResult) {
	if result.ForcedKill && result.PID > 0 {
		fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
	}
	fmt.Fprintln(out, "Daemon stopped")
}

// launchSpec is how start and restart re-exec this binary as the daemon.
type launchSpec struct {
	exe  string
	opts daemonctl.LaunchOptions
}

func newLaunchSpec(ctx *commandContext) (launchSpec, error) {
	exe, err := os.Executable()
	if err != nil {
		return launchSpec{}, fmt.Errorf("resolve executable: %w", err)
	}
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return launchSpec{exe: exe, opts: opts}, nil
}
