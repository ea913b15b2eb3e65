package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var statusWatch bool

var swarmCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Control the research swarm",
	Long: `Control the research swarm.

Subcommands:
  launch  Start a swarm run
  stop    Stop the running swarm
  status  Show swarm status

Examples:
  infomly swarm launch
  infomly swarm status --watch
  infomly swarm stop`,
}

var swarmLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start a swarm run",
	Args:  cobra.NoArgs,
	RunE:  runSwarmLaunch,
}

var swarmStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running swarm",
	Args:  cobra.NoArgs,
	RunE:  runSwarmStop,
}

var swarmStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show swarm status",
	Long: `Show swarm status.

With --watch the status is polled until the swarm goes back to standby.
Press Ctrl+C to stop watching; the swarm keeps running.`,
	Args: cobra.NoArgs,
	RunE: runSwarmStatus,
}

func init() {
	swarmStatusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "follow status until the swarm is idle")

	swarmCmd.AddCommand(swarmLaunchCmd)
	swarmCmd.AddCommand(swarmStopCmd)
	swarmCmd.AddCommand(swarmStatusCmd)
}

func runSwarmLaunch(cmd *cobra.Command, args []string) error {
	ack, err := swarmSvc.Launch(cmd.Context())
	if err != nil {
		return err
	}
	printAck(cmd.OutOrStdout(), ack, "Swarm launched.")
	return nil
}

func runSwarmStop(cmd *cobra.Command, args []string) error {
	ack, err := swarmSvc.Stop(cmd.Context())
	if err != nil {
		return err
	}
	printAck(cmd.OutOrStdout(), ack, "Swarm stopped.")
	return nil
}

func printAck(w io.Writer, ack client.Ack, fallback string) {
	if msg := ack.Message(); msg != "" {
		fmt.Fprintln(w, msg)
		return
	}
	fmt.Fprintln(w, fallback)
}

func runSwarmStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if !statusWatch {
		status, err := swarmSvc.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatStatus(status))
		return nil
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return RunSwarmProgress(ctx, swarmSvc)
	}
	return watchStatusPlain(ctx, cmd.OutOrStdout(), swarmSvc)
}

// formatStatus renders a status as one line, e.g. "ACTIVE  agents 3/10".
func formatStatus(st *client.SwarmStatus) string {
	if st == nil || !st.Active {
		return "STANDBY"
	}
	if st.Progress == nil {
		return "ACTIVE"
	}
	return fmt.Sprintf("ACTIVE  agents %d/%d", st.Progress.Pending, st.Progress.Total)
}

// watchStatusPlain prints one line per status change until the swarm is idle
// or ctx is cancelled.
func watchStatusPlain(ctx context.Context, w io.Writer, swarm statusWatcher) error {
	sub := swarm.WatchStatus(ctx)
	defer sub.Stop()

	last := ""
	for e := range sub.Updates() {
		if e.Err != nil {
			fmt.Fprintf(w, "status unavailable: %v\n", e.Err)
			continue
		}
		st, ok := service.StatusEntry(e)
		if !ok {
			continue
		}
		if line := formatStatus(st); line != last {
			fmt.Fprintln(w, line)
			last = line
		}
		if !st.Active {
			return nil
		}
	}
	// Interrupted; the swarm keeps running.
	return nil
}
