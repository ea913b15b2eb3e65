package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/spf13/cobra"
)

var reviewForce bool

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Approve or kill dossiers under review",
	Long: `Approve or kill dossiers under review.

Both decisions require confirmation unless --force is used.

Examples:
  infomly review approve 42
  infomly review kill 42 --force`,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Authorize a dossier for publication",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, client.FindingID(args[0]), true)
	},
}

var reviewKillCmd = &cobra.Command{
	Use:   "kill <id>",
	Short: "Burn a dossier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReview(cmd, client.FindingID(args[0]), false)
	},
}

func init() {
	reviewCmd.PersistentFlags().BoolVarP(&reviewForce, "force", "f", false, "skip confirmation")

	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewKillCmd)
}

func runReview(cmd *cobra.Command, id client.FindingID, approve bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Confirm decision
	if !reviewForce {
		f, err := findingSvc.Find(ctx, id)
		if err != nil {
			return err
		}
		if !f.Reviewable() {
			return fmt.Errorf("dossier INF-%s is %s, not under review", f.ID, f.Status)
		}

		prompt := "Authorize publication of this intelligence?"
		if !approve {
			prompt = "BURN THIS DOSSIER?"
		}
		fmt.Fprintf(out, "Dossier INF-%s: %s [%s]\n", f.ID, f.Title, f.Wing)

		ok, err := confirm(os.Stdin, out, prompt)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if approve {
		if _, err := findingSvc.Approve(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Authorized: INF-%s\n", id)
		return nil
	}

	if _, err := findingSvc.Kill(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Burned: INF-%s\n", id)
	return nil
}

// confirm asks a yes/no question; anything but y/yes declines.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "\n%s [y/N]: ", prompt)

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read input: %w", err)
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
