package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/dashboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	dashboardWing string
	dashboardSort string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive intelligence dashboard",
	Long: `Open the interactive intelligence dashboard.

The header tracks the swarm (refreshed every 5s) and the feed tracks the
dossiers of the selected wing (refreshed every 3s). Approve and kill
decisions refresh every feed immediately.

Examples:
  infomly dashboard
  infomly dashboard --wing "GEO Strategy"
  infomly dashboard --sort highest_confidence`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVarP(&dashboardWing, "wing", "w", client.WingAll, "start in this wing")
	dashboardCmd.Flags().StringVarP(&dashboardSort, "sort", "s", string(client.SortNewest), "feed order: newest, oldest, highest_confidence")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("dashboard requires a terminal; use 'infomly findings list' instead")
	}

	nav := dashboard.NewNavigation().WithSort(client.SortOrder(dashboardSort))
	if dashboardWing != "" && dashboardWing != client.WingAll {
		nav = nav.Select(dashboardWing)
	}
	if err := nav.Filter().Validate(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	return dashboard.Run(cmd.Context(), swarmSvc, findingSvc,
		dashboard.WithNavigation(nav),
		dashboard.WithLogger(logger),
	)
}
