// Package cli provides the command-line interface for infomly.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/config"
	"github.com/raphaelgruber/infomly/internal/metrics"
	"github.com/raphaelgruber/infomly/internal/query"
	"github.com/raphaelgruber/infomly/internal/service"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	apiURL    string
	showStats bool

	// Global config and services
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	collector  *metrics.Collector
	apiClient  *client.Client
	swarmSvc   *service.SwarmService
	findingSvc *service.FindingService
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "infomly",
	Short: "Operator console for the Infomly intelligence swarm",
	Long: `Infomly is the operator console for the Infomly intelligence swarm.

Launch and stop the research swarm, follow its progress, and review the
intelligence dossiers it files before they are published.

Run without arguments in a terminal for the interactive dashboard.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if apiURL != "" {
			cfg.APIURL = apiURL
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		if cmd.Name() == "dashboard" || !cmd.HasParent() {
			// The dashboard owns the terminal; log to the file only.
			logger, closeLog = config.SetupFileLogger(cfg.LogFile, min(level, cfg.LogLevel))
		} else {
			logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		}
		slog.SetDefault(logger)

		collector = metrics.NewCollector()
		apiClient = client.New(cfg.APIURL,
			client.WithTimeout(cfg.ClientTimeout),
			client.WithLogger(logger),
			client.WithMetrics(collector),
		)

		cache := query.NewCache(
			query.WithStaleTime(cfg.StaleTime),
			query.WithLogger(logger),
		)
		swarmSvc = service.NewSwarmService(apiClient, cache, cfg.StatusInterval, logger)
		findingSvc = service.NewFindingService(apiClient, cache, cfg.FindingsInterval, logger)

		logger.Debug("cli initialized", "api_url", cfg.APIURL, "command", cmd.CommandPath())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && collector != nil {
			printStats(cmd.ErrOrStderr(), collector.Snapshot())
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
	RunE: runDashboard,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend base URL (default $INFOMLY_API_URL or "+config.DefaultAPIURL+")")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request timings on exit")

	// Add subcommands
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(swarmCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(reviewCmd)
}

// printStats writes per-operation request timings.
func printStats(w io.Writer, snap metrics.Snapshot) {
	if len(snap.Operations) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%-14s %6s %6s %10s %10s %10s\n", "OPERATION", "CALLS", "ERRORS", "AVG", "MIN", "MAX")
	for _, op := range snap.Operations {
		fmt.Fprintf(w, "%-14s %6d %6d %8.1fms %8dms %8dms\n",
			op.Op, op.Count, op.Errors, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}
