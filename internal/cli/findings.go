package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	listWing          string
	listSort          string
	listMinConfidence int
	listOutput        string
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Browse intelligence dossiers",
	Long: `Browse intelligence dossiers filed by the swarm.

Subcommands:
  list    List dossiers
  show    Show one dossier
  export  Export dossiers to Markdown files

Examples:
  infomly findings list
  infomly findings list --wing "The DeepSeek Files" --sort highest_confidence
  infomly findings list --min-confidence 80 -o json
  infomly findings show 42
  infomly findings export ./dossiers`,
}

var findingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dossiers",
	Args:  cobra.NoArgs,
	RunE:  runFindingsList,
}

var findingsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one dossier",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindingsShow,
}

func init() {
	findingsListCmd.Flags().StringVarP(&listWing, "wing", "w", "", "filter by wing")
	findingsListCmd.Flags().StringVarP(&listSort, "sort", "s", "", "order: newest, oldest, highest_confidence")
	findingsListCmd.Flags().IntVar(&listMinConfidence, "min-confidence", -1, "only dossiers at or above this confidence (0-100)")
	findingsListCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "output format: table, json, yaml")

	findingsCmd.AddCommand(findingsListCmd)
	findingsCmd.AddCommand(findingsShowCmd)
	findingsCmd.AddCommand(findingsExportCmd)
}

// listFilter builds the filter from the list flags.
func listFilter() client.Filter {
	f := client.Filter{Wing: listWing, Sort: client.SortOrder(listSort)}
	if listMinConfidence >= 0 {
		f.MinConfidence = client.IntPtr(listMinConfidence)
	}
	return f
}

func runFindingsList(cmd *cobra.Command, args []string) error {
	page, err := findingSvc.List(cmd.Context(), listFilter())
	if err != nil {
		return err
	}
	if len(page.Quarantined) > 0 {
		logger.Warn("malformed dossiers withheld", "count", len(page.Quarantined))
	}
	return writeFindings(cmd.OutOrStdout(), listOutput, page)
}

// writeFindings prints a page in the requested format.
func writeFindings(w io.Writer, format string, page *client.FindingsPage) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page.Findings)
	case "yaml":
		records := make([]findingRecord, 0, len(page.Findings))
		for _, f := range page.Findings {
			records = append(records, newFindingRecord(f))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "table", "":
		writeFindingsTable(w, page)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func writeFindingsTable(w io.Writer, page *client.FindingsPage) {
	if len(page.Findings) == 0 {
		fmt.Fprintln(w, "No dossiers found.")
	} else {
		fmt.Fprintf(w, "%-8s %-10s %-6s %-24s %-16s %s\n", "ID", "STATUS", "CONF", "WING", "FILED", "TITLE")
		fmt.Fprintln(w, strings.Repeat("-", 100))
		for _, f := range page.Findings {
			filed := ""
			if !f.CreatedAt.IsZero() {
				filed = f.CreatedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%-8s %-10s %-6s %-24s %-16s %s\n",
				f.ID, f.Status, formatConfidence(f.ConfidenceScore), truncate(f.Wing, 24), filed, f.Title)
		}
		fmt.Fprintf(w, "\n%d TOTAL DOSSIERS\n", len(page.Findings))
	}
	if len(page.Quarantined) > 0 {
		fmt.Fprintf(w, "%d malformed dossiers withheld\n", len(page.Quarantined))
		if verbose {
			for _, q := range page.Quarantined {
				fmt.Fprintf(w, "  #%d %s: %s\n", q.Index, q.ID, q.Reason)
			}
		}
	}
}

func runFindingsShow(cmd *cobra.Command, args []string) error {
	f, err := findingSvc.Find(cmd.Context(), client.FindingID(args[0]))
	if err != nil {
		return err
	}
	writeFinding(cmd.OutOrStdout(), f)
	return nil
}

// writeFinding prints a full dossier.
func writeFinding(w io.Writer, f *client.Finding) {
	fmt.Fprintf(w, "Dossier: INF-%s\n", f.ID)
	fmt.Fprintf(w, "  Title: %s\n", f.Title)
	fmt.Fprintf(w, "  Wing: %s\n", f.Wing)
	fmt.Fprintf(w, "  Status: %s\n", f.Status)
	fmt.Fprintf(w, "  Confidence: %s\n", formatConfidence(f.ConfidenceScore))
	if f.AgentID != "" {
		fmt.Fprintf(w, "  Agent: %s\n", f.AgentID)
	}
	if !f.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Filed: %s\n", f.CreatedAt.Format(time.RFC3339))
	}
	if f.CurrentPhase != "" {
		fmt.Fprintf(w, "  Phase: %s\n", f.CurrentPhase)
	}
	if f.Description != "" {
		fmt.Fprintf(w, "\n  %q\n", f.Description)
	}
	if f.Analysis != "" {
		fmt.Fprintf(w, "\nAnalysis:\n%s\n", indent(f.Analysis, "  "))
	}
	if len(f.Findings) > 0 {
		fmt.Fprintln(w, "\nFindings:")
		for _, item := range f.Findings {
			fmt.Fprintf(w, "  - %s\n", item)
		}
	}
	fmt.Fprintln(w, "\nStrategic advice:")
	if len(f.StrategicAdvice) == 0 {
		fmt.Fprintln(w, "  Analysis finalization in progress...")
	}
	for i, item := range f.StrategicAdvice {
		fmt.Fprintf(w, "  %d. %s\n", i+1, item)
	}
	if len(f.ImpactMetrics) > 0 {
		fmt.Fprintln(w, "\nImpact metrics:")
		for _, m := range f.ImpactMetrics {
			fmt.Fprintf(w, "  %s: %s\n", m.Label, m.Value)
		}
	}
	if f.VisualSchema != "" {
		fmt.Fprintf(w, "\nVisual schema:\n%s\n", indent(f.VisualSchema, "  "))
	}
}

// findingRecord is the YAML shape of a dossier.
type findingRecord struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Wing         string   `yaml:"wing,omitempty"`
	Status       string   `yaml:"status"`
	Confidence   float64  `yaml:"confidence"`
	Agent        string   `yaml:"agent,omitempty"`
	Phase        string   `yaml:"phase,omitempty"`
	CreatedAt    string   `yaml:"created_at,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Findings     []string `yaml:"findings,omitempty"`
	Advice       []string `yaml:"strategic_advice,omitempty"`
	ImpactMetric []string `yaml:"impact_metrics,omitempty"`
}

func newFindingRecord(f client.Finding) findingRecord {
	r := findingRecord{
		ID:          f.ID.String(),
		Title:       f.Title,
		Wing:        f.Wing,
		Status:      string(f.Status),
		Confidence:  f.ConfidenceScore,
		Agent:       f.AgentID,
		Phase:       string(f.CurrentPhase),
		Description: f.Description,
		Findings:    f.Findings,
		Advice:      f.StrategicAdvice,
	}
	if !f.CreatedAt.IsZero() {
		r.CreatedAt = f.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, m := range f.ImpactMetrics {
		r.ImpactMetric = append(r.ImpactMetric, m.Label+": "+m.Value)
	}
	return r
}

func formatConfidence(v float64) string {
	return fmt.Sprintf("%g%%", v)
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
