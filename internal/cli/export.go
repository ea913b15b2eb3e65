package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportWing   string
	exportStatus string
)

var findingsExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export dossiers to Markdown files",
	Long: `Export dossiers to Markdown files for archiving or publication.

Creates a directory per wing with one file per dossier, preserving the
dossier metadata in YAML frontmatter.

Examples:
  infomly findings export ./dossiers
  infomly findings export ./dossiers --wing "GEO Strategy"
  infomly findings export ./dossiers --status published`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	findingsExportCmd.Flags().StringVarP(&exportWing, "wing", "w", "", "export only this wing")
	findingsExportCmd.Flags().StringVar(&exportStatus, "status", "", "export only dossiers with this status")
}

func runExport(cmd *cobra.Command, args []string) error {
	exportPath := args[0]
	out := cmd.OutOrStdout()

	page, err := findingSvc.List(cmd.Context(), client.Filter{Wing: exportWing})
	if err != nil {
		return err
	}

	findings := page.Findings
	if exportStatus != "" {
		filtered := make([]client.Finding, 0, len(findings))
		for _, f := range findings {
			if string(f.Status) == exportStatus {
				filtered = append(filtered, f)
			}
		}
		findings = filtered
	}

	if len(findings) == 0 {
		fmt.Fprintln(out, "No dossiers to export.")
		return nil
	}

	fmt.Fprintf(out, "Exporting %d dossiers...\n", len(findings))
	exported, err := exportFindings(exportPath, findings, func(path string) {
		if verbose {
			fmt.Fprintf(out, "  Exported: %s\n", path)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nExported %d dossiers to %s\n", exported, exportPath)
	return nil
}

// exportFindings writes each dossier to <dir>/<wing>/<id>.md and reports how
// many files were written. Files that cannot be written are skipped.
func exportFindings(dir string, findings []client.Finding, onWrite func(path string)) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}

	exported := 0
	for _, f := range findings {
		wingDir := filepath.Join(dir, slugify(f.Wing))
		if err := os.MkdirAll(wingDir, 0755); err != nil {
			return exported, fmt.Errorf("create wing directory: %w", err)
		}

		content, err := renderDossier(f)
		if err != nil {
			return exported, err
		}

		filename := filepath.Join(wingDir, slugify(f.ID.String())+".md")
		if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write %s: %v\n", filename, err)
			continue
		}
		exported++
		if onWrite != nil {
			onWrite(filename)
		}
	}
	return exported, nil
}

// frontmatter is the YAML header of an exported dossier.
type frontmatter struct {
	ID         string  `yaml:"id"`
	Title      string  `yaml:"title"`
	Wing       string  `yaml:"wing,omitempty"`
	Status     string  `yaml:"status"`
	Confidence float64 `yaml:"confidence"`
	Agent      string  `yaml:"agent,omitempty"`
	Phase      string  `yaml:"phase,omitempty"`
	CreatedAt  string  `yaml:"created_at,omitempty"`
}

// renderDossier builds the Markdown document for one dossier.
func renderDossier(f client.Finding) (string, error) {
	meta := frontmatter{
		ID:         f.ID.String(),
		Title:      f.Title,
		Wing:       f.Wing,
		Status:     string(f.Status),
		Confidence: f.ConfidenceScore,
		Agent:      f.AgentID,
		Phase:      string(f.CurrentPhase),
	}
	if !f.CreatedAt.IsZero() {
		meta.CreatedAt = f.CreatedAt.UTC().Format(time.RFC3339)
	}
	header, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", f.Title)
	if f.Description != "" {
		fmt.Fprintf(&b, "> %s\n\n", f.Description)
	}
	if f.Analysis != "" {
		fmt.Fprintf(&b, "## Analysis\n\n%s\n\n", strings.TrimSpace(f.Analysis))
	}
	if len(f.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, item := range f.Findings {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	if len(f.StrategicAdvice) > 0 {
		b.WriteString("## Strategic Advice\n\n")
		for i, item := range f.StrategicAdvice {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
		b.WriteString("\n")
	}
	if len(f.ImpactMetrics) > 0 {
		b.WriteString("## Impact Metrics\n\n| Metric | Value |\n| --- | --- |\n")
		for _, m := range f.ImpactMetrics {
			fmt.Fprintf(&b, "| %s | %s |\n", m.Label, m.Value)
		}
		b.WriteString("\n")
	}
	if f.VisualSchema != "" {
		fmt.Fprintf(&b, "## System Visualization\n\n```mermaid\n%s\n```\n", strings.TrimSpace(f.VisualSchema))
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

// slugify makes a name safe for use as a path element.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "unfiled"
	}
	return out
}
