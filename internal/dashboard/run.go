package dashboard

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/glamour"
)

// markdownRenderer renders dossier analysis for the terminal. Text is shown
// unrendered if the renderer cannot be built or fails.
func markdownRenderer(width int) func(string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return func(s string) string { return s }
	}
	return func(s string) string {
		out, err := renderer.Render(s)
		if err != nil {
			return s
		}
		return strings.Trim(out, "\n")
	}
}

// Run shows the dashboard until the user quits.
func Run(ctx context.Context, swarm SwarmController, findings FindingsController, opts ...Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]Option{WithMarkdownRenderer(markdownRenderer(76))}, opts...)
	model := New(ctx, swarm, findings, opts...)

	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if m, ok := finalModel.(Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	if err != nil {
		return fmt.Errorf("dashboard UI error: %w", err)
	}
	return nil
}
