package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/query"
	"github.com/raphaelgruber/infomly/internal/service"
)

// statusWatcher starts a swarm status subscription.
type statusWatcher interface {
	WatchStatus(ctx context.Context) *query.Subscription
}

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// statusUpdateMsg carries a status subscription update.
type statusUpdateMsg struct {
	entry  query.Entry
	closed bool
}

// progressModel is the bubbletea model for swarm progress.
type progressModel struct {
	sub      *query.Subscription
	status   *client.SwarmStatus
	err      error
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
}

// newProgressModel creates a new progress model.
func newProgressModel(sub *query.Subscription) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		sub:      sub,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (wait for the first status).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.waitForStatus(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case statusUpdateMsg:
		if msg.closed {
			m.done = true
			return m, tea.Quit
		}

		// Keep the last good status when a poll fails.
		m.err = msg.entry.Err
		if st, ok := service.StatusEntry(msg.entry); ok {
			m.status = st
		}

		if m.status != nil && !m.status.Active {
			m.done = true
			return m, tea.Quit
		}
		return m, m.waitForStatus()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.status == nil {
		if m.err != nil {
			return m.theme.errorStyle().Render(fmt.Sprintf("Status unavailable: %s", m.err)) + "\n"
		}
		return "Loading swarm status...\n"
	}

	status := m.theme.statusStyle().Render("[ACTIVE]")
	var pct float64
	counts := "agents deploying"
	if p := m.status.Progress; p != nil {
		if p.Total > 0 {
			pct = float64(p.Total-p.Pending) / float64(p.Total)
		}
		counts = fmt.Sprintf("Agents: %d/%d", p.Pending, p.Total)
	}
	progressBar := m.progress.ViewAs(pct)

	out := fmt.Sprintf("%s %s %s\n", status, progressBar, counts)
	if m.err != nil {
		out += m.theme.errorStyle().Render(fmt.Sprintf("Last poll failed: %s", m.err)) + "\n"
	}
	out += m.theme.hintStyle().Render("Press Ctrl+C to stop watching (the swarm keeps running)") + "\n"
	return out
}

// finalView renders the closing message.
func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nStopped watching. The swarm continues in the background.\nUse 'infomly swarm status' to check on it.\n")
	}
	if m.status == nil {
		if m.err != nil {
			return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Status unavailable: %s\n", m.err))
		}
		return ""
	}
	return m.theme.completedStyle().Render("✓ Swarm on standby") + "\n"
}

// waitForStatus blocks on the next subscription update.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) waitForStatus() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		e, ok := <-sub.Updates()
		return statusUpdateMsg{entry: e, closed: !ok}
	}
}

// RunSwarmProgress follows the swarm status until it returns to standby.
// Returns nil on completion or Ctrl+C (the swarm keeps running).
func RunSwarmProgress(ctx context.Context, swarm statusWatcher) error {
	sub := swarm.WatchStatus(ctx)
	defer sub.Stop()

	p := tea.NewProgram(newProgressModel(sub))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok && !m.quitting && m.status == nil && m.err != nil {
		return m.err
	}
	return nil
}
