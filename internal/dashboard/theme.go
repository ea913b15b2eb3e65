package dashboard

import "github.com/charmbracelet/lipgloss"

// Theme holds the dashboard color scheme.
type Theme struct {
	Accent  lipgloss.Color
	Active  lipgloss.Color
	Pending lipgloss.Color
	Danger  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
}

var defaultTheme = Theme{
	Accent:  lipgloss.Color("#5F5FD7"), // indigo
	Active:  lipgloss.Color("#00D787"), // green
	Pending: lipgloss.Color("#FFAF00"), // amber
	Danger:  lipgloss.Color("#FF005F"), // red
	Text:    lipgloss.Color("#E4E4E4"),
	Muted:   lipgloss.Color("#6C6C6C"), // dim gray
	Border:  lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) brandStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Text)
}

func (t Theme) accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

func (t Theme) activeStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Active).Bold(true)
}

func (t Theme) pendingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Pending).Bold(true)
}

func (t Theme) dangerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Danger).Bold(true)
}

func (t Theme) mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted).Italic(true)
}

func (t Theme) labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted).Bold(true)
}

func (t Theme) cardStyle(selected bool) lipgloss.Style {
	border := t.Border
	if selected {
		border = t.Accent
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

func (t Theme) tabStyle(selected bool) lipgloss.Style {
	if selected {
		return lipgloss.NewStyle().Bold(true).Foreground(t.Text).Background(t.Accent).Padding(0, 1)
	}
	return lipgloss.NewStyle().Foreground(t.Muted).Padding(0, 1)
}

func (t Theme) modalStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(t.Accent).
		Padding(1, 2)
}
