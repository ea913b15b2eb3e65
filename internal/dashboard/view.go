package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/infomly/internal/client"
)

const (
	emptyFeedText     = "Terminal stand-by. No intelligence dossiers filed in the last 24h."
	adviceMissingText = "Analysis finalization in progress..."
	noDescriptionText = "Forensic analysis in progress..."
	sidebarWidth      = 26
	cardHeight        = 7
)

// pipelineSteps describes each phase of the swarm pipeline.
var pipelineSteps = map[client.Phase]struct{ label, description string }{
	client.PhaseScout:      {"Scout", "Deep retrieval across 15+ sources"},
	client.PhaseAnalyst:    {"Analyst", "Impact correlation & metric extraction"},
	client.PhaseConsultant: {"Consultant", "Strategic synthesis & advisory"},
	client.PhaseArchitect:  {"Architect", "Neural path logic rendering"},
	client.PhaseEditor:     {"Editor", "Final validation & scoring"},
}

var sortLabels = map[client.SortOrder]string{
	client.SortNewest:            "Newest First",
	client.SortOldest:            "Oldest First",
	client.SortHighestConfidence: "Highest Confidence",
}

// View renders the dashboard.
func (m Model) View() tea.View {
	v := tea.NewView(m.renderContent())
	v.AltScreen = true
	v.WindowTitle = "Infomly Intelligence"
	return v
}

func (m Model) renderContent() string {
	if m.quitting {
		return ""
	}

	var body string
	switch {
	case m.detail != nil:
		body = m.renderDetail()
	case m.nav.View == ViewEpisode:
		body = m.renderEpisode()
	default:
		body = m.renderFeed()
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	parts := []string{m.renderHeader(), content}
	if m.flash != "" {
		style := m.theme.activeStyle()
		if m.flashErr {
			style = m.theme.dangerStyle()
		}
		parts = append(parts, style.Render(m.flash))
	}
	parts = append(parts, m.theme.hintStyle().Render(m.helpLine()))
	return strings.Join(parts, "\n") + "\n"
}

func (m Model) renderHeader() string {
	brand := m.theme.brandStyle().Render("INFOMLY") + " " + m.theme.labelStyle().Render("INTELLIGENCE")

	label := m.swarmLabel()
	var status string
	switch label {
	case "DEPLOYING", "STOPPING":
		status = m.theme.pendingStyle().Render("● " + label)
	case "ACTIVE":
		status = m.theme.activeStyle().Render("● " + label)
	default:
		status = m.theme.mutedStyle().Render("○ " + label)
	}
	if agents := m.agentsLabel(); agents != "" {
		status += "  " + m.theme.mutedStyle().Render(agents)
	}
	if m.statusErr != nil {
		status += "  " + m.theme.dangerStyle().Render("(status unavailable)")
	}

	var control string
	switch {
	case m.launching:
		control = "Deploying..."
	case m.stopping:
		control = "Recalling..."
	case m.status != nil && m.status.Active:
		control = "[X] Abort Mission"
	default:
		control = "[L] Execute Intelligent Batch"
	}

	line := brand + "   " + status + "   " + m.theme.accentStyle().Render(control)
	rule := m.theme.mutedStyle().Render(strings.Repeat("─", max(m.width, 60)))
	return line + "\n" + rule
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.theme.labelStyle().Render("PLATFORM") + "\n")
	b.WriteString(m.sidebarItem("Home", m.nav.Department == client.WingAll) + "\n\n")
	b.WriteString(m.theme.labelStyle().Render("INTELLIGENCE WINGS") + "\n")
	for _, d := range Departments {
		active := m.nav.Department == d.ID
		b.WriteString(m.sidebarItem(d.Label, active && m.nav.View == ViewFeed) + "\n")
		if !active {
			continue
		}
		for i, e := range d.Episodes() {
			item := fmt.Sprintf("  %d %s", i+1, e.Title)
			if m.nav.EpisodeID == e.ID {
				b.WriteString(m.theme.accentStyle().Render(item) + "\n")
			} else {
				b.WriteString(m.theme.mutedStyle().Render(item) + "\n")
			}
		}
	}
	return lipgloss.NewStyle().Width(sidebarWidth).PaddingRight(2).Render(b.String())
}

func (m Model) sidebarItem(label string, active bool) string {
	if active {
		return m.theme.accentStyle().Render("▸ " + label)
	}
	return m.theme.mutedStyle().Render("  " + label)
}

func (m Model) renderFeed() string {
	var b strings.Builder
	findings := m.visibleFindings()

	b.WriteString(fmt.Sprintf("%s   %s\n",
		m.theme.labelStyle().Render("SORT: "+strings.ToUpper(sortLabels[m.nav.Sort])),
		m.theme.mutedStyle().Render(fmt.Sprintf("%d TOTAL DOSSIERS", len(findings))),
	))

	if m.nav.Department == client.WingAll {
		tabs := make([]string, 0, len(client.Wings)+1)
		for _, w := range append([]string{client.WingAll}, client.Wings...) {
			tabs = append(tabs, m.theme.tabStyle(w == m.nav.Tab).Render(strings.ToUpper(TabLabel(w))))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n")
	}

	if m.feedErr != nil {
		msg := "Feed unavailable: " + m.feedErr.Error()
		if m.page != nil {
			msg += " (showing last result)"
		}
		b.WriteString(m.theme.dangerStyle().Render(msg) + "\n")
	}
	if m.page != nil && len(m.page.Quarantined) > 0 {
		b.WriteString(m.theme.pendingStyle().Render(
			fmt.Sprintf("%d malformed dossiers withheld", len(m.page.Quarantined))) + "\n")
	}
	b.WriteString("\n")

	if m.loading && m.page == nil {
		b.WriteString(m.theme.hintStyle().Render("Loading intelligence feed...") + "\n")
		return b.String()
	}
	if len(findings) == 0 {
		b.WriteString(m.theme.hintStyle().Render(emptyFeedText) + "\n")
		return b.String()
	}

	start, end := m.cardWindow(len(findings))
	for i := start; i < end; i++ {
		b.WriteString(m.renderCard(findings[i], i == m.cursor) + "\n")
	}
	if end < len(findings) {
		b.WriteString(m.theme.hintStyle().Render(fmt.Sprintf("… %d more", len(findings)-end)) + "\n")
	}
	return b.String()
}

// cardWindow returns the range of cards that fit on screen around the cursor.
func (m Model) cardWindow(n int) (int, int) {
	visible := n
	if m.height > 0 {
		visible = max((m.height-10)/cardHeight, 1)
	}
	if visible >= n {
		return 0, n
	}
	start := max(m.cursor-visible+1, 0)
	return start, min(start+visible, n)
}

func (m Model) renderCard(f client.Finding, selected bool) string {
	wing := f.Wing
	if wing == "" {
		wing = "Analysis"
	}
	stamp := ""
	if !f.CreatedAt.IsZero() {
		stamp = f.CreatedAt.Local().Format("15:04")
	}
	description := f.Description
	if description == "" {
		description = noDescriptionText
	}
	agent := f.AgentID
	if agent == "" {
		agent = "Swarm"
	}

	confidence := formatConfidence(f.ConfidenceScore)
	if f.ConfidenceScore > 80 {
		confidence = m.theme.activeStyle().Render(confidence)
	}

	lines := []string{
		m.theme.accentStyle().Render(strings.ToUpper(wing)) + "  " + m.theme.mutedStyle().Render(stamp) + "  " + statusBadge(m.theme, f.Status),
		lipgloss.NewStyle().Bold(true).Render(f.Title),
		m.theme.hintStyle().Render(truncateText(`"`+description+`"`, 110)),
		m.theme.mutedStyle().Render("VERIFIED BY "+strings.ToUpper(agent)) + "   CONFIDENCE " + confidence,
	}
	width := 72
	if m.width > 0 {
		width = max(m.width-sidebarWidth-4, 40)
	}
	return m.theme.cardStyle(selected).Width(width).Render(strings.Join(lines, "\n"))
}

func statusBadge(t Theme, s client.FindingStatus) string {
	label := strings.ToUpper(string(s))
	switch s {
	case client.StatusReview, client.StatusPending:
		return t.pendingStyle().Render(label)
	case client.StatusPublished:
		return t.activeStyle().Render(label)
	case client.StatusKilled:
		return t.dangerStyle().Render(label)
	}
	return t.mutedStyle().Render(label)
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func (m Model) renderDetail() string {
	f := m.detail
	var sections []string

	head := []string{
		m.theme.accentStyle().Render(strings.ToUpper(f.Wing)) + "  " +
			m.theme.mutedStyle().Render("ID: INF-"+f.ID.String()) + "  " + statusBadge(m.theme, f.Status),
		lipgloss.NewStyle().Bold(true).Render(f.Title),
	}
	if f.Description != "" {
		head = append(head, m.theme.hintStyle().Render(`"`+f.Description+`"`))
	}
	if f.Reviewable() {
		head = append(head, m.theme.accentStyle().Render("[a] Authorize Publication")+"   "+
			m.theme.dangerStyle().Render("[d] Burn Dossier"))
	}
	sections = append(sections, strings.Join(head, "\n"))

	hook := f.Analysis
	if hook == "" {
		hook = f.Description
	}
	if hook != "" {
		sections = append(sections, m.sectionTitle("I. EXECUTIVE HOOK")+"\n"+strings.TrimRight(m.render(hook), "\n"))
	}

	if len(f.Findings) > 0 {
		var items []string
		for _, item := range f.Findings {
			items = append(items, "  • "+item)
		}
		sections = append(sections, m.sectionTitle("II. FORENSIC INTELLIGENCE")+"\n"+strings.Join(items, "\n"))
	}

	advice := m.theme.hintStyle().Render(adviceMissingText)
	if len(f.StrategicAdvice) > 0 {
		var items []string
		for i, item := range f.StrategicAdvice {
			items = append(items, fmt.Sprintf("  %d. %s", i+1, item))
		}
		advice = strings.Join(items, "\n")
	}
	sections = append(sections, m.sectionTitle("STRATEGIC RESPONSE")+"\n"+advice)

	if len(f.ImpactMetrics) > 0 {
		var items []string
		for _, metric := range f.ImpactMetrics {
			items = append(items, fmt.Sprintf("  %s  %s",
				m.theme.labelStyle().Render(strings.ToUpper(metric.Label)), metric.Value))
		}
		sections = append(sections, m.sectionTitle("FORENSIC METRICS")+"\n"+strings.Join(items, "\n"))
	}

	if f.CurrentPhase != "" {
		sections = append(sections, m.sectionTitle("SWARM PIPELINE")+"\n"+m.renderPipeline(f))
	}

	if f.VisualSchema != "" {
		agent := f.AgentID
		if agent == "" {
			agent = "Swarm"
		}
		sections = append(sections, m.sectionTitle("IV. SYSTEM VISUALIZATION")+"  "+
			m.theme.accentStyle().Render("[c] Copy Schema")+"\n"+
			m.theme.mutedStyle().Render(f.VisualSchema)+"\n"+
			m.theme.hintStyle().Render("AGENT: "+strings.ToUpper(agent)))
	}

	if m.confirm != nil {
		style := m.theme.accentStyle()
		if m.confirm.action == mutationKill {
			style = m.theme.dangerStyle()
		}
		sections = append(sections, style.Render(m.confirm.prompt()+" [y/N]"))
	} else if m.reviewing {
		sections = append(sections, m.theme.pendingStyle().Render("Transmitting decision..."))
	}

	content := m.scroll(strings.Join(sections, "\n\n"))
	width := 80
	if m.width > 0 {
		width = max(m.width-sidebarWidth-6, 40)
	}
	return m.theme.modalStyle().Width(width).Render(content)
}

// scroll drops the first detailScroll lines and clips to the window height.
func (m Model) scroll(content string) string {
	lines := strings.Split(content, "\n")
	offset := min(m.detailScroll, max(len(lines)-1, 0))
	lines = lines[offset:]
	if m.height > 0 {
		if limit := max(m.height-8, 5); len(lines) > limit {
			lines = lines[:limit]
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) sectionTitle(title string) string {
	return m.theme.labelStyle().Render(title)
}

func (m Model) renderPipeline(f *client.Finding) string {
	active := f.CurrentPhase.Index()
	var lines []string
	for i, phase := range client.Phases {
		step := pipelineSteps[phase]
		var marker string
		var style lipgloss.Style
		switch {
		case i < active:
			marker, style = "✓", m.theme.activeStyle()
		case i == active:
			marker, style = "▶", m.theme.accentStyle()
		default:
			marker, style = "·", m.theme.mutedStyle()
		}
		line := style.Render(fmt.Sprintf("  %s %-10s", marker, step.label)) + " " + m.theme.mutedStyle().Render(step.description)
		if i == active {
			line += " " + m.theme.pendingStyle().Render("PROCESSING")
		}
		lines = append(lines, line)
		if i > active {
			continue
		}
		for _, t := range f.ThoughtLog {
			if t.Phase == phase {
				lines = append(lines, m.theme.hintStyle().Render("      ● "+t.Message))
			}
		}
	}
	if f.CurrentPhase == client.PhaseComplete {
		lines = append(lines, m.theme.activeStyle().Render("  Pipeline complete"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEpisode() string {
	id := m.nav.EpisodeID
	title := EpisodeTitle(id)

	var b strings.Builder
	b.WriteString(m.theme.hintStyle().Render("← Back to Intelligence (esc)") + "\n\n")
	b.WriteString(m.theme.labelStyle().Render("INSTITUTIONAL SERIES") + "  " +
		m.theme.mutedStyle().Render("SERIAL-"+strings.ToUpper(id)) + "\n\n")
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title) + "\n\n")

	ep, series, ok := FindEpisode(id)
	if ok {
		b.WriteString(m.theme.mutedStyle().Render(fmt.Sprintf("%s · Season %d · Episode %d",
			series.Title, ep.Season, ep.Number)) + "\n")
	}
	b.WriteString(m.theme.mutedStyle().Render("Swarm Agent Alpha") + "  " +
		m.theme.activeStyle().Render("VERIFIED") + "\n\n")

	if next, ok := nextEpisode(series, ep); ok {
		b.WriteString(m.theme.accentStyle().Render("Next Episode") + "  " +
			fmt.Sprintf("S%dE%d %q", next.Season, next.Number, next.Title) + "\n")
	} else {
		b.WriteString(m.theme.accentStyle().Render("Next Episode Coming Soon") + "\n")
	}
	return b.String()
}

func nextEpisode(s Series, current Episode) (Episode, bool) {
	for i, e := range s.Episodes {
		if e.ID == current.ID && i+1 < len(s.Episodes) {
			return s.Episodes[i+1], true
		}
	}
	return Episode{}, false
}

func (m Model) helpLine() string {
	switch {
	case m.confirm != nil:
		return "y confirm • n cancel"
	case m.detail != nil:
		return "↑/↓ scroll • a approve • d kill • c copy schema • esc close • q quit"
	case m.nav.View == ViewEpisode:
		return "esc back • ←/→ wing • 1-9 episode • L launch • X stop • q quit"
	}
	help := "↑/↓ move • enter open • s sort • ←/→ wing"
	if m.nav.Department == client.WingAll {
		help += " • tab sector"
	} else {
		help += " • 1-9 episode"
	}
	return help + " • L launch • X stop • q quit"
}

func truncateText(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
