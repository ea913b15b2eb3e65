package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/query"
	"github.com/raphaelgruber/infomly/internal/service"
)

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

const (
	mutationTimeout = 30 * time.Second
	flashDuration   = 4 * time.Second
)

// SwarmController is the swarm side of the synchronization layer.
type SwarmController interface {
	WatchStatus(ctx context.Context) *query.Subscription
	Launch(ctx context.Context) (client.Ack, error)
	Stop(ctx context.Context) (client.Ack, error)
}

// FindingsController is the findings side of the synchronization layer.
type FindingsController interface {
	WatchFindings(ctx context.Context, filter client.Filter) (*query.Subscription, error)
	Approve(ctx context.Context, id client.FindingID) (client.Ack, error)
	Kill(ctx context.Context, id client.FindingID) (client.Ack, error)
}

type mutation int

const (
	mutationLaunch mutation = iota + 1
	mutationStop
	mutationApprove
	mutationKill
)

func (k mutation) String() string {
	switch k {
	case mutationLaunch:
		return "launch"
	case mutationStop:
		return "stop"
	case mutationApprove:
		return "approve"
	case mutationKill:
		return "kill"
	}
	return "unknown"
}

// confirmation is a review decision awaiting y/n.
type confirmation struct {
	action mutation
	id     client.FindingID
}

func (c confirmation) prompt() string {
	if c.action == mutationKill {
		return "BURN THIS DOSSIER?"
	}
	return "Authorize publication of this intelligence?"
}

// entryMsg carries a subscription update. sub tags the message so updates
// from a replaced subscription are ignored.
type entryMsg struct {
	sub    *query.Subscription
	entry  query.Entry
	closed bool
}

type mutationMsg struct {
	kind mutation
	id   client.FindingID
	ack  client.Ack
	err  error
}

type copyMsg struct {
	err error
}

type clearFlashMsg struct {
	seq int
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx      context.Context
	swarm    SwarmController
	findings FindingsController
	theme    Theme
	render   func(string) string
	logger   *slog.Logger

	nav    Navigation
	width  int
	height int

	statusSub *query.Subscription
	status    *client.SwarmStatus
	statusErr error

	feedSub *query.Subscription
	page    *client.FindingsPage
	feedErr error
	loading bool
	cursor  int

	launching bool
	stopping  bool
	reviewing bool

	detail       *client.Finding
	detailScroll int
	confirm      *confirmation

	flash    string
	flashErr bool
	flashSeq int

	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithNavigation sets the starting location.
func WithNavigation(nav Navigation) Option {
	return func(m *Model) { m.nav = nav }
}

// WithMarkdownRenderer sets how dossier analysis is rendered.
func WithMarkdownRenderer(render func(string) string) Option {
	return func(m *Model) { m.render = render }
}

// WithLogger sets the dashboard logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New creates the dashboard model and starts its subscriptions. They run
// until ctx is cancelled or Close is called.
func New(ctx context.Context, swarm SwarmController, findings FindingsController, opts ...Option) Model {
	m := Model{
		ctx:      ctx,
		swarm:    swarm,
		findings: findings,
		theme:    defaultTheme,
		render:   func(s string) string { return s },
		logger:   slog.Default(),
		nav:      NewNavigation(),
		loading:  true,
	}
	for _, opt := range opts {
		opt(&m)
	}

	m.statusSub = swarm.WatchStatus(ctx)
	if m.nav.ShowsFeed() {
		m.subscribeFeed()
	}
	return m
}

// Navigation returns the current location.
func (m Model) Navigation() Navigation {
	return m.nav
}

// Close stops the model's subscriptions.
func (m Model) Close() {
	if m.statusSub != nil {
		m.statusSub.Stop()
	}
	if m.feedSub != nil {
		m.feedSub.Stop()
	}
}

func (m *Model) subscribeFeed() {
	sub, err := m.findings.WatchFindings(m.ctx, m.nav.Filter())
	if err != nil {
		m.feedSub = nil
		m.feedErr = err
		m.loading = false
		return
	}
	m.feedSub = sub
	m.feedErr = nil
	m.loading = true
}

// Init starts listening on both subscriptions.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEntry(m.statusSub), waitForEntry(m.feedSub))
}

// waitForEntry blocks on the next subscription update.
func waitForEntry(sub *query.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-sub.Updates()
		return entryMsg{sub: sub, entry: e, closed: !ok}
	}
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case entryMsg:
		return m.handleEntry(msg)

	case mutationMsg:
		return m.handleMutation(msg)

	case copyMsg:
		if msg.err != nil {
			return m.setFlash(fmt.Sprintf("Copy failed: %s", msg.err), true)
		}
		return m.setFlash("Forensic Schema Copied to Clipboard", false)

	case clearFlashMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
			m.flashErr = false
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleEntry(msg entryMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		return m, nil
	}

	switch msg.sub {
	case m.statusSub:
		if st, ok := service.StatusEntry(msg.entry); ok {
			m.status = st
		}
		m.statusErr = msg.entry.Err
		return m, waitForEntry(m.statusSub)

	case m.feedSub:
		m.loading = false
		m.feedErr = msg.entry.Err
		if page, ok := service.PageEntry(msg.entry); ok {
			m.page = page
			m.cursor = min(m.cursor, max(len(page.Findings)-1, 0))
			m.refreshDetail()
		}
		return m, waitForEntry(m.feedSub)
	}

	// Update from a subscription that has since been replaced.
	return m, nil
}

// refreshDetail swaps the open dossier for its latest copy in the feed.
func (m *Model) refreshDetail() {
	if m.detail == nil || m.page == nil {
		return
	}
	for _, f := range m.page.Findings {
		if f.ID == m.detail.ID {
			m.detail = &f
			return
		}
	}
}

func (m Model) handleMutation(msg mutationMsg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case mutationLaunch:
		m.launching = false
	case mutationStop:
		m.stopping = false
	case mutationApprove, mutationKill:
		m.reviewing = false
	}

	if msg.err != nil {
		m.logger.Error("dashboard action failed", "action", msg.kind.String(), "id", msg.id.String(), "error", msg.err)
		return m.setFlash(fmt.Sprintf("%s failed: %s", msg.kind, msg.err), true)
	}

	switch msg.kind {
	case mutationLaunch:
		return m.setFlash(ackOr(msg.ack, "Swarm deployed"), false)
	case mutationStop:
		return m.setFlash(ackOr(msg.ack, "Swarm recalled"), false)
	case mutationApprove:
		m.closeDetail()
		return m.setFlash(fmt.Sprintf("Dossier INF-%s authorized for publication", msg.id), false)
	case mutationKill:
		m.closeDetail()
		return m.setFlash(fmt.Sprintf("Dossier INF-%s burned", msg.id), false)
	}
	return m, nil
}

func ackOr(ack client.Ack, fallback string) string {
	if msg := ack.Message(); msg != "" {
		return msg
	}
	return fallback
}

func (m Model) setFlash(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.flashSeq++
	m.flash = text
	m.flashErr = isErr
	seq := m.flashSeq
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return clearFlashMsg{seq: seq}
	})
}

func (m *Model) closeDetail() {
	m.detail = nil
	m.detailScroll = 0
	m.confirm = nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	if m.confirm != nil {
		switch key {
		case "y", "Y", "enter":
			c := *m.confirm
			m.confirm = nil
			m.reviewing = true
			return m, m.mutate(c.action, c.id)
		case "n", "N", "esc":
			m.confirm = nil
		}
		return m, nil
	}

	switch key {
	case "q":
		return m.quit()
	case "L":
		return m.launch()
	case "X":
		return m.stop()
	}

	if m.detail != nil {
		return m.handleDetailKey(key)
	}
	if m.nav.View == ViewEpisode {
		switch key {
		case "esc", "backspace":
			return m.navigate(m.nav.Back())
		case "left", "h":
			return m.moveDepartment(-1)
		case "right", "l":
			return m.moveDepartment(1)
		}
		return m.openEpisodeKey(key)
	}
	return m.handleFeedKey(key)
}

func (m Model) handleFeedKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visibleFindings())-1 {
			m.cursor++
		}
	case "enter":
		if fs := m.visibleFindings(); m.cursor < len(fs) {
			f := fs[m.cursor]
			m.detail = &f
			m.detailScroll = 0
		}
	case "tab":
		return m.navigate(m.nav.NextTab())
	case "s":
		return m.navigate(m.nav.CycleSort())
	case "left", "h":
		return m.moveDepartment(-1)
	case "right", "l":
		return m.moveDepartment(1)
	case "esc":
		if m.nav.Department != client.WingAll || m.nav.Tab != client.WingAll {
			return m.navigate(m.nav.Home())
		}
	default:
		return m.openEpisodeKey(key)
	}
	return m, nil
}

func (m Model) handleDetailKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc", "backspace":
		m.closeDetail()
	case "up", "k":
		if m.detailScroll > 0 {
			m.detailScroll--
		}
	case "down", "j":
		m.detailScroll++
	case "a":
		if m.detail.Reviewable() && !m.reviewing {
			m.confirm = &confirmation{action: mutationApprove, id: m.detail.ID}
		}
	case "d":
		if m.detail.Reviewable() && !m.reviewing {
			m.confirm = &confirmation{action: mutationKill, id: m.detail.ID}
		}
	case "c":
		if m.detail.VisualSchema != "" {
			schema := m.detail.VisualSchema
			return m, func() tea.Msg {
				return copyMsg{err: clipboardWriteAll(schema)}
			}
		}
	}
	return m, nil
}

// openEpisodeKey opens episode n of the active department for key "n".
func (m Model) openEpisodeKey(key string) (tea.Model, tea.Cmd) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return m, nil
	}
	dept, ok := FindDepartment(m.nav.Department)
	if !ok {
		return m, nil
	}
	episodes := dept.Episodes()
	n := int(key[0] - '1')
	if n >= len(episodes) {
		return m, nil
	}
	return m.navigate(m.nav.OpenEpisode(dept.ID, episodes[n].ID))
}

func (m Model) moveDepartment(delta int) (tea.Model, tea.Cmd) {
	order := sidebarOrder()
	i := slices.Index(order, m.nav.Department)
	i = (i + delta + len(order)) % len(order)
	if order[i] == client.WingAll {
		return m.navigate(m.nav.Home())
	}
	return m.navigate(m.nav.Select(order[i]))
}

// navigate moves to nav. The feed subscription follows the location: it is
// stopped while an episode is shown and replaced when the filter changes.
// Returning to an unchanged filter resumes from the cached page.
func (m Model) navigate(nav Navigation) (tea.Model, tea.Cmd) {
	changed := nav.FilterKey() != m.nav.FilterKey()
	m.nav = nav
	if changed {
		m.page = nil
		m.cursor = 0
	}

	if !nav.ShowsFeed() {
		m.stopFeed()
		return m, nil
	}
	if m.feedSub != nil && !changed {
		return m, nil
	}

	m.stopFeed()
	m.subscribeFeed()
	return m, waitForEntry(m.feedSub)
}

func (m *Model) stopFeed() {
	if m.feedSub != nil {
		m.feedSub.Stop()
		m.feedSub = nil
	}
}

func (m Model) launch() (tea.Model, tea.Cmd) {
	if m.launching || m.stopping {
		return m, nil
	}
	if m.status != nil && m.status.Active {
		return m.setFlash("Swarm already active", false)
	}
	m.launching = true
	return m, m.mutate(mutationLaunch, "")
}

func (m Model) stop() (tea.Model, tea.Cmd) {
	if m.launching || m.stopping {
		return m, nil
	}
	if m.status == nil || !m.status.Active {
		return m.setFlash("Swarm is on standby", false)
	}
	m.stopping = true
	return m, m.mutate(mutationStop, "")
}

// mutate runs a remote action off the UI loop.
func (m Model) mutate(kind mutation, id client.FindingID) tea.Cmd {
	parent := m.ctx
	swarm, findings := m.swarm, m.findings
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, mutationTimeout)
		defer cancel()

		var ack client.Ack
		var err error
		switch kind {
		case mutationLaunch:
			ack, err = swarm.Launch(ctx)
		case mutationStop:
			ack, err = swarm.Stop(ctx)
		case mutationApprove:
			ack, err = findings.Approve(ctx, id)
		case mutationKill:
			ack, err = findings.Kill(ctx, id)
		}
		return mutationMsg{kind: kind, id: id, ack: ack, err: err}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

// visibleFindings is the feed currently on screen.
func (m Model) visibleFindings() []client.Finding {
	if m.page == nil {
		return nil
	}
	return m.page.Findings
}

// swarmLabel is the header status word.
func (m Model) swarmLabel() string {
	switch {
	case m.launching:
		return "DEPLOYING"
	case m.stopping:
		return "STOPPING"
	case m.status != nil && m.status.Active:
		return "ACTIVE"
	default:
		return "STANDBY"
	}
}

// agentsLabel is shown while the swarm is active and reports progress.
func (m Model) agentsLabel() string {
	if m.status == nil || !m.status.Active || m.status.Progress == nil {
		return ""
	}
	return fmt.Sprintf("Agents: %d/%d", m.status.Progress.Pending, m.status.Progress.Total)
}
