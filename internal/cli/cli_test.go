package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/metrics"
	"github.com/raphaelgruber/infomly/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleDossier() client.Finding {
	return client.Finding{
		ID:              "42",
		Title:           "Cold War Inference",
		Description:     "Riyadh clusters are financing open weights.",
		Wing:            client.WingDeepSeek,
		Status:          client.StatusReview,
		ConfidenceScore: 87.5,
		AgentID:         "analyst-7",
		CreatedAt:       client.Timestamp{Time: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
		Analysis:        "Inference **cost** collapsed.",
		Findings:        client.TextList{"Cluster capacity doubled"},
		StrategicAdvice: client.TextList{"Hedge GPU exposure", "Audit open-weight usage"},
		ImpactMetrics:   client.MetricList{{Label: "Capex at risk", Value: "$20B"}},
		VisualSchema:    "graph TD; A-->B",
	}
}

func TestWriteFindingsTable(t *testing.T) {
	var buf bytes.Buffer
	page := &client.FindingsPage{
		Findings:    []client.Finding{sampleDossier()},
		Quarantined: []client.Quarantined{{Index: 1, ID: "9", Reason: "Title failed required"}},
	}
	require.NoError(t, writeFindings(&buf, "table", page))

	out := buf.String()
	assert.Contains(t, out, "Cold War Inference")
	assert.Contains(t, out, "87.5%")
	assert.Contains(t, out, "1 TOTAL DOSSIERS")
	assert.Contains(t, out, "1 malformed dossiers withheld")
}

func TestWriteFindingsEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFindings(&buf, "", &client.FindingsPage{}))
	assert.Equal(t, "No dossiers found.\n", buf.String())
}

func TestWriteFindingsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFindings(&buf, "json", &client.FindingsPage{Findings: []client.Finding{sampleDossier()}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, float64(42), decoded[0]["id"], "numeric ids stay numeric")
	assert.Equal(t, "Cold War Inference", decoded[0]["title"])
}

func TestWriteFindingsYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFindings(&buf, "yaml", &client.FindingsPage{Findings: []client.Finding{sampleDossier()}}))

	var decoded []findingRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "42", decoded[0].ID)
	assert.Equal(t, "2025-03-01T09:30:00Z", decoded[0].CreatedAt)
	assert.Equal(t, []string{"Capex at risk: $20B"}, decoded[0].ImpactMetric)
}

func TestWriteFindingsUnknownFormat(t *testing.T) {
	err := writeFindings(io.Discard, "xml", &client.FindingsPage{})
	assert.ErrorContains(t, err, "unknown output format")
}

func TestWriteFinding(t *testing.T) {
	var buf bytes.Buffer
	f := sampleDossier()
	writeFinding(&buf, &f)
	out := buf.String()
	assert.Contains(t, out, "Dossier: INF-42")
	assert.Contains(t, out, "  1. Hedge GPU exposure")
	assert.Contains(t, out, "  Capex at risk: $20B")

	buf.Reset()
	f.StrategicAdvice = nil
	writeFinding(&buf, &f)
	assert.Contains(t, buf.String(), "Analysis finalization in progress...")
}

func TestRenderDossier(t *testing.T) {
	doc, err := renderDossier(sampleDossier())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(doc, "---\n"))
	parts := strings.SplitN(doc, "---\n", 3)
	require.Len(t, parts, 3)

	var meta frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &meta))
	assert.Equal(t, frontmatter{
		ID:         "42",
		Title:      "Cold War Inference",
		Wing:       client.WingDeepSeek,
		Status:     "review",
		Confidence: 87.5,
		Agent:      "analyst-7",
		CreatedAt:  "2025-03-01T09:30:00Z",
	}, meta)

	body := parts[2]
	assert.Contains(t, body, "# Cold War Inference")
	assert.Contains(t, body, "2. Audit open-weight usage")
	assert.Contains(t, body, "| Capex at risk | $20B |")
	assert.Contains(t, body, "```mermaid\ngraph TD; A-->B\n```")
}

func TestExportFindingsGroupsByWing(t *testing.T) {
	dir := t.TempDir()
	geo := sampleDossier()
	geo.ID = "7"
	geo.Wing = client.WingGEO
	unfiled := sampleDossier()
	unfiled.ID = "8"
	unfiled.Wing = ""

	var written []string
	n, err := exportFindings(dir, []client.Finding{sampleDossier(), geo, unfiled}, func(p string) {
		written = append(written, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, written, 3)

	for _, p := range []string{
		filepath.Join(dir, "the-deepseek-files", "42.md"),
		filepath.Join(dir, "geo-strategy", "7.md"),
		filepath.Join(dir, "unfiled", "8.md"),
	} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"The DeepSeek Files":     "the-deepseek-files",
		"GEO Strategy":           "geo-strategy",
		"  --Agentic  Commerce ": "agentic-commerce",
		"../../etc":              "etc",
		"":                       "unfiled",
	}
	for in, want := range tests {
		assert.Equal(t, want, slugify(in), in)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "BURN THIS DOSSIER?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "BURN THIS DOSSIER? [y/N]: ")
	}
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "STANDBY", formatStatus(nil))
	assert.Equal(t, "STANDBY", formatStatus(&client.SwarmStatus{}))
	assert.Equal(t, "ACTIVE", formatStatus(&client.SwarmStatus{Active: true}))
	assert.Equal(t, "ACTIVE  agents 3/10", formatStatus(&client.SwarmStatus{Active: true, Progress: &client.Progress{Pending: 3, Total: 10}}))
}

func TestPrintStats(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordTiming(metrics.OpStatus, 12*time.Millisecond, false)
	c.RecordTiming(metrics.OpStatus, 8*time.Millisecond, true)

	var buf bytes.Buffer
	printStats(&buf, c.Snapshot())
	out := buf.String()
	assert.Contains(t, out, "OPERATION")
	assert.Contains(t, out, "status")

	buf.Reset()
	printStats(&buf, metrics.NewCollector().Snapshot())
	assert.Empty(t, buf.String())
}

// scriptedWatcher replays a fixed sequence of statuses.
type scriptedWatcher struct {
	cache    *query.Cache
	statuses []client.SwarmStatus
	calls    atomic.Int32
	interval time.Duration
}

func (w *scriptedWatcher) WatchStatus(ctx context.Context) *query.Subscription {
	return query.Subscribe(ctx, w.cache, query.NewKey("swarm-status", ""), func(context.Context) (any, error) {
		i := int(w.calls.Add(1)) - 1
		if i >= len(w.statuses) {
			i = len(w.statuses) - 1
		}
		st := w.statuses[i]
		return &st, nil
	}, w.interval)
}

func TestWatchStatusPlainStopsOnStandby(t *testing.T) {
	w := &scriptedWatcher{
		cache:    query.NewCache(query.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))),
		interval: 20 * time.Millisecond,
		statuses: []client.SwarmStatus{
			{Active: true, Progress: &client.Progress{Pending: 2, Total: 2}},
			{Active: true, Progress: &client.Progress{Pending: 2, Total: 2}},
			{Active: true, Progress: &client.Progress{Pending: 1, Total: 2}},
			{Active: false},
		},
	}

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, watchStatusPlain(ctx, &buf, w))

	assert.Equal(t, "ACTIVE  agents 2/2\nACTIVE  agents 1/2\nSTANDBY\n", buf.String(), "unchanged polls are not repeated")
}

func TestProgressModel(t *testing.T) {
	m := newProgressModel(nil)
	assert.Contains(t, m.renderContent(), "Loading swarm status...")

	next, cmd := m.Update(statusUpdateMsg{entry: query.Entry{
		Value: &client.SwarmStatus{Active: true, Progress: &client.Progress{Pending: 3, Total: 10}},
	}})
	m = next.(progressModel)
	assert.NotNil(t, cmd)
	assert.False(t, m.done)
	assert.Contains(t, m.renderContent(), "Agents: 3/10")

	next, _ = m.Update(statusUpdateMsg{entry: query.Entry{
		Value: m.status,
		Err:   errors.New("timeout"),
	}})
	m = next.(progressModel)
	assert.Contains(t, m.renderContent(), "Last poll failed: timeout")

	next, cmd = m.Update(statusUpdateMsg{entry: query.Entry{Value: &client.SwarmStatus{}}})
	m = next.(progressModel)
	assert.True(t, m.done)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.renderContent(), "Swarm on standby")
}
