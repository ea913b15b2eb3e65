package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// findingValidate is the validator instance for dossiers received from the backend.
var findingValidate = validator.New()

// FindingID identifies a dossier. The backend sends either a number or a string.
type FindingID string

func (id *FindingID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FindingID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = FindingID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as numbers, matching the backend.
func (id FindingID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id FindingID) String() string {
	return string(id)
}

// FindingStatus is the review state of a dossier.
type FindingStatus string

const (
	StatusPending   FindingStatus = "pending"
	StatusReview    FindingStatus = "review"
	StatusPublished FindingStatus = "published"
	StatusKilled    FindingStatus = "killed"
)

// Phase is a stage of the swarm pipeline working on a dossier.
type Phase string

const (
	PhaseScout      Phase = "scout"
	PhaseAnalyst    Phase = "analyst"
	PhaseConsultant Phase = "consultant"
	PhaseArchitect  Phase = "architect"
	PhaseEditor     Phase = "editor"
	PhaseComplete   Phase = "complete"
)

// Phases lists the pipeline stages in execution order (complete excluded).
var Phases = []Phase{PhaseScout, PhaseAnalyst, PhaseConsultant, PhaseArchitect, PhaseEditor}

// Index returns the phase's position in the pipeline: len(Phases) for
// complete and -1 for an unknown or empty phase.
func (p Phase) Index() int {
	if p == PhaseComplete {
		return len(Phases)
	}
	return slices.Index(Phases, p)
}

// Timestamp accepts RFC 3339 as well as the naive ISO forms some backends emit.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
			return nil
		}
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// TextList is a list of prose items. The backend sends a single string,
// a list of strings, or a list of {"text"} / {"advice"} objects.
type TextList []string

func (l *TextList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = TextList{s}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("text list: %w", err)
	}
	out := make(TextList, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Text   string `json:"text"`
			Advice string `json:"advice"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("text list item %d: %w", i, err)
		}
		switch {
		case obj.Text != "":
			out = append(out, obj.Text)
		case obj.Advice != "":
			out = append(out, obj.Advice)
		default:
			return fmt.Errorf("text list item %d: no text", i)
		}
	}
	*l = out
	return nil
}

// Metric is a labelled impact figure.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// MetricList accepts a list of {label, value} objects or a label→value object.
type MetricList []Metric

func (l *MetricList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}

	if len(b) > 0 && b[0] == '{' {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		out := make(MetricList, 0, len(m))
		for label, value := range m {
			out = append(out, Metric{Label: label, Value: formatValue(value)})
		}
		slices.SortFunc(out, func(a, b Metric) int { return strings.Compare(a.Label, b.Label) })
		*l = out
		return nil
	}

	var items []struct {
		Label string `json:"label"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	out := make(MetricList, 0, len(items))
	for i, item := range items {
		label := item.Label
		if label == "" {
			label = fmt.Sprintf("Metric %d", i+1)
		}
		out = append(out, Metric{Label: label, Value: formatValue(item.Value)})
	}
	*l = out
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Thought is one entry of the swarm's working log for a dossier.
type Thought struct {
	Phase     Phase  `json:"phase"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Finding is an intelligence dossier. Field names follow the backend's
// current schema (title/description).
type Finding struct {
	ID              FindingID     `json:"id" yaml:"id" validate:"required"`
	Wing            string        `json:"wing,omitempty" yaml:"wing,omitempty"`
	Status          FindingStatus `json:"status" yaml:"status" validate:"required,oneof=pending review published killed"`
	Title           string        `json:"title" yaml:"title" validate:"required"`
	Description     string        `json:"description,omitempty" yaml:"description,omitempty"`
	Analysis        string        `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Findings        TextList      `json:"findings,omitempty" yaml:"findings,omitempty"`
	StrategicAdvice TextList      `json:"strategic_advice,omitempty" yaml:"strategic_advice,omitempty"`
	ImpactMetrics   MetricList    `json:"impact_metrics,omitempty" yaml:"impact_metrics,omitempty"`
	VisualSchema    string        `json:"visual_schema,omitempty" yaml:"visual_schema,omitempty"`
	AgentID         string        `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	ConfidenceScore float64       `json:"confidence_score" yaml:"confidence_score" validate:"min=0,max=100"`
	CreatedAt       Timestamp     `json:"created_at" yaml:"-"`
	CurrentPhase    Phase         `json:"current_phase,omitempty" yaml:"current_phase,omitempty" validate:"omitempty,oneof=scout analyst consultant architect editor complete"`
	ThoughtLog      []Thought     `json:"thought_log,omitempty" yaml:"-"`
}

// Reviewable reports whether the dossier is awaiting approve/kill.
func (f Finding) Reviewable() bool {
	return f.Status == StatusReview || f.Status == StatusPending
}

// Validate checks the dossier against the schema tags.
func (f Finding) Validate() error {
	err := findingValidate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Quarantined describes a feed record that was rejected at the boundary.
type Quarantined struct {
	Index  int       `json:"index"`
	ID     FindingID `json:"id,omitempty"`
	Reason string    `json:"reason"`
}

// FindingsPage is the decoded body of GET /findings.
type FindingsPage struct {
	Findings    []Finding
	Quarantined []Quarantined
}

// decodeFindings decodes and validates each record independently so one
// malformed dossier does not hide the rest of the feed.
func decodeFindings(raw []json.RawMessage) FindingsPage {
	page := FindingsPage{Findings: make([]Finding, 0, len(raw))}
	for i, r := range raw {
		var f Finding
		if err := json.Unmarshal(r, &f); err != nil {
			page.Quarantined = append(page.Quarantined, Quarantined{Index: i, ID: peekID(r), Reason: err.Error()})
			continue
		}
		if err := f.Validate(); err != nil {
			page.Quarantined = append(page.Quarantined, Quarantined{Index: i, ID: f.ID, Reason: err.Error()})
			continue
		}
		page.Findings = append(page.Findings, f)
	}
	return page
}

func peekID(r json.RawMessage) FindingID {
	var probe struct {
		ID FindingID `json:"id"`
	}
	_ = json.Unmarshal(r, &probe)
	return probe.ID
}
