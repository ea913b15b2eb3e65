package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingIDAcceptsNumbersAndStrings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want FindingID
	}{
		{"number", `17`, "17"},
		{"string", `"INF-17"`, "INF-17"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id FindingID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			assert.Equal(t, tt.want, id)
		})
	}

	out, err := json.Marshal(FindingID("17"))
	require.NoError(t, err)
	assert.Equal(t, `17`, string(out))

	out, err = json.Marshal(FindingID("INF-17"))
	require.NoError(t, err)
	assert.Equal(t, `"INF-17"`, string(out))
}

func TestTextListShapes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    TextList
		wantErr bool
	}{
		{"single string", `"Hedge GPU exposure"`, TextList{"Hedge GPU exposure"}, false},
		{"strings", `["a","b"]`, TextList{"a", "b"}, false},
		{"text objects", `[{"text":"a"},{"advice":"b"}]`, TextList{"a", "b"}, false},
		{"mixed", `["a",{"text":"b"}]`, TextList{"a", "b"}, false},
		{"object without text", `[{"note":"a"}]`, nil, true},
		{"number", `42`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got TextList
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TextList mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMetricListShapes(t *testing.T) {
	var fromList MetricList
	require.NoError(t, json.Unmarshal([]byte(`[{"label":"Capex","value":"$20B"},{"value":4}]`), &fromList))
	assert.Equal(t, MetricList{{Label: "Capex", Value: "$20B"}, {Label: "Metric 2", Value: "4"}}, fromList)

	var fromObject MetricList
	require.NoError(t, json.Unmarshal([]byte(`{"risk":"high","months":4.5,"active":true}`), &fromObject))
	assert.Equal(t, MetricList{
		{Label: "active", Value: "true"},
		{Label: "months", Value: "4.5"},
		{Label: "risk", Value: "high"},
	}, fromObject, "object form sorted by label")
}

func TestTimestampLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2025-03-01T10:15:00Z"`, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)},
		{`"2025-03-01T10:15:00.123456"`, time.Date(2025, 3, 1, 10, 15, 0, 123456000, time.UTC)},
		{`"2025-03-01 10:15:00"`, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var bad Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestFindingValidate(t *testing.T) {
	valid := Finding{ID: "1", Title: "The $20B Risk", Status: StatusReview, ConfidenceScore: 92}
	require.NoError(t, valid.Validate())

	badStatus := valid
	badStatus.Status = "archived"
	assert.ErrorContains(t, badStatus.Validate(), "Status failed oneof")

	badPhase := valid
	badPhase.CurrentPhase = "intern"
	assert.ErrorContains(t, badPhase.Validate(), "CurrentPhase")

	okPhase := valid
	okPhase.CurrentPhase = PhaseComplete
	assert.NoError(t, okPhase.Validate())
}

func TestReviewable(t *testing.T) {
	assert.True(t, Finding{Status: StatusReview}.Reviewable())
	assert.True(t, Finding{Status: StatusPending}.Reviewable())
	assert.False(t, Finding{Status: StatusPublished}.Reviewable())
	assert.False(t, Finding{Status: StatusKilled}.Reviewable())
}

func TestPhaseIndex(t *testing.T) {
	assert.Equal(t, 0, PhaseScout.Index())
	assert.Equal(t, 4, PhaseEditor.Index())
	assert.Equal(t, len(Phases), PhaseComplete.Index())
	assert.Equal(t, -1, Phase("").Index())
}

func TestFilterKeyIsCanonical(t *testing.T) {
	a := Filter{Wing: WingGEO, Sort: SortNewest}
	b := Filter{Sort: SortNewest, Wing: WingGEO}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Filter{Wing: WingGEO, Sort: SortOldest}.Key())
	assert.Equal(t, "", Filter{}.Key())
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{Wing: WingAll}.Validate())
	assert.NoError(t, Filter{Wing: WingCommerce, MinConfidence: IntPtr(0)}.Validate())
	assert.ErrorIs(t, Filter{Wing: "Marketing"}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, Filter{MinConfidence: IntPtr(101)}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, Filter{MinConfidence: IntPtr(-1)}.Validate(), ErrInvalidFilter)
}

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{
		Op: "status", Method: "GET", Path: "/admin/swarm/status",
		StatusCode: 502, Kind: ErrStatus, Body: "bad gateway",
	}
	assert.Equal(t, "status: GET /admin/swarm/status: unexpected status (502): bad gateway", err.Error())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ab", truncate("abcdefgh", 2))
}
