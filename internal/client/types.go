package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

// Ack is the backend's acknowledgement payload. Its shape is not part of
// the contract, so it is kept opaque.
type Ack map[string]any

// AckValueKey holds a payload that is valid JSON but not an object.
const AckValueKey = "value"

// UnmarshalJSON accepts any JSON value. Objects decode field by field;
// anything else is kept whole under AckValueKey.
func (a *Ack) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("ack: %w", err)
		}
		*a = m
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	*a = Ack{AckValueKey: v}
	return nil
}

// Message returns the ack's "message" or "status" field when present, or a
// bare string payload.
func (a Ack) Message() string {
	for _, key := range []string{"message", "status", AckValueKey} {
		if s, ok := a[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Progress counts the swarm's outstanding agents.
type Progress struct {
	Pending int `json:"pending"`
	Total   int `json:"total"`
}

// SwarmStatus is the backend's snapshot of the swarm job.
type SwarmStatus struct {
	Active   bool      `json:"active"`
	Progress *Progress `json:"progress,omitempty"`
}

// Wing identifiers accepted by GET /findings.
const (
	WingAll            = "all"
	WingDeepSeek       = "The DeepSeek Files"
	WingInfrastructure = "Agentic Infrastructure"
	WingCommerce       = "Agentic Commerce"
	WingGEO            = "GEO Strategy"
)

// Wings lists the named departments in display order.
var Wings = []string{WingDeepSeek, WingInfrastructure, WingCommerce, WingGEO}

// SortOrder is the feed ordering requested from the backend.
type SortOrder string

const (
	SortNewest            SortOrder = "newest"
	SortOldest            SortOrder = "oldest"
	SortHighestConfidence SortOrder = "highest_confidence"
)

// SortOrders lists the supported orders in display order.
var SortOrders = []SortOrder{SortNewest, SortOldest, SortHighestConfidence}

// Filter narrows GET /findings. Zero-valued fields are omitted from the query.
type Filter struct {
	Wing          string
	Sort          SortOrder
	MinConfidence *int
}

// Validate checks the filter against the backend's enumerations.
func (f Filter) Validate() error {
	if f.Wing != "" && f.Wing != WingAll && !slices.Contains(Wings, f.Wing) {
		return fmt.Errorf("%w: unknown wing %q", ErrInvalidFilter, f.Wing)
	}
	if f.Sort != "" && !slices.Contains(SortOrders, f.Sort) {
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
	}
	if f.MinConfidence != nil && (*f.MinConfidence < 0 || *f.MinConfidence > 100) {
		return fmt.Errorf("%w: min_confidence %d outside 0-100", ErrInvalidFilter, *f.MinConfidence)
	}
	return nil
}

// Values encodes the filter as query parameters.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Wing != "" {
		v.Set("wing", f.Wing)
	}
	if f.Sort != "" {
		v.Set("sort", string(f.Sort))
	}
	if f.MinConfidence != nil {
		v.Set("min_confidence", strconv.Itoa(*f.MinConfidence))
	}
	return v
}

// Key returns a canonical encoding of the filter; equal filters share a key.
func (f Filter) Key() string {
	return f.Values().Encode()
}

// SortOrDefault returns the filter's sort, defaulting to newest first.
func (f Filter) SortOrDefault() SortOrder {
	if f.Sort == "" {
		return SortNewest
	}
	return f.Sort
}

// IntPtr is a convenience for building filters.
func IntPtr(v int) *int {
	return &v
}
