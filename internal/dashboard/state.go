// Package dashboard implements the interactive intelligence dashboard.
package dashboard

import (
	"slices"

	"github.com/raphaelgruber/infomly/internal/client"
)

// View is the screen shown in the content area.
type View string

const (
	ViewFeed    View = "feed"
	ViewEpisode View = "episode"
)

// Navigation is the dashboard's location. Transitions return a new value.
type Navigation struct {
	Department string
	View       View
	EpisodeID  string

	// Tab is the wing tab chosen inside the "all" feed.
	Tab  string
	Sort client.SortOrder
}

// NewNavigation returns the home location: the unfiltered feed, newest first.
func NewNavigation() Navigation {
	return Navigation{
		Department: client.WingAll,
		View:       ViewFeed,
		Tab:        client.WingAll,
		Sort:       client.SortNewest,
	}
}

// Select shows the feed of dept.
func (n Navigation) Select(dept string) Navigation {
	n.Department = dept
	n.View = ViewFeed
	n.EpisodeID = ""
	n.Tab = client.WingAll
	return n
}

// OpenEpisode shows one episode of dept's series.
func (n Navigation) OpenEpisode(dept, id string) Navigation {
	n.Department = dept
	n.View = ViewEpisode
	n.EpisodeID = id
	return n
}

// Back returns to the feed, keeping the department.
func (n Navigation) Back() Navigation {
	n.View = ViewFeed
	n.EpisodeID = ""
	return n
}

// Home returns to the unfiltered feed. The sort order is kept.
func (n Navigation) Home() Navigation {
	return NewNavigation().WithSort(n.Sort)
}

// WithSort sets the feed order.
func (n Navigation) WithSort(s client.SortOrder) Navigation {
	n.Sort = s
	return n
}

// CycleSort advances to the next feed order.
func (n Navigation) CycleSort() Navigation {
	i := slices.Index(client.SortOrders, n.Sort)
	n.Sort = client.SortOrders[(i+1)%len(client.SortOrders)]
	return n
}

// NextTab advances the wing tab. Tabs exist only on the "all" feed.
func (n Navigation) NextTab() Navigation {
	if n.Department != client.WingAll || n.View != ViewFeed {
		return n
	}
	tabs := append([]string{client.WingAll}, client.Wings...)
	i := slices.Index(tabs, n.Tab)
	n.Tab = tabs[(i+1)%len(tabs)]
	return n
}

// Filter derives the findings filter for the current location.
func (n Navigation) Filter() client.Filter {
	wing := n.Department
	if wing == "" || wing == client.WingAll {
		wing = n.Tab
	}
	if wing == "" {
		wing = client.WingAll
	}
	return client.Filter{Wing: wing, Sort: n.Sort}
}

// ShowsFeed reports whether the location renders the findings feed.
func (n Navigation) ShowsFeed() bool {
	return n.View != ViewEpisode
}

// FilterKey is the canonical encoding of Filter.
func (n Navigation) FilterKey() string {
	return n.Filter().Key()
}

// Episode is one installment of a department's series.
type Episode struct {
	ID     string
	Title  string
	Season int
	Number int
}

// Series groups episodes under a title.
type Series struct {
	Title    string
	Episodes []Episode
}

// Department is a sidebar entry. ID doubles as the wing filter value.
type Department struct {
	ID     string
	Label  string
	Series []Series
}

// Episodes returns every episode of the department in series order.
func (d Department) Episodes() []Episode {
	var out []Episode
	for _, s := range d.Series {
		out = append(out, s.Episodes...)
	}
	return out
}

// Departments is the sidebar catalog.
var Departments = []Department{
	{
		ID:    client.WingDeepSeek,
		Label: "DeepSeek Files",
		Series: []Series{{
			Title: "The Open Source Takeover",
			Episodes: []Episode{
				{ID: "ds-s1-e1", Title: "The $20B Risk", Season: 1, Number: 1},
				{ID: "ds-s1-e2", Title: "Cold War Inference", Season: 1, Number: 2},
				{ID: "ds-s1-e3", Title: "The Energy Arbitrage", Season: 1, Number: 3},
			},
		}},
	},
	{
		ID:    client.WingInfrastructure,
		Label: "Infrastructure",
		Series: []Series{{
			Title: "The MCP Protocols",
			Episodes: []Episode{
				{ID: "infra-s1-e1", Title: "Pydantic-AI Architecture", Season: 1, Number: 1},
				{ID: "infra-s1-e2", Title: "LangGraph Pipelines", Season: 1, Number: 2},
			},
		}},
	},
	{
		ID:    client.WingGEO,
		Label: "GEO Strategy",
		Series: []Series{{
			Title: "The Silicon Curtain",
			Episodes: []Episode{
				{ID: "geo-s1-e1", Title: "CHIPS Act Forensics", Season: 1, Number: 1},
				{ID: "geo-s1-e2", Title: "Taiwan Strait Compute", Season: 1, Number: 2},
			},
		}},
	},
	{
		ID:    client.WingCommerce,
		Label: "Agentic Commerce",
		Series: []Series{{
			Title: "The $10T Agent Economy",
			Episodes: []Episode{
				{ID: "comm-s1-e1", Title: "Stripe Agentic Payments", Season: 1, Number: 1},
				{ID: "comm-s1-e2", Title: "The Procurement Bot Riot", Season: 1, Number: 2},
			},
		}},
	},
}

// DefaultEpisodeTitle is shown for episode ids missing from the catalog.
const DefaultEpisodeTitle = "Intelligence Dossier: Classified Series"

// FindDepartment returns the department with the given id.
func FindDepartment(id string) (Department, bool) {
	for _, d := range Departments {
		if d.ID == id {
			return d, true
		}
	}
	return Department{}, false
}

// FindEpisode returns the episode with id and the series it belongs to.
func FindEpisode(id string) (Episode, Series, bool) {
	for _, d := range Departments {
		for _, s := range d.Series {
			for _, e := range s.Episodes {
				if e.ID == id {
					return e, s, true
				}
			}
		}
	}
	return Episode{}, Series{}, false
}

// EpisodeTitle looks up an episode title by id.
func EpisodeTitle(id string) string {
	if e, _, ok := FindEpisode(id); ok {
		return e.Title
	}
	return DefaultEpisodeTitle
}

// TabLabel is the short label of a wing tab.
func TabLabel(wing string) string {
	switch wing {
	case client.WingAll, "":
		return "All Sectors"
	case client.WingCommerce:
		return "Commerce"
	}
	if d, ok := FindDepartment(wing); ok {
		return d.Label
	}
	return wing
}

// sidebarOrder is Home followed by each department.
func sidebarOrder() []string {
	ids := []string{client.WingAll}
	for _, d := range Departments {
		ids = append(ids, d.ID)
	}
	return ids
}
