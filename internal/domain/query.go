package domain

import (
	"fmt"
	"slices"
	"time"
)

// EdgeStatus is one of the call outcomes counted on an edge
type EdgeStatus string

const (
	EdgeStatusOK              EdgeStatus = "ok"
	EdgeStatusExpectedError   EdgeStatus = "expected_error"
	EdgeStatusUnexpectedError EdgeStatus = "unexpected_error"
)

// EdgeStatuses lists every edge status in display order
var EdgeStatuses = []EdgeStatus{EdgeStatusOK, EdgeStatusExpectedError, EdgeStatusUnexpectedError}

// Code returns the numeric code used in stored snapshots
func (s EdgeStatus) Code() int {
	switch s {
	case EdgeStatusOK:
		return 1
	case EdgeStatusExpectedError:
		return 2
	case EdgeStatusUnexpectedError:
		return 3
	default:
		return 0
	}
}

// Count returns the counter for status s
func (c Counters) Count(s EdgeStatus) int {
	switch s {
	case EdgeStatusOK:
		return c.OK
	case EdgeStatusExpectedError:
		return c.ExpectedError
	case EdgeStatusUnexpectedError:
		return c.UnexpectedError
	default:
		return 0
	}
}

// Query parameterizes what the data source fetches next.
// An empty type or status set matches everything.
type Query struct {
	ProjectID    int          `json:"project_id" validate:"required,gt=0"`
	FromTypes    []NodeType   `json:"from_types,omitempty" validate:"dive,oneof=service transaction"`
	ToTypes      []NodeType   `json:"to_types,omitempty" validate:"dive,oneof=service transaction"`
	EdgeStatuses []EdgeStatus `json:"edge_statuses,omitempty" validate:"dive,oneof=ok expected_error unexpected_error"`
	StartDate    *time.Time   `json:"start_date,omitempty"`
	EndDate      *time.Time   `json:"end_date,omitempty"`
	MinVolume    int          `json:"min_volume,omitempty" validate:"gte=0"`
}

// Toggle returns set with item removed if present, or appended if absent.
// The input slice is never modified.
func Toggle[T comparable](set []T, item T) []T {
	if i := slices.Index(set, item); i >= 0 {
		out := make([]T, 0, len(set)-1)
		out = append(out, set[:i]...)
		return append(out, set[i+1:]...)
	}
	out := make([]T, 0, len(set)+1)
	out = append(out, set...)
	return append(out, item)
}

// matchesSet reports whether item passes a set filter; an empty set matches all
func matchesSet[T comparable](set []T, item T) bool {
	return len(set) == 0 || slices.Contains(set, item)
}

// Clone returns a deep copy of the query
func (q Query) Clone() Query {
	out := q
	out.FromTypes = slices.Clone(q.FromTypes)
	out.ToTypes = slices.Clone(q.ToTypes)
	out.EdgeStatuses = slices.Clone(q.EdgeStatuses)
	if q.StartDate != nil {
		t := *q.StartDate
		out.StartDate = &t
	}
	if q.EndDate != nil {
		t := *q.EndDate
		out.EndDate = &t
	}
	return out
}

// ToggleFromType flips a source node type filter
func (q Query) ToggleFromType(t NodeType) Query {
	out := q.Clone()
	out.FromTypes = Toggle(q.FromTypes, t)
	return out
}

// ToggleToType flips a target node type filter
func (q Query) ToggleToType(t NodeType) Query {
	out := q.Clone()
	out.ToTypes = Toggle(q.ToTypes, t)
	return out
}

// ToggleEdgeStatus flips an edge status filter
func (q Query) ToggleEdgeStatus(s EdgeStatus) Query {
	out := q.Clone()
	out.EdgeStatuses = Toggle(q.EdgeStatuses, s)
	return out
}

// WithWindow sets the time bounds from a preset relative to now
func (q Query) WithWindow(w TimeWindow, now time.Time) Query {
	out := q.Clone()
	out.EndDate = nil
	if w.Duration == 0 {
		out.StartDate = nil
		return out
	}
	start := now.Add(-w.Duration).UTC()
	out.StartDate = &start
	return out
}

// WithRange sets fixed time bounds
func (q Query) WithRange(start, end time.Time) Query {
	out := q.Clone()
	s, e := start.UTC(), end.UTC()
	out.StartDate = &s
	out.EndDate = &e
	return out
}

// WithoutTimeBounds drops the start and end dates
func (q Query) WithoutTimeBounds() Query {
	out := q.Clone()
	out.StartDate = nil
	out.EndDate = nil
	return out
}

// WithMinVolume sets the traffic volume floor
func (q Query) WithMinVolume(v int) Query {
	out := q.Clone()
	out.MinVolume = v
	return out
}

// MatchesEdge reports whether an edge passes the type, status and volume filters.
// An edge with no traffic counts as ok.
func (q Query) MatchesEdge(e Edge, from, to NodeType) bool {
	if !matchesSet(q.FromTypes, from) || !matchesSet(q.ToTypes, to) {
		return false
	}
	if e.Volume() < q.MinVolume {
		return false
	}
	if len(q.EdgeStatuses) == 0 {
		return true
	}
	if e.Volume() == 0 {
		return slices.Contains(q.EdgeStatuses, EdgeStatusOK)
	}
	for _, s := range q.EdgeStatuses {
		if e.Count(s) > 0 {
			return true
		}
	}
	return false
}

// InWindow reports whether t falls within the query's time bounds
func (q Query) InWindow(t time.Time) bool {
	if q.StartDate != nil && t.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && t.After(*q.EndDate) {
		return false
	}
	return true
}

// Apply filters a payload locally. Nodes are kept so the container structure
// stays intact; edges and activity records are filtered.
func (q Query) Apply(p *Payload) *Payload {
	types := make(map[string]NodeType, len(p.Graph.Nodes))
	for _, n := range p.Graph.Nodes {
		types[n.ID.String()] = n.Type
	}

	out := &Payload{Graph: Graph{Nodes: slices.Clone(p.Graph.Nodes)}}
	for _, e := range p.Graph.Edges {
		if q.MatchesEdge(e, types[e.FromNodeID.String()], types[e.ToNodeID.String()]) {
			out.Graph.Edges = append(out.Graph.Edges, e)
		}
	}
	for _, a := range p.ActiveNodes.Nodes {
		if q.StartDate != nil || q.EndDate != nil {
			t, ok := ParseActivity(a.LastActivity)
			if !ok || !q.InWindow(t) {
				continue
			}
		}
		out.ActiveNodes.Nodes = append(out.ActiveNodes.Nodes, a)
	}
	return out
}

// Summary renders the active filters for status lines
func (q Query) Summary() string {
	s := fmt.Sprintf("project %d", q.ProjectID)
	if len(q.FromTypes) > 0 {
		s += fmt.Sprintf(" from=%v", q.FromTypes)
	}
	if len(q.ToTypes) > 0 {
		s += fmt.Sprintf(" to=%v", q.ToTypes)
	}
	if len(q.EdgeStatuses) > 0 {
		s += fmt.Sprintf(" status=%v", q.EdgeStatuses)
	}
	if q.StartDate != nil {
		s += " since=" + q.StartDate.Format(time.RFC3339)
	}
	if q.EndDate != nil {
		s += " until=" + q.EndDate.Format(time.RFC3339)
	}
	if q.MinVolume > 0 {
		s += fmt.Sprintf(" volume>=%d", q.MinVolume)
	}
	return s
}

// TimeWindow is a named time range preset. A zero duration means no bound.
type TimeWindow struct {
	Name     string
	Duration time.Duration
}

// TimeWindows lists the presets offered by the viewer
var TimeWindows = []TimeWindow{
	{Name: "all", Duration: 0},
	{Name: "15m", Duration: 15 * time.Minute},
	{Name: "1h", Duration: time.Hour},
	{Name: "6h", Duration: 6 * time.Hour},
	{Name: "24h", Duration: 24 * time.Hour},
}

// RangeWindow describes a fixed range picked by the user. It never matches a preset.
func RangeWindow(start, end time.Time) TimeWindow {
	layout := "15:04"
	if start.Year() != end.Year() || start.YearDay() != end.YearDay() {
		layout = "Jan 2 15:04"
	}
	return TimeWindow{Name: start.UTC().Format(layout) + ".." + end.UTC().Format(layout)}
}

// ParseTimeWindow looks up a preset by name
func ParseTimeWindow(name string) (TimeWindow, error) {
	for _, w := range TimeWindows {
		if w.Name == name {
			return w, nil
		}
	}
	return TimeWindow{}, fmt.Errorf("unknown time window: %s", name)
}
