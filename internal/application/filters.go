package application

import (
	"sync"
	"time"

	"servicegraph/internal/domain"
)

// FilterState holds the user's query predicates. Every change produces a new
// query value; readers get a copy.
type FilterState struct {
	mu     sync.RWMutex
	query  domain.Query
	window domain.TimeWindow
	ranged bool
}

// NewFilterState creates filter state for a project with no predicates
func NewFilterState(projectID int) *FilterState {
	return &FilterState{
		query:  domain.Query{ProjectID: projectID},
		window: domain.TimeWindows[0],
	}
}

// Query returns the current query
func (f *FilterState) Query() domain.Query {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.query.Clone()
}

// Window returns the selected time window, a preset or a fixed range
func (f *FilterState) Window() domain.TimeWindow {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.window
}

// ToggleFromType flips a source node type
func (f *FilterState) ToggleFromType(t domain.NodeType) domain.Query {
	return f.update(func(q domain.Query) domain.Query { return q.ToggleFromType(t) })
}

// ToggleToType flips a target node type
func (f *FilterState) ToggleToType(t domain.NodeType) domain.Query {
	return f.update(func(q domain.Query) domain.Query { return q.ToggleToType(t) })
}

// ToggleEdgeStatus flips an edge status
func (f *FilterState) ToggleEdgeStatus(s domain.EdgeStatus) domain.Query {
	return f.update(func(q domain.Query) domain.Query { return q.ToggleEdgeStatus(s) })
}

// SetWindow applies a time window preset relative to now
func (f *FilterState) SetWindow(w domain.TimeWindow, now time.Time) domain.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = w
	f.ranged = false
	f.query = f.query.WithWindow(w, now)
	return f.query.Clone()
}

// SetRange fixes the time bounds to [start, end]. The range is kept as is
// by Refresh until a preset is chosen again.
func (f *FilterState) SetRange(start, end time.Time) (domain.Query, error) {
	if !start.Before(end) {
		return f.Query(), &ValidationError{Field: "EndDate", Message: "end date must be after the start date"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = domain.RangeWindow(start, end)
	f.ranged = true
	f.query = f.query.WithRange(start, end)
	return f.query.Clone(), nil
}

// Ranged reports whether a fixed range is active
func (f *FilterState) Ranged() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ranged
}

// ResetWindow drops any range or preset
func (f *FilterState) ResetWindow(now time.Time) domain.Query {
	return f.SetWindow(domain.TimeWindows[0], now)
}

// CycleWindow advances to the next time window preset. A fixed range is reset.
func (f *FilterState) CycleWindow(now time.Time) domain.Query {
	if f.Ranged() {
		return f.ResetWindow(now)
	}
	current := f.Window()
	next := domain.TimeWindows[0]
	for i, w := range domain.TimeWindows {
		if w.Name == current.Name {
			next = domain.TimeWindows[(i+1)%len(domain.TimeWindows)]
			break
		}
	}
	return f.SetWindow(next, now)
}

// Refresh re-anchors a relative time window to now. A fixed range is left alone.
func (f *FilterState) Refresh(now time.Time) domain.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ranged {
		f.query = f.query.WithWindow(f.window, now)
	}
	return f.query.Clone()
}

// SetMinVolume sets the traffic floor, rejecting negative values
func (f *FilterState) SetMinVolume(v int) (domain.Query, error) {
	if v < 0 {
		return f.Query(), &ValidationError{Field: "MinVolume", Message: "minimum volume must be at least 0"}
	}
	return f.update(func(q domain.Query) domain.Query { return q.WithMinVolume(v) }), nil
}

func (f *FilterState) update(fn func(domain.Query) domain.Query) domain.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = fn(f.query)
	return f.query.Clone()
}
