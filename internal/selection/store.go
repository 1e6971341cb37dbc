// Package selection tracks what the user selected, by identity only, and
// resolves it against the latest snapshot when details are shown.
package selection

import (
	"sort"
	"strings"
	"sync"
	"time"

	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// Store holds the current selection and the latest snapshot
type Store struct {
	mu         sync.RWMutex
	selection  domain.Selection
	payload    *domain.Payload
	thresholds domain.Thresholds
	window     time.Duration
	now        func() time.Time
}

// NewStore creates an empty store
func NewStore(thresholds domain.Thresholds, window time.Duration) *Store {
	if window == 0 {
		window = domain.DefaultActivityWindow
	}
	return &Store{thresholds: thresholds, window: window, now: time.Now}
}

// SetClock replaces the clock used for activity classification
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Select replaces the selection
func (s *Store) Select(sel domain.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = sel
}

// Clear drops the selection
func (s *Store) Clear() {
	s.Select(domain.Selection{})
}

// Selection returns the current selection
func (s *Store) Selection() domain.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// Update records the latest snapshot. The selection is kept even when it no longer resolves.
func (s *Store) Update(p *domain.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = p
}

// HandleTap applies a renderer tap. Taps on a ghost select the service it belongs to.
func (s *Store) HandleTap(ev ports.TapEvent) {
	switch ev.Kind {
	case ports.TapNode:
		s.Select(domain.SelectNode(strings.TrimSuffix(ev.NodeID, domain.GhostSuffix)))
	case ports.TapEdge:
		s.Select(domain.SelectEdge(ev.Edge.Source, ev.Edge.Target))
	default:
		s.Clear()
	}
}

// Details resolves the current selection against the latest snapshot
func (s *Store) Details() (domain.DetailsView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return domain.DetailsView{}, false
	}
	return Resolve(s.selection, s.payload, s.thresholds, s.window, s.now())
}

// Resolve dereferences sel against p. A selection whose entity is gone
// resolves to nothing, which is not an error.
func Resolve(sel domain.Selection, p *domain.Payload, thresholds domain.Thresholds, window time.Duration, now time.Time) (domain.DetailsView, bool) {
	switch sel.Kind {
	case domain.SelectionNode:
		d, ok := resolveNode(sel.NodeID, p, thresholds, window, now)
		if !ok {
			return domain.DetailsView{}, false
		}
		return domain.DetailsView{Node: d}, true
	case domain.SelectionEdge:
		d, ok := resolveEdge(sel.Edge, p, thresholds)
		if !ok {
			return domain.DetailsView{}, false
		}
		return domain.DetailsView{Edge: d}, true
	default:
		return domain.DetailsView{}, false
	}
}

func resolveNode(id string, p *domain.Payload, thresholds domain.Thresholds, window time.Duration, now time.Time) (*domain.NodeDetails, bool) {
	n, ok := p.Graph.NodeByID(id)
	if !ok {
		return nil, false
	}

	d := &domain.NodeDetails{
		Node:     n,
		Health:   thresholds.Classify(n.Counters),
		Children: p.Graph.Children(id),
	}
	if a, ok := p.Activities()[id]; ok {
		d.Activity = domain.ClassifyActivity(&a, now, window)
		d.LastActivity = a.LastActivity
	} else {
		d.Activity = domain.ClassifyActivity(nil, now, window)
	}
	if n.HasParent() {
		if parent, ok := p.Graph.NodeByID(n.ParentKey()); ok {
			d.Parent = &parent
		}
	}
	for _, e := range p.Graph.Edges {
		if e.ToNodeID == n.ID {
			d.Incoming = append(d.Incoming, e)
		}
		if e.FromNodeID == n.ID {
			d.Outgoing = append(d.Outgoing, e)
		}
	}
	sort.Slice(d.Children, func(i, j int) bool { return d.Children[i].Name < d.Children[j].Name })
	return d, true
}

func resolveEdge(key domain.EdgeKey, p *domain.Payload, thresholds domain.Thresholds) (*domain.EdgeDetails, bool) {
	e, ok := p.Graph.EdgeByKey(key)
	if !ok {
		return nil, false
	}
	src, ok := p.Graph.NodeByID(key.Source)
	if !ok {
		return nil, false
	}
	dst, ok := p.Graph.NodeByID(key.Target)
	if !ok {
		return nil, false
	}
	return &domain.EdgeDetails{
		Edge:        e,
		Source:      src,
		Destination: dst,
		Health:      thresholds.Classify(e.Counters),
		Volume:      e.Volume(),
	}, true
}
