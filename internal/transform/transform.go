// Package transform turns backend snapshots into renderer-ready records.
// Everything here is pure and deterministic for a given clock reading.
package transform

import (
	"time"

	"servicegraph/internal/domain"
)

// Options tune the classification applied during a transform
type Options struct {
	Thresholds     domain.Thresholds
	ActivityWindow time.Duration
	Now            time.Time
}

// DefaultOptions returns the default thresholds and activity window at now
func DefaultOptions(now time.Time) Options {
	return Options{
		Thresholds:     domain.DefaultThresholds(),
		ActivityWindow: domain.DefaultActivityWindow,
		Now:            now,
	}
}

// Transform maps a graph and its activity records to a render graph,
// synthesizing ghost children for childless top-level services.
func Transform(g domain.Graph, activities map[string]domain.NodeActivity, opts Options) *domain.RenderGraph {
	if opts.ActivityWindow == 0 {
		opts.ActivityWindow = domain.DefaultActivityWindow
	}

	out := domain.NewRenderGraph()
	for _, n := range g.Nodes {
		id := n.ID.String()
		rn := domain.RenderNode{
			ID:       id,
			ParentID: n.ParentKey(),
			Type:     n.Type,
			Name:     n.Name,
			Health:   opts.Thresholds.Classify(n.Counters),
			Source:   n,
		}
		if a, ok := activities[id]; ok {
			rn.Activity = domain.ClassifyActivity(&a, opts.Now, opts.ActivityWindow)
			rn.LastActivity = a.LastActivity
		} else {
			rn.Activity = domain.ClassifyActivity(nil, opts.Now, opts.ActivityWindow)
		}
		out.Nodes[id] = rn
	}

	for _, ghost := range SynthesizeGhosts(g.Nodes) {
		out.Nodes[ghost.ID] = ghost
	}

	for _, e := range g.Edges {
		out.Edges[e.Key()] = domain.RenderEdge{
			Key:    e.Key(),
			Health: opts.Thresholds.Classify(e.Counters),
			Volume: e.Volume(),
			Source: e,
		}
	}
	return out
}

// SynthesizeGhosts returns one ghost child for every top-level service that
// no other node names as its parent. It needs the complete node set.
func SynthesizeGhosts(nodes []domain.Node) []domain.RenderNode {
	parents := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.HasParent() {
			parents[n.ParentKey()] = true
		}
	}

	var ghosts []domain.RenderNode
	for _, n := range nodes {
		if n.Type != domain.NodeTypeService || n.HasParent() {
			continue
		}
		id := n.ID.String()
		if parents[id] {
			continue
		}
		ghosts = append(ghosts, domain.RenderNode{
			ID:       domain.GhostID(id),
			ParentID: id,
			Type:     domain.NodeTypeTransaction,
			Name:     "",
			Health:   domain.Healthy,
			Activity: domain.Inactive,
			Ghost:    true,
		})
	}
	return ghosts
}

// Payload transforms a full data source response
func Payload(p *domain.Payload, opts Options) *domain.RenderGraph {
	return Transform(p.Graph, p.Activities(), opts)
}
