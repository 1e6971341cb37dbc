package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
	"servicegraph/internal/transform"
)

// HealthEntry describes one unhealthy node or edge
type HealthEntry struct {
	Label    string
	Counters domain.Counters
}

// HealthResult summarizes the health of a snapshot
type HealthResult struct {
	Nodes          int
	Edges          int
	InactiveNodes  int
	UnhealthyNodes []HealthEntry
	UnhealthyEdges []HealthEntry
	Message        string
}

// HealthCommand fetches a snapshot and lists what is unhealthy
type HealthCommand struct {
	source  ports.DataSource
	Query   domain.Query
	Options transform.Options
}

// NewHealthCommand creates a new HealthCommand
func NewHealthCommand(source ports.DataSource, q domain.Query, thresholds domain.Thresholds) *HealthCommand {
	return &HealthCommand{
		source:  source,
		Query:   q,
		Options: transform.Options{Thresholds: thresholds, ActivityWindow: domain.DefaultActivityWindow},
	}
}

// Validate checks the query
func (c *HealthCommand) Validate() error {
	return application.ValidateQuery(c.Query)
}

// Execute fetches and classifies the snapshot
func (c *HealthCommand) Execute(ctx context.Context) (*HealthResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	payload, err := FetchGraph(ctx, c.source, c.Query)
	if err != nil {
		return nil, err
	}
	opts := c.Options
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return Classify(payload, opts), nil
}

// Classify builds a health summary for a payload
func Classify(p *domain.Payload, opts transform.Options) *HealthResult {
	g := transform.Payload(p, opts)
	res := &HealthResult{Nodes: len(p.Graph.Nodes), Edges: len(p.Graph.Edges)}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Ghost {
			continue
		}
		if n.Activity == domain.Inactive {
			res.InactiveNodes++
		}
		if n.Health == domain.Unhealthy {
			res.UnhealthyNodes = append(res.UnhealthyNodes, HealthEntry{Label: n.Name, Counters: n.Source.Counters})
		}
	}
	for _, k := range g.EdgeKeys() {
		e := g.Edges[k]
		if e.Health != domain.Unhealthy {
			continue
		}
		label := fmt.Sprintf("%s -> %s", g.Nodes[k.Source].Name, g.Nodes[k.Target].Name)
		res.UnhealthyEdges = append(res.UnhealthyEdges, HealthEntry{Label: label, Counters: e.Source.Counters})
	}
	sort.Slice(res.UnhealthyNodes, func(i, j int) bool { return res.UnhealthyNodes[i].Label < res.UnhealthyNodes[j].Label })
	sort.Slice(res.UnhealthyEdges, func(i, j int) bool { return res.UnhealthyEdges[i].Label < res.UnhealthyEdges[j].Label })

	res.Message = fmt.Sprintf("%d nodes (%d unhealthy, %d inactive), %d edges (%d unhealthy)",
		res.Nodes, len(res.UnhealthyNodes), res.InactiveNodes, res.Edges, len(res.UnhealthyEdges))
	return res
}
