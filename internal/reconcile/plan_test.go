package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicegraph/internal/domain"
)

func graphOf(nodes map[string]string, edges ...domain.EdgeKey) *domain.RenderGraph {
	g := domain.NewRenderGraph()
	for id, parent := range nodes {
		g.Nodes[id] = domain.RenderNode{ID: id, ParentID: parent}
	}
	for _, k := range edges {
		g.Edges[k] = domain.RenderEdge{Key: k}
	}
	return g
}

func TestPlan(t *testing.T) {
	ab := domain.EdgeKey{Source: "a", Target: "b"}
	bc := domain.EdgeKey{Source: "b", Target: "c"}

	prev := CommittedFrom(graphOf(map[string]string{"a": "", "b": "", "x": "a"}, ab))
	next := graphOf(map[string]string{"a": "", "b": "", "c": "", "x": "b"}, bc)

	staging, committed, err := Plan(prev, next)
	require.NoError(t, err)

	assert.Equal(t, []string{"c"}, staging.Add.Nodes)
	assert.Empty(t, staging.Remove.Nodes)
	assert.Equal(t, []domain.EdgeKey{bc}, staging.Add.Edges)
	assert.Equal(t, []domain.EdgeKey{ab}, staging.Remove.Edges)
	assert.Equal(t, []string{"x"}, staging.Reparent)
	assert.False(t, staging.Empty())
	assert.Len(t, committed.Nodes, 4)
	assert.Contains(t, committed.Edges, bc)
	assert.Same(t, next, committed.Graph)
}

func TestPlan_IsPure(t *testing.T) {
	prev := CommittedFrom(graphOf(map[string]string{"a": ""}))
	next := graphOf(map[string]string{"b": ""})

	_, _, err := Plan(prev, next)
	require.NoError(t, err)

	assert.Contains(t, prev.Nodes, "a")
	assert.NotContains(t, prev.Nodes, "b")
}

func TestPlan_EmptyWhenEqual(t *testing.T) {
	g := graphOf(map[string]string{"a": "", "b": "a"}, domain.EdgeKey{Source: "a", Target: "b"})

	staging, _, err := Plan(CommittedFrom(g), g)

	require.NoError(t, err)
	assert.True(t, staging.Empty())
}

func TestPlan_FromEmpty(t *testing.T) {
	staging, _, err := Plan(EmptyCommitted(), graphOf(map[string]string{"b": "a", "a": ""}))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, staging.Add.Nodes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		graph     *domain.RenderGraph
		invariant string
	}{
		{
			name:      "missing parent",
			graph:     graphOf(map[string]string{"a": "zz"}),
			invariant: InvariantDanglingParent,
		},
		{
			name:      "parent cycle",
			graph:     graphOf(map[string]string{"a": "b", "b": "a"}),
			invariant: InvariantParentCycle,
		},
		{
			name:      "edge to nowhere",
			graph:     graphOf(map[string]string{"a": ""}, domain.EdgeKey{Source: "a", Target: "zz"}),
			invariant: InvariantDanglingEdge,
		},
		{
			name:  "valid forest",
			graph: graphOf(map[string]string{"a": "", "b": "a", "c": "b"}, domain.EdgeKey{Source: "c", Target: "a"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.graph)
			if tt.invariant == "" {
				assert.NoError(t, err)
				return
			}
			var inv *InvariantError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tt.invariant, inv.Invariant)
		})
	}
}

func TestAdditionOrder_ParentsFirst(t *testing.T) {
	g := graphOf(map[string]string{"a": "", "b": "a", "c": "b", "d": ""})

	got := additionOrder(g, []string{"c", "b", "d", "a"})

	assert.Equal(t, []string{"a", "d", "b", "c"}, got)
}
