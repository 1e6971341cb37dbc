package reconcile

import (
	"errors"
	"fmt"
)

// Lifecycle errors
var (
	ErrNotMounted = errors.New("renderer not mounted")
	ErrUnmounted  = errors.New("reconciler unmounted")
	ErrMounted    = errors.New("renderer already mounted")
)

// Invariant names reported in errors, logs and metrics
const (
	InvariantDanglingParent = "dangling_parent"
	InvariantParentCycle    = "parent_cycle"
	InvariantDanglingEdge   = "dangling_edge"
	InvariantMissingNode    = "missing_node"
	InvariantMissingEdge    = "missing_edge"
	InvariantCascade        = "cascade_delete"
	InvariantNodeCount      = "node_count"
	InvariantEdgeCount      = "edge_count"
)

// ErrInvariant matches every InvariantError via errors.Is
var ErrInvariant = errors.New("invariant violation")

// InvariantError reports a broken structural invariant. The cycle that hit it was aborted.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Detail)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

func violation(invariant, format string, args ...any) *InvariantError {
	return &InvariantError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

// RendererError wraps a failure or panic raised by the renderer
type RendererError struct {
	Op  string
	Err error
}

func (e *RendererError) Error() string {
	return fmt.Sprintf("renderer %s: %v", e.Op, e.Err)
}

func (e *RendererError) Unwrap() error {
	return e.Err
}
