package depgraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidGraph reports a structurally invalid graph (unknown node,
	// duplicate id, self edge).
	ErrInvalidGraph = errors.New("invalid dependency graph")
	// ErrCycleFound reports that no topological order exists.
	ErrCycleFound = errors.New("dependency cycle")
)

// GraphError carries one of the sentinel kinds above plus detail.
type GraphError struct {
	Kind error
	Msg  string
	// Remaining lists the node ids left unordered when a cycle is found.
	Remaining []int
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(remaining []int) error {
	parts := make([]string, len(remaining))
	for i, id := range remaining {
		parts[i] = strconv.Itoa(id)
	}
	return &GraphError{
		Kind:      ErrCycleFound,
		Msg:       "unresolved tasks " + strings.Join(parts, ", "),
		Remaining: remaining,
	}
}
