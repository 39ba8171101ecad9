// Package graph computes a dependency-respecting propagation order over entity types.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrCycleDetected     = errors.New("dependency cycle detected")
	ErrUnknownDependency = errors.New("unknown dependency")
)

// CycleError names a node found on the active DFS path a second time.
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s at %q", ErrCycleDetected, e.Node)
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// Node is one entity type and the types it references.
type Node struct {
	Name      string
	DependsOn []string
}

type state int

const (
	unvisited state = iota
	visiting
	visited
)

// ResolveOrder returns node names so that every dependency precedes its
// dependents. Nodes and dependencies are visited in lexical order, so the
// output is deterministic for a given input.
func ResolveOrder(nodes []Node) ([]string, error) {
	deps := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		if _, dup := deps[n.Name]; dup {
			return nil, fmt.Errorf("duplicate node %q", n.Name)
		}
		d := append([]string(nil), n.DependsOn...)
		sort.Strings(d)
		deps[n.Name] = d
	}
	for name, d := range deps {
		for _, dep := range d {
			if _, ok := deps[dep]; !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrUnknownDependency, name, dep)
			}
		}
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	marks := make(map[string]state, len(deps))
	order := make([]string, 0, len(deps))

	var visit func(string) error
	visit = func(name string) error {
		switch marks[name] {
		case visited:
			return nil
		case visiting:
			return &CycleError{Node: name}
		}
		marks[name] = visiting
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		marks[name] = visited
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Reverse returns a copy of order with children first, used for deletes.
func Reverse(order []string) []string {
	out := make([]string, len(order))
	for i, name := range order {
		out[len(order)-1-i] = name
	}
	return out
}
