// Package policy holds the per-entity-type sync policies and the propagation
// order derived from their dependency graph.
package policy

import (
	"errors"
	"fmt"
	"sort"

	"regionsync/internal/sync/graph"
	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/sentinel"
)

// Registry is built once at startup and is read-only afterwards, so it is safe
// for concurrent use without locking.
type Registry struct {
	byName      map[string]Descriptor
	byTable     map[string]string
	order       []string
	deleteOrder []string
}

// NewRegistry validates descriptors and computes the propagation order over
// the enabled ones. Every failure is a configuration error.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]Descriptor, len(descriptors)),
		byTable: make(map[string]string, len(descriptors)),
	}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("duplicate entity type %q", d.Name))
		}
		if other, dup := r.byTable[d.Table()]; dup {
			return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("entity types %q and %q share table %q", other, d.Name, d.Table()))
		}
		d = d.clone()
		sort.Strings(d.DependsOn)
		r.byName[d.Name] = d
		r.byTable[d.Table()] = d.Name
	}

	nodes := make([]graph.Node, 0, len(r.byName))
	for _, d := range r.byName {
		node := graph.Node{Name: d.Name}
		for _, dep := range d.DependsOn {
			target, ok := r.byName[dep]
			if !ok {
				return nil, dErrors.Wrap(
					fmt.Errorf("%w: %q depends on %q", graph.ErrUnknownDependency, d.Name, dep),
					dErrors.CodeConfiguration, "invalid dependency graph")
			}
			if target.IsEnabled {
				node.DependsOn = append(node.DependsOn, dep)
			}
		}
		if d.IsEnabled {
			nodes = append(nodes, node)
		}
	}

	order, err := graph.ResolveOrder(nodes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid dependency graph")
	}
	r.order = order
	r.deleteOrder = graph.Reverse(order)
	return r, nil
}

// Get returns the descriptor for name. An unregistered name is a
// configuration error wrapping sentinel.ErrNotFound.
func (r *Registry) Get(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, dErrors.Wrap(
			fmt.Errorf("entity type %q: %w", name, sentinel.ErrNotFound),
			dErrors.CodeConfiguration, "entity type not registered")
	}
	return d.clone(), nil
}

// ByTable resolves a descriptor from its storage table name.
func (r *Registry) ByTable(table string) (Descriptor, error) {
	name, ok := r.byTable[table]
	if !ok {
		return Descriptor{}, dErrors.Wrap(
			fmt.Errorf("table %q: %w", table, sentinel.ErrNotFound),
			dErrors.CodeConfiguration, "table not registered")
	}
	return r.Get(name)
}

// Order returns enabled entity types, parents before children.
func (r *Registry) Order() []string {
	return append([]string(nil), r.order...)
}

// DeleteOrder returns enabled entity types, children before parents.
func (r *Registry) DeleteOrder() []string {
	return append([]string(nil), r.deleteOrder...)
}

// Enabled returns the enabled descriptors in propagation order.
func (r *Registry) Enabled() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].clone())
	}
	return out
}

// All returns every registered descriptor sorted by name.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DependenciesOf returns the declared dependencies of name.
func (r *Registry) DependenciesOf(name string) ([]string, error) {
	d, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return d.DependsOn, nil
}

// DependentsOf returns the registered types that declare name as a
// dependency, sorted.
func (r *Registry) DependentsOf(name string) []string {
	var out []string
	for _, d := range r.byName {
		for _, dep := range d.DependsOn {
			if dep == name {
				out = append(out, d.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Rank returns the position of name in Order, or -1 if it is not enabled.
func (r *Registry) Rank(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

// IsConfigurationError reports whether err came from registry construction or lookup.
func IsConfigurationError(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeConfiguration) || errors.Is(err, graph.ErrCycleDetected)
}
