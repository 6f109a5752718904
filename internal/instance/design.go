// Package instance stamps a finalized type into a concrete design graph:
// instance nodes for every field, connection edges between pin/signal
// instances, and nets grouped by transitive closure. Instantiation never
// mutates the finalized type graph; it only reads from it.
package instance

import (
	"fmt"

	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/solver"
	"github.com/vk/atograph/internal/source"
	"github.com/vk/atograph/internal/typegraph"
	"github.com/zclconf/go-cty/cty"
)

// Instance is one stamped element of the design graph. Pins, signals and
// parameters are leaves; submodule instances carry children.
type Instance struct {
	// Path is the canonical dotted address from the design root, e.g.
	// "Top.bank[2].vcc".
	Path string
	Name string
	Role typegraph.FieldRole
	// Type is the stamped type for submodule and root instances; nil for
	// leaves.
	Type *typegraph.TypeNode
	Node cgraph.NodeID
	Span source.Span

	// Expr and Value carry a parameter's pending expression and its solved
	// value. Value is cty.NilVal until evaluation.
	Expr  cst.Expr
	Value cty.Value

	parent   *Instance
	children map[string]*Instance
	order    []string

	evaluating bool
}

// Child returns a direct child by key ("name" or "name[i]").
func (in *Instance) Child(key string) (*Instance, bool) {
	c, ok := in.children[key]
	return c, ok
}

// Children returns the direct children in stamping order.
func (in *Instance) Children() []*Instance {
	out := make([]*Instance, 0, len(in.order))
	for _, k := range in.order {
		out = append(out, in.children[k])
	}
	return out
}

// Parent returns the enclosing instance, nil at the root.
func (in *Instance) Parent() *Instance { return in.parent }

func (in *Instance) addChild(key string, c *Instance) {
	if in.children == nil {
		in.children = make(map[string]*Instance)
	}
	c.parent = in
	in.children[key] = c
	in.order = append(in.order, key)
}

// IsConnectable reports whether the instance can participate in a net.
func (in *Instance) IsConnectable() bool {
	return in.Role == typegraph.FieldPin || in.Role == typegraph.FieldSignal
}

// Net is a transitively connected group of pin/signal instances.
type Net struct {
	// Members are sorted by path, so net contents are stable across runs.
	Members []*Instance
}

// Name returns the lexically smallest member path, used as the net label.
func (n *Net) Name() string {
	if len(n.Members) == 0 {
		return ""
	}
	return n.Members[0].Path
}

// Design is the concrete instance graph produced by instantiation.
type Design struct {
	Root  *Instance
	Store *cgraph.Store
	Nets  []*Net
	// Diags collects user-facing instantiation problems, including
	// unsatisfiable assertions.
	Diags *diag.Collector
	// Asserts are the solver's verdicts in source order.
	Asserts []solver.Result

	byPath map[string]*Instance

	connections int
}

// Lookup returns an instance by its canonical path.
func (d *Design) Lookup(path string) (*Instance, bool) {
	in, ok := d.byPath[path]
	return in, ok
}

// ConnectionCount returns the number of connection edges stamped.
func (d *Design) ConnectionCount() int { return d.connections }

// InstanceCount returns the number of instances in the design.
func (d *Design) InstanceCount() int { return len(d.byPath) }

// childKey renders the map key for a field element.
func childKey(name string, index int) string {
	if index < 0 {
		return name
	}
	return fmt.Sprintf("%s[%d]", name, index)
}
