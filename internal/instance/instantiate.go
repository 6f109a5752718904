package instance

import (
	"context"
	"fmt"

	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/linker"
	"github.com/vk/atograph/internal/solver"
	"github.com/vk/atograph/internal/typegraph"
	"github.com/zclconf/go-cty/cty"
)

// Instantiator stamps finalized types into design graphs. One instantiator
// may serve concurrent Instantiate calls; the finalized unit is read-only.
type Instantiator struct {
	unit   *linker.CompilationUnit
	solver solver.Solver
}

// New creates an instantiator over a finalized unit.
func New(unit *linker.CompilationUnit, s solver.Solver) *Instantiator {
	return &Instantiator{unit: unit, solver: s}
}

// Instantiate stamps the root type into a fresh design graph, applying the
// given top-level attribute overrides keyed by parameter path relative to
// the root. The same type and overrides always produce a structurally
// isomorphic design.
func (it *Instantiator) Instantiate(ctx context.Context, root *typegraph.TypeNode, overrides map[string]cty.Value) (*Design, error) {
	if !it.unit.Finalized() {
		return nil, fmt.Errorf("instance: compilation unit is not finalized")
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("instance: stamping design", "root", root.QName())

	d := &Design{
		Store:  cgraph.NewStore(),
		Diags:  diag.NewCollector(),
		byPath: make(map[string]*Instance),
	}

	var asserts []solver.Assertion
	d.Root = it.stamp(ctx, d, root, nil, root.Name, &asserts)

	for path, v := range overrides {
		in, ok := d.Lookup(d.Root.Path + "." + path)
		if !ok || in.Role != typegraph.FieldParam {
			return nil, fmt.Errorf("instance: override %q does not name a parameter", path)
		}
		in.Value = v
		in.Expr = nil
	}

	if err := it.evaluateParams(ctx, d); err != nil {
		return nil, err
	}
	it.groupNets(d)

	if len(asserts) > 0 {
		results, err := it.solver.Check(ctx, asserts)
		if err != nil {
			return nil, err
		}
		d.Asserts = results
		for _, r := range results {
			if r.Err != nil {
				d.Diags.Add(diag.New(diag.AssertionUnsatisfiable, r.Assertion.Span,
					"assertion could not be evaluated: %v", r.Err))
			} else if !r.Satisfied {
				d.Diags.Add(diag.New(diag.AssertionUnsatisfiable, r.Assertion.Span,
					"assertion does not hold"))
			}
		}
	}

	logger.Debug("instance: design stamped",
		"root", root.Name, "instances", d.InstanceCount(),
		"connections", d.ConnectionCount(), "nets", len(d.Nets))
	return d, nil
}

// stamp recursively materializes one type at the given path. Connection
// statements of the subtree become edges immediately after the subtree's
// fields exist.
func (it *Instantiator) stamp(ctx context.Context, d *Design, t *typegraph.TypeNode, parent *Instance, path string, asserts *[]solver.Assertion) *Instance {
	in := &Instance{
		Path: path,
		Name: path,
		Role: typegraph.FieldSub,
		Type: t,
		Span: t.Span,
	}
	in.Node = d.Store.CreateNode(cgraph.KindInstance, t.Span, map[string]any{"path": path})
	if parent != nil {
		in.parent = parent
	}
	d.byPath[path] = in

	for _, f := range t.Fields() {
		if f.IsArray() && f.Role == typegraph.FieldSub {
			for i := 0; i < f.Count; i++ {
				key := childKey(f.Name, i)
				it.stampField(ctx, d, in, f, f.ElemType(i), key, asserts)
			}
			continue
		}
		it.stampField(ctx, d, in, f, f.Type, childKey(f.Name, -1), asserts)
	}

	// Field instances exist; connection statements can now resolve.
	for _, c := range t.Connects {
		it.connect(d, in, c)
	}
	for _, a := range t.Assigns {
		it.assign(d, in, a)
	}
	for _, a := range t.Asserts {
		*asserts = append(*asserts, solver.Assertion{
			Expr:  a.Expr,
			Span:  a.Span,
			Scope: &evalScope{at: in, solver: it.solver},
		})
	}
	return in
}

func (it *Instantiator) stampField(ctx context.Context, d *Design, owner *Instance, f *typegraph.FieldNode, ref *typegraph.TypeRef, key string, asserts *[]solver.Assertion) {
	path := owner.Path + "." + key
	switch f.Role {
	case typegraph.FieldSub:
		if ref == nil || !ref.Resolved() {
			d.Diags.Add(diag.New(diag.ImportNotFound, f.Span,
				"field %q has no resolved type", f.Name))
			return
		}
		child := it.stamp(ctx, d, ref.Target, owner, path, asserts)
		owner.addChild(key, child)
		// Composition in the design graph mirrors ownership.
		if err := d.Store.CreateEdge(cgraph.Composition, owner.Node, child.Node); err != nil {
			panic(fmt.Sprintf("instance: composition edge: %v", err))
		}
	default:
		child := &Instance{
			Path: path,
			Name: key,
			Role: f.Role,
			Span: f.Span,
			Expr: f.Value,
		}
		child.Value = cty.NilVal
		child.Node = d.Store.CreateNode(cgraph.KindInstance, f.Span, map[string]any{"path": path})
		owner.addChild(key, child)
		d.byPath[path] = child
		if err := d.Store.CreateEdge(cgraph.Composition, owner.Node, child.Node); err != nil {
			panic(fmt.Sprintf("instance: composition edge: %v", err))
		}
	}
}

// connect stamps one connection statement into edges. Direct and bridge
// operators both produce connection edges; the bridge's direction has no
// structural effect on net membership.
func (it *Instantiator) connect(d *Design, at *Instance, c *cst.ConnectStmt) {
	lhs, err := resolveInstance(at, c.Lhs)
	if err != nil {
		d.Diags.Add(diag.New(diag.ParseSyntax, c.Span, "%v", err))
		return
	}
	rhs, err := resolveInstance(at, c.Rhs)
	if err != nil {
		d.Diags.Add(diag.New(diag.ParseSyntax, c.Span, "%v", err))
		return
	}
	if !lhs.IsConnectable() || !rhs.IsConnectable() {
		d.Diags.Add(diag.New(diag.ParseSyntax, c.Span,
			"connection endpoints must be pins or signals"))
		return
	}
	from, to := lhs, rhs
	if c.Dir == cst.BridgeLeft {
		from, to = rhs, lhs
	}
	if err := d.Store.CreateEdge(cgraph.Connection, from.Node, to.Node); err != nil {
		panic(fmt.Sprintf("instance: connection edge: %v", err))
	}
	d.connections++
}

// assign applies a nested parameter assignment from a type body.
func (it *Instantiator) assign(d *Design, at *Instance, a *cst.ParamAssign) {
	target, err := resolveInstance(at, a.Target)
	if err != nil {
		d.Diags.Add(diag.New(diag.ParseSyntax, a.Span, "%v", err))
		return
	}
	if target.Role != typegraph.FieldParam {
		d.Diags.Add(diag.New(diag.ParseSyntax, a.Span,
			"%q is not a parameter", a.Target))
		return
	}
	target.Expr = a.Value
	target.Value = cty.NilVal
}

// evaluateParams solves every parameter expression in deterministic order.
func (it *Instantiator) evaluateParams(ctx context.Context, d *Design) error {
	var walk func(in *Instance) error
	walk = func(in *Instance) error {
		if in.Role == typegraph.FieldParam {
			if _, err := evalParam(ctx, it.solver, in); err != nil {
				d.Diags.Add(diag.New(diag.ParseSyntax, in.Span,
					"parameter %s: %v", in.Path, err))
			}
		}
		for _, c := range in.Children() {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(d.Root)
}

// resolveInstance walks a reference path from an instance's children.
func resolveInstance(at *Instance, ref *cst.Ref) (*Instance, error) {
	cur := at
	for _, seg := range ref.Segs {
		key := childKey(seg.Name, seg.Index)
		next, ok := cur.Child(key)
		if !ok {
			return nil, fmt.Errorf("no element %q under %s", key, cur.Path)
		}
		cur = next
	}
	return cur, nil
}
