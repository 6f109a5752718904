// Package deferred resolves all pending directives across a compilation
// unit in a fixed three-phase dependency order: inheritance, then retype,
// then for-loop expansion. Each phase's correctness depends on the previous
// phase having fully run. Re-running the executor over an already-finalized
// unit is a no-op.
package deferred

import (
	"context"
	"fmt"

	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/linker"
	"github.com/vk/atograph/internal/typegraph"
)

// RetypePolicy selects the compatibility rule applied when a field's type
// is substituted.
type RetypePolicy int

const (
	// RetypeAny permits substituting any type. This is the default; the
	// source language treats retype as a duck-typed substitution.
	RetypeAny RetypePolicy = iota
	// RetypeStructural requires the new type to declare every field the
	// original declared type has, under the same names.
	RetypeStructural
)

// Executor consumes pending directives and finalizes a compilation unit.
type Executor struct {
	policy RetypePolicy
}

// New creates an executor with the given retype compatibility policy.
func New(policy RetypePolicy) *Executor {
	return &Executor{policy: policy}
}

// Finalize runs the three phases over the whole unit. User-facing problems
// are collected into the unit's diagnostics; an inheritance cycle aborts
// finalization because no downstream phase can rely on a partial order.
// Cancellation is observed at phase boundaries.
func (e *Executor) Finalize(ctx context.Context, unit *linker.CompilationUnit) error {
	if unit.Finalized() {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	// The executor is the only stage that mutates committed fragments in
	// place; lift the freezes for the duration and restore them after.
	for _, path := range unit.FileOrder {
		unit.Store.ThawRegion(path)
	}
	defer func() {
		for _, path := range unit.FileOrder {
			unit.Store.FreezeRegion(path)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.resolveInheritance(ctx, unit); err != nil {
		return err
	}
	logger.Debug("deferred: inheritance phase complete")

	// Retype and expansion interleave until quiescent: an expanded loop
	// body may introduce fresh retype or nested loop directives.
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		retyped := e.resolveRetypes(ctx, unit)
		expanded := e.expandLoops(ctx, unit)
		if !retyped && !expanded {
			break
		}
	}
	logger.Debug("deferred: retype and expansion phases complete")

	// Idempotence invariant: nothing may remain pending.
	for _, t := range unit.AllTypes() {
		if pending := t.PendingDirectives(); len(pending) > 0 {
			return fmt.Errorf("deferred: %s still has %d pending directives after finalization",
				t.QName(), len(pending))
		}
	}
	unit.MarkFinalized()
	logger.Debug("deferred: unit finalized", "types", len(unit.AllTypes()))
	return nil
}

// resolveInheritance processes types in topological order over the
// parent-reference relation, bases before derivatives, copying parent
// fields down into each child.
func (e *Executor) resolveInheritance(ctx context.Context, unit *linker.CompilationUnit) error {
	const (
		colorWhite = iota
		colorGray
		colorBlack
	)
	colors := make(map[*typegraph.TypeNode]int)

	var visit func(t *typegraph.TypeNode) error
	visit = func(t *typegraph.TypeNode) error {
		switch colors[t] {
		case colorBlack:
			return nil
		case colorGray:
			d := diag.New(diag.InheritanceCycle, t.Span,
				"inheritance cycle involving %s", t.QName())
			unit.Diags.Add(d)
			return d
		}
		colors[t] = colorGray

		for _, d := range t.PendingDirectives() {
			if d.Kind != typegraph.DirInherit {
				continue
			}
			d.Consumed = true
			if !d.ParentRef.Resolved() {
				// The parent's file failed to resolve; the cascade was
				// already reported. Nothing to copy down.
				continue
			}
			parent := d.ParentRef.Target
			if err := visit(parent); err != nil {
				return err
			}
			t.Parent = d.ParentRef
			adopted := t.AdoptInherited(parent)
			e.mirrorAdopted(unit, t, adopted)
		}

		colors[t] = colorBlack
		return nil
	}

	for _, t := range unit.AllTypes() {
		if err := visit(t); err != nil {
			return err
		}
	}
	_ = ctx
	return nil
}

// mirrorAdopted records copy-down results in the graph store.
func (e *Executor) mirrorAdopted(unit *linker.CompilationUnit, t *typegraph.TypeNode, adopted []*typegraph.FieldNode) {
	b := typegraph.NewBuilder(unit.Store)
	for _, f := range adopted {
		// Adopted fields keep the parent's span for diagnostics but live in
		// the child's file region.
		f.Span.File = t.File
		b.RecordField(t, f, nil)
	}
}

// resolveRetypes consumes every pending retype directive. Returns whether
// any directive was processed.
func (e *Executor) resolveRetypes(ctx context.Context, unit *linker.CompilationUnit) bool {
	processed := false
	for _, t := range unit.AllTypes() {
		ft := unit.Files[t.File]
		for _, d := range t.PendingDirectives() {
			if d.Kind != typegraph.DirRetype {
				continue
			}
			d.Consumed = true
			processed = true
			e.applyRetype(unit, ft, t, d)
		}
	}
	_ = ctx
	return processed
}

func (e *Executor) applyRetype(unit *linker.CompilationUnit, ft *typegraph.FileTypes, t *typegraph.TypeNode, d *typegraph.Directive) {
	if !resolveSymbolic(unit, ft, d.NewType) {
		unit.Diags.Add(diag.New(diag.ImportNotFound, d.Span,
			"unknown type %q in retype", d.NewType.Name))
		return
	}

	if len(d.Target.Segs) != 1 {
		unit.Diags.Add(diag.New(diag.RetypeIncompatible, d.Span,
			"retype target must name a field of the enclosing type, found %q", d.Target))
		return
	}
	seg := d.Target.Segs[0]
	field, ok := t.Field(seg.Name)
	if !ok {
		unit.Diags.Add(diag.New(diag.RetypeIncompatible, d.Span,
			"no field %q on %s to retype", seg.Name, t.QName()))
		return
	}
	if field.Role != typegraph.FieldSub {
		unit.Diags.Add(diag.New(diag.RetypeIncompatible, d.Span,
			"cannot retype %s field %q", field.Role, seg.Name))
		return
	}

	orig := field.Type
	if seg.HasIndex() {
		if !field.IsArray() || seg.Index >= field.Count {
			unit.Diags.Add(diag.New(diag.RetypeIncompatible, d.Span,
				"index %d out of range for field %q", seg.Index, seg.Name))
			return
		}
		orig = field.ElemType(seg.Index)
	}
	if !e.compatible(orig, d.NewType) {
		unit.Diags.Add(diag.New(diag.RetypeIncompatible, d.Span,
			"%s is not a structural substitute for %s", d.NewType, orig))
		return
	}

	// The substitution preserves the field's name and position; only the
	// referenced type changes. The new type's inherited fields are already
	// materialized by phase 1, so instantiation sees the fresh copy-down.
	if seg.HasIndex() {
		field.SetElemType(seg.Index, d.NewType)
		if field.Node != cgraph.InvalidNode {
			_ = unit.Store.CreateEdge(cgraph.TypeRef, field.Node, d.NewType.Target.Node)
		}
		return
	}
	oldTarget := cgraph.InvalidNode
	if orig.Resolved() {
		oldTarget = orig.Target.Node
	}
	field.Type = d.NewType
	if field.Node != cgraph.InvalidNode && oldTarget != cgraph.InvalidNode {
		_ = unit.Store.RetargetEdges(field.Node, cgraph.TypeRef, oldTarget, d.NewType.Target.Node)
	}
}

// compatible applies the configured retype compatibility rule.
func (e *Executor) compatible(orig, repl *typegraph.TypeRef) bool {
	if e.policy == RetypeAny {
		return true
	}
	if orig == nil || !orig.Resolved() || !repl.Resolved() {
		return true
	}
	for _, f := range orig.Target.Fields() {
		rf, ok := repl.Target.Field(f.Name)
		if !ok || rf.Role != f.Role {
			return false
		}
	}
	return true
}

// expandLoops consumes every pending for-loop directive, cloning the body
// once per container element with the loop variable substituted. Clones run
// back through the builder, so directives they introduce are picked up by
// the next round. Returns whether any loop was expanded.
func (e *Executor) expandLoops(ctx context.Context, unit *linker.CompilationUnit) bool {
	b := typegraph.NewBuilder(unit.Store)
	expanded := false
	for _, t := range unit.AllTypes() {
		ft := unit.Files[t.File]
		for _, d := range t.PendingDirectives() {
			if d.Kind != typegraph.DirForLoop {
				continue
			}
			d.Consumed = true
			expanded = true
			e.expandLoop(ctx, unit, b, ft, t, d)
		}
	}
	return expanded
}

func (e *Executor) expandLoop(ctx context.Context, unit *linker.CompilationUnit, b *typegraph.Builder, ft *typegraph.FileTypes, t *typegraph.TypeNode, d *typegraph.Directive) {
	if len(d.Container.Segs) != 1 || d.Container.Segs[0].HasIndex() {
		unit.Diags.Add(diag.New(diag.ForLoopContainer, d.Span,
			"loop container must name an array field, found %q", d.Container))
		return
	}
	name := d.Container.Segs[0].Name
	field, ok := t.Field(name)
	if !ok {
		unit.Diags.Add(diag.New(diag.ForLoopContainer, d.Span,
			"no field %q on %s to iterate", name, t.QName()))
		return
	}
	if !field.IsArray() {
		unit.Diags.Add(diag.New(diag.ForLoopContainer, d.Span,
			"field %q is not array-valued", name))
		return
	}

	for i := 0; i < field.Count; i++ {
		elem := elemSeg(name, i)
		for _, stmt := range d.Body {
			clone := substStmt(stmt, d.LoopVar, elem)
			if err := b.BuildStmt(t, clone, ft, unit.Diags); err != nil {
				// Only internal shape errors reach here; they terminate the
				// build like every other invariant violation.
				panic(err)
			}
		}
	}
	ctxlog.FromContext(ctx).Debug("deferred: loop expanded",
		"type", t.QName(), "container", name, "count", field.Count)
}

// resolveSymbolic resolves a still-symbolic reference through the file's
// import table. References created during loop expansion arrive here after
// linking already finished.
func resolveSymbolic(unit *linker.CompilationUnit, ft *typegraph.FileTypes, ref *typegraph.TypeRef) bool {
	if ref.Resolved() {
		return true
	}
	entry, ok := ft.Imports.Lookup(ref.Name)
	if !ok || entry.Abs == "" {
		return false
	}
	targetFile, ok := unit.Files[entry.Abs]
	if !ok {
		return false
	}
	target, ok := targetFile.ByName[entry.Symbol]
	if !ok {
		return false
	}
	ref.Target = target
	return true
}
