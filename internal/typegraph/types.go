// Package typegraph defines the compiled type system: type definitions,
// their fields, and the pending directives resolved later by the deferred
// executor. The per-file Builder lives here too.
package typegraph

import (
	"fmt"

	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/source"
)

// TypeRef is a reference to a type, symbolic until the linker resolves it.
// Imported indicates the name came in through the file's import table.
type TypeRef struct {
	Name     string
	Imported bool
	Target   *TypeNode
	Span     source.Span
}

// Resolved reports whether the reference points at a concrete type.
func (r *TypeRef) Resolved() bool {
	return r != nil && r.Target != nil
}

// String returns the reference name, qualified when resolved.
func (r *TypeRef) String() string {
	if r == nil {
		return "<none>"
	}
	if r.Target != nil {
		return r.Target.QName()
	}
	return r.Name
}

// FieldRole classifies what a field declares.
type FieldRole int

const (
	FieldPin FieldRole = iota
	FieldSignal
	FieldParam
	FieldSub
)

var fieldRoleNames = [...]string{"pin", "signal", "param", "sub"}

// String returns a short name for the role.
func (r FieldRole) String() string {
	if int(r) < len(fieldRoleNames) {
		return fieldRoleNames[r]
	}
	return "unknown"
}

// FieldNode is one declared member of a type: a pin, signal, parameter, or
// submodule instance-to-be. A field is owned by exactly one TypeNode.
type FieldNode struct {
	Name string
	Role FieldRole
	// Type is the declared type reference of a submodule field; nil for
	// pins, signals and parameters.
	Type *TypeRef
	// Count is the fixed array cardinality; zero means scalar.
	Count int
	// ElemTypes holds per-element type overrides for array fields whose
	// elements were retyped individually; nil entries fall back to Type.
	ElemTypes []*TypeRef
	// Value is the parameter initializer expression, carried symbolically.
	Value cst.Expr
	Owner *TypeNode
	Node  cgraph.NodeID
	Span  source.Span
}

// IsArray reports whether the field has array cardinality.
func (f *FieldNode) IsArray() bool { return f.Count > 0 }

// ElemType returns the effective type of one array element, honoring
// per-element retype overrides.
func (f *FieldNode) ElemType(i int) *TypeRef {
	if i >= 0 && i < len(f.ElemTypes) && f.ElemTypes[i] != nil {
		return f.ElemTypes[i]
	}
	return f.Type
}

// SetElemType records a per-element type override on an array field.
func (f *FieldNode) SetElemType(i int, ref *TypeRef) {
	if f.ElemTypes == nil {
		f.ElemTypes = make([]*TypeRef, f.Count)
	}
	f.ElemTypes[i] = ref
}

// clone copies the field for copy-down into another owner. The graph node id
// is reset; the adopting type creates its own composition.
func (f *FieldNode) clone() *FieldNode {
	c := *f
	c.Owner = nil
	c.Node = cgraph.InvalidNode
	if f.Type != nil {
		tr := *f.Type
		c.Type = &tr
	}
	return &c
}

// TypeNode is one module/component/interface definition.
type TypeNode struct {
	Name string
	File string
	Kind cst.TypeKind
	// Parent is the optional `from Parent` reference, consumed by the
	// inheritance phase of the deferred executor.
	Parent *TypeRef
	// fields keeps declaration order; the index maps name to position.
	fields     []*FieldNode
	fieldIndex map[string]int
	Directives []*Directive
	// Connects, Assigns and Asserts are instantiation-time payload carried
	// verbatim from the source body.
	Connects []*cst.ConnectStmt
	Assigns  []*cst.ParamAssign
	Asserts  []*cst.AssertStmt
	Node     cgraph.NodeID
	Span     source.Span
}

// NewTypeNode creates an empty type definition.
func NewTypeNode(name, file string, kind cst.TypeKind, span source.Span) *TypeNode {
	return &TypeNode{
		Name:       name,
		File:       file,
		Kind:       kind,
		fieldIndex: make(map[string]int),
		Span:       span,
	}
}

// QName returns the file-qualified name used in diagnostics and logs.
func (t *TypeNode) QName() string {
	return fmt.Sprintf("%s:%s", t.File, t.Name)
}

// Field returns the named field, if declared.
func (t *TypeNode) Field(name string) (*FieldNode, bool) {
	i, ok := t.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return t.fields[i], true
}

// Fields returns the fields in declaration order. The slice is shared;
// callers must not mutate it.
func (t *TypeNode) Fields() []*FieldNode {
	return t.fields
}

// AddField appends a field, taking ownership. It fails when the name is
// already declared on this type.
func (t *TypeNode) AddField(f *FieldNode) error {
	if _, exists := t.fieldIndex[f.Name]; exists {
		return fmt.Errorf("field %q already declared on %s", f.Name, t.QName())
	}
	f.Owner = t
	t.fieldIndex[f.Name] = len(t.fields)
	t.fields = append(t.fields, f)
	return nil
}

// ReplaceField swaps the field at the same name and position, preserving
// declaration order. Used by retype resolution.
func (t *TypeNode) ReplaceField(name string, f *FieldNode) error {
	i, ok := t.fieldIndex[name]
	if !ok {
		return fmt.Errorf("no field %q on %s", name, t.QName())
	}
	f.Name = name
	f.Owner = t
	t.fields[i] = f
	return nil
}

// AdoptInherited copies every parent field the child does not declare under
// the same name, placing inherited fields before the child's own so bases
// materialize first. Child-declared fields win; this is an override, not a
// merge of substructure. Connection, assignment and assertion payload is
// inherited the same way. Returns the adopted field clones so the caller can
// mirror them into the graph store.
func (t *TypeNode) AdoptInherited(parent *TypeNode) []*FieldNode {
	var adopted []*FieldNode
	for _, pf := range parent.fields {
		if _, declared := t.fieldIndex[pf.Name]; declared {
			continue
		}
		adopted = append(adopted, pf.clone())
	}
	if len(adopted) > 0 {
		merged := make([]*FieldNode, 0, len(adopted)+len(t.fields))
		merged = append(merged, adopted...)
		merged = append(merged, t.fields...)
		t.fields = merged
		t.fieldIndex = make(map[string]int, len(merged))
		for i, f := range merged {
			f.Owner = t
			t.fieldIndex[f.Name] = i
		}
	}

	t.Connects = append(append([]*cst.ConnectStmt{}, parent.Connects...), t.Connects...)
	t.Assigns = append(append([]*cst.ParamAssign{}, parent.Assigns...), t.Assigns...)
	t.Asserts = append(append([]*cst.AssertStmt{}, parent.Asserts...), t.Asserts...)
	return adopted
}

// PendingDirectives returns the directives not yet consumed.
func (t *TypeNode) PendingDirectives() []*Directive {
	var out []*Directive
	for _, d := range t.Directives {
		if !d.Consumed {
			out = append(out, d)
		}
	}
	return out
}
