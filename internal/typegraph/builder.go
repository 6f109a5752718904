package typegraph

import (
	"context"
	"fmt"

	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/source"
	"github.com/vk/atograph/internal/visitor"
)

// FileTypes is one file's preliminary type graph: its type definitions,
// pending directives and import table. Cross-file references stay symbolic;
// resolving them is entirely the linker's responsibility.
type FileTypes struct {
	Path    string
	Types   []*TypeNode
	ByName  map[string]*TypeNode
	Imports *ImportTable
	Pragmas map[string]bool
	Root    cgraph.NodeID

	// importNodes holds the placeholder graph node per imported name that
	// symbolic TypeRef edges point at until the linker retargets them.
	importNodes map[string]cgraph.NodeID
}

// ImportNode returns the placeholder node for an imported name.
func (ft *FileTypes) ImportNode(name string) (cgraph.NodeID, bool) {
	id, ok := ft.importNodes[name]
	return id, ok
}

// Builder turns one file's graph fragment into a preliminary type graph.
// It never blocks on another file.
type Builder struct {
	store *cgraph.Store
}

// NewBuilder creates a builder writing into the given store.
func NewBuilder(store *cgraph.Store) *Builder {
	return &Builder{store: store}
}

// Build walks the fragment and produces the file's types, fields, pending
// directives and import table. User-facing problems are collected; only
// internal defects return an error. The file's store region is frozen on
// success.
func (b *Builder) Build(ctx context.Context, frag *visitor.Fragment, sink *diag.Collector) (*FileTypes, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("builder: building file types", "file", frag.Path)

	ft := &FileTypes{
		Path:        frag.Path,
		ByName:      make(map[string]*TypeNode),
		Imports:     NewImportTable(),
		Pragmas:     frag.Pragmas,
		Root:        frag.Root,
		importNodes: make(map[string]cgraph.NodeID),
	}

	b.buildImports(frag, ft)

	// First pass registers every declaration so local references resolve
	// regardless of declaration order.
	declNodes := b.store.Neighbors(frag.Root, cgraph.Composition)
	var decls []*cst.TypeDecl
	for _, id := range declNodes {
		node := b.store.Get(id)
		decl, ok := node.Attrs["cst"].(*cst.TypeDecl)
		if !ok {
			return nil, diag.New(diag.SyntaxMapping, node.Span,
				"declaration node without syntax payload")
		}
		if _, dup := ft.ByName[decl.Name]; dup {
			sink.Add(diag.New(diag.DuplicateDefinition, decl.Span,
				"%s %q is already defined in this file", decl.Kind, decl.Name))
			decls = append(decls, nil)
			continue
		}
		t := NewTypeNode(decl.Name, frag.Path, decl.Kind, decl.Span)
		t.Node = b.store.CreateNode(cgraph.KindType, decl.Span, map[string]any{"type": t})
		ft.ByName[decl.Name] = t
		ft.Types = append(ft.Types, t)
		decls = append(decls, decl)
	}

	// Second pass populates fields and directives.
	for i, id := range declNodes {
		if decls[i] == nil {
			continue
		}
		t := ft.ByName[decls[i].Name]
		if err := b.buildType(t, decls[i], id, ft, sink); err != nil {
			return nil, err
		}
	}

	b.store.FreezeRegion(frag.Path)
	logger.Debug("builder: file types built", "file", frag.Path, "types", len(ft.Types))
	return ft, nil
}

func (b *Builder) buildImports(frag *visitor.Fragment, ft *FileTypes) {
	for _, imp := range frag.Imports {
		for _, name := range imp.Names {
			ft.Imports.Add(name, &ImportEntry{Path: imp.Path, Symbol: name, Span: imp.Span})
			ft.importNodes[name] = b.store.CreateNode(cgraph.KindDecl, imp.Span, map[string]any{
				"shape":  "import",
				"symbol": name,
			})
		}
	}
}

func (b *Builder) buildType(t *TypeNode, decl *cst.TypeDecl, declNode cgraph.NodeID, ft *FileTypes, sink *diag.Collector) error {
	if decl.Parent != "" {
		d := &Directive{
			Kind:      DirInherit,
			Owner:     t,
			ParentRef: b.makeTypeRef(decl.Parent, decl.Span, ft),
			Span:      decl.Span,
		}
		b.attachDirective(t, d)
	}

	for _, stmtNode := range b.store.Neighbors(declNode, cgraph.Composition) {
		node := b.store.Get(stmtNode)
		stmt, ok := node.Attrs["cst"].(cst.Stmt)
		if !ok {
			return diag.New(diag.SyntaxMapping, node.Span,
				"statement node without syntax payload")
		}
		if err := b.BuildStmt(t, stmt, ft, sink); err != nil {
			return err
		}
	}
	return nil
}

// BuildStmt applies one body statement to a type. It is exported because
// for-loop expansion feeds cloned statements back through the same rules.
func (b *Builder) BuildStmt(t *TypeNode, stmt cst.Stmt, ft *FileTypes, sink *diag.Collector) error {
	switch s := stmt.(type) {
	case *cst.FieldDecl:
		role := FieldPin
		if s.Role == cst.RoleSignal {
			role = FieldSignal
		}
		b.addField(t, &FieldNode{Name: s.Name, Role: role, Span: s.Span}, ft, sink)

	case *cst.NewStmt:
		f := &FieldNode{
			Name:  s.Name,
			Role:  FieldSub,
			Type:  b.makeTypeRef(s.TypeName, s.Span, ft),
			Count: s.Count,
			Span:  s.Span,
		}
		b.addField(t, f, ft, sink)

	case *cst.ParamAssign:
		if len(s.Target.Segs) == 1 && !s.Target.Segs[0].HasIndex() {
			name := s.Target.Segs[0].Name
			if existing, ok := t.Field(name); ok {
				if existing.Role != FieldParam {
					sink.Add(diag.New(diag.DuplicateDefinition, s.Span,
						"cannot assign to %s field %q", existing.Role, name))
					return nil
				}
				existing.Value = s.Value
				return nil
			}
			b.addField(t, &FieldNode{Name: name, Role: FieldParam, Value: s.Value, Span: s.Span}, ft, sink)
			return nil
		}
		t.Assigns = append(t.Assigns, s)

	case *cst.ConnectStmt:
		if s.Dir != cst.ConnectDirect && !ft.Pragmas["BRIDGE_CONNECT"] {
			sink.Add(diag.New(diag.ParseSyntax, s.Span,
				"bridge connection operators require #pragma experiment(\"BRIDGE_CONNECT\")"))
			return nil
		}
		t.Connects = append(t.Connects, s)

	case *cst.AssertStmt:
		t.Asserts = append(t.Asserts, s)

	case *cst.RetypeStmt:
		d := &Directive{
			Kind:    DirRetype,
			Owner:   t,
			Target:  s.Target,
			NewType: b.makeTypeRef(s.NewType, s.Span, ft),
			Span:    s.Span,
		}
		b.attachDirective(t, d)

	case *cst.ForStmt:
		d := &Directive{
			Kind:      DirForLoop,
			Owner:     t,
			LoopVar:   s.Var,
			Container: s.Container,
			Body:      s.Body,
			Span:      s.Span,
		}
		b.attachDirective(t, d)

	default:
		return diag.New(diag.SyntaxMapping, stmt.StmtSpan(),
			"unrecognized statement shape %T", stmt)
	}
	return nil
}

func (b *Builder) addField(t *TypeNode, f *FieldNode, ft *FileTypes, sink *diag.Collector) {
	if err := t.AddField(f); err != nil {
		sink.Add(diag.New(diag.DuplicateDefinition, f.Span, "%v", err))
		return
	}
	b.RecordField(t, f, ft)
}

// RecordField mirrors a field already owned by t into the graph store:
// a field node, a composition edge from the owner, and a type-reference
// edge when the field's type is known. The deferred executor uses it for
// fields adopted during inheritance copy-down.
func (b *Builder) RecordField(t *TypeNode, f *FieldNode, ft *FileTypes) {
	f.Node = b.store.CreateNode(cgraph.KindField, f.Span, map[string]any{"field": f})
	if err := b.store.CreateEdge(cgraph.Composition, t.Node, f.Node); err != nil {
		panic(fmt.Sprintf("typegraph: composition edge: %v", err))
	}
	if f.Type == nil {
		return
	}
	if f.Type.Resolved() {
		if err := b.store.CreateEdge(cgraph.TypeRef, f.Node, f.Type.Target.Node); err != nil {
			panic(fmt.Sprintf("typegraph: typeref edge: %v", err))
		}
		return
	}
	if ft != nil {
		b.addTypeRefEdge(f.Node, f.Type, ft)
	}
}

func (b *Builder) attachDirective(t *TypeNode, d *Directive) {
	d.Node = b.store.CreateNode(cgraph.KindDirective, d.Span, map[string]any{"directive": d})
	t.Directives = append(t.Directives, d)
	if err := b.store.CreateEdge(cgraph.Directive, t.Node, d.Node); err != nil {
		panic(fmt.Sprintf("typegraph: directive edge: %v", err))
	}
}

// makeTypeRef resolves a name against the local file immediately; imported
// or unknown names stay symbolic for the linker.
func (b *Builder) makeTypeRef(name string, span source.Span, ft *FileTypes) *TypeRef {
	ref := &TypeRef{Name: name, Span: span}
	if local, ok := ft.ByName[name]; ok {
		ref.Target = local
		return ref
	}
	if _, ok := ft.Imports.Lookup(name); ok {
		ref.Imported = true
	}
	return ref
}

// addTypeRefEdge records the reference in the store: a direct edge when the
// target is local, otherwise a symbolic edge at the import placeholder.
func (b *Builder) addTypeRefEdge(from cgraph.NodeID, ref *TypeRef, ft *FileTypes) {
	var to cgraph.NodeID
	switch {
	case ref.Resolved():
		to = ref.Target.Node
	case ref.Imported:
		to = ft.importNodes[ref.Name]
	default:
		// Unknown name; the linker reports it against this span.
		return
	}
	if err := b.store.CreateEdge(cgraph.TypeRef, from, to); err != nil {
		panic(fmt.Sprintf("typegraph: typeref edge: %v", err))
	}
}
