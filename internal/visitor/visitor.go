// Package visitor converts the parser collaborator's syntax tree into a
// graph-shaped AST inside the graph store, attaching source-location
// metadata to every node it creates. It is a pure function of its input and
// never re-reads source text.
package visitor

import (
	"context"

	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/diag"
)

// Fragment is one file's graph-shaped AST: the root declaration node plus
// file-level metadata the builder needs.
type Fragment struct {
	Path    string
	Root    cgraph.NodeID
	Imports []*cst.Import
	// Pragmas is the set of enabled experimental grammar features.
	Pragmas map[string]bool
}

// Visit maps one parsed file into the store. An unrecognized syntax-tree
// shape yields a SyntaxMappingError; that is a compiler defect, impossible
// for input that passed grammar validation, and terminates the build.
func (v *Visitor) Visit(ctx context.Context, store *cgraph.Store, file *cst.File) (*Fragment, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("visitor: mapping file into graph", "file", file.Path)

	frag := &Fragment{
		Path:    file.Path,
		Imports: file.Imports,
		Pragmas: make(map[string]bool),
	}
	for _, p := range file.Pragmas {
		frag.Pragmas[p.Feature] = true
	}

	frag.Root = store.CreateNode(cgraph.KindDecl, file.Span, map[string]any{
		"shape": "file",
		"path":  file.Path,
	})

	for _, decl := range file.Types {
		declNode, err := v.visitTypeDecl(store, decl)
		if err != nil {
			return nil, err
		}
		if err := store.CreateEdge(cgraph.Composition, frag.Root, declNode); err != nil {
			return nil, err
		}
	}

	logger.Debug("visitor: file mapped", "file", file.Path, "types", len(file.Types))
	return frag, nil
}

// Visitor maps CST shapes to graph nodes.
type Visitor struct{}

// New creates a visitor.
func New() *Visitor {
	return &Visitor{}
}

func (v *Visitor) visitTypeDecl(store *cgraph.Store, decl *cst.TypeDecl) (cgraph.NodeID, error) {
	node := store.CreateNode(cgraph.KindDecl, decl.Span, map[string]any{
		"shape": "typedecl",
		"cst":   decl,
	})
	for _, stmt := range decl.Body {
		stmtNode, err := v.visitStmt(store, stmt)
		if err != nil {
			return cgraph.InvalidNode, err
		}
		if err := store.CreateEdge(cgraph.Composition, node, stmtNode); err != nil {
			return cgraph.InvalidNode, err
		}
	}
	return node, nil
}

func (v *Visitor) visitStmt(store *cgraph.Store, stmt cst.Stmt) (cgraph.NodeID, error) {
	var shape string
	switch s := stmt.(type) {
	case *cst.FieldDecl:
		shape = "field"
	case *cst.NewStmt:
		shape = "new"
	case *cst.ParamAssign:
		shape = "assign"
	case *cst.ConnectStmt:
		shape = "connect"
	case *cst.AssertStmt:
		shape = "assert"
	case *cst.RetypeStmt:
		shape = "retype"
	case *cst.ForStmt:
		node := store.CreateNode(cgraph.KindStmt, s.Span, map[string]any{
			"shape": "for",
			"cst":   stmt,
		})
		for _, inner := range s.Body {
			innerNode, err := v.visitStmt(store, inner)
			if err != nil {
				return cgraph.InvalidNode, err
			}
			if err := store.CreateEdge(cgraph.Composition, node, innerNode); err != nil {
				return cgraph.InvalidNode, err
			}
		}
		return node, nil
	default:
		return cgraph.InvalidNode, diag.New(diag.SyntaxMapping, stmt.StmtSpan(),
			"unrecognized syntax-tree statement shape %T", stmt)
	}

	node := store.CreateNode(cgraph.KindStmt, stmt.StmtSpan(), map[string]any{
		"shape": shape,
		"cst":   stmt,
	})
	return node, nil
}
