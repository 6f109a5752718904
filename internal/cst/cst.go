// Package cst defines the syntax-tree types handed over by the parser
// collaborator. The compiler core walks these shapes and never inspects raw
// source text itself.
package cst

import (
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/source"
)

// Parser is the external parsing collaborator. It is called once per file
// with the file's text and returns the syntax tree plus any user-facing
// diagnostics. A non-nil error means parsing could not proceed at all.
type Parser interface {
	Parse(path string, src []byte) (*File, []*diag.Diagnostic, error)
}

// File is the root of one parsed source file.
type File struct {
	Path    string
	Pragmas []*Pragma
	Imports []*Import
	Types   []*TypeDecl
	Span    source.Span
}

// Pragma is an opt-in experimental grammar feature line, e.g.
// #pragma experiment("BRIDGE_CONNECT").
type Pragma struct {
	Feature string
	Span    source.Span
}

// Import is a `from "path" import Name[, Name...]` statement.
type Import struct {
	Path  string
	Names []string
	Span  source.Span
}

// TypeKind distinguishes the three flavors of type declaration.
type TypeKind int

const (
	KindModule TypeKind = iota
	KindComponent
	KindInterface
)

// String returns the source keyword for the kind.
func (k TypeKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindComponent:
		return "component"
	case KindInterface:
		return "interface"
	}
	return "unknown"
}

// TypeDecl is a `module`/`component`/`interface` declaration. Parent is the
// optional `from ParentType` clause, unresolved at parse time because it may
// name a symbol from another file.
type TypeDecl struct {
	Kind   TypeKind
	Name   string
	Parent string
	Body   []Stmt
	Span   source.Span
}
