// Package diag defines the compiler's error taxonomy and the per-file
// diagnostic collection used to report every problem from one edit instead
// of aborting on the first.
package diag

import (
	"errors"
	"fmt"

	"github.com/vk/atograph/internal/source"
)

// Kind classifies a diagnostic. User-facing kinds are collected per file;
// internal kinds terminate the build.
type Kind int

const (
	// SyntaxMapping marks an unrecognized syntax-tree shape. It indicates a
	// compiler defect, never a user mistake, and is never suppressed.
	SyntaxMapping Kind = iota
	ImportNotFound
	CircularImport
	DuplicateDefinition
	InheritanceCycle
	RetypeIncompatible
	ForLoopContainer
	AssertionUnsatisfiable
	ResourceExhausted
	// ParseSyntax is reported by the parser collaborator for text the
	// grammar rejects. User-facing, collected like other file-local errors.
	ParseSyntax
)

var kindNames = map[Kind]string{
	SyntaxMapping:          "SyntaxMappingError",
	ImportNotFound:         "ImportNotFoundError",
	CircularImport:         "CircularImportError",
	DuplicateDefinition:    "DuplicateDefinitionError",
	InheritanceCycle:       "InheritanceCycleError",
	RetypeIncompatible:     "RetypeIncompatibleError",
	ForLoopContainer:       "ForLoopContainerError",
	AssertionUnsatisfiable: "AssertionUnsatisfiable",
	ResourceExhausted:      "ResourceExhaustedError",
	ParseSyntax:            "SyntaxError",
}

// String returns the canonical name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Internal reports whether the kind indicates a compiler defect rather than
// a user error.
func (k Kind) Internal() bool {
	return k == SyntaxMapping
}

// Diagnostic is one reported problem. It implements error and always carries
// the file path and span of the offending construct.
type Diagnostic struct {
	Kind Kind
	Span source.Span
	Msg  string
	// Cause, when set, is the underlying error the diagnostic wraps.
	Cause error
}

// New builds a diagnostic at the given span.
func New(kind Kind, span source.Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Span, d.Kind, d.Msg)
}

// Unwrap exposes the wrapped cause, if any.
func (d *Diagnostic) Unwrap() error {
	return d.Cause
}

// Is matches a diagnostic against a kind sentinel, so callers can write
// errors.Is(err, diag.KindError(diag.CircularImport)).
func (d *Diagnostic) Is(target error) bool {
	if s, ok := target.(kindSentinel); ok {
		return d.Kind == s.kind
	}
	return false
}

type kindSentinel struct{ kind Kind }

func (s kindSentinel) Error() string { return s.kind.String() }

// KindError returns a sentinel error matching every diagnostic of the given
// kind under errors.Is.
func KindError(kind Kind) error {
	return kindSentinel{kind: kind}
}

// AsDiagnostic extracts the first Diagnostic in err's chain, if any.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
