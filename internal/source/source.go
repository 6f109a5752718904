// Package source defines positions and spans used to attach source-location
// metadata to every node and edge the compiler produces.
package source

import "fmt"

// Position is a 1-based line/column location inside a source file.
type Position struct {
	Line   int
	Column int
}

// Span covers a contiguous region of one source file. End is inclusive of
// the last character of the region.
type Span struct {
	File  string
	Start Position
	End   Position
}

// NewSpan builds a span covering a single line region.
func NewSpan(file string, line, startCol, endCol int) Span {
	return Span{
		File:  file,
		Start: Position{Line: line, Column: startCol},
		End:   Position{Line: line, Column: endCol},
	}
}

// IsZero reports whether the span carries no location at all. The visitor
// treats a zero span on a produced node as an internal invariant violation.
func (s Span) IsZero() bool {
	return s.File == "" && s.Start.Line == 0
}

// String renders the canonical "file:line:col" form used in diagnostics.
func (s Span) String() string {
	if s.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Start.Line, s.Start.Column)
}
