package cst

import (
	"fmt"
	"strings"

	"github.com/vk/atograph/internal/source"
)

// RefSeg is one component of a dotted reference path, e.g. `name[index]`.
// Index is -1 when no index is present.
type RefSeg struct {
	Name  string
	Index int
}

// NewRefSeg creates a segment without an index.
func NewRefSeg(name string) RefSeg {
	return RefSeg{Name: name, Index: -1}
}

// NewRefSegIndex creates a segment with an explicit index.
func NewRefSegIndex(name string, index int) RefSeg {
	return RefSeg{Name: name, Index: index}
}

// HasIndex reports whether the segment carries an explicit index.
func (s RefSeg) HasIndex() bool { return s.Index != -1 }

// Ref is a dotted path reference into the surrounding scope, e.g.
// `bank[2].vcc`.
type Ref struct {
	Segs []RefSeg
	Span source.Span
}

// String serializes the reference into its canonical dotted form.
func (r *Ref) String() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for i, seg := range r.Segs {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(seg.Name)
		if seg.HasIndex() {
			fmt.Fprintf(&sb, "[%d]", seg.Index)
		}
	}
	return sb.String()
}

// Head returns the first segment of the path.
func (r *Ref) Head() RefSeg {
	return r.Segs[0]
}

// Clone returns a deep copy of the reference.
func (r *Ref) Clone() *Ref {
	if r == nil {
		return nil
	}
	segs := make([]RefSeg, len(r.Segs))
	copy(segs, r.Segs)
	return &Ref{Segs: segs, Span: r.Span}
}
