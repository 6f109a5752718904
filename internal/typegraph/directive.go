package typegraph

import (
	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/source"
)

// DirectiveKind enumerates the pending structural operations.
type DirectiveKind int

const (
	DirInherit DirectiveKind = iota
	DirRetype
	DirForLoop
)

var directiveKindNames = [...]string{"inherit", "retype", "for"}

// String returns a short name for the kind.
func (k DirectiveKind) String() string {
	if int(k) < len(directiveKindNames) {
		return directiveKindNames[k]
	}
	return "unknown"
}

// Directive is a pending structural operation recorded during building and
// consumed exactly once by the deferred executor. After finalization no
// directive remains pending.
type Directive struct {
	Kind     DirectiveKind
	Owner    *TypeNode
	Consumed bool
	Node     cgraph.NodeID
	Span     source.Span

	// ParentRef is set for DirInherit.
	ParentRef *TypeRef

	// Target and NewType are set for DirRetype.
	Target  *cst.Ref
	NewType *TypeRef

	// LoopVar, Container and Body are set for DirForLoop. Body is kept
	// verbatim until expansion.
	LoopVar   string
	Container *cst.Ref
	Body      []cst.Stmt
}
