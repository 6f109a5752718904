package cgraph

import "github.com/vk/atograph/internal/source"

// NodeID identifies one node in a Store. IDs are dense and allocated in
// creation order, which makes iteration deterministic.
type NodeID int

// InvalidNode is the zero value returned when a lookup fails.
const InvalidNode NodeID = -1

// NodeKind classifies a node's role in the graph.
type NodeKind int

const (
	// KindDecl is a graph-shaped AST declaration produced by the visitor.
	KindDecl NodeKind = iota
	// KindStmt is a graph-shaped AST statement produced by the visitor.
	KindStmt
	// KindType is a type definition in the type graph.
	KindType
	// KindField is a field owned by a type definition.
	KindField
	// KindDirective is a pending structural operation attached to a type.
	KindDirective
	// KindInstance is a concrete element of a design graph.
	KindInstance
	// KindNet is a group of transitively connected pin/signal instances.
	KindNet
)

var nodeKindNames = [...]string{"decl", "stmt", "type", "field", "directive", "instance", "net"}

// String returns a short name for the kind.
func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// EdgeKind classifies a directed edge. Multiple edges of the same kind
// between the same endpoints are permitted; connection edges rely on that to
// form nets.
type EdgeKind int

const (
	// Composition is ownership of a field by a type.
	Composition EdgeKind = iota
	// TypeRef is a reference from a field or type to another type, possibly
	// still symbolic before linking.
	TypeRef
	// Connection is an electrical linkage between pin/signal instances.
	Connection
	// Directive attaches a pending operation to a type.
	Directive
)

var edgeKindNames = [...]string{"composition", "typeref", "connection", "directive"}

// String returns a short name for the kind.
func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return "unknown"
}

// Node is one vertex of the graph. Attrs carries kind-specific payload;
// Span is never zero for nodes created by the visitor.
type Node struct {
	ID    NodeID
	Kind  NodeKind
	Span  source.Span
	Attrs map[string]any
	// region is the file key the node belongs to, for whole-file retention.
	region string
}

// Region returns the file key the node was created under.
func (n *Node) Region() string { return n.region }
