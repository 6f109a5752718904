package cst

import "github.com/vk/atograph/internal/source"

// Stmt is one statement inside a type declaration body.
type Stmt interface {
	StmtSpan() source.Span
	stmtNode()
}

// FieldRole distinguishes pin fields from signal fields.
type FieldRole int

const (
	RolePin FieldRole = iota
	RoleSignal
)

// String returns the source keyword for the role.
func (r FieldRole) String() string {
	if r == RoleSignal {
		return "signal"
	}
	return "pin"
}

// FieldDecl is a `pin name` or `signal name` declaration.
type FieldDecl struct {
	Role FieldRole
	Name string
	Span source.Span
}

// NewStmt is a `name = new Type` or `name = new Type[n]` submodule
// instantiation. Count is zero for a scalar field.
type NewStmt struct {
	Name     string
	TypeName string
	Count    int
	Span     source.Span
}

// ParamAssign is a `path = expr` parameter assignment.
type ParamAssign struct {
	Target *Ref
	Value  Expr
	Span   source.Span
}

// ConnectDir distinguishes the connection operators.
type ConnectDir int

const (
	// ConnectDirect is the symmetric `~` operator.
	ConnectDirect ConnectDir = iota
	// BridgeRight is the `~>` operator: signal flows left to right through
	// the bridging element.
	BridgeRight
	// BridgeLeft is the `<~` operator.
	BridgeLeft
)

// ConnectStmt is an electrical connection between two pin/signal references.
type ConnectStmt struct {
	Lhs  *Ref
	Rhs  *Ref
	Dir  ConnectDir
	Span source.Span
}

// AssertStmt is an `assert expr` constraint handed to the solver at
// instantiation time.
type AssertStmt struct {
	Expr Expr
	Span source.Span
}

// ForStmt is a compile-time `for var in container:` loop. The body is kept
// verbatim; expansion happens only after the container's type and
// cardinality are fully resolved.
type ForStmt struct {
	Var       string
	Container *Ref
	Body      []Stmt
	Span      source.Span
}

// RetypeStmt is a `target -> NewType` type substitution.
type RetypeStmt struct {
	Target  *Ref
	NewType string
	Span    source.Span
}

func (s *FieldDecl) StmtSpan() source.Span   { return s.Span }
func (s *NewStmt) StmtSpan() source.Span     { return s.Span }
func (s *ParamAssign) StmtSpan() source.Span { return s.Span }
func (s *ConnectStmt) StmtSpan() source.Span { return s.Span }
func (s *AssertStmt) StmtSpan() source.Span  { return s.Span }
func (s *ForStmt) StmtSpan() source.Span     { return s.Span }
func (s *RetypeStmt) StmtSpan() source.Span  { return s.Span }

func (*FieldDecl) stmtNode()   {}
func (*NewStmt) stmtNode()     {}
func (*ParamAssign) stmtNode() {}
func (*ConnectStmt) stmtNode() {}
func (*AssertStmt) stmtNode()  {}
func (*ForStmt) stmtNode()     {}
func (*RetypeStmt) stmtNode()  {}
