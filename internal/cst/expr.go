package cst

import "github.com/vk/atograph/internal/source"

// Expr is a parameter or assertion expression. Expressions are carried
// symbolically through the type graph and only evaluated by the solver
// collaborator at instantiation time.
type Expr interface {
	ExprSpan() source.Span
	exprNode()
}

// NumberLit is a numeric literal with an optional unit suffix and an
// optional `+/- n%` tolerance, e.g. `10kohm +/- 5%`.
type NumberLit struct {
	Value  float64
	Unit   string
	TolPct float64
	Span   source.Span
}

// StringLit is a quoted string literal.
type StringLit struct {
	Value string
	Span  source.Span
}

// RefExpr wraps a dotted reference used as an expression operand.
type RefExpr struct {
	Ref  *Ref
	Span source.Span
}

// BinaryOp enumerates the operators the grammar admits in expressions.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpEqual
	// OpWithin tests membership of a value in a toleranced interval.
	OpWithin
)

var opNames = [...]string{"+", "-", "*", "/", "<", "<=", ">", ">=", "==", "within"}

// String returns the source spelling of the operator.
func (op BinaryOp) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "?"
}

// BinaryExpr applies a binary operator to two operands.
type BinaryExpr struct {
	Op   BinaryOp
	Lhs  Expr
	Rhs  Expr
	Span source.Span
}

func (e *NumberLit) ExprSpan() source.Span  { return e.Span }
func (e *StringLit) ExprSpan() source.Span  { return e.Span }
func (e *RefExpr) ExprSpan() source.Span    { return e.Span }
func (e *BinaryExpr) ExprSpan() source.Span { return e.Span }

func (*NumberLit) exprNode()  {}
func (*StringLit) exprNode()  {}
func (*RefExpr) exprNode()    {}
func (*BinaryExpr) exprNode() {}
