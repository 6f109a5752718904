package parser

import (
	"github.com/vk/atograph/internal/cst"
)

// parseExpr parses a full expression: a comparison over additive terms.
func (fp *fileParser) parseExpr(c *cursor, ln line) cst.Expr {
	lhs := fp.parseAdditive(c, ln)
	if lhs == nil {
		return nil
	}
	t := c.peek()
	var op cst.BinaryOp
	switch t.text {
	case "<":
		op = cst.OpLess
	case "<=":
		op = cst.OpLessEq
	case ">":
		op = cst.OpGreater
	case ">=":
		op = cst.OpGreaterEq
	case "==":
		op = cst.OpEqual
	case "within":
		op = cst.OpWithin
	default:
		return lhs
	}
	c.next()
	rhs := fp.parseAdditive(c, ln)
	if rhs == nil {
		return nil
	}
	return &cst.BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs, Span: fp.lineSpan(ln)}
}

func (fp *fileParser) parseAdditive(c *cursor, ln line) cst.Expr {
	lhs := fp.parseMultiplicative(c, ln)
	for lhs != nil {
		t := c.peek()
		var op cst.BinaryOp
		switch {
		case t.kind == tokPunct && t.text == "+":
			op = cst.OpAdd
		case t.kind == tokPunct && t.text == "-":
			op = cst.OpSub
		default:
			return lhs
		}
		c.next()
		rhs := fp.parseMultiplicative(c, ln)
		if rhs == nil {
			return nil
		}
		lhs = &cst.BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs, Span: fp.lineSpan(ln)}
	}
	return lhs
}

func (fp *fileParser) parseMultiplicative(c *cursor, ln line) cst.Expr {
	lhs := fp.parsePrimary(c, ln)
	for lhs != nil {
		t := c.peek()
		var op cst.BinaryOp
		switch {
		case t.kind == tokPunct && t.text == "*":
			op = cst.OpMul
		case t.kind == tokPunct && t.text == "/":
			op = cst.OpDiv
		default:
			return lhs
		}
		c.next()
		rhs := fp.parsePrimary(c, ln)
		if rhs == nil {
			return nil
		}
		lhs = &cst.BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs, Span: fp.lineSpan(ln)}
	}
	return lhs
}

func (fp *fileParser) parsePrimary(c *cursor, ln line) cst.Expr {
	t := c.peek()
	switch {
	case t.kind == tokNumber:
		c.next()
		lit := &cst.NumberLit{Value: t.num, Unit: t.unit, Span: fp.span(ln, t)}
		// Optional tolerance suffix: `+/- n%`.
		if c.acceptPunct("+/-") {
			tolTok, ok := c.expect(tokNumber, "tolerance value")
			if !ok {
				return nil
			}
			if !c.acceptPunct("%") {
				fp.errorf(fp.span(ln, c.peek()), "expected '%%' after tolerance value")
				return nil
			}
			lit.TolPct = tolTok.num
		}
		return lit
	case t.kind == tokString:
		c.next()
		return &cst.StringLit{Value: t.text, Span: fp.span(ln, t)}
	case t.kind == tokPunct && t.text == "(":
		c.next()
		inner := fp.parseExpr(c, ln)
		if inner == nil {
			return nil
		}
		if !c.acceptPunct(")") {
			fp.errorf(fp.span(ln, c.peek()), "expected ')'")
			return nil
		}
		return inner
	case t.kind == tokIdent:
		ref := fp.parseRef(c, ln)
		if ref == nil {
			return nil
		}
		return &cst.RefExpr{Ref: ref, Span: ref.Span}
	}
	fp.errorf(fp.span(ln, t), "expected expression, found %q", tokenDesc(t))
	return nil
}
