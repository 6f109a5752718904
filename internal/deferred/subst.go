package deferred

import (
	"github.com/vk/atograph/internal/cst"
)

// elemSeg builds the reference segment for one container element.
func elemSeg(container string, index int) cst.RefSeg {
	return cst.NewRefSegIndex(container, index)
}

// substStmt deep-copies a loop body statement with every reference whose
// head is the loop variable rebased onto the given container element. The
// clone behaves as if it had been written directly in source at the loop's
// position.
func substStmt(stmt cst.Stmt, loopVar string, elem cst.RefSeg) cst.Stmt {
	switch s := stmt.(type) {
	case *cst.FieldDecl:
		c := *s
		return &c
	case *cst.NewStmt:
		c := *s
		return &c
	case *cst.ParamAssign:
		return &cst.ParamAssign{
			Target: substRef(s.Target, loopVar, elem),
			Value:  substExpr(s.Value, loopVar, elem),
			Span:   s.Span,
		}
	case *cst.ConnectStmt:
		return &cst.ConnectStmt{
			Lhs:  substRef(s.Lhs, loopVar, elem),
			Rhs:  substRef(s.Rhs, loopVar, elem),
			Dir:  s.Dir,
			Span: s.Span,
		}
	case *cst.AssertStmt:
		return &cst.AssertStmt{Expr: substExpr(s.Expr, loopVar, elem), Span: s.Span}
	case *cst.RetypeStmt:
		return &cst.RetypeStmt{
			Target:  substRef(s.Target, loopVar, elem),
			NewType: s.NewType,
			Span:    s.Span,
		}
	case *cst.ForStmt:
		body := make([]cst.Stmt, len(s.Body))
		for i, inner := range s.Body {
			if s.Var == loopVar {
				// The inner loop variable shadows ours inside its body.
				body[i] = substStmt(inner, loopVar, cst.NewRefSeg(loopVar))
			} else {
				body[i] = substStmt(inner, loopVar, elem)
			}
		}
		return &cst.ForStmt{Var: s.Var, Container: substRef(s.Container, loopVar, elem), Body: body, Span: s.Span}
	}
	return stmt
}

// substRef rebases a reference onto the container element when its head is
// the loop variable; otherwise it returns a plain clone.
func substRef(r *cst.Ref, loopVar string, elem cst.RefSeg) *cst.Ref {
	if r == nil {
		return nil
	}
	c := r.Clone()
	if len(c.Segs) > 0 && c.Segs[0].Name == loopVar && !c.Segs[0].HasIndex() {
		c.Segs[0] = elem
	}
	return c
}

func substExpr(e cst.Expr, loopVar string, elem cst.RefSeg) cst.Expr {
	switch x := e.(type) {
	case *cst.RefExpr:
		return &cst.RefExpr{Ref: substRef(x.Ref, loopVar, elem), Span: x.Span}
	case *cst.BinaryExpr:
		return &cst.BinaryExpr{
			Op:   x.Op,
			Lhs:  substExpr(x.Lhs, loopVar, elem),
			Rhs:  substExpr(x.Rhs, loopVar, elem),
			Span: x.Span,
		}
	}
	return e
}
