package solver

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/atograph/internal/cst"
	"github.com/zclconf/go-cty/cty"
)

// Local is the built-in solver: exact interval arithmetic over toleranced
// quantities with SI prefix scaling. It is deterministic and side-effect
// free, which keeps instantiation reproducible.
type Local struct{}

// NewLocal creates the built-in solver.
func NewLocal() *Local {
	return &Local{}
}

// baseUnits are unit names accepted without an SI prefix.
var baseUnits = map[string]bool{
	"ohm": true, "V": true, "A": true, "F": true, "H": true,
	"Hz": true, "W": true, "s": true, "percent": true,
}

// siPrefixes maps an SI prefix to its multiplier.
var siPrefixes = map[string]float64{
	"T": 1e12, "G": 1e9, "M": 1e6, "k": 1e3,
	"m": 1e-3, "u": 1e-6, "n": 1e-9, "p": 1e-12,
}

// scaleUnit splits a unit suffix as written into a multiplier and base
// unit, e.g. "kohm" yields (1e3, "ohm"). Unknown units pass through with
// multiplier 1; the solver is permissive about vocabularies it has not
// seen.
func scaleUnit(unit string) (float64, string) {
	if unit == "" || baseUnits[unit] {
		return 1, unit
	}
	for prefix, mult := range siPrefixes {
		if strings.HasPrefix(unit, prefix) && baseUnits[unit[len(prefix):]] {
			return mult, unit[len(prefix):]
		}
	}
	return 1, unit
}

// evalVal is either a quantity or a comparison outcome.
type evalVal struct {
	q      quantity
	isBool bool
	b      bool
}

// Evaluate reduces an expression to a value in the given scope.
func (l *Local) Evaluate(ctx context.Context, expr cst.Expr, scope Scope) (cty.Value, error) {
	v, err := l.eval(expr, scope)
	if err != nil {
		return cty.NilVal, err
	}
	if v.isBool {
		return cty.BoolVal(v.b), nil
	}
	return v.q.val(), nil
}

// Check evaluates each assertion in its own scope. Evaluation failures are
// reported per assertion, not as a global error.
func (l *Local) Check(ctx context.Context, asserts []Assertion) ([]Result, error) {
	results := make([]Result, 0, len(asserts))
	for _, a := range asserts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := l.Evaluate(ctx, a.Expr, a.Scope)
		r := Result{Assertion: a}
		switch {
		case err != nil:
			r.Err = err
		case v.Type() != cty.Bool:
			r.Err = fmt.Errorf("assertion expression is not a comparison")
		default:
			r.Satisfied = v.True()
		}
		results = append(results, r)
	}
	return results, nil
}

// eval walks the expression tree. Comparisons yield booleans; everything
// else yields a quantity.
func (l *Local) eval(expr cst.Expr, scope Scope) (evalVal, error) {
	switch e := expr.(type) {
	case *cst.NumberLit:
		mult, base := scaleUnit(e.Unit)
		value := e.Value * mult
		return evalVal{q: quantity{value: value, tol: value * e.TolPct / 100, unit: base}}, nil

	case *cst.StringLit:
		return evalVal{}, fmt.Errorf("string literal %q cannot be used numerically", e.Value)

	case *cst.RefExpr:
		if scope == nil {
			return evalVal{}, fmt.Errorf("unresolved reference %q", e.Ref)
		}
		v, ok := scope.Resolve(e.Ref)
		if !ok {
			return evalVal{}, fmt.Errorf("unresolved reference %q", e.Ref)
		}
		q, ok := asQuantity(v)
		if !ok {
			return evalVal{}, fmt.Errorf("reference %q is not a numeric parameter", e.Ref)
		}
		return evalVal{q: q}, nil

	case *cst.BinaryExpr:
		lhs, err := l.eval(e.Lhs, scope)
		if err != nil {
			return evalVal{}, err
		}
		rhs, err := l.eval(e.Rhs, scope)
		if err != nil {
			return evalVal{}, err
		}
		if lhs.isBool || rhs.isBool {
			return evalVal{}, fmt.Errorf("comparison results cannot be combined with %s", e.Op)
		}
		return l.apply(e.Op, lhs.q, rhs.q)
	}
	return evalVal{}, fmt.Errorf("unsupported expression form %T", expr)
}

// apply implements the operators. Comparisons are conservative over the
// tolerance intervals: an assertion holds only when it holds for every
// value the intervals admit.
func (l *Local) apply(op cst.BinaryOp, a, b quantity) (evalVal, error) {
	if err := checkUnits(op, a, b); err != nil {
		return evalVal{}, err
	}
	boolVal := func(b bool) evalVal { return evalVal{isBool: true, b: b} }
	switch op {
	case cst.OpAdd:
		return evalVal{q: quantity{value: a.value + b.value, tol: a.tol + b.tol, unit: firstUnit(a, b)}}, nil
	case cst.OpSub:
		return evalVal{q: quantity{value: a.value - b.value, tol: a.tol + b.tol, unit: firstUnit(a, b)}}, nil
	case cst.OpMul:
		v := a.value * b.value
		return evalVal{q: quantity{value: v, tol: relTol(a, b) * abs(v), unit: firstUnit(a, b)}}, nil
	case cst.OpDiv:
		if b.min() <= 0 && b.max() >= 0 {
			return evalVal{}, fmt.Errorf("division by an interval containing zero")
		}
		v := a.value / b.value
		return evalVal{q: quantity{value: v, tol: relTol(a, b) * abs(v), unit: firstUnit(a, b)}}, nil
	case cst.OpLess:
		return boolVal(a.max() < b.min()), nil
	case cst.OpLessEq:
		return boolVal(a.max() <= b.min()), nil
	case cst.OpGreater:
		return boolVal(a.min() > b.max()), nil
	case cst.OpGreaterEq:
		return boolVal(a.min() >= b.max()), nil
	case cst.OpEqual:
		return boolVal(a.value == b.value && a.tol == b.tol), nil
	case cst.OpWithin:
		return boolVal(a.min() >= b.min() && a.max() <= b.max()), nil
	}
	return evalVal{}, fmt.Errorf("unsupported operator %s", op)
}

// checkUnits rejects additive or comparative mixing of distinct base units.
func checkUnits(op cst.BinaryOp, a, b quantity) error {
	switch op {
	case cst.OpMul, cst.OpDiv:
		return nil
	}
	if a.unit != "" && b.unit != "" && a.unit != b.unit {
		return fmt.Errorf("mismatched units %q and %q", a.unit, b.unit)
	}
	return nil
}

func firstUnit(a, b quantity) string {
	if a.unit != "" {
		return a.unit
	}
	return b.unit
}

func relTol(a, b quantity) float64 {
	var r float64
	if a.value != 0 {
		r += abs(a.tol / a.value)
	}
	if b.value != 0 {
		r += abs(b.tol / b.value)
	}
	return r
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

var _ Solver = (*Local)(nil)
