package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/source"
	"github.com/zclconf/go-cty/cty"
)

// mapScope resolves references by their rendered path.
type mapScope map[string]cty.Value

func (m mapScope) Resolve(ref *cst.Ref) (cty.Value, bool) {
	v, ok := m[ref.String()]
	return v, ok
}

func num(value float64, unit string, tolPct float64) *cst.NumberLit {
	return &cst.NumberLit{Value: value, Unit: unit, TolPct: tolPct}
}

func bin(op cst.BinaryOp, lhs, rhs cst.Expr) *cst.BinaryExpr {
	return &cst.BinaryExpr{Op: op, Lhs: lhs, Rhs: rhs}
}

func refExpr(name string) *cst.RefExpr {
	return &cst.RefExpr{Ref: &cst.Ref{Segs: []cst.RefSeg{cst.NewRefSeg(name)}}}
}

func evalQuantity(t *testing.T, expr cst.Expr, scope Scope) quantity {
	t.Helper()
	v, err := NewLocal().Evaluate(context.Background(), expr, scope)
	require.NoError(t, err)
	q, ok := asQuantity(v)
	require.True(t, ok)
	return q
}

func evalBool(t *testing.T, expr cst.Expr, scope Scope) bool {
	t.Helper()
	v, err := NewLocal().Evaluate(context.Background(), expr, scope)
	require.NoError(t, err)
	require.Equal(t, cty.Bool, v.Type())
	return v.True()
}

func TestEvaluate_UnitScaling(t *testing.T) {
	testCases := []struct {
		name     string
		lit      *cst.NumberLit
		value    float64
		tol      float64
		baseUnit string
	}{
		{"kilo-ohm", num(10, "kohm", 0), 10000, 0, "ohm"},
		{"milli-volt", num(250, "mV", 0), 0.25, 0, "V"},
		{"micro-farad", num(4.7, "uF", 0), 4.7e-6, 0, "F"},
		{"bare unit", num(5, "V", 0), 5, 0, "V"},
		{"dimensionless", num(3, "", 0), 3, 0, ""},
		{"tolerance", num(10, "kohm", 5), 10000, 500, "ohm"},
		{"unknown unit passes through", num(2, "furlong", 0), 2, 0, "furlong"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := evalQuantity(t, tc.lit, nil)
			assert.InDelta(t, tc.value, q.value, tc.value*1e-12)
			assert.InDelta(t, tc.tol, q.tol, 1e-9)
			assert.Equal(t, tc.baseUnit, q.unit)
		})
	}
}

func TestEvaluate_Arithmetic(t *testing.T) {
	t.Parallel()

	t.Run("addition sums tolerances", func(t *testing.T) {
		q := evalQuantity(t, bin(cst.OpAdd, num(1, "kohm", 10), num(500, "ohm", 0)), nil)
		assert.InDelta(t, 1500, q.value, 1e-9)
		assert.InDelta(t, 100, q.tol, 1e-9)
		assert.Equal(t, "ohm", q.unit)
	})

	t.Run("subtraction sums tolerances", func(t *testing.T) {
		q := evalQuantity(t, bin(cst.OpSub, num(5, "V", 0), num(1, "V", 10)), nil)
		assert.InDelta(t, 4, q.value, 1e-9)
		assert.InDelta(t, 0.1, q.tol, 1e-9)
	})

	t.Run("multiplication combines relative tolerances", func(t *testing.T) {
		q := evalQuantity(t, bin(cst.OpMul, num(10, "", 10), num(2, "", 5)), nil)
		assert.InDelta(t, 20, q.value, 1e-9)
		assert.InDelta(t, 3, q.tol, 1e-9)
	})

	t.Run("division by interval containing zero fails", func(t *testing.T) {
		_, err := NewLocal().Evaluate(context.Background(),
			bin(cst.OpDiv, num(10, "", 0), num(1, "", 200)), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interval containing zero")
	})

	t.Run("mismatched units rejected additively", func(t *testing.T) {
		_, err := NewLocal().Evaluate(context.Background(),
			bin(cst.OpAdd, num(1, "V", 0), num(1, "ohm", 0)), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatched units")
	})

	t.Run("multiplication permits mixed units", func(t *testing.T) {
		q := evalQuantity(t, bin(cst.OpMul, num(2, "V", 0), num(3, "A", 0)), nil)
		assert.InDelta(t, 6, q.value, 1e-9)
	})
}

func TestEvaluate_IntervalComparisons(t *testing.T) {
	testCases := []struct {
		name string
		expr cst.Expr
		want bool
	}{
		{"strictly below", bin(cst.OpLess, num(10, "kohm", 5), num(20, "kohm", 0)), true},
		{"overlap is not below", bin(cst.OpLess, num(10, "kohm", 5), num(10.2, "kohm", 0)), false},
		{"strictly above", bin(cst.OpGreater, num(20, "kohm", 0), num(10, "kohm", 5)), true},
		{"within containing interval", bin(cst.OpWithin, num(10, "kohm", 1), num(10, "kohm", 5)), true},
		{"not within narrower interval", bin(cst.OpWithin, num(10, "kohm", 5), num(10, "kohm", 1)), false},
		{"equal values and tolerances", bin(cst.OpEqual, num(1, "V", 5), num(1, "V", 5)), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evalBool(t, tc.expr, nil))
		})
	}
}

func TestEvaluate_References(t *testing.T) {
	t.Parallel()

	scope := mapScope{
		"r": QuantityVal(10000, 500, "ohm"),
		"n": cty.NumberFloatVal(3),
	}

	q := evalQuantity(t, bin(cst.OpMul, refExpr("r"), refExpr("n")), scope)
	assert.InDelta(t, 30000, q.value, 1e-9)
	assert.Equal(t, "ohm", q.unit)

	_, err := NewLocal().Evaluate(context.Background(), refExpr("ghost"), scope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved reference")
}

func TestCheck_PerAssertionResults(t *testing.T) {
	t.Parallel()

	asserts := []Assertion{
		{Expr: bin(cst.OpLess, num(1, "V", 0), num(2, "V", 0)), Span: source.NewSpan("a.ato", 1, 1, 2)},
		{Expr: bin(cst.OpLess, num(2, "V", 0), num(1, "V", 0)), Span: source.NewSpan("a.ato", 2, 1, 2)},
		{Expr: num(1, "V", 0), Span: source.NewSpan("a.ato", 3, 1, 2)},
		{Expr: refExpr("ghost"), Span: source.NewSpan("a.ato", 4, 1, 2)},
	}

	results, err := NewLocal().Check(context.Background(), asserts)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Satisfied)
	assert.NoError(t, results[0].Err)

	assert.False(t, results[1].Satisfied)
	assert.NoError(t, results[1].Err)

	assert.Error(t, results[2].Err, "a bare quantity is not an assertion")
	assert.Error(t, results[3].Err, "evaluation failures are per-assertion")
}

func TestCheck_HonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Check(ctx, []Assertion{{Expr: num(1, "", 0)}})
	assert.ErrorIs(t, err, context.Canceled)
}
