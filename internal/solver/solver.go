// Package solver is the numeric collaborator seam: it evaluates parameter
// expressions and assertion subgraphs extracted at instantiation time. The
// core blocks on its results only where assert outcomes or concrete values
// are required downstream.
package solver

import (
	"context"

	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/source"
	"github.com/zclconf/go-cty/cty"
)

// Scope resolves references inside an expression to concrete values.
// The instantiator provides one per design subtree.
type Scope interface {
	Resolve(ref *cst.Ref) (cty.Value, bool)
}

// Assertion is one extracted assert statement together with the scope it
// must be evaluated in. Span points at the original source.
type Assertion struct {
	Expr  cst.Expr
	Span  source.Span
	Scope Scope
}

// Result is the solver's verdict on one assertion.
type Result struct {
	Assertion Assertion
	Satisfied bool
	Err       error
}

// Solver is the collaborator interface.
type Solver interface {
	// Evaluate reduces an expression to a concrete value in the scope.
	Evaluate(ctx context.Context, expr cst.Expr, scope Scope) (cty.Value, error)
	// Check evaluates assertions and reports satisfiability per assertion.
	Check(ctx context.Context, asserts []Assertion) ([]Result, error)
}

// QuantityVal builds the cty object representing a physical quantity: a
// base-unit magnitude, an absolute tolerance, and the base unit name.
func QuantityVal(value, tol float64, unit string) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"value": cty.NumberFloatVal(value),
		"tol":   cty.NumberFloatVal(tol),
		"unit":  cty.StringVal(unit),
	})
}

// quantity is the internal arithmetic form of a toleranced value.
type quantity struct {
	value float64
	tol   float64
	unit  string
}

func (q quantity) min() float64 { return q.value - q.tol }
func (q quantity) max() float64 { return q.value + q.tol }

func (q quantity) val() cty.Value {
	return QuantityVal(q.value, q.tol, q.unit)
}

// asQuantity unpacks a quantity object; plain numbers become dimensionless
// exact quantities.
func asQuantity(v cty.Value) (quantity, bool) {
	if v.Type() == cty.Number {
		f, _ := v.AsBigFloat().Float64()
		return quantity{value: f}, true
	}
	if !v.Type().IsObjectType() || !v.Type().HasAttribute("value") {
		return quantity{}, false
	}
	var q quantity
	f, _ := v.GetAttr("value").AsBigFloat().Float64()
	q.value = f
	if v.Type().HasAttribute("tol") {
		t, _ := v.GetAttr("tol").AsBigFloat().Float64()
		q.tol = t
	}
	if v.Type().HasAttribute("unit") {
		q.unit = v.GetAttr("unit").AsString()
	}
	return q, true
}
