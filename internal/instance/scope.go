package instance

import (
	"context"
	"fmt"

	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/solver"
	"github.com/vk/atograph/internal/typegraph"
	"github.com/zclconf/go-cty/cty"
)

// evalScope resolves expression references against one instance subtree.
// Parameter references evaluate on demand, with a visiting flag breaking
// reference cycles.
type evalScope struct {
	at     *Instance
	solver solver.Solver
}

// Resolve implements solver.Scope.
func (s *evalScope) Resolve(ref *cst.Ref) (cty.Value, bool) {
	target, err := resolveInstance(s.at, ref)
	if err != nil {
		return cty.NilVal, false
	}
	if target.Role != typegraph.FieldParam {
		return cty.NilVal, false
	}
	v, err := evalParam(context.Background(), s.solver, target)
	if err != nil || v.IsNull() {
		return cty.NilVal, false
	}
	return v, true
}

// evalParam returns a parameter's solved value, evaluating and caching its
// expression on first use. A parameter without an expression stays unset.
func evalParam(ctx context.Context, s solver.Solver, in *Instance) (cty.Value, error) {
	if !in.Value.IsNull() {
		return in.Value, nil
	}
	if in.Expr == nil {
		return cty.NilVal, nil
	}
	if in.evaluating {
		return cty.NilVal, fmt.Errorf("parameter reference cycle through %s", in.Path)
	}
	in.evaluating = true
	defer func() { in.evaluating = false }()

	v, err := s.Evaluate(ctx, in.Expr, &evalScope{at: in.parent, solver: s})
	if err != nil {
		return cty.NilVal, err
	}
	in.Value = v
	return v, nil
}
