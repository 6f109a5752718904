package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/instance"
)

// AssertDiag checks that the run collected at least one diagnostic of the
// given kind and returns the first match. It abstracts the collector layout,
// making tests more resilient to internal refactoring.
func AssertDiag(t *testing.T, result *Result, kind diag.Kind) *diag.Diagnostic {
	t.Helper()

	require.NotNil(t, result.Unit, "no compilation unit produced")
	for _, d := range result.Unit.Diags.All() {
		if d.Kind == kind {
			return d
		}
	}
	var design []*diag.Diagnostic
	if result.Design != nil {
		design = result.Design.Diags.All()
	}
	for _, d := range design {
		if d.Kind == kind {
			return d
		}
	}
	t.Fatalf("expected a %v diagnostic; unit=%v design=%v",
		kind, result.Unit.Diags.All(), design)
	return nil
}

// AssertNoDiags fails when the run collected any diagnostic.
func AssertNoDiags(t *testing.T, result *Result) {
	t.Helper()

	require.NoError(t, result.Err)
	require.NotNil(t, result.Unit)
	require.Empty(t, result.Unit.Diags.All())
	if result.Design != nil {
		require.Empty(t, result.Design.Diags.All())
	}
}

// AssertInstance checks that the design contains an instance at the given
// path and returns it.
func AssertInstance(t *testing.T, result *Result, path string) *instance.Instance {
	t.Helper()

	require.NotNil(t, result.Design, "no design produced")
	in, ok := result.Design.Lookup(path)
	require.True(t, ok, "expected an instance at %q", path)
	return in
}
