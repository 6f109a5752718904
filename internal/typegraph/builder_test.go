package typegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/parser"
	"github.com/vk/atograph/internal/visitor"
)

func buildSource(t *testing.T, src string) (*FileTypes, *cgraph.Store, *diag.Collector) {
	t.Helper()

	file, parseDiags, err := parser.New().Parse("test.ato", []byte(src))
	require.NoError(t, err)
	require.Empty(t, parseDiags)

	store := cgraph.NewStore()
	frag, err := visitor.New().Visit(context.Background(), store, file)
	require.NoError(t, err)

	sink := diag.NewCollector()
	ft, err := NewBuilder(store).Build(context.Background(), frag, sink)
	require.NoError(t, err)
	return ft, store, sink
}

func TestBuild_FieldRoles(t *testing.T) {
	t.Parallel()

	src := "module M:\n" +
		"    pin vcc\n" +
		"    signal ready\n" +
		"    r = new Resistor\n" +
		"    bank = new Cell[4]\n" +
		"    value = 10ohm\n" +
		"\n" +
		"component Resistor:\n" +
		"    pin a\n" +
		"\n" +
		"component Cell:\n" +
		"    pin p\n"

	ft, _, sink := buildSource(t, src)
	require.True(t, sink.Empty(), "diags: %v", sink.All())

	m, ok := ft.ByName["M"]
	require.True(t, ok)
	fields := m.Fields()
	require.Len(t, fields, 5)

	assert.Equal(t, FieldPin, fields[0].Role)
	assert.Equal(t, "vcc", fields[0].Name)
	assert.Equal(t, FieldSignal, fields[1].Role)

	sub := fields[2]
	assert.Equal(t, FieldSub, sub.Role)
	require.True(t, sub.Type.Resolved(), "local type names resolve during the file build")
	assert.Equal(t, "Resistor", sub.Type.Target.Name)
	assert.False(t, sub.IsArray())

	arr := fields[3]
	assert.True(t, arr.IsArray())
	assert.Equal(t, 4, arr.Count)

	param := fields[4]
	assert.Equal(t, FieldParam, param.Role)
	require.NotNil(t, param.Value)
	lit := param.Value.(*cst.NumberLit)
	assert.Equal(t, "ohm", lit.Unit)
}

func TestBuild_TypeGraphMirrored(t *testing.T) {
	t.Parallel()

	src := "module M:\n" +
		"    r = new Resistor\n" +
		"\n" +
		"component Resistor:\n" +
		"    pin a\n"

	ft, store, _ := buildSource(t, src)
	m := ft.ByName["M"]
	res := ft.ByName["Resistor"]

	kids := store.Neighbors(m.Node, cgraph.Composition)
	require.Len(t, kids, 1)
	refs := store.Neighbors(kids[0], cgraph.TypeRef)
	require.Len(t, refs, 1)
	assert.Equal(t, res.Node, refs[0], "the sub field's type edge points at the local definition")

	assert.True(t, store.Frozen("test.ato"), "the file region is committed after the build")
}

func TestBuild_DuplicateTypeDefinition(t *testing.T) {
	t.Parallel()

	src := "module M:\n    pin a\n\nmodule M:\n    pin b\n"
	ft, _, sink := buildSource(t, src)

	require.Len(t, ft.Types, 1, "only the first definition survives")
	all := sink.All()
	require.Len(t, all, 1)
	assert.Equal(t, diag.DuplicateDefinition, all[0].Kind)
}

func TestBuild_DuplicateField(t *testing.T) {
	t.Parallel()

	src := "module M:\n    pin a\n    signal a\n"
	ft, _, sink := buildSource(t, src)

	m := ft.ByName["M"]
	require.Len(t, m.Fields(), 1)
	assert.Equal(t, FieldPin, m.Fields()[0].Role)
	require.Len(t, sink.All(), 1)
	assert.Equal(t, diag.DuplicateDefinition, sink.All()[0].Kind)
}

func TestBuild_ParamReassignment(t *testing.T) {
	t.Parallel()

	src := "module M:\n    value = 10ohm\n    value = 20ohm\n"
	ft, _, sink := buildSource(t, src)
	require.True(t, sink.Empty())

	m := ft.ByName["M"]
	f, ok := m.Field("value")
	require.True(t, ok)
	lit := f.Value.(*cst.NumberLit)
	assert.Equal(t, float64(20), lit.Value, "later assignment wins")
}

func TestBuild_AssignToNonParam(t *testing.T) {
	t.Parallel()

	src := "module M:\n    pin a\n    a = 10ohm\n"
	_, _, sink := buildSource(t, src)

	require.Len(t, sink.All(), 1)
	d := sink.All()[0]
	assert.Equal(t, diag.DuplicateDefinition, d.Kind)
	assert.Contains(t, d.Msg, "cannot assign to pin field")
}

func TestBuild_DottedAssignDeferred(t *testing.T) {
	t.Parallel()

	src := "module M:\n" +
		"    r = new Resistor\n" +
		"    r.value = 10ohm\n" +
		"\n" +
		"component Resistor:\n" +
		"    value = 1ohm\n"

	ft, _, sink := buildSource(t, src)
	require.True(t, sink.Empty())

	m := ft.ByName["M"]
	require.Len(t, m.Assigns, 1, "dotted targets are instantiation-time payload")
	assert.Equal(t, "r.value", m.Assigns[0].Target.String())
}

func TestBuild_BridgeRequiresPragma(t *testing.T) {
	t.Parallel()

	t.Run("rejected without pragma", func(t *testing.T) {
		src := "module M:\n    pin a\n    pin b\n    a ~> b\n"
		ft, _, sink := buildSource(t, src)

		require.Len(t, sink.All(), 1)
		assert.Equal(t, diag.ParseSyntax, sink.All()[0].Kind)
		assert.Empty(t, ft.ByName["M"].Connects)
	})

	t.Run("accepted with pragma", func(t *testing.T) {
		src := "#pragma experiment(\"BRIDGE_CONNECT\")\n\nmodule M:\n    pin a\n    pin b\n    a ~> b\n"
		ft, _, sink := buildSource(t, src)

		require.True(t, sink.Empty())
		require.Len(t, ft.ByName["M"].Connects, 1)
		assert.Equal(t, cst.BridgeRight, ft.ByName["M"].Connects[0].Dir)
	})
}

func TestBuild_Directives(t *testing.T) {
	t.Parallel()

	src := "from \"lib.ato\" import Base, Precision\n" +
		"\n" +
		"module Child from Base:\n" +
		"    r = new Resistor\n" +
		"    r -> Precision\n" +
		"    for x in bank:\n" +
		"        x.p ~ gnd\n" +
		"\n" +
		"component Resistor:\n" +
		"    pin a\n"

	ft, _, sink := buildSource(t, src)
	require.True(t, sink.Empty(), "diags: %v", sink.All())

	child := ft.ByName["Child"]
	pending := child.PendingDirectives()
	require.Len(t, pending, 3)

	inherit := pending[0]
	assert.Equal(t, DirInherit, inherit.Kind)
	assert.False(t, inherit.ParentRef.Resolved())
	assert.True(t, inherit.ParentRef.Imported, "the parent name comes from the import table")

	retype := pending[1]
	assert.Equal(t, DirRetype, retype.Kind)
	assert.Equal(t, "r", retype.Target.String())
	assert.True(t, retype.NewType.Imported)

	loop := pending[2]
	assert.Equal(t, DirForLoop, loop.Kind)
	assert.Equal(t, "x", loop.LoopVar)
	require.Len(t, loop.Body, 1)
}

func TestBuild_ImportTable(t *testing.T) {
	t.Parallel()

	src := "from \"lib.ato\" import Resistor\n" +
		"\n" +
		"module M:\n" +
		"    r = new Resistor\n"

	ft, store, sink := buildSource(t, src)
	require.True(t, sink.Empty())

	entry, ok := ft.Imports.Lookup("Resistor")
	require.True(t, ok)
	assert.Equal(t, "lib.ato", entry.Path)

	m := ft.ByName["M"]
	f, _ := m.Field("r")
	assert.False(t, f.Type.Resolved())
	assert.True(t, f.Type.Imported)

	// The symbolic edge points at the import placeholder until the linker
	// retargets it.
	placeholder, ok := ft.ImportNode("Resistor")
	require.True(t, ok)
	refs := store.Neighbors(f.Node, cgraph.TypeRef)
	require.Len(t, refs, 1)
	assert.Equal(t, placeholder, refs[0])
}

func TestAdoptInherited(t *testing.T) {
	t.Parallel()

	parentSrc := "module Base:\n    pin p\n    pin shared\n"
	childSrc := "module Child:\n    pin shared\n    pin q\n"

	pft, _, _ := buildSource(t, parentSrc)
	cft, _, _ := buildSource(t, childSrc)
	parent := pft.ByName["Base"]
	child := cft.ByName["Child"]

	adopted := child.AdoptInherited(parent)

	require.Len(t, adopted, 1, "only fields the child does not declare are adopted")
	assert.Equal(t, "p", adopted[0].Name)

	fields := child.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "p", fields[0].Name, "inherited fields come first")
	assert.Equal(t, "shared", fields[1].Name)
	assert.Equal(t, "q", fields[2].Name)

	shared, _ := child.Field("shared")
	assert.Same(t, child, shared.Owner)
	parentShared, _ := parent.Field("shared")
	assert.NotEqual(t, parentShared.Span, shared.Span, "the child's own declaration wins the override")
}
