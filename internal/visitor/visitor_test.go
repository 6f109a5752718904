package visitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/parser"
)

func visitSource(t *testing.T, store *cgraph.Store, src string) *Fragment {
	t.Helper()

	file, diags, err := parser.New().Parse("test.ato", []byte(src))
	require.NoError(t, err)
	require.Empty(t, diags, "parse diags: %v", diags)
	frag, err := New().Visit(context.Background(), store, file)
	require.NoError(t, err)
	return frag
}

func TestVisit_FileShape(t *testing.T) {
	t.Parallel()

	store := cgraph.NewStore()
	frag := visitSource(t, store,
		"#pragma experiment(\"BRIDGE_CONNECT\")\n"+
			"from \"lib.ato\" import R\n"+
			"\n"+
			"module A:\n"+
			"    pin p\n"+
			"\n"+
			"component B:\n"+
			"    signal s\n")

	assert.Equal(t, "test.ato", frag.Path)
	assert.True(t, frag.Pragmas["BRIDGE_CONNECT"])
	require.Len(t, frag.Imports, 1)
	assert.Equal(t, "lib.ato", frag.Imports[0].Path)

	root := store.Get(frag.Root)
	require.NotNil(t, root)
	assert.Equal(t, "file", root.Attrs["shape"])

	decls := store.Neighbors(frag.Root, cgraph.Composition)
	assert.Len(t, decls, 2, "one declaration node per type")
}

func TestVisit_StatementShapes(t *testing.T) {
	t.Parallel()

	store := cgraph.NewStore()
	frag := visitSource(t, store,
		"module A:\n"+
			"    pin p\n"+
			"    r = new R\n"+
			"    r.value = 10ohm\n"+
			"    p ~ r.a\n"+
			"    assert r.value < 20ohm\n"+
			"    r -> S\n")

	decls := store.Neighbors(frag.Root, cgraph.Composition)
	require.Len(t, decls, 1)

	var shapes []string
	for _, id := range store.Neighbors(decls[0], cgraph.Composition) {
		shapes = append(shapes, store.Get(id).Attrs["shape"].(string))
	}
	assert.Equal(t, []string{"field", "new", "assign", "connect", "assert", "retype"}, shapes,
		"statement nodes keep source order")
}

func TestVisit_ForLoopNesting(t *testing.T) {
	t.Parallel()

	store := cgraph.NewStore()
	frag := visitSource(t, store,
		"module A:\n"+
			"    signal gnd\n"+
			"    bank = new R[2]\n"+
			"    for c in bank:\n"+
			"        c.a ~ gnd\n"+
			"        c.value = 1ohm\n")

	decls := store.Neighbors(frag.Root, cgraph.Composition)
	require.Len(t, decls, 1)
	stmts := store.Neighbors(decls[0], cgraph.Composition)
	require.Len(t, stmts, 3)

	loop := store.Get(stmts[2])
	require.Equal(t, "for", loop.Attrs["shape"])
	body := store.Neighbors(stmts[2], cgraph.Composition)
	assert.Len(t, body, 2, "loop body statements hang off the loop node")
}

func TestVisit_SpansAttached(t *testing.T) {
	t.Parallel()

	store := cgraph.NewStore()
	frag := visitSource(t, store, "module A:\n    pin p\n")

	decls := store.Neighbors(frag.Root, cgraph.Composition)
	require.Len(t, decls, 1)
	decl := store.Get(decls[0])
	assert.Equal(t, "test.ato", decl.Span.File)
	assert.Equal(t, 1, decl.Span.Start.Line)

	stmts := store.Neighbors(decls[0], cgraph.Composition)
	require.Len(t, stmts, 1)
	assert.Equal(t, 2, store.Get(stmts[0]).Span.Start.Line)
}
