package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/deferred"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/parser"
	"github.com/vk/atograph/internal/registry"
)

func newTestCompiler(t *testing.T, files map[string]string, opts ...Option) (*Compiler, *Workspace, string) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	project, err := registry.LoadProject(context.Background(), dir)
	require.NoError(t, err)

	ws := NewWorkspace()
	return NewCompiler(ws, parser.New(), registry.New(project), opts...), ws, dir
}

func TestBuild_EndToEnd(t *testing.T) {
	t.Parallel()

	c, _, dir := newTestCompiler(t, map[string]string{
		"a.ato": "module M:\n    pin p\n",
		"b.ato": "from \"a.ato\" import M\n\nmodule N from M:\n    pin q\n",
	})

	d, unit, err := c.Build(context.Background(), filepath.Join(dir, "b.ato"), "N", nil)
	require.NoError(t, err)
	require.True(t, unit.Diags.Empty(), "diags: %v", unit.Diags.All())

	assert.Equal(t, "N", d.Root.Path)
	_, ok := d.Lookup("N.p")
	assert.True(t, ok, "the inherited pin is stamped")
	_, ok = d.Lookup("N.q")
	assert.True(t, ok, "the own pin is stamped")
	assert.Equal(t, 0, d.ConnectionCount())
	assert.Empty(t, d.Nets)
}

func TestBuild_UnknownRoot(t *testing.T) {
	t.Parallel()

	c, _, dir := newTestCompiler(t, map[string]string{
		"main.ato": "module App:\n    pin p\n",
	})

	_, _, err := c.Build(context.Background(), filepath.Join(dir, "main.ato"), "Missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no entrypoint type named Missing`)
}

func TestCompile_ReusesCacheAcrossSessions(t *testing.T) {
	t.Parallel()

	c, ws, dir := newTestCompiler(t, map[string]string{
		"main.ato": "module App:\n    pin p\n",
	})
	entry := filepath.Join(dir, "main.ato")
	abs, err := registry.Normalize(entry)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Compile(context.Background(), entry)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, ws.Cache.BuildCount(abs), "unchanged files build once")
}

func TestWorkspace_InvalidateForcesRebuild(t *testing.T) {
	t.Parallel()

	c, ws, dir := newTestCompiler(t, map[string]string{
		"main.ato": "module App:\n    pin p\n",
	})
	entry := filepath.Join(dir, "main.ato")
	abs, err := registry.Normalize(entry)
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), entry)
	require.NoError(t, err)
	require.Equal(t, 1, ws.Cache.BuildCount(abs))

	ws.Invalidate(entry)
	_, err = c.Compile(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 2, ws.Cache.BuildCount(abs))
}

func TestCompile_PicksUpEditedFile(t *testing.T) {
	t.Parallel()

	c, _, dir := newTestCompiler(t, map[string]string{
		"main.ato": "module App:\n    pin p\n",
	})
	entry := filepath.Join(dir, "main.ato")

	unit, err := c.Compile(context.Background(), entry)
	require.NoError(t, err)
	_, ok := unit.LookupRoot("Extra")
	require.False(t, ok)

	edited := "module App:\n    pin p\n\nmodule Extra:\n    pin q\n"
	require.NoError(t, os.WriteFile(entry, []byte(edited), 0644))

	unit, err = c.Compile(context.Background(), entry)
	require.NoError(t, err)
	_, ok = unit.LookupRoot("Extra")
	assert.True(t, ok, "content hashing notices the edit without an explicit invalidate")
}

func TestBuild_EditedImportPropagates(t *testing.T) {
	t.Parallel()

	c, _, dir := newTestCompiler(t, map[string]string{
		"a.ato": "module M:\n    pin p\n",
		"b.ato": "from \"a.ato\" import M\n\nmodule N from M:\n    pin q\n",
	})
	entry := filepath.Join(dir, "b.ato")

	d, _, err := c.Build(context.Background(), entry, "N", nil)
	require.NoError(t, err)
	_, ok := d.Lookup("N.r")
	require.False(t, ok)

	// Only the imported file changes between runs.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ato"),
		[]byte("module M:\n    pin p\n    pin r\n"), 0644))

	d, _, err = c.Build(context.Background(), entry, "N", nil)
	require.NoError(t, err)
	_, ok = d.Lookup("N.r")
	assert.True(t, ok, "a pin added to the imported base reaches the dependent's instances")
	_, ok = d.Lookup("N.q")
	assert.True(t, ok)
}

func TestPrebuild_SharedDependencyBuildsOnce(t *testing.T) {
	t.Parallel()

	c, ws, dir := newTestCompiler(t, map[string]string{
		"lib.ato": "component R:\n    pin a\n",
		"m1.ato":  "from \"lib.ato\" import R\n\nmodule M1:\n    r = new R\n",
		"m2.ato":  "from \"lib.ato\" import R\n\nmodule M2:\n    r = new R\n",
	})

	err := c.Prebuild(context.Background(), []string{
		filepath.Join(dir, "m1.ato"),
		filepath.Join(dir, "m2.ato"),
	})
	require.NoError(t, err)

	abs, err := registry.Normalize(filepath.Join(dir, "lib.ato"))
	require.NoError(t, err)
	assert.Equal(t, 1, ws.Cache.BuildCount(abs), "racing sessions share one build of the common import")
}

func TestCompile_ErrorsCarryDiagnostics(t *testing.T) {
	t.Parallel()

	c, _, dir := newTestCompiler(t, map[string]string{
		"main.ato": "from \"missing.ato\" import X\n\nmodule App:\n    x = new X\n",
	})

	unit, err := c.Compile(context.Background(), filepath.Join(dir, "main.ato"))
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.ImportNotFound, d.Kind)
	require.NotNil(t, unit)
}

func TestCompile_RetypePolicyOption(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.ato": "component A:\n" +
			"    pin p\n" +
			"\n" +
			"component B:\n" +
			"    pin other\n" +
			"\n" +
			"module App:\n" +
			"    x = new A\n" +
			"    x -> B\n",
	}

	c, _, dir := newTestCompiler(t, files, WithRetypePolicy(deferred.RetypeStructural))
	unit, err := c.Compile(context.Background(), filepath.Join(dir, "main.ato"))
	require.NoError(t, err)

	found := false
	for _, d := range unit.Diags.All() {
		if d.Kind == diag.RetypeIncompatible {
			found = true
		}
	}
	assert.True(t, found, "structural policy rejects a substitute missing the declared shape")
}

func TestCompile_SessionIDInLogs(t *testing.T) {
	t.Parallel()

	c, _, dir := newTestCompiler(t, map[string]string{
		"main.ato": "module App:\n    pin p\n",
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	_, err := c.Compile(ctx, filepath.Join(dir, "main.ato"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "session=", "every compile logs under its session id")
}
