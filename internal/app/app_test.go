package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.ato")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	t.Run("requires an entry path", func(t *testing.T) {
		_, err := NewConfig(Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EntryPath")
	})

	t.Run("rejects unknown retype policies", func(t *testing.T) {
		_, err := NewConfig(Config{EntryPath: "main.ato", RetypePolicy: "lenient"})
		require.Error(t, err)
	})

	t.Run("accepts valid configuration", func(t *testing.T) {
		cfg, err := NewConfig(Config{EntryPath: "main.ato", RetypePolicy: "structural"})
		require.NoError(t, err)
		assert.Equal(t, "main.ato", cfg.EntryPath)
	})
}

func TestRun_CompileOnly(t *testing.T) {
	t.Parallel()

	entry := writeEntry(t, "module App:\n    pin vcc\n")
	cfg, err := NewConfig(Config{EntryPath: entry})
	require.NoError(t, err)

	a, out := SetupAppTest(t, cfg)
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "compiled 1 files, 1 types")
}

func TestRun_BuildNamedRoot(t *testing.T) {
	t.Parallel()

	entry := writeEntry(t, "module App:\n"+
		"    signal vcc\n"+
		"    signal gnd\n"+
		"    vcc ~ gnd\n")
	cfg, err := NewConfig(Config{EntryPath: entry, RootName: "App"})
	require.NoError(t, err)

	a, out := SetupAppTest(t, cfg)
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "App: 3 instances, 1 connections, 1 nets")
}

func TestRun_ReportsDiagnostics(t *testing.T) {
	t.Parallel()

	entry := writeEntry(t, "from \"missing.ato\" import X\n\nmodule App:\n    x = new X\n")
	cfg, err := NewConfig(Config{EntryPath: entry})
	require.NoError(t, err)

	a, out := SetupAppTest(t, cfg)
	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed")
	assert.Contains(t, out.String(), "ImportNotFoundError")
}

func TestRun_UnknownRootFails(t *testing.T) {
	t.Parallel()

	entry := writeEntry(t, "module App:\n    pin vcc\n")
	cfg, err := NewConfig(Config{EntryPath: entry, RootName: "Board"})
	require.NoError(t, err)

	a, _ := SetupAppTest(t, cfg)
	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entrypoint type named Board")
}

func TestRun_WatchRecompilesOnChange(t *testing.T) {
	t.Parallel()

	entry := writeEntry(t, "module App:\n    pin vcc\n")
	cfg, err := NewConfig(Config{EntryPath: entry, Watch: true})
	require.NoError(t, err)

	a, out := SetupAppTest(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "compiled 1 files, 1 types")
	}, 5*time.Second, 20*time.Millisecond, "initial compile never reported")

	edited := "module App:\n    pin vcc\n\nmodule Extra:\n    pin p\n"
	require.NoError(t, os.WriteFile(entry, []byte(edited), 0644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "compiled 1 files, 2 types")
	}, 5*time.Second, 20*time.Millisecond, "rebuild never reported")

	cancel()
	require.NoError(t, <-done)
}
