package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/instance"
	"github.com/vk/atograph/internal/linker"
	"github.com/vk/atograph/internal/parser"
	"github.com/vk/atograph/internal/pipeline"
	"github.com/vk/atograph/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Result holds the outcomes of a harness run.
type Result struct {
	Unit      *linker.CompilationUnit
	Design    *instance.Design
	Workspace *pipeline.Workspace
	Compiler  *pipeline.Compiler
	Dir       string
	Entry     string
	LogOutput string
	Err       error
}

// WriteTree writes the given source files into a fresh temporary project
// directory and returns its path. Relative paths in the map create
// subdirectories.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}
	return tmpDir
}

// NewCompiler builds a compiler over a fresh workspace rooted at dir,
// loading the project manifest when one is present.
func NewCompiler(t *testing.T, dir string, opts ...pipeline.Option) (*pipeline.Compiler, *pipeline.Workspace) {
	t.Helper()

	project, err := registry.LoadProject(context.Background(), dir)
	require.NoError(t, err)
	ws := pipeline.NewWorkspace()
	return pipeline.NewCompiler(ws, parser.New(), registry.New(project), opts...), ws
}

// Compile provides a standardized harness for compilation tests: it writes
// the files, compiles the entry file and captures the debug log output.
func Compile(t *testing.T, files map[string]string, entry string, opts ...pipeline.Option) *Result {
	t.Helper()
	return CompileWith(context.Background(), t, files, entry, opts...)
}

// CompileWith is Compile with a caller-provided context.
func CompileWith(ctx context.Context, t *testing.T, files map[string]string, entry string, opts ...pipeline.Option) *Result {
	t.Helper()

	dir := WriteTree(t, files)
	compiler, ws := NewCompiler(t, dir, opts...)

	result := &Result{
		Workspace: ws,
		Compiler:  compiler,
		Dir:       dir,
		Entry:     filepath.Join(dir, entry),
	}
	logBuffer := &SafeBuffer{}
	ctx = ctxlog.WithLogger(ctx, slog.New(slog.NewTextHandler(logBuffer, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	result.Unit, result.Err = compiler.Compile(ctx, result.Entry)
	result.LogOutput = logBuffer.String()

	if os.Getenv("ATOGRAPH_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}

// Build compiles the entry file and stamps the named root type.
func Build(t *testing.T, files map[string]string, entry, root string, opts ...pipeline.Option) *Result {
	t.Helper()

	result := Compile(t, files, entry, opts...)
	if result.Err != nil {
		return result
	}
	rootType, ok := result.Unit.LookupRoot(root)
	if !ok {
		t.Fatalf("entrypoint type %q not found; have %v", root, result.Unit.RootNames())
	}
	result.Design, result.Err = result.Compiler.Instantiate(context.Background(), result.Unit, rootType, nil)
	return result
}
