// Package pipeline orchestrates the whole compilation flow: parse, visit
// and build per file through the linker, then directive resolution by the
// deferred executor, then optional instantiation. It owns the process-wide
// workspace (shared graph store plus build cache) that makes incremental
// recompiles cheap.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/vk/atograph/internal/buildcache"
	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/deferred"
	"github.com/vk/atograph/internal/instance"
	"github.com/vk/atograph/internal/linker"
	"github.com/vk/atograph/internal/registry"
	"github.com/vk/atograph/internal/solver"
	"github.com/vk/atograph/internal/typegraph"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Workspace is the shared mutable state outside a single compilation run:
// the graph store holding committed file fragments and the per-path build
// cache. Both survive across runs and are invalidated per path on content
// change.
type Workspace struct {
	Store *cgraph.Store
	Cache *buildcache.Cache
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{Store: cgraph.NewStore(), Cache: buildcache.New()}
}

// Invalidate drops a file from the cache so the next compile rebuilds it.
func (w *Workspace) Invalidate(path string) {
	if abs, err := registry.Normalize(path); err == nil {
		w.Cache.Invalidate(abs)
	}
}

// Compiler runs compilation sessions over one workspace.
type Compiler struct {
	ws       *Workspace
	parser   cst.Parser
	registry *registry.Registry
	solver   solver.Solver
	policy   deferred.RetypePolicy
	maxDepth int
}

// Option tunes a compiler.
type Option func(*Compiler)

// WithRetypePolicy selects the retype compatibility rule.
func WithRetypePolicy(p deferred.RetypePolicy) Option {
	return func(c *Compiler) { c.policy = p }
}

// WithMaxImportDepth bounds import recursion.
func WithMaxImportDepth(depth int) Option {
	return func(c *Compiler) { c.maxDepth = depth }
}

// WithSolver swaps the numeric collaborator.
func WithSolver(s solver.Solver) Option {
	return func(c *Compiler) { c.solver = s }
}

// NewCompiler creates a compiler bound to a workspace.
func NewCompiler(ws *Workspace, p cst.Parser, reg *registry.Registry, opts ...Option) *Compiler {
	c := &Compiler{ws: ws, parser: p, registry: reg, solver: solver.NewLocal()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile links and finalizes everything reachable from the entry file.
// Each session carries its own id in the logs; cancellation is observed at
// file and phase boundaries.
func (c *Compiler) Compile(ctx context.Context, entry string) (*linker.CompilationUnit, error) {
	logger := ctxlog.FromContext(ctx).With("session", uuid.NewString())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("pipeline: compile started", "entry", entry)

	lk := linker.New(c.parser, c.registry, c.ws.Cache, c.ws.Store, c.maxDepth)
	unit, err := lk.Link(ctx, entry)
	if err != nil {
		return unit, err
	}
	if err := deferred.New(c.policy).Finalize(ctx, unit); err != nil {
		return unit, err
	}
	logger.Debug("pipeline: compile finished",
		"files", len(unit.Files), "types", len(unit.AllTypes()))
	return unit, nil
}

// Prebuild warms the cache by building the given files concurrently.
// Files with no import dependency between them build in parallel; the
// cache's claim semantics make a thread that loses the race block on the
// winner instead of rebuilding.
func (c *Compiler) Prebuild(ctx context.Context, paths []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			lk := linker.New(c.parser, c.registry, c.ws.Cache, c.ws.Store, c.maxDepth)
			_, err := lk.Link(gctx, path)
			return err
		})
	}
	return g.Wait()
}

// Instantiate stamps a finalized root type into a design graph.
func (c *Compiler) Instantiate(ctx context.Context, unit *linker.CompilationUnit, root *typegraph.TypeNode, overrides map[string]cty.Value) (*instance.Design, error) {
	return instance.New(unit, c.solver).Instantiate(ctx, root, overrides)
}

// Build is the one-shot convenience: compile the entry file and stamp the
// named root type.
func (c *Compiler) Build(ctx context.Context, entry, rootName string, overrides map[string]cty.Value) (*instance.Design, *linker.CompilationUnit, error) {
	unit, err := c.Compile(ctx, entry)
	if err != nil {
		return nil, unit, err
	}
	root, ok := unit.LookupRoot(rootName)
	if !ok {
		return nil, unit, &rootNotFoundError{name: rootName}
	}
	d, err := c.Instantiate(ctx, unit, root, overrides)
	return d, unit, err
}

type rootNotFoundError struct{ name string }

func (e *rootNotFoundError) Error() string {
	return "no entrypoint type named " + e.name
}
