// Package linker resolves imports across files, merging per-file type
// graphs into one self-contained compilation unit. It detects import cycles
// via the active resolution stack and replaces every symbolic type
// reference with a direct one.
package linker

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/atograph/internal/buildcache"
	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/cst"
	"github.com/vk/atograph/internal/ctxlog"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/registry"
	"github.com/vk/atograph/internal/source"
	"github.com/vk/atograph/internal/typegraph"
	"github.com/vk/atograph/internal/visitor"
)

// DefaultMaxImportDepth bounds the import recursion. Exceeding it is a
// ResourceExhaustedError, not a crash.
const DefaultMaxImportDepth = 64

// Linker wires the parser, registry and build cache into recursive import
// resolution over a shared graph store.
type Linker struct {
	parser   cst.Parser
	registry *registry.Registry
	cache    *buildcache.Cache
	store    *cgraph.Store
	maxDepth int
}

// New creates a linker. maxDepth <= 0 selects DefaultMaxImportDepth.
func New(parser cst.Parser, reg *registry.Registry, cache *buildcache.Cache, store *cgraph.Store, maxDepth int) *Linker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxImportDepth
	}
	return &Linker{
		parser:   parser,
		registry: reg,
		cache:    cache,
		store:    store,
		maxDepth: maxDepth,
	}
}

// Link resolves everything reachable from the entry file into a compilation
// unit. User-facing problems are collected per file in the unit's
// diagnostics; the returned error is non-nil only for internal defects or
// when the entry file itself could not be resolved.
func (l *Linker) Link(ctx context.Context, entryPath string) (*CompilationUnit, error) {
	logger := ctxlog.FromContext(ctx)

	entry, err := registry.Normalize(entryPath)
	if err != nil {
		return nil, err
	}
	unit := &CompilationUnit{
		Store:     l.store,
		Files:     make(map[string]*typegraph.FileTypes),
		ImportsOf: make(map[string][]string),
		TypeRoots: make(map[string]*typegraph.TypeNode),
		Diags:     diag.NewCollector(),
		Failed:    make(map[string]bool),
	}

	// Evict regions for any path the cache invalidated since the last run.
	for _, path := range l.cache.DrainEvicted() {
		l.store.EvictRegion(path)
	}

	s := &session{
		linker:  l,
		unit:    unit,
		onStack: make(map[string]bool),
		rebuilt: make(map[string]bool),
	}
	if err := s.resolveFile(ctx, entry, source.Span{}, 0); err != nil {
		return unit, err
	}
	logger.Debug("linker: all files built", "files", len(unit.Files))

	if err := s.resolveRefs(ctx); err != nil {
		return unit, err
	}
	l.collectRoots(ctx, unit, entry)

	if unit.Failed[entry] {
		// Entry failure is global; surface the first diagnostic as the
		// session error so callers need not dig through the collector.
		for _, d := range unit.Diags.All() {
			return unit, d
		}
		return unit, fmt.Errorf("linking %s failed", entry)
	}
	logger.Debug("linker: unit linked", "files", len(unit.Files), "roots", len(unit.TypeRoots))
	return unit, nil
}

// session is the state of one Link call: the unit under construction plus
// the active resolution stack used for cycle detection.
type session struct {
	linker  *Linker
	unit    *CompilationUnit
	onStack map[string]bool
	// rebuilt marks files compiled fresh this session. A cached file whose
	// import was rebuilt must itself be rebuilt: its consumed directives
	// and resolved references point into the evicted region.
	rebuilt map[string]bool
}

// resolveFile parses, visits and builds one file exactly once, then
// recurses into its imports in source order. importSpan locates the import
// statement that led here; it is zero for the entry file.
func (s *session) resolveFile(ctx context.Context, absPath string, importSpan source.Span, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.linker
	logger := ctxlog.FromContext(ctx)

	if depth > l.maxDepth {
		d := diag.New(diag.ResourceExhausted, importSpan,
			"import depth exceeds maximum of %d", l.maxDepth)
		s.unit.Diags.Add(d)
		s.fail(absPath)
		return d
	}
	if s.onStack[absPath] {
		// The target is already in progress on the current resolution
		// stack; recursing further would never terminate.
		s.unit.Diags.Add(diag.New(diag.CircularImport, importSpan,
			"circular import of %s", absPath))
		s.fail(absPath)
		return nil
	}
	if _, done := s.unit.Files[absPath]; done {
		return nil
	}

	src, err := os.ReadFile(absPath)
	if err != nil {
		s.unit.Diags.Add(diag.New(diag.ImportNotFound, importSpan,
			"cannot read %s: %v", absPath, err))
		s.fail(absPath)
		return nil
	}

	types, fresh, err := s.buildFile(ctx, absPath, src)
	if err != nil {
		return err
	}
	if types == nil {
		s.fail(absPath)
		return nil
	}
	s.unit.Files[absPath] = types
	if fresh {
		s.rebuilt[absPath] = true
	}

	// Recurse into imports in source order with this file on the stack.
	// A cached file still recurses: its import targets may have changed
	// content since the build that produced the cache entry.
	s.onStack[absPath] = true
	defer delete(s.onStack, absPath)

	if !s.resolveImportTargets(types, absPath) {
		s.fail(absPath)
	}
	recursed := make(map[string]bool)
	for _, name := range types.Imports.Names() {
		entry, _ := types.Imports.Lookup(name)
		if entry.Abs == "" || recursed[entry.Abs] {
			continue
		}
		recursed[entry.Abs] = true
		s.unit.ImportsOf[absPath] = append(s.unit.ImportsOf[absPath], entry.Abs)

		if err := s.resolveFile(ctx, entry.Abs, entry.Span, depth+1); err != nil {
			return err
		}
		if s.unit.Failed[entry.Abs] {
			// A structural dependency failed; this file cannot resolve
			// either. Report the cascade against our own import span.
			s.unit.Diags.Add(diag.New(diag.ImportNotFound, entry.Span,
				"import of %s aborted: the imported file has errors", entry.Path))
			s.fail(absPath)
		}
	}

	// Recursion is post-order, so every import has decided by now whether
	// it rebuilt. A reused entry over a rebuilt import is stale: its
	// consumed directives and resolved references point into the evicted
	// region, so it must be rebuilt too.
	if !s.rebuilt[absPath] && !s.unit.Failed[absPath] && s.staleImports(types) {
		logger.Debug("linker: imports changed, rebuilding dependent", "file", absPath)
		l.cache.Invalidate(absPath)
		types, _, err = s.buildFile(ctx, absPath, src)
		if err != nil {
			return err
		}
		if types == nil {
			s.fail(absPath)
			return nil
		}
		s.unit.Files[absPath] = types
		s.rebuilt[absPath] = true
		if !s.resolveImportTargets(types, absPath) {
			s.fail(absPath)
		}
	}

	s.unit.FileOrder = append(s.unit.FileOrder, absPath)
	logger.Debug("linker: file resolved", "file", absPath, "depth", depth)
	return nil
}

// resolveImportTargets fills in the absolute location of every import in
// the table, propagating each resolved path to sibling names of the same
// import statement. Returns false when any import cannot be resolved.
func (s *session) resolveImportTargets(types *typegraph.FileTypes, absPath string) bool {
	ok := true
	for _, name := range types.Imports.Names() {
		entry, _ := types.Imports.Lookup(name)
		if entry.Abs != "" {
			continue
		}
		target, err := s.linker.registry.Resolve(entry.Path, absPath)
		if err != nil {
			s.unit.Diags.Add(diag.New(diag.ImportNotFound, entry.Span, "%v", err))
			ok = false
			continue
		}
		for _, other := range types.Imports.Names() {
			oe, _ := types.Imports.Lookup(other)
			if oe.Path == entry.Path {
				oe.Abs = target
			}
		}
	}
	return ok
}

// staleImports reports whether any import of the file was rebuilt in this
// session.
func (s *session) staleImports(types *typegraph.FileTypes) bool {
	for _, name := range types.Imports.Names() {
		entry, _ := types.Imports.Lookup(name)
		if s.rebuilt[entry.Abs] {
			return true
		}
	}
	return false
}

// buildFile runs the parse/visit/build pipeline for one file through the
// claim/wait cache. The boolean reports whether this session built the file
// fresh rather than reusing a cached entry. A nil-types return with a nil
// error means the file produced user-facing errors and no usable types.
func (s *session) buildFile(ctx context.Context, absPath string, src []byte) (*typegraph.FileTypes, bool, error) {
	l := s.linker
	logger := ctxlog.FromContext(ctx)

	hash := buildcache.HashContent(src)
	entry, claimed := l.cache.Claim(absPath, hash)
	if !claimed {
		if err := entry.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		logger.Debug("linker: reusing cached build", "file", absPath)
		return entry.Types, false, nil
	}

	// Content change invalidations are drained before rebuilding so the
	// frozen region from the previous build does not collide.
	for _, path := range l.cache.DrainEvicted() {
		l.store.EvictRegion(path)
	}

	types, err := l.compileFile(ctx, absPath, src, s.unit.Diags)
	entry.Complete(types, err)
	if err != nil {
		return nil, true, err
	}
	return types, true, nil
}

// compileFile is the single-writer visitor/builder pass for one file.
func (l *Linker) compileFile(ctx context.Context, absPath string, src []byte, sink *diag.Collector) (*typegraph.FileTypes, error) {
	file, parseDiags, err := l.parser.Parse(absPath, src)
	for _, d := range parseDiags {
		sink.Add(d)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", absPath, err)
	}
	if file == nil {
		return nil, fmt.Errorf("parser returned no syntax tree for %s", absPath)
	}

	frag, err := visitor.New().Visit(ctx, l.store, file)
	if err != nil {
		return nil, err
	}
	return typegraph.NewBuilder(l.store).Build(ctx, frag, sink)
}

func (s *session) fail(path string) {
	s.unit.Failed[path] = true
}

// resolveRefs replaces every symbolic type reference in every successfully
// built file with a direct reference, retargeting the store edges. The
// references live on cached types shared between sessions, so each file is
// resolved under its cache entry's once-guard: exactly one session thaws,
// writes and refreezes the region, and concurrent sessions wait for it.
func (s *session) resolveRefs(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, path := range s.unit.FileOrder {
		if s.unit.Failed[path] {
			continue
		}
		ft := s.unit.Files[path]

		resolve := func() error {
			s.unit.Store.ThawRegion(path)
			for _, t := range ft.Types {
				s.resolveTypeRefs(t, ft)
			}
			s.unit.Store.FreezeRegion(path)
			if s.unit.Failed[path] {
				return fmt.Errorf("references in %s did not resolve", path)
			}
			return nil
		}

		entry, ok := s.linker.cache.Lookup(path)
		if !ok {
			// Invalidated since the build; nothing shares the types.
			if err := resolve(); err != nil {
				s.fail(path)
			}
			continue
		}
		if err := entry.Resolve(resolve); err != nil {
			// The resolving session reported the specifics; later
			// sessions only learn the file is unusable.
			if !s.unit.Failed[path] {
				s.unit.Diags.Add(diag.New(diag.ImportNotFound, source.Span{},
					"%v", err))
			}
			s.fail(path)
		}
	}
	return nil
}

func (s *session) resolveTypeRefs(t *typegraph.TypeNode, ft *typegraph.FileTypes) {
	for _, f := range t.Fields() {
		if f.Type != nil && !f.Type.Resolved() {
			s.resolveRef(f.Type, ft, f.Node)
		}
	}
	for _, d := range t.Directives {
		switch d.Kind {
		case typegraph.DirInherit:
			if !d.ParentRef.Resolved() {
				s.resolveRef(d.ParentRef, ft, d.Node)
			}
			if d.ParentRef.Resolved() {
				t.Parent = d.ParentRef
			}
		case typegraph.DirRetype:
			if !d.NewType.Resolved() {
				s.resolveRef(d.NewType, ft, d.Node)
			}
		}
	}
}

// resolveRef resolves one symbolic reference through the file's import
// table. from is the graph node carrying the symbolic edge to retarget.
func (s *session) resolveRef(ref *typegraph.TypeRef, ft *typegraph.FileTypes, from cgraph.NodeID) {
	entry, ok := ft.Imports.Lookup(ref.Name)
	if !ok {
		s.unit.Diags.Add(diag.New(diag.ImportNotFound, ref.Span,
			"unknown type %q: not defined in this file and not imported", ref.Name))
		s.fail(ft.Path)
		return
	}
	targetFile, ok := s.unit.Files[entry.Abs]
	if !ok {
		// The imported file failed to build; the cascade was already
		// reported against the import span.
		s.fail(ft.Path)
		return
	}
	target, ok := targetFile.ByName[entry.Symbol]
	if !ok {
		s.unit.Diags.Add(diag.New(diag.ImportNotFound, entry.Span,
			"%s does not define %q", entry.Path, entry.Symbol))
		s.fail(ft.Path)
		return
	}
	ref.Target = target
	if placeholder, ok := ft.ImportNode(ref.Name); ok && from != cgraph.InvalidNode {
		if err := s.unit.Store.RetargetEdges(from, cgraph.TypeRef, placeholder, target.Node); err != nil {
			panic(fmt.Sprintf("linker: retarget: %v", err))
		}
	}
}

// collectRoots populates the entrypoint mapping: every type declared in the
// entry file, plus entrypoints the project manifest names.
func (l *Linker) collectRoots(ctx context.Context, unit *CompilationUnit, entry string) {
	if ft, ok := unit.Files[entry]; ok && !unit.Failed[entry] {
		for _, t := range ft.Types {
			unit.TypeRoots[t.Name] = t
		}
	}
	if l.registry == nil || l.registry.Project() == nil {
		return
	}
	for name, e := range l.registry.Project().Entries {
		abs, err := registry.Normalize(e.File)
		if err != nil {
			continue
		}
		if ft, ok := unit.Files[abs]; ok && !unit.Failed[abs] {
			if t, ok := ft.ByName[e.Type]; ok {
				unit.TypeRoots[name] = t
			}
		}
	}
	ctxlog.FromContext(ctx).Debug("linker: type roots collected", "count", len(unit.TypeRoots))
}
