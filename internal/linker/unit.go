package linker

import (
	"sort"

	"github.com/vk/atograph/internal/cgraph"
	"github.com/vk/atograph/internal/diag"
	"github.com/vk/atograph/internal/typegraph"
)

// CompilationUnit is the merged result of linking: every reachable file's
// preliminary type graph, the file-import DAG, the entrypoint types, and the
// single shared graph store. After the deferred executor finalizes it, the
// unit is immutable and safe for unlimited concurrent reads.
type CompilationUnit struct {
	Store *cgraph.Store
	// Files maps normalized absolute path to that file's types.
	Files map[string]*typegraph.FileTypes
	// FileOrder is the deterministic build completion order (imports before
	// importers).
	FileOrder []string
	// ImportsOf is the file DAG: importer path to imported paths, in source
	// order.
	ImportsOf map[string][]string
	// TypeRoots maps declared entrypoint names to their types.
	TypeRoots map[string]*typegraph.TypeNode
	// Diags holds every user-facing problem collected during the run.
	Diags *diag.Collector
	// Failed marks files whose resolution aborted; dependents report the
	// cascade against their own spans.
	Failed map[string]bool

	finalized bool
}

// Finalized reports whether the deferred executor has completed on the unit.
func (u *CompilationUnit) Finalized() bool { return u.finalized }

// MarkFinalized is called by the deferred executor once no directive remains
// pending.
func (u *CompilationUnit) MarkFinalized() { u.finalized = true }

// AllTypes returns every type in the unit in deterministic order: files in
// build order, types in declaration order.
func (u *CompilationUnit) AllTypes() []*typegraph.TypeNode {
	var out []*typegraph.TypeNode
	for _, path := range u.FileOrder {
		out = append(out, u.Files[path].Types...)
	}
	return out
}

// LookupRoot returns an entrypoint type by name.
func (u *CompilationUnit) LookupRoot(name string) (*typegraph.TypeNode, bool) {
	t, ok := u.TypeRoots[name]
	return t, ok
}

// RootNames returns the declared entrypoint names, sorted.
func (u *CompilationUnit) RootNames() []string {
	names := make([]string, 0, len(u.TypeRoots))
	for n := range u.TypeRoots {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
