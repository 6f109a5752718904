package typegraph

import (
	"github.com/vk/atograph/internal/source"
)

// ImportEntry records where one imported name comes from. Entries stay
// symbolic until the linker resolves them into direct type references.
type ImportEntry struct {
	// Path is the import path as written in source.
	Path string
	// Abs is the normalized absolute path, filled in by the linker.
	Abs string
	// Symbol is the name exported by the target file.
	Symbol string
	Span   source.Span
}

// ImportTable maps imported names visible in one file to their origin.
type ImportTable struct {
	entries map[string]*ImportEntry
	order   []string
}

// NewImportTable creates an empty table.
func NewImportTable() *ImportTable {
	return &ImportTable{entries: make(map[string]*ImportEntry)}
}

// Add registers an imported name. Later imports of the same name shadow
// earlier ones, matching source semantics.
func (t *ImportTable) Add(name string, e *ImportEntry) {
	if _, exists := t.entries[name]; !exists {
		t.order = append(t.order, name)
	}
	t.entries[name] = e
}

// Lookup returns the entry for an imported name.
func (t *ImportTable) Lookup(name string) (*ImportEntry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Names returns the imported names in source order.
func (t *ImportTable) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
