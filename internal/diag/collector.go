package diag

import (
	"sort"
	"sync"
)

// Collector accumulates user-facing diagnostics per file during a
// compilation run. It is safe for concurrent use; independent files may be
// built in parallel and report into the same collector.
type Collector struct {
	mutex  sync.Mutex
	byFile map[string][]*Diagnostic
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{byFile: make(map[string][]*Diagnostic)}
}

// Add records a diagnostic against the file named in its span. Internal
// diagnostics must not be collected; callers propagate those as errors.
func (c *Collector) Add(d *Diagnostic) {
	if d.Kind.Internal() {
		panic("diag: internal diagnostic must terminate the build, not be collected")
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.byFile[d.Span.File] = append(c.byFile[d.Span.File], d)
}

// File returns the diagnostics recorded against one file, in report order.
func (c *Collector) File(path string) []*Diagnostic {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]*Diagnostic, len(c.byFile[path]))
	copy(out, c.byFile[path])
	return out
}

// All returns every collected diagnostic ordered by file path, then by
// position within the file. The ordering is stable across runs.
func (c *Collector) All() []*Diagnostic {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	paths := make([]string, 0, len(c.byFile))
	for p := range c.byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []*Diagnostic
	for _, p := range paths {
		ds := make([]*Diagnostic, len(c.byFile[p]))
		copy(ds, c.byFile[p])
		sort.SliceStable(ds, func(i, j int) bool {
			if ds[i].Span.Start.Line != ds[j].Span.Start.Line {
				return ds[i].Span.Start.Line < ds[j].Span.Start.Line
			}
			return ds[i].Span.Start.Column < ds[j].Span.Start.Column
		})
		out = append(out, ds...)
	}
	return out
}

// Empty reports whether no diagnostics have been recorded.
func (c *Collector) Empty() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, ds := range c.byFile {
		if len(ds) > 0 {
			return false
		}
	}
	return true
}
