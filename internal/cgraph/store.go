// Package cgraph is the node/edge store underlying every later compilation
// stage. It offers O(1) id-indexed lookup, kind-indexed neighbor iteration,
// and whole-file region freezing so committed fragments can be read
// concurrently while other files are still being built.
package cgraph

import (
	"fmt"
	"sync"

	"github.com/vk/atograph/internal/source"
)

// Store holds nodes and typed directed edges. All operations are
// concurrency-safe. Writes into a frozen region panic; that is a graph
// invariant violation and indicates a compiler defect.
type Store struct {
	mutex sync.RWMutex
	nodes map[NodeID]*Node
	// out holds adjacency per edge kind in insertion order, which keeps
	// neighbor iteration deterministic across runs.
	out    map[NodeID]map[EdgeKind][]NodeID
	frozen map[string]bool
	// byRegion tracks node membership per file key for whole-file eviction.
	byRegion map[string][]NodeID
	nextID   NodeID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes:    make(map[NodeID]*Node),
		out:      make(map[NodeID]map[EdgeKind][]NodeID),
		frozen:   make(map[string]bool),
		byRegion: make(map[string][]NodeID),
	}
}

// CreateNode allocates a node in the region named by span.File. The span
// must carry a location; nodes without source metadata cannot be diagnosed.
func (s *Store) CreateNode(kind NodeKind, span source.Span, attrs map[string]any) NodeID {
	if span.IsZero() {
		panic(fmt.Sprintf("cgraph: node of kind %s created without source span", kind))
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.checkWritable(span.File)
	id := s.nextID
	s.nextID++
	if attrs == nil {
		attrs = make(map[string]any)
	}
	s.nodes[id] = &Node{ID: id, Kind: kind, Span: span, Attrs: attrs, region: span.File}
	s.byRegion[span.File] = append(s.byRegion[span.File], id)
	return id
}

// CreateEdge adds a directed edge of the given kind. Duplicate edges between
// the same endpoints are permitted.
func (s *Store) CreateEdge(kind EdgeKind, from, to NodeID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	fromNode, ok := s.nodes[from]
	if !ok {
		return fmt.Errorf("cgraph: source node not found: %d", from)
	}
	if _, ok := s.nodes[to]; !ok {
		return fmt.Errorf("cgraph: destination node not found: %d", to)
	}
	s.checkWritable(fromNode.region)

	kinds, ok := s.out[from]
	if !ok {
		kinds = make(map[EdgeKind][]NodeID)
		s.out[from] = kinds
	}
	kinds[kind] = append(kinds[kind], to)
	return nil
}

// Neighbors returns the out-neighbors of a node reachable over edges of one
// kind, in edge insertion order.
func (s *Store) Neighbors(id NodeID, kind EdgeKind) []NodeID {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	edges := s.out[id][kind]
	out := make([]NodeID, len(edges))
	copy(out, edges)
	return out
}

// Get returns the node for an id, or nil when it does not exist.
func (s *Store) Get(id NodeID) *Node {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.nodes[id]
}

// Len returns the number of live nodes.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.nodes)
}

// FreezeRegion marks a file's fragment read-only. Frozen regions may be read
// concurrently while other files are still being built.
func (s *Store) FreezeRegion(fileKey string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.frozen[fileKey] = true
}

// ThawRegion lifts a freeze, used by the deferred executor which is the only
// stage allowed to mutate committed fragments in place.
func (s *Store) ThawRegion(fileKey string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.frozen, fileKey)
}

// Frozen reports whether a region is currently read-only.
func (s *Store) Frozen(fileKey string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.frozen[fileKey]
}

// EvictRegion removes every node of a file's fragment together with all
// incident edges. Retention is whole-file-granularity; eviction happens only
// when a file's content changed and its fragment is rebuilt.
func (s *Store) EvictRegion(fileKey string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	gone := make(map[NodeID]bool, len(s.byRegion[fileKey]))
	for _, id := range s.byRegion[fileKey] {
		gone[id] = true
		delete(s.nodes, id)
		delete(s.out, id)
	}
	delete(s.byRegion, fileKey)
	delete(s.frozen, fileKey)

	// Drop dangling edges pointing into the evicted region.
	for _, kinds := range s.out {
		for kind, targets := range kinds {
			kept := targets[:0]
			for _, t := range targets {
				if !gone[t] {
					kept = append(kept, t)
				}
			}
			kinds[kind] = kept
		}
	}
}

// RetargetEdges redirects every edge of the given kind from one target to
// another, preserving edge order. The linker uses it to replace symbolic
// type references with direct ones.
func (s *Store) RetargetEdges(from NodeID, kind EdgeKind, oldTo, newTo NodeID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	fromNode, ok := s.nodes[from]
	if !ok {
		return fmt.Errorf("cgraph: source node not found: %d", from)
	}
	if _, ok := s.nodes[newTo]; !ok {
		return fmt.Errorf("cgraph: destination node not found: %d", newTo)
	}
	s.checkWritable(fromNode.region)

	edges := s.out[from][kind]
	for i, t := range edges {
		if t == oldTo {
			edges[i] = newTo
		}
	}
	return nil
}

// SetAttr updates one attribute of a node, honoring region freezes.
func (s *Store) SetAttr(id NodeID, key string, value any) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("cgraph: node not found: %d", id)
	}
	s.checkWritable(n.region)
	n.Attrs[key] = value
	return nil
}

// checkWritable panics when the region is frozen. Caller holds the lock.
func (s *Store) checkWritable(fileKey string) {
	if s.frozen[fileKey] {
		panic(fmt.Sprintf("cgraph: write into frozen region %q", fileKey))
	}
}
