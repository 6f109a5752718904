package instance

import (
	"sort"

	"github.com/vk/atograph/internal/cgraph"
)

// groupNets groups connection edges into nets by transitive closure, using
// union-find over the connected pin/signal instances. Electrical
// connectivity is cyclic and many-to-many, so nets come from the edge
// table, never from object references.
func (it *Instantiator) groupNets(d *Design) {
	uf := newUnionFind()

	byNode := make(map[cgraph.NodeID]*Instance, len(d.byPath))
	var paths []string
	for p, in := range d.byPath {
		paths = append(paths, p)
		byNode[in.Node] = in
	}
	sort.Strings(paths)

	// Union endpoints of every connection edge, in path order for
	// determinism.
	for _, p := range paths {
		in := d.byPath[p]
		for _, to := range d.Store.Neighbors(in.Node, cgraph.Connection) {
			other := byNode[to]
			uf.union(in.Path, other.Path)
		}
	}

	groups := make(map[string][]*Instance)
	for _, p := range paths {
		in := d.byPath[p]
		if !in.IsConnectable() {
			continue
		}
		root, ok := uf.find(p)
		if !ok {
			continue // isolated pin, not part of any net
		}
		groups[root] = append(groups[root], in)
	}

	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
		d.Nets = append(d.Nets, &Net{Members: members})
	}
	sort.Slice(d.Nets, func(i, j int) bool { return d.Nets[i].Name() < d.Nets[j].Name() })
}

// unionFind is a plain disjoint-set over path strings with path halving.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string), rank: make(map[string]int)}
}

// find returns the set root, or false when the key was never united.
func (u *unionFind) find(key string) (string, bool) {
	if _, ok := u.parent[key]; !ok {
		return "", false
	}
	for u.parent[key] != key {
		u.parent[key] = u.parent[u.parent[key]]
		key = u.parent[key]
	}
	return key, true
}

func (u *unionFind) union(a, b string) {
	ra := u.ensure(a)
	rb := u.ensure(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

func (u *unionFind) ensure(key string) string {
	if _, ok := u.parent[key]; !ok {
		u.parent[key] = key
		u.rank[key] = 0
	}
	root, _ := u.find(key)
	return root
}
