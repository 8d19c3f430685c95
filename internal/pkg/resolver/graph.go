package resolver

import (
	"maps"
	"slices"
	"strings"

	"github.com/openshift/operator-upgradepath/internal/pkg/catalog"
)

// edge is an upgrade from one node to a newer entry.
type edge struct {
	to string
	// shortcut is 1 for skips and skipRange edges, 0 for replaces.
	shortcut int
}

// upgradeGraph holds, for every node, the entries it may upgrade to.
// Node names are entry names plus, at most, one virtual start node for an
// installed version that is not an entry of the channel.
type upgradeGraph map[string][]edge

// newUpgradeGraph derives the upgrade edges of ch. When start is not an
// entry it is added as a virtual node reaching the entries whose
// replaces, skips or skipRange cover it.
func newUpgradeGraph(ch *catalog.Channel, start string) upgradeGraph {
	g := upgradeGraph{}
	add := func(from, to string, shortcut int) {
		for i, e := range g[from] {
			if e.to == to {
				g[from][i].shortcut = min(e.shortcut, shortcut)
				return
			}
		}
		g[from] = append(g[from], edge{to: to, shortcut: shortcut})
	}

	_, startIsEntry := ch.Entry(start)
	for _, to := range ch.Entries {
		if _, ok := ch.Entry(to.Replaces); ok || (to.Replaces != "" && to.Replaces == start) {
			add(to.Replaces, to.Name, 0)
		}
		for _, skipped := range to.Skips {
			if _, ok := ch.Entry(skipped); ok || skipped == start {
				add(skipped, to.Name, 1)
			}
		}
		if to.SkipRange == nil {
			continue
		}
		for _, from := range ch.Entries {
			if from.Name != to.Name && from.Version != nil && to.SkipRange(*from.Version) {
				add(from.Name, to.Name, 1)
			}
		}
		if start != "" && !startIsEntry && to.InSkipRange(start) {
			add(start, to.Name, 1)
		}
	}

	// deterministic traversal
	for from := range g {
		slices.SortFunc(g[from], func(a, b edge) int { return strings.Compare(a.to, b.to) })
	}
	return g
}

// shortestPath runs a breadth first search from start to end. Among the
// paths with the fewest steps it returns the one using the fewest
// shortcuts; remaining ties go to the lexically smaller predecessor.
func (g upgradeGraph) shortestPath(start, end string) []string {
	type state struct {
		steps     int
		shortcuts int
		prev      string
	}
	best := map[string]state{start: {}}
	layer := []string{start}

	for len(layer) > 0 {
		if _, ok := best[end]; ok {
			break
		}
		var next []string
		for _, node := range layer {
			cur := best[node]
			for _, e := range g[node] {
				cand := state{steps: cur.steps + 1, shortcuts: cur.shortcuts + e.shortcut, prev: node}
				seen, ok := best[e.to]
				switch {
				case !ok:
					best[e.to] = cand
					next = append(next, e.to)
				case seen.steps == cand.steps && (cand.shortcuts < seen.shortcuts ||
					(cand.shortcuts == seen.shortcuts && cand.prev < seen.prev)):
					best[e.to] = cand
				}
			}
		}
		layer = next
	}

	if _, ok := best[end]; !ok {
		return nil
	}
	var path []string
	for node := end; node != start; node = best[node].prev {
		path = append(path, node)
	}
	path = append(path, start)
	slices.Reverse(path)
	return path
}

// findCycle returns a cycle of g as the node sequence closing on its first
// node, or nil. Nodes and edges are visited in lexical order.
func (g upgradeGraph) findCycle() []string {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := map[string]int{}
	var stack []string

	var visit func(node string) []string
	visit = func(node string) []string {
		state[node] = inProgress
		stack = append(stack, node)
		for _, e := range g[node] {
			switch state[e.to] {
			case inProgress:
				i := slices.Index(stack, e.to)
				return append(slices.Clone(stack[i:]), e.to)
			case unvisited:
				if cycle := visit(e.to); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return nil
	}

	nodes := slices.Sorted(maps.Keys(g))
	for _, node := range nodes {
		if state[node] == unvisited {
			if cycle := visit(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// reaches reports whether end can be reached from start.
func (g upgradeGraph) reaches(start, end string) bool {
	return g.shortestPath(start, end) != nil
}
