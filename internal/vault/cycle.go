package vault

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// linkGraph maps a collection ID to the collections it holds in items,
// owned or referenced. Ownership alone is a tree; references are what can
// close a cycle.
type linkGraph map[string][]string

// collectionGraph builds the collection containment graph of s.
func (s *State) collectionGraph() linkGraph {
	graph := make(linkGraph)
	for id := range s.entities[ir.KindCollection] {
		if graph[id] == nil {
			graph[id] = []string{}
		}
		for _, child := range s.children[id][ir.SlotItems] {
			if s.kinds[child] == ir.KindCollection {
				graph[id] = append(graph[id], child)
			}
		}
	}
	return graph
}

// path returns a chain of edges leading from -> ... -> to, or nil when to
// is unreachable. A node reaches itself with a single-element path.
func (g linkGraph) path(from, to string) []string {
	visited := make(map[string]bool)
	var stack []string
	var dfs func(string) bool
	dfs = func(v string) bool {
		stack = append(stack, v)
		if v == to {
			return true
		}
		visited[v] = true
		for _, w := range g[v] {
			if !visited[w] && dfs(w) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		return false
	}
	if dfs(from) {
		return stack
	}
	return nil
}

// cyclePath returns the cycle that adding the edge parent -> child would
// close, as parent -> child -> ... -> parent, or nil.
func (g linkGraph) cyclePath(parent, child string) []string {
	p := g.path(child, parent)
	if p == nil {
		return nil
	}
	return append([]string{parent}, p...)
}

// referenceCycles finds strongly connected components of the collection
// graph using Tarjan's algorithm. Each returned component (size > 1, or a
// self-loop) is a cycle. Components are sorted for stable output.
func (g linkGraph) referenceCycles() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 || slices.Contains(g[v], v) {
				sort.Strings(scc)
				sccs = append(sccs, scc)
			}
		}
	}

	nodes := make([]string, 0, len(g))
	for node := range g {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0] < sccs[j][0] })
	return sccs
}

func formatCycle(path []string) string {
	return fmt.Sprintf("reference cycle: %s", strings.Join(path, " -> "))
}
