// Package graph holds the file-level dependency graph of a workspace. Edges
// point from an importing file to the file it imports. The graph may contain
// cycles; every traversal here is guarded by a visited set.
package graph

import (
	"slices"

	"github.com/jward/jacls/internal/jac"
)

// Edge is one declared import. To is the resolved file identity, which may
// not be tracked yet. Module is the path as written and Span its location;
// Line is the zero-based line of the import statement.
type Edge struct {
	From   string
	To     string
	Module string
	IsJac  bool
	Line   int
	Span   jac.Range
}

// Graph keeps forward and reverse adjacency over file identities. It is not
// safe for concurrent use; callers serialize access.
type Graph struct {
	out map[string][]Edge
	in  map[string]map[string]int // to -> from -> edge count
}

func New() *Graph {
	return &Graph{
		out: make(map[string][]Edge),
		in:  make(map[string]map[string]int),
	}
}

// SetOutgoingEdges replaces file's outgoing edge set. Edges whose From does
// not match file are stored with From set to file.
func (g *Graph) SetOutgoingEdges(file string, edges []Edge) {
	g.dropOutgoing(file)
	if len(edges) == 0 {
		return
	}
	stored := make([]Edge, len(edges))
	for i, e := range edges {
		e.From = file
		stored[i] = e
		froms := g.in[e.To]
		if froms == nil {
			froms = make(map[string]int)
			g.in[e.To] = froms
		}
		froms[file]++
	}
	g.out[file] = stored
}

// RemoveFile drops file's outgoing edges. Edges from other files into it
// stay in place and resolve again if the file comes back.
func (g *Graph) RemoveFile(file string) {
	g.dropOutgoing(file)
}

func (g *Graph) dropOutgoing(file string) {
	for _, e := range g.out[file] {
		froms := g.in[e.To]
		froms[file]--
		if froms[file] <= 0 {
			delete(froms, file)
		}
		if len(froms) == 0 {
			delete(g.in, e.To)
		}
	}
	delete(g.out, file)
}

// Outgoing returns a copy of file's edges in declaration order, duplicates
// included.
func (g *Graph) Outgoing(file string) []Edge {
	return slices.Clone(g.out[file])
}

// Dependencies returns the distinct Jac targets of file in declaration
// order, excluding file itself.
func (g *Graph) Dependencies(file string) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, e := range g.out[file] {
		if !e.IsJac || e.To == file || seen[e.To] {
			continue
		}
		seen[e.To] = true
		deps = append(deps, e.To)
	}
	return deps
}

// Dependents returns the files with any edge targeting file, sorted.
func (g *Graph) Dependents(file string) []string {
	froms := g.in[file]
	out := make([]string, 0, len(froms))
	for from := range froms {
		if from != file {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

// jacDependents returns the files importing file through a Jac edge.
func (g *Graph) jacDependents(file string) []string {
	var out []string
	for from := range g.in[file] {
		for _, e := range g.out[from] {
			if e.IsJac && e.To == file {
				out = append(out, from)
				break
			}
		}
	}
	slices.Sort(out)
	return out
}

// TransitiveDependents walks Jac edges in reverse, breadth first, and
// returns every file that can see file's symbols directly or indirectly.
// The origin is never included, even when it sits on a cycle.
func (g *Graph) TransitiveDependents(file string) []string {
	visited := map[string]bool{file: true}
	queue := []string{file}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.jacDependents(cur) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	slices.Sort(out)
	return out
}

// Files returns every file with outgoing edges, sorted.
func (g *Graph) Files() []string {
	out := make([]string, 0, len(g.out))
	for f := range g.out {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Order returns files in dependency-first order using Kahn's algorithm over
// the Jac edges among them: a file comes after every file it imports.
// Within a wave files are sorted. Files on a cycle, or importing one, never
// become ready; they are appended sorted and also returned as cyclic.
func (g *Graph) Order(files []string) (order, cyclic []string) {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}

	indeg := make(map[string]int, len(present))
	dependents := make(map[string][]string)
	for f := range present {
		indeg[f] = 0
	}
	for f := range present {
		for _, dep := range g.Dependencies(f) {
			if !present[dep] {
				continue
			}
			indeg[f]++
			dependents[dep] = append(dependents[dep], f)
		}
	}

	var current []string
	for f, n := range indeg {
		if n == 0 {
			current = append(current, f)
		}
	}
	slices.Sort(current)

	order = make([]string, 0, len(present))
	for len(current) > 0 {
		var next []string
		for _, f := range current {
			order = append(order, f)
			for _, d := range dependents[f] {
				indeg[d]--
				if indeg[d] == 0 {
					next = append(next, d)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(order) != len(present) {
		for f, n := range indeg {
			if n > 0 {
				cyclic = append(cyclic, f)
			}
		}
		slices.Sort(cyclic)
		order = append(order, cyclic...)
	}
	return order, cyclic
}
