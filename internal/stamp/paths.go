package stamp

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/isaac/internal/ir"
)

// Origin says history on Path up to and including Time is visible on the
// path that owns the origin.
type Origin struct {
	Path ir.Nid `json:"path" yaml:"path"`
	Time int64  `json:"time" yaml:"time"`
}

// Paths is the path-origin graph.
//
// Thread-safety: all methods are safe for concurrent use. Definitions are
// rare and reads are frequent, so a RWMutex guards the graph.
type Paths struct {
	mu      sync.RWMutex
	origins map[ir.Nid][]Origin
}

// NewPaths creates an empty path graph.
func NewPaths() *Paths {
	return &Paths{origins: make(map[ir.Nid][]Origin)}
}

// AddPath defines path with the given origins, replacing any previous
// definition. Origin paths not yet defined are added with no origins.
// A definition that would close a cycle is rejected with PATH_CYCLE and
// leaves the graph unchanged.
func (p *Paths) AddPath(path ir.Nid, origins ...Origin) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidate := make(originGraph, len(p.origins)+1)
	for nid, os := range p.origins {
		candidate[nid] = os
	}
	candidate[path] = slices.Clone(origins)
	for _, o := range origins {
		if _, ok := candidate[o.Path]; !ok {
			candidate[o.Path] = nil
		}
	}

	if cycle := candidate.findCycle(); cycle != nil {
		return ir.Errorf(ir.ErrCodePathCycle, "origins of path %d close a cycle: %s", path, formatCycle(cycle))
	}
	p.origins = candidate
	return nil
}

// Known reports whether path has been defined, directly or as an origin.
func (p *Paths) Known(path ir.Nid) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.origins[path]
	return ok
}

// Origins returns a copy of the origins of path.
func (p *Paths) Origins(path ir.Nid) []Origin {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.origins[path])
}

// Nids returns every known path, sorted.
func (p *Paths) Nids() []ir.Nid {
	p.mu.RLock()
	defer p.mu.RUnlock()
	nids := make([]ir.Nid, 0, len(p.origins))
	for nid := range p.origins {
		nids = append(nids, nid)
	}
	slices.Sort(nids)
	return nids
}

// ReachBound returns the latest time of history on from that is visible on
// to. A path sees all of its own history (TimeMax). Along one origin chain
// the bound is the smallest origin time; across chains the largest bound
// wins. ok is false when from is not an ancestor of to.
func (p *Paths) ReachBound(from, to ir.Nid) (bound int64, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reachBound(from, to, make(map[ir.Nid]bool))
}

func (p *Paths) reachBound(from, to ir.Nid, visiting map[ir.Nid]bool) (int64, bool) {
	if from == to {
		return ir.TimeMax, true
	}
	if visiting[to] {
		return 0, false
	}
	visiting[to] = true
	defer delete(visiting, to)

	best, found := int64(0), false
	for _, o := range p.origins[to] {
		b, ok := p.reachBound(from, o.Path, visiting)
		if !ok {
			continue
		}
		b = min(b, o.Time)
		if !found || b > best {
			best, found = b, true
		}
	}
	return best, found
}

// originGraph maps a path to its origins.
type originGraph map[ir.Nid][]Origin

// findCycle returns one cycle in the graph, or nil when it is acyclic.
func (g originGraph) findCycle() []ir.Nid {
	for _, scc := range g.tarjanSCC() {
		if len(scc) > 1 {
			slices.Sort(scc)
			return append(scc, scc[0])
		}
		if g.hasSelfLoop(scc[0]) {
			return []ir.Nid{scc[0], scc[0]}
		}
	}
	return nil
}

func (g originGraph) hasSelfLoop(node ir.Nid) bool {
	for _, o := range g[node] {
		if o.Path == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the reported cycle is stable.
func (g originGraph) tarjanSCC() [][]ir.Nid {
	var (
		index   = 0
		stack   []ir.Nid
		indices = make(map[ir.Nid]int)
		lowlink = make(map[ir.Nid]int)
		onStack = make(map[ir.Nid]bool)
		sccs    [][]ir.Nid
	)

	var strongConnect func(ir.Nid)
	strongConnect = func(v ir.Nid) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, o := range g[v] {
			w := o.Path
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []ir.Nid
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]ir.Nid, 0, len(g))
	for node := range g {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func formatCycle(cycle []ir.Nid) string {
	parts := make([]string, len(cycle))
	for i, nid := range cycle {
		parts[i] = fmt.Sprintf("%d", nid)
	}
	return strings.Join(parts, " → ")
}
