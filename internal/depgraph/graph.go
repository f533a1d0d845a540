// Package depgraph maintains the handler graph: which handler writes each
// cell and which handlers read it, and derives execution plans from it.
package depgraph

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/aretw0/mosaic/pkg/domain"
)

// Handle is the result of a successful registration.
type Handle struct {
	Spec  domain.HandlerSpec
	Index int
}

// ID returns the handler id.
func (h *Handle) ID() domain.HandlerID { return h.Spec.ID }

// Graph is safe for concurrent use. Registration is expected at build time,
// planning at run time.
type Graph struct {
	mu       sync.RWMutex
	handlers []*Handle
	byID     map[domain.HandlerID]*Handle
	writer   map[domain.CellID]*Handle
	// readers holds trigger edges only (Inputs). State cells never trigger.
	readers map[domain.CellID][]*Handle
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		byID:    make(map[domain.HandlerID]*Handle),
		writer:  make(map[domain.CellID]*Handle),
		readers: make(map[domain.CellID][]*Handle),
	}
}

// Register validates a handler and adds it to the graph. On error the graph
// is left exactly as it was.
func (g *Graph) Register(spec domain.HandlerSpec) (*Handle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byID[spec.ID]; ok {
		return nil, fmt.Errorf("handler %q already registered", spec.ID)
	}
	for _, out := range spec.Outputs {
		if owner, ok := g.writer[out]; ok {
			return nil, &domain.DuplicateOutputError{Cell: out, Owner: owner.Spec.ID, Claimant: spec.ID}
		}
	}

	outputs := make(map[domain.CellID]bool, len(spec.Outputs))
	for _, out := range spec.Outputs {
		outputs[out] = true
	}
	for _, c := range append(append([]domain.CellID(nil), spec.Inputs...), spec.State...) {
		if outputs[c] {
			return nil, &domain.CyclicDependencyError{Path: []string{string(spec.ID), c.String(), string(spec.ID)}}
		}
	}

	if path := g.findCycle(spec); path != nil {
		return nil, &domain.CyclicDependencyError{Path: path}
	}

	h := &Handle{Spec: spec, Index: len(g.handlers)}
	g.handlers = append(g.handlers, h)
	g.byID[spec.ID] = h
	for _, out := range spec.Outputs {
		g.writer[out] = h
	}
	for _, in := range spec.Inputs {
		g.readers[in] = append(g.readers[in], h)
	}
	return h, nil
}

// findCycle looks for a path from any output of the candidate back to one of
// its inputs, walking input edges of the existing graph. It returns the cycle
// as h -> cell -> h2 -> ... -> h, or nil.
func (g *Graph) findCycle(spec domain.HandlerSpec) []string {
	inputs := make(map[domain.CellID]bool, len(spec.Inputs))
	for _, in := range spec.Inputs {
		inputs[in] = true
	}

	type step struct {
		cell domain.CellID
		path []string
	}
	visited := make(map[domain.HandlerID]bool)
	queue := make([]step, 0, len(spec.Outputs))
	for _, out := range spec.Outputs {
		queue = append(queue, step{cell: out, path: []string{string(spec.ID), out.String()}})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range g.readers[cur.cell] {
			if visited[r.Spec.ID] {
				continue
			}
			visited[r.Spec.ID] = true
			for _, out := range r.Spec.Outputs {
				path := append(append([]string(nil), cur.path...), string(r.Spec.ID), out.String())
				if inputs[out] {
					return append(path, string(spec.ID))
				}
				queue = append(queue, step{cell: out, path: path})
			}
		}
	}
	return nil
}

// Handler returns a registered handler by id.
func (g *Graph) Handler(id domain.HandlerID) (*Handle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.byID[id]
	return h, ok
}

// Handlers returns every handler in registration order.
func (g *Graph) Handlers() []*Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Handle(nil), g.handlers...)
}

// Writer returns the handler that owns a cell.
func (g *Graph) Writer(cell domain.CellID) (*Handle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.writer[cell]
	return h, ok
}

// Readers returns the handlers triggered by a cell, in registration order.
func (g *Graph) Readers(cell domain.CellID) []*Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Handle(nil), g.readers[cell]...)
}

// Affected returns every handler transitively reachable from the changed
// cells through input edges, in topological order. Ties are broken by
// registration order. Only the reachable subgraph is visited.
func (g *Graph) Affected(changed []domain.CellID) []domain.HandlerID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	reach := make(map[*Handle]bool)
	stack := make([]domain.CellID, 0, len(changed))
	stack = append(stack, changed...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, r := range g.readers[c] {
			if reach[r] {
				continue
			}
			reach[r] = true
			stack = append(stack, r.Spec.Outputs...)
		}
	}
	if len(reach) == 0 {
		return nil
	}

	// In-degree counts edges from upstream handlers inside the reachable set.
	indeg := make(map[*Handle]int, len(reach))
	for h := range reach {
		for _, in := range h.Spec.Inputs {
			if w, ok := g.writer[in]; ok && reach[w] {
				indeg[h]++
			}
		}
	}

	ready := &byIndex{}
	for h := range reach {
		if indeg[h] == 0 {
			heap.Push(ready, h)
		}
	}

	plan := make([]domain.HandlerID, 0, len(reach))
	for ready.Len() > 0 {
		h := heap.Pop(ready).(*Handle)
		plan = append(plan, h.Spec.ID)
		for _, out := range h.Spec.Outputs {
			for _, r := range g.readers[out] {
				if !reach[r] {
					continue
				}
				// A reader may consume several outputs of the same handler.
				for _, in := range r.Spec.Inputs {
					if in == out {
						indeg[r]--
					}
				}
				if indeg[r] == 0 {
					heap.Push(ready, r)
				}
			}
		}
	}
	return plan
}

// Partition splits a plan into groups of handlers sharing no cell. Each group
// keeps plan order; groups are ordered by their first handler in the plan.
func (g *Graph) Partition(plan []domain.HandlerID) [][]domain.HandlerID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	parent := make([]int, len(plan))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	owner := make(map[domain.CellID]int)
	for i, id := range plan {
		h, ok := g.byID[id]
		if !ok {
			continue
		}
		cells := append(append(append([]domain.CellID(nil), h.Spec.Inputs...), h.Spec.State...), h.Spec.Outputs...)
		for _, c := range cells {
			if j, seen := owner[c]; seen {
				union(i, j)
			} else {
				owner[c] = i
			}
		}
	}

	groups := make(map[int][]domain.HandlerID)
	var order []int
	for i, id := range plan {
		root := find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], id)
	}
	out := make([][]domain.HandlerID, 0, len(order))
	for _, root := range order {
		out = append(out, groups[root])
	}
	return out
}

type byIndex []*Handle

func (b byIndex) Len() int           { return len(b) }
func (b byIndex) Less(i, j int) bool { return b[i].Index < b[j].Index }
func (b byIndex) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
func (b *byIndex) Push(x any)        { *b = append(*b, x.(*Handle)) }
func (b *byIndex) Pop() any {
	old := *b
	n := len(old)
	h := old[n-1]
	*b = old[:n-1]
	return h
}
