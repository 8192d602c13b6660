package graph

import (
	"fmt"
	"slices"
)

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*entry),
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
	}
}

// AddNode inserts the node or replaces the node with the same ID in place.
// Edges touching an existing node are kept.
func (g *Graph) AddNode(n Node) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if e, ok := g.nodes[n.ID]; ok {
		e.node = n
		return
	}

	g.seq++
	g.nodes[n.ID] = &entry{node: n, seq: g.seq}
	g.outgoing[n.ID] = []Edge{}
	g.incoming[n.ID] = []Edge{}
}

// RemoveNode deletes the node and every edge where it is source or target.
// Removing an unknown node is a no-op.
func (g *Graph) RemoveNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return
	}

	for _, e := range g.outgoing[id] {
		if e.ToID == id {
			continue
		}
		g.incoming[e.ToID] = dropEdges(g.incoming[e.ToID], id, e.ToID)
	}
	for _, e := range g.incoming[id] {
		if e.FromID == id {
			continue
		}
		g.outgoing[e.FromID] = dropEdges(g.outgoing[e.FromID], e.FromID, id)
	}

	delete(g.outgoing, id)
	delete(g.incoming, id)
	delete(g.nodes, id)
}

// AddEdge inserts the edge into the outgoing list of its source and the
// incoming list of its target. An edge with the same endpoints and type is
// replaced. Both endpoints must exist; otherwise the graph is left untouched
// and an error wrapping ErrMissingEndpoint is returned.
func (g *Graph) AddEdge(e Edge) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[e.FromID]; !ok {
		return fmt.Errorf("%w: source node %s", ErrMissingEndpoint, e.FromID)
	}
	if _, ok := g.nodes[e.ToID]; !ok {
		return fmt.Errorf("%w: target node %s", ErrMissingEndpoint, e.ToID)
	}

	g.outgoing[e.FromID] = upsertEdge(g.outgoing[e.FromID], e)
	g.incoming[e.ToID] = upsertEdge(g.incoming[e.ToID], e)
	return nil
}

// RemoveEdge deletes every edge from -> to. Missing edges are ignored.
func (g *Graph) RemoveEdge(fromID, toID string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if out, ok := g.outgoing[fromID]; ok {
		g.outgoing[fromID] = dropEdges(out, fromID, toID)
	}
	if in, ok := g.incoming[toID]; ok {
		g.incoming[toID] = dropEdges(in, fromID, toID)
	}
}

// RemoveOutgoingEdges deletes every edge whose source is id and returns how
// many were removed.
func (g *Graph) RemoveOutgoingEdges(id string) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	out, ok := g.outgoing[id]
	if !ok {
		return 0
	}
	for _, e := range out {
		g.incoming[e.ToID] = dropEdges(g.incoming[e.ToID], id, e.ToID)
	}
	g.outgoing[id] = []Edge{}
	return len(out)
}

// GetNode returns the node with the given id.
func (g *Graph) GetNode(id string) (Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	e, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return e.node, true
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	_, ok := g.nodes[id]
	return ok
}

// GetOutgoingEdges returns a copy of the edges leaving id.
func (g *Graph) GetOutgoingEdges(id string) []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return slices.Clone(g.outgoing[id])
}

// GetIncomingEdges returns a copy of the edges entering id.
func (g *Graph) GetIncomingEdges(id string) []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return slices.Clone(g.incoming[id])
}

// GetAllNodes returns every node in insertion order.
func (g *Graph) GetAllNodes() []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	ids := g.orderedIDs()
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, g.nodes[id].node)
	}
	return nodes
}

// GetAllEdges returns every edge, grouped by source node in insertion order.
func (g *Graph) GetAllEdges() []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	edges := make([]Edge, 0, g.edgeCount())
	for _, id := range g.orderedIDs() {
		edges = append(edges, g.outgoing[id]...)
	}
	return edges
}

func (g *Graph) GetNodeCount() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return len(g.nodes)
}

func (g *Graph) GetEdgeCount() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.edgeCount()
}

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.nodes = make(map[string]*entry)
	g.outgoing = make(map[string][]Edge)
	g.incoming = make(map[string][]Edge)
	g.seq = 0
}

// HasPath reports whether target is reachable from source along outgoing
// edges. A known node always reaches itself; unknown nodes reach nothing.
func (g *Graph) HasPath(sourceID, targetID string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.hasPath(sourceID, targetID)
}

// WouldCreateCycle reports whether adding from -> to would close a cycle.
func (g *Graph) WouldCreateCycle(fromID, toID string) bool {
	if fromID == toID {
		return true
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.hasPath(toID, fromID)
}

func (g *Graph) hasPath(sourceID, targetID string) bool {
	if _, ok := g.nodes[sourceID]; !ok {
		return false
	}
	if _, ok := g.nodes[targetID]; !ok {
		return false
	}
	if sourceID == targetID {
		return true
	}

	visited := map[string]bool{sourceID: true}
	queue := []string{sourceID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.outgoing[id] {
			if e.ToID == targetID {
				return true
			}
			if !visited[e.ToID] {
				visited[e.ToID] = true
				queue = append(queue, e.ToID)
			}
		}
	}
	return false
}

func (g *Graph) edgeCount() int {
	count := 0
	for _, out := range g.outgoing {
		count += len(out)
	}
	return count
}

// orderedIDs returns node ids sorted by insertion. Callers hold the lock.
func (g *Graph) orderedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return compareSeq(g.nodes[a].seq, g.nodes[b].seq)
	})
	return ids
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func upsertEdge(edges []Edge, e Edge) []Edge {
	for i := range edges {
		if edges[i].FromID == e.FromID && edges[i].ToID == e.ToID && edges[i].Type == e.Type {
			edges[i] = e
			return edges
		}
	}
	return append(edges, e)
}

func dropEdges(edges []Edge, fromID, toID string) []Edge {
	return slices.DeleteFunc(edges, func(e Edge) bool {
		return e.FromID == fromID && e.ToID == toID
	})
}
