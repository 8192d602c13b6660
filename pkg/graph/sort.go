package graph

import (
	"fmt"
	"strings"
)

// TopologicalSort orders the nodes so that dependencies come first: for
// every edge A -> B ("A depends on B"), B appears before A. Nodes that become
// ready at the same time keep their insertion order.
//
// If the graph contains a cycle, Success is false, Order holds whatever could
// be resolved and RemainingNodes lists the nodes that are on or behind a
// cycle.
func (g *Graph) TopologicalSort() TopologicalSortResult {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	ids := g.orderedIDs()

	// pending counts unresolved dependencies, i.e. outgoing edges.
	pending := make(map[string]int, len(ids))
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		pending[id] = len(g.outgoing[id])
		if pending[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, e := range g.incoming[id] {
			pending[e.FromID]--
			if pending[e.FromID] == 0 {
				queue = append(queue, e.FromID)
			}
		}
	}

	remaining := make([]string, 0)
	for _, id := range ids {
		if pending[id] > 0 {
			remaining = append(remaining, id)
		}
	}

	if len(remaining) > 0 {
		return TopologicalSortResult{
			Success:        false,
			Order:          order,
			RemainingNodes: remaining,
			Error: fmt.Sprintf(
				"graph contains cycles, %d node(s) could not be ordered: %s",
				len(remaining),
				strings.Join(remaining, ", "),
			),
		}
	}

	return TopologicalSortResult{
		Success:        true,
		Order:          order,
		RemainingNodes: remaining,
	}
}
