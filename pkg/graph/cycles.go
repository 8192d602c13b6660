package graph

import (
	"fmt"
	"strings"
)

const (
	white = iota // unvisited
	grey         // on the current DFS stack
	black        // finished
)

// DetectCycles walks the whole graph depth-first and reports one cycle per
// back-edge. Cycle paths start at the node the back-edge points to and end at
// the node it leaves; a self-loop yields a path with a single node.
// Overlapping cycles may be reported more than once, but not every simple
// cycle is guaranteed to be listed.
func (g *Graph) DetectCycles() CycleDetectionResult {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	color := make(map[string]int, len(g.nodes))
	position := make(map[string]int)
	stack := make([]string, 0)
	cycles := make([]CycleInfo, 0)

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		position[id] = len(stack)
		stack = append(stack, id)

		for _, e := range g.outgoing[id] {
			switch color[e.ToID] {
			case white:
				visit(e.ToID)
			case grey:
				path := make([]string, len(stack)-position[e.ToID])
				copy(path, stack[position[e.ToID]:])
				cycles = append(cycles, CycleInfo{
					Path:        path,
					Description: describeCycle(path),
				})
			}
		}

		stack = stack[:len(stack)-1]
		delete(position, id)
		color[id] = black
	}

	for _, id := range g.orderedIDs() {
		if color[id] == white {
			visit(id)
		}
	}

	return CycleDetectionResult{
		HasCycles:  len(cycles) > 0,
		Cycles:     cycles,
		CycleCount: len(cycles),
	}
}

func describeCycle(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return fmt.Sprintf("Cycle detected: %s -> %s", strings.Join(path, " -> "), path[0])
}
