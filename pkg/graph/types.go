package graph

import (
	"errors"
	"sync"
)

// NodeType classifies a vertex of the dependency graph.
type NodeType string

const (
	NodeVariable  NodeType = "VARIABLE"
	NodeCondition NodeType = "CONDITION"
	NodeEffect    NodeType = "EFFECT"
	NodeEntity    NodeType = "ENTITY"
)

// EdgeType classifies a directed relationship between two nodes.
type EdgeType string

const (
	EdgeReads     EdgeType = "READS"
	EdgeWrites    EdgeType = "WRITES"
	EdgeDependsOn EdgeType = "DEPENDS_ON"
)

// ErrMissingEndpoint is returned by AddEdge when either endpoint is not a
// node of the graph. It signals a builder bug, not bad rule data.
var ErrMissingEndpoint = errors.New("edge endpoint not found")

// Node is a typed vertex. ID is always "<TYPE>:<entityId>", see NodeID.
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	EntityID string         `json:"entityId"`
	Label    string         `json:"label"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Edge is a directed relationship. An edge From -> To means that From
// depends on To: a condition reads a variable, an effect writes one.
type Edge struct {
	FromID   string         `json:"fromId"`
	ToID     string         `json:"toId"`
	Type     EdgeType       `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CycleInfo describes one cycle found by DetectCycles.
type CycleInfo struct {
	Path        []string `json:"path"`
	Description string   `json:"description"`
}

// CycleDetectionResult is the outcome of DetectCycles.
type CycleDetectionResult struct {
	HasCycles  bool        `json:"hasCycles"`
	Cycles     []CycleInfo `json:"cycles"`
	CycleCount int         `json:"cycleCount"`
}

// TopologicalSortResult is the outcome of TopologicalSort. On failure Order
// holds the nodes that could be resolved and RemainingNodes the rest.
type TopologicalSortResult struct {
	Success        bool     `json:"success"`
	Order          []string `json:"order"`
	RemainingNodes []string `json:"remainingNodes"`
	Error          string   `json:"error,omitempty"`
}

// Graph is an in-memory directed graph with adjacency indices in both
// directions. All methods are safe for concurrent use.
type Graph struct {
	mutex sync.RWMutex

	nodes map[string]*entry
	seq   uint64

	// outgoing[id] holds edges where id is the source, incoming[id] edges
	// where id is the target. Both are kept in insertion order.
	outgoing map[string][]Edge
	incoming map[string][]Edge
}

type entry struct {
	node Node
	seq  uint64
}

// NodeID builds the canonical node id for an entity of the given type.
func NodeID(t NodeType, entityID string) string {
	return string(t) + ":" + entityID
}
