package builder

import (
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/common"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/extract"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/graph"
)

func variableNode(v common.Variable) graph.Node {
	return graph.Node{
		ID:       graph.NodeID(graph.NodeVariable, v.ID),
		Type:     graph.NodeVariable,
		EntityID: v.ID,
		Label:    v.Scope + ":" + v.Key,
		Metadata: map[string]any{
			"key":          v.Key,
			"scope":        v.Scope,
			"scopeId":      v.ScopeID,
			"variableType": v.Type,
		},
	}
}

func virtualNode(key string) graph.Node {
	return graph.Node{
		ID:       graph.NodeID(graph.NodeVariable, key),
		Type:     graph.NodeVariable,
		EntityID: key,
		Label:    key,
		Metadata: map[string]any{
			"key":     key,
			"virtual": true,
		},
	}
}

func conditionNode(c common.Condition) graph.Node {
	return graph.Node{
		ID:       graph.NodeID(graph.NodeCondition, c.ID),
		Type:     graph.NodeCondition,
		EntityID: c.ID,
		Label:    c.EntityType + "." + c.Field,
		Metadata: map[string]any{
			"entityType": c.EntityType,
			"entityId":   c.EntityID,
			"field":      c.Field,
		},
	}
}

func effectNode(e common.Effect) graph.Node {
	return graph.Node{
		ID:       graph.NodeID(graph.NodeEffect, e.ID),
		Type:     graph.NodeEffect,
		EntityID: e.ID,
		Label:    e.Name,
		Metadata: map[string]any{
			"effectType": e.EffectType,
			"timing":     e.Timing,
			"priority":   e.Priority,
			"entityType": e.EntityType,
			"entityId":   e.EntityID,
		},
	}
}

// variableIndex maps a variable key to the id of the node that backs it.
// Persisted variables win over virtual ones; among persisted variables the
// first inserted wins.
type variableIndex map[string]string

func indexVariables(g *graph.Graph) variableIndex {
	idx := variableIndex{}
	for _, n := range g.GetAllNodes() {
		if n.Type != graph.NodeVariable {
			continue
		}
		key, _ := n.Metadata["key"].(string)
		if key == "" {
			continue
		}
		virtual, _ := n.Metadata["virtual"].(bool)
		current, seen := idx[key]
		if !seen || (!virtual && isVirtual(g, current)) {
			idx[key] = n.ID
		}
	}
	return idx
}

func isVirtual(g *graph.Graph, id string) bool {
	n, ok := g.GetNode(id)
	if !ok {
		return false
	}
	virtual, _ := n.Metadata["virtual"].(bool)
	return virtual
}

// resolve returns the node id backing key, creating a virtual variable for
// settlement and structure properties. Unknown keys resolve to "".
func (idx variableIndex) resolve(g *graph.Graph, key string) string {
	if id, ok := idx[key]; ok {
		return id
	}
	if !extract.IsVirtualKey(key) {
		return ""
	}
	node := virtualNode(key)
	g.AddNode(node)
	idx[key] = node.ID
	return node.ID
}
