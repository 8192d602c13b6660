package service

import (
	"context"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/logger"
)

// GetDependenciesOf returns the nodes nodeID points to.
func (s *Service) GetDependenciesOf(ctx context.Context, campaignID, branchID, nodeID string, caller Caller) ([]graph.Node, error) {
	g, err := s.GetGraph(ctx, campaignID, branchID, caller)
	if err != nil {
		return nil, err
	}
	return endpoints(g, g.GetOutgoingEdges(nodeID), func(e graph.Edge) string { return e.ToID }), nil
}

// GetDependents returns the nodes pointing to nodeID.
func (s *Service) GetDependents(ctx context.Context, campaignID, branchID, nodeID string, caller Caller) ([]graph.Node, error) {
	g, err := s.GetGraph(ctx, campaignID, branchID, caller)
	if err != nil {
		return nil, err
	}
	return endpoints(g, g.GetIncomingEdges(nodeID), func(e graph.Edge) string { return e.FromID }), nil
}

func endpoints(g *graph.Graph, edges []graph.Edge, pick func(graph.Edge) string) []graph.Node {
	nodes := make([]graph.Node, 0, len(edges))
	for _, e := range edges {
		if n, ok := g.GetNode(pick(e)); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (s *Service) ValidateNoCycles(ctx context.Context, campaignID, branchID string, caller Caller) (graph.CycleDetectionResult, error) {
	g, err := s.GetGraph(ctx, campaignID, branchID, caller)
	if err != nil {
		return graph.CycleDetectionResult{}, err
	}
	return g.DetectCycles(), nil
}

// GetEvaluationOrder returns node ids with every dependency ahead of its
// dependents. A cyclic graph has no order and yields an empty list.
func (s *Service) GetEvaluationOrder(ctx context.Context, campaignID, branchID string, caller Caller) ([]string, error) {
	g, err := s.GetGraph(ctx, campaignID, branchID, caller)
	if err != nil {
		return nil, err
	}
	res := g.TopologicalSort()
	if !res.Success {
		logger.Warn("[Service] Cannot compute evaluation order", "campaign_id", campaignID,
			"branch_id", branch(branchID), "err", res.Error)
		return []string{}, nil
	}
	return res.Order, nil
}
