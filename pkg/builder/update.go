package builder

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UpdateGraphForCondition re-reads a condition and replaces its node and
// outgoing edges. A missing, inactive or deleted condition is removed.
func (b *Builder) UpdateGraphForCondition(ctx context.Context, g *graph.Graph, conditionID string) (err error) {
	ctx, span := b.startUpdate(ctx, "builder.UpdateGraphForCondition", conditionID)
	defer func() { endSpan(span, err) }()

	nodeID := graph.NodeID(graph.NodeCondition, conditionID)
	c, err := b.storage.GetCondition(ctx, conditionID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !c.Live()) {
		g.RemoveNode(nodeID)
		return nil
	}
	if err != nil {
		return err
	}

	g.RemoveOutgoingEdges(nodeID)
	return addCondition(g, indexVariables(g), c)
}

// UpdateGraphForVariable refreshes a variable's node. Edges are owned by the
// conditions and effects that reference it and stay untouched.
func (b *Builder) UpdateGraphForVariable(ctx context.Context, g *graph.Graph, variableID string) (err error) {
	ctx, span := b.startUpdate(ctx, "builder.UpdateGraphForVariable", variableID)
	defer func() { endSpan(span, err) }()

	nodeID := graph.NodeID(graph.NodeVariable, variableID)
	v, err := b.storage.GetVariable(ctx, variableID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !v.Live()) {
		g.RemoveNode(nodeID)
		return nil
	}
	if err != nil {
		return err
	}

	g.AddNode(variableNode(v))
	return nil
}

// UpdateGraphForEffect re-reads an effect and replaces its node and outgoing
// edges. The effect is removed when it is gone, inactive, no longer a patch
// or now belongs to another campaign.
func (b *Builder) UpdateGraphForEffect(ctx context.Context, g *graph.Graph, campaignID, effectID string) (err error) {
	ctx, span := b.startUpdate(ctx, "builder.UpdateGraphForEffect", effectID)
	defer func() { endSpan(span, err) }()

	nodeID := graph.NodeID(graph.NodeEffect, effectID)
	e, err := b.storage.GetEffect(ctx, effectID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !e.Live()) {
		g.RemoveNode(nodeID)
		return nil
	}
	if err != nil {
		return err
	}

	owned, err := b.ownedBy(ctx, e, campaignID)
	if err != nil {
		return err
	}
	if !owned {
		g.RemoveNode(nodeID)
		return nil
	}

	g.RemoveOutgoingEdges(nodeID)
	return addEffect(g, indexVariables(g), e)
}

// RemoveFromGraph removes a node and every edge touching it.
func (b *Builder) RemoveFromGraph(g *graph.Graph, nodeID string) {
	g.RemoveNode(nodeID)
}

func (b *Builder) startUpdate(ctx context.Context, name, entityID string) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("entity.id", entityID)))
}
