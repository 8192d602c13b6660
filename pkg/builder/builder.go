package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/common"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/extract"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultBranch is used when no branch id is given.
const DefaultBranch = "main"

// OwnerKind is the entity type an effect is attached to.
type OwnerKind string

const (
	OwnerEncounter OwnerKind = "encounter"
	OwnerEvent     OwnerKind = "event"
)

type ownerResolver func(ctx context.Context, id string) (string, error)

// Params configures a Builder.
type Params struct {
	Storage store.EntityStorage
	Scopes  store.ScopeLookup
}

// Builder assembles dependency graphs from the stored rule entities.
type Builder struct {
	storage store.EntityStorage
	owners  map[OwnerKind]ownerResolver
	tracer  trace.Tracer
}

func New(params Params) *Builder {
	return &Builder{
		storage: params.Storage,
		owners: map[OwnerKind]ownerResolver{
			OwnerEncounter: params.Scopes.EncounterCampaignID,
			OwnerEvent:     params.Scopes.EventCampaignID,
		},
		tracer: otel.Tracer("github.com/OFFIS-RIT/rulegraph/backend/pkg/builder"),
	}
}

// BuildGraphForCampaign builds the full dependency graph for a campaign.
// Storage errors are returned as is and no graph is produced.
func (b *Builder) BuildGraphForCampaign(ctx context.Context, campaignID, branchID string) (g *graph.Graph, err error) {
	if branchID == "" {
		branchID = DefaultBranch
	}
	ctx, span := b.tracer.Start(ctx, "builder.BuildGraphForCampaign", trace.WithAttributes(
		attribute.String("campaign.id", campaignID),
		attribute.String("branch.id", branchID),
	))
	defer func() { endSpan(span, err) }()

	var (
		conditions []common.Condition
		variables  []common.Variable
		effects    []common.Effect
	)
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		conditions, err = b.storage.ListActiveConditions(ectx)
		return err
	})
	eg.Go(func() error {
		var err error
		variables, err = b.storage.ListActiveVariables(ectx)
		return err
	})
	eg.Go(func() error {
		var err error
		effects, err = b.storage.ListActivePatchEffects(ectx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g = graph.New()
	for _, v := range variables {
		g.AddNode(variableNode(v))
	}
	idx := indexVariables(g)

	for _, c := range conditions {
		if err := addCondition(g, idx, c); err != nil {
			return nil, err
		}
	}

	for _, e := range effects {
		owned, err := b.ownedBy(ctx, e, campaignID)
		if err != nil {
			return nil, err
		}
		if !owned {
			continue
		}
		if err := addEffect(g, idx, e); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("graph.nodes", g.GetNodeCount()),
		attribute.Int("graph.edges", g.GetEdgeCount()),
	)
	logger.Debug("[Builder] Built graph", "campaign_id", campaignID, "branch_id", branchID,
		"nodes", g.GetNodeCount(), "edges", g.GetEdgeCount())
	return g, nil
}

// ownedBy reports whether the effect's parent entity belongs to campaignID.
// Effects on unknown owner kinds are excluded.
func (b *Builder) ownedBy(ctx context.Context, e common.Effect, campaignID string) (bool, error) {
	kind := OwnerKind(strings.ToLower(e.EntityType))
	resolve, ok := b.owners[kind]
	if !ok {
		logger.Warn("[Builder] Unknown effect owner type, excluding effect",
			"effect_id", e.ID, "entity_type", e.EntityType)
		return false, nil
	}
	owner, err := resolve(ctx, e.EntityID)
	if err != nil {
		return false, fmt.Errorf("resolve owner of effect %s: %w", e.ID, err)
	}
	return owner == campaignID, nil
}

func addCondition(g *graph.Graph, idx variableIndex, c common.Condition) error {
	node := conditionNode(c)
	g.AddNode(node)
	for _, key := range extract.ExtractReadsJSON(c.Expression).Sorted() {
		target := idx.resolve(g, key)
		if target == "" {
			continue
		}
		err := g.AddEdge(graph.Edge{
			FromID:   node.ID,
			ToID:     target,
			Type:     graph.EdgeReads,
			Metadata: map[string]any{"key": key},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// addEffect links writes only to variables that already exist. Writes never
// create virtual nodes.
func addEffect(g *graph.Graph, idx variableIndex, e common.Effect) error {
	node := effectNode(e)
	g.AddNode(node)
	for _, key := range extract.ExtractWrites(e).Sorted() {
		target, ok := idx[key]
		if !ok {
			continue
		}
		err := g.AddEdge(graph.Edge{
			FromID:   node.ID,
			ToID:     target,
			Type:     graph.EdgeWrites,
			Metadata: map[string]any{"key": key},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
