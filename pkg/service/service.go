package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/builder"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/store"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when the campaign does not exist or the caller may
// not see it. Both cases are reported the same way.
var ErrNotFound = errors.New("campaign not found")

const DefaultCacheSize = 256

// DefaultBuildTimeout bounds a shared graph build. Builds outlive the
// request that started them so other waiters are not cancelled with it.
const DefaultBuildTimeout = time.Minute

// RoleAdmin skips the campaign access check.
const RoleAdmin = "admin"

// Caller identifies who is asking for a graph.
type Caller struct {
	UserID string
	Role   string
}

// EntityKind names the rule entity a change notification is about.
type EntityKind string

const (
	EntityCondition EntityKind = "condition"
	EntityVariable  EntityKind = "variable"
	EntityEffect    EntityKind = "effect"
)

// Invalidation is broadcast to other processes sharing the same store.
// EntityKind and EntityID are empty for whole-graph invalidations.
type Invalidation struct {
	CampaignID string
	BranchID   string
	EntityKind EntityKind
	EntityID   string
}

// Notifier publishes invalidations to other processes.
type Notifier interface {
	PublishInvalidation(ctx context.Context, inv Invalidation) error
}

// GraphBuilder builds and incrementally maintains graphs.
type GraphBuilder interface {
	BuildGraphForCampaign(ctx context.Context, campaignID, branchID string) (*graph.Graph, error)
	UpdateGraphForCondition(ctx context.Context, g *graph.Graph, conditionID string) error
	UpdateGraphForVariable(ctx context.Context, g *graph.Graph, variableID string) error
	UpdateGraphForEffect(ctx context.Context, g *graph.Graph, campaignID, effectID string) error
}

type Params struct {
	Builder GraphBuilder
	Access  store.AccessChecker
	// CacheSize bounds the number of cached graphs. Defaults to
	// DefaultCacheSize.
	CacheSize int
	// BuildTimeout defaults to DefaultBuildTimeout.
	BuildTimeout time.Duration
	// Notifier is optional.
	Notifier Notifier
}

// Service caches one dependency graph per campaign and branch and answers
// dependency queries on it.
type Service struct {
	builder  GraphBuilder
	access   store.AccessChecker
	notifier Notifier
	cache    *lru.Cache[string, *graph.Graph]
	group    singleflight.Group
	tracer   trace.Tracer

	buildTimeout time.Duration

	// generations is bumped on every eviction so builds that started
	// before an invalidation are not cached.
	mu          sync.Mutex
	generations map[string]uint64
}

func New(params Params) (*Service, error) {
	size := params.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	timeout := params.BuildTimeout
	if timeout <= 0 {
		timeout = DefaultBuildTimeout
	}
	cache, err := lru.New[string, *graph.Graph](size)
	if err != nil {
		return nil, fmt.Errorf("create graph cache: %w", err)
	}
	return &Service{
		builder:      params.Builder,
		access:       params.Access,
		notifier:     params.Notifier,
		cache:        cache,
		tracer:       otel.Tracer("github.com/OFFIS-RIT/rulegraph/backend/pkg/service"),
		generations:  make(map[string]uint64),
		buildTimeout: timeout,
	}, nil
}

func cacheKey(campaignID, branchID string) string {
	return campaignID + ":" + branch(branchID)
}

func branch(branchID string) string {
	if branchID == "" {
		return builder.DefaultBranch
	}
	return branchID
}

// Authorize reports ErrNotFound when caller may not see the campaign.
func (s *Service) Authorize(ctx context.Context, campaignID string, caller Caller) error {
	if caller.Role == RoleAdmin {
		return nil
	}
	ok, err := s.access.HasCampaignAccess(ctx, campaignID, caller.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// GetGraph returns the cached graph for the campaign and branch, building it
// on a miss. Concurrent misses on the same key share one build.
func (s *Service) GetGraph(ctx context.Context, campaignID, branchID string, caller Caller) (*graph.Graph, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetGraph", trace.WithAttributes(
		attribute.String("campaign.id", campaignID),
		attribute.String("branch.id", branch(branchID)),
	))
	defer span.End()

	if err := s.Authorize(ctx, campaignID, caller); err != nil {
		return nil, err
	}

	key := cacheKey(campaignID, branchID)
	if g, ok := s.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return g, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The generation read and the join happen under mu so an eviction
	// cannot slip in between them.
	s.mu.Lock()
	gen := s.generations[key]
	ch := s.group.DoChan(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()
		g, err := s.builder.BuildGraphForCampaign(bctx, campaignID, branch(branchID))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.generations[key] == gen {
			s.cache.Add(key, g)
		}
		s.mu.Unlock()
		return g, nil
	})
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			logger.Error("[Service] Failed to build graph", "campaign_id", campaignID, "branch_id", branch(branchID), "err", res.Err)
			return nil, res.Err
		}
		return res.Val.(*graph.Graph), nil
	}
}

// EvictLocal drops the cached graph without notifying other processes.
func (s *Service) EvictLocal(campaignID, branchID string) {
	key := cacheKey(campaignID, branchID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	s.cache.Remove(key)
	s.group.Forget(key)
}

// InvalidateGraph drops the cached graph and tells other processes to do
// the same. It never fails; publish errors are only logged.
func (s *Service) InvalidateGraph(ctx context.Context, campaignID, branchID string) {
	s.EvictLocal(campaignID, branchID)
	s.publish(ctx, Invalidation{CampaignID: campaignID, BranchID: branch(branchID)})
}

// RefreshEntity applies an incremental update for one entity to the cached
// graph. When the graph is not cached any build in flight is discarded, so
// the next read sees the change. On failure the graph is evicted.
func (s *Service) RefreshEntity(ctx context.Context, campaignID, branchID string, kind EntityKind, entityID string) error {
	key := cacheKey(campaignID, branchID)
	g, ok := s.cache.Peek(key)
	if !ok {
		s.EvictLocal(campaignID, branchID)
		return nil
	}

	var err error
	switch kind {
	case EntityCondition:
		err = s.builder.UpdateGraphForCondition(ctx, g, entityID)
	case EntityVariable:
		err = s.builder.UpdateGraphForVariable(ctx, g, entityID)
	case EntityEffect:
		err = s.builder.UpdateGraphForEffect(ctx, g, campaignID, entityID)
	default:
		err = fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		s.EvictLocal(campaignID, branchID)
		return err
	}
	return nil
}

// NotifyEntityChanged is called by services that mutate rule entities. It
// updates the local cache and broadcasts the change; errors are logged and
// never returned so the triggering write is not blocked.
func (s *Service) NotifyEntityChanged(ctx context.Context, campaignID, branchID string, kind EntityKind, entityID string) {
	if err := s.RefreshEntity(ctx, campaignID, branchID, kind, entityID); err != nil {
		logger.Warn("[Service] Incremental update failed, graph evicted",
			"campaign_id", campaignID, "kind", kind, "entity_id", entityID, "err", err)
	}
	s.publish(ctx, Invalidation{
		CampaignID: campaignID,
		BranchID:   branch(branchID),
		EntityKind: kind,
		EntityID:   entityID,
	})
}

func (s *Service) publish(ctx context.Context, inv Invalidation) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishInvalidation(ctx, inv); err != nil {
		logger.Warn("[Service] Failed to publish invalidation", "campaign_id", inv.CampaignID, "err", err)
	}
}

// CacheStats returns the number of cached graphs.
func (s *Service) CacheStats() int {
	return s.cache.Len()
}
