package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/common"
)

// ErrNotFound is returned by single-entity lookups when no row matches.
var ErrNotFound = errors.New("not found")

// EntityStorage defines read access to the rule entities a dependency graph
// is built from. List methods return only live records: active, not
// soft-deleted and, for effects, of patch type. Get methods return records
// regardless of state so callers can tell a deactivated entity from a
// missing one.
type EntityStorage interface {
	ListActiveConditions(ctx context.Context) ([]common.Condition, error)
	ListActiveVariables(ctx context.Context) ([]common.Variable, error)
	ListActivePatchEffects(ctx context.Context) ([]common.Effect, error)

	GetCondition(ctx context.Context, id string) (common.Condition, error)
	GetVariable(ctx context.Context, id string) (common.Variable, error)
	GetEffect(ctx context.Context, id string) (common.Effect, error)
}

// ScopeLookup resolves the campaign that owns an effect's parent entity.
// An empty id with a nil error means the owner does not exist.
type ScopeLookup interface {
	EncounterCampaignID(ctx context.Context, encounterID string) (string, error)
	EventCampaignID(ctx context.Context, eventID string) (string, error)
}

// AccessChecker answers whether a user may read a campaign.
type AccessChecker interface {
	HasCampaignAccess(ctx context.Context, campaignID, userID string) (bool, error)
}
