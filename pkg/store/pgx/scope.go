package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/store"
)

const (
	encounterCampaignSQL = `SELECT campaign_id FROM encounters WHERE id = $1 AND deleted_at IS NULL`
	eventCampaignSQL     = `SELECT campaign_id FROM events WHERE id = $1 AND deleted_at IS NULL`

	campaignAccessSQL = `SELECT EXISTS (
		SELECT 1 FROM campaigns c
		WHERE c.id = $1 AND c.deleted_at IS NULL AND (
			c.owner_id = $2 OR EXISTS (
				SELECT 1 FROM campaign_memberships m
				WHERE m.campaign_id = c.id AND m.user_id = $2
			)
		)
	)`
)

func (s *Storage) EncounterCampaignID(ctx context.Context, encounterID string) (string, error) {
	return s.campaignOf(ctx, encounterCampaignSQL, encounterID)
}

func (s *Storage) EventCampaignID(ctx context.Context, eventID string) (string, error) {
	return s.campaignOf(ctx, eventCampaignSQL, eventID)
}

func (s *Storage) campaignOf(ctx context.Context, sql, id string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var campaignID string
	err := notFound(s.conn.QueryRow(ctx, sql, id).Scan(&campaignID))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve owner campaign: %w", err)
	}
	return campaignID, nil
}

// HasCampaignAccess reports whether userID owns or is a member of the
// campaign.
func (s *Storage) HasCampaignAccess(ctx context.Context, campaignID, userID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ok bool
	if err := s.conn.QueryRow(ctx, campaignAccessSQL, campaignID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check campaign access: %w", err)
	}
	return ok, nil
}
