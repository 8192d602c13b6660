package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/common"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/store"
	pgxv5 "github.com/jackc/pgx/v5"
)

const (
	conditionColumns = `id, entity_type, entity_id, field, expression, is_active, deleted_at`
	variableColumns  = `id, scope, scope_id, key, type, is_active, deleted_at`
	effectColumns    = `id, name, effect_type, payload, entity_type, entity_id, timing, priority, is_active, deleted_at`
)

const (
	listActiveConditionsSQL = `SELECT ` + conditionColumns + `
		FROM field_conditions
		WHERE is_active AND deleted_at IS NULL
		ORDER BY created_at, id`
	listActiveVariablesSQL = `SELECT ` + variableColumns + `
		FROM state_variables
		WHERE is_active AND deleted_at IS NULL
		ORDER BY created_at, id`
	listActivePatchEffectsSQL = `SELECT ` + effectColumns + `
		FROM effects
		WHERE is_active AND deleted_at IS NULL AND effect_type = $1
		ORDER BY priority, created_at, id`

	getConditionSQL = `SELECT ` + conditionColumns + ` FROM field_conditions WHERE id = $1`
	getVariableSQL  = `SELECT ` + variableColumns + ` FROM state_variables WHERE id = $1`
	getEffectSQL    = `SELECT ` + effectColumns + ` FROM effects WHERE id = $1`
)

func scanCondition(row scanner) (common.Condition, error) {
	var c common.Condition
	var expression []byte
	err := row.Scan(&c.ID, &c.EntityType, &c.EntityID, &c.Field, &expression, &c.IsActive, &c.DeletedAt)
	c.Expression = expression
	return c, err
}

func scanVariable(row scanner) (common.Variable, error) {
	var v common.Variable
	err := row.Scan(&v.ID, &v.Scope, &v.ScopeID, &v.Key, &v.Type, &v.IsActive, &v.DeletedAt)
	return v, err
}

func scanEffect(row scanner) (common.Effect, error) {
	var e common.Effect
	var payload []byte
	err := row.Scan(
		&e.ID, &e.Name, &e.EffectType, &payload, &e.EntityType, &e.EntityID,
		&e.Timing, &e.Priority, &e.IsActive, &e.DeletedAt,
	)
	e.Payload = payload
	return e, err
}

func (s *Storage) ListActiveConditions(ctx context.Context) ([]common.Condition, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.Query(ctx, listActiveConditionsSQL)
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	return collect(rows, scanCondition)
}

func (s *Storage) ListActiveVariables(ctx context.Context) ([]common.Variable, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.Query(ctx, listActiveVariablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	return collect(rows, scanVariable)
}

func (s *Storage) ListActivePatchEffects(ctx context.Context) ([]common.Effect, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.Query(ctx, listActivePatchEffectsSQL, common.EffectTypePatch)
	if err != nil {
		return nil, fmt.Errorf("list effects: %w", err)
	}
	return collect(rows, scanEffect)
}

func (s *Storage) GetCondition(ctx context.Context, id string) (common.Condition, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := scanCondition(s.conn.QueryRow(ctx, getConditionSQL, id))
	return c, notFound(err)
}

func (s *Storage) GetVariable(ctx context.Context, id string) (common.Variable, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	v, err := scanVariable(s.conn.QueryRow(ctx, getVariableSQL, id))
	return v, notFound(err)
}

func (s *Storage) GetEffect(ctx context.Context, id string) (common.Effect, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := scanEffect(s.conn.QueryRow(ctx, getEffectSQL, id))
	return e, notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
