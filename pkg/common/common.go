package common

import (
	"encoding/json"
	"time"
)

// EffectTypePatch is the only effect type that contributes writes to the
// dependency graph.
const EffectTypePatch = "patch"

// Condition represents a computed field attached to an entity. Its
// expression is a rule tree that is parsed for the variables it reads but
// never evaluated here.
//
// A condition takes part in the dependency graph only while it is active
// and not soft-deleted.
type Condition struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Field      string          `json:"field"`
	Expression json.RawMessage `json:"expression"`
	IsActive   bool            `json:"isActive"`
	DeletedAt  *time.Time      `json:"deletedAt,omitempty"`
}

// Live reports whether the condition should appear in a graph.
func (c Condition) Live() bool {
	return c.IsActive && c.DeletedAt == nil
}

// Variable represents a persisted state variable. Scope names the owner kind
// (campaign, settlement, ...) and ScopeID the owner itself.
type Variable struct {
	ID        string     `json:"id"`
	Scope     string     `json:"scope"`
	ScopeID   string     `json:"scopeId"`
	Key       string     `json:"key"`
	Type      string     `json:"type"`
	IsActive  bool       `json:"isActive"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (v Variable) Live() bool {
	return v.IsActive && v.DeletedAt == nil
}

// Effect represents a state mutation attached to an encounter or event.
// For patch effects the payload is a JSON patch operation list.
type Effect struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	EffectType string          `json:"effectType"`
	Payload    json.RawMessage `json:"payload"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Timing     string          `json:"timing"`
	Priority   int             `json:"priority"`
	IsActive   bool            `json:"isActive"`
	DeletedAt  *time.Time      `json:"deletedAt,omitempty"`
}

// Live reports whether the effect is active, not deleted and of patch type.
func (e Effect) Live() bool {
	return e.IsActive && e.DeletedAt == nil && e.EffectType == EffectTypePatch
}
