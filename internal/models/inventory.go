package models

import (
	"encoding/json"
	"strings"
)

// Condition is the physical state recorded for an audited device
type Condition string

const (
	ConditionOK               Condition = "ok"
	ConditionNeedsMaintenance Condition = "needs_maintenance"
	ConditionBroken           Condition = "broken"
)

// conditionAliases maps both backend vocabularies onto the canonical values
var conditionAliases = map[string]Condition{
	"ok":                ConditionOK,
	"good":              ConditionOK,
	"needs_maintenance": ConditionNeedsMaintenance,
	"damaged":           ConditionNeedsMaintenance,
	"broken":            ConditionBroken,
	"repair_needed":     ConditionBroken,
}

// ParseCondition normalizes a condition name, accepting aliases
func ParseCondition(s string) (Condition, bool) {
	c, ok := conditionAliases[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// IsProblem reports whether the condition needs follow-up
func (c Condition) IsProblem() bool {
	return c == ConditionNeedsMaintenance || c == ConditionBroken
}

// UnmarshalJSON normalizes aliases; unknown values are kept verbatim
func (c *Condition) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, ok := ParseCondition(s); ok {
		*c = parsed
		return nil
	}
	*c = Condition(s)
	return nil
}

// InventoryEvent is a physical audit of one location on one date
type InventoryEvent struct {
	ID          int64           `json:"id"`
	EventDate   Date            `json:"event_date"`
	LocationID  int64           `json:"location_id"`
	Notes       *string         `json:"notes,omitempty"`
	PerformedBy int64           `json:"performed_by"`
	Items       []InventoryItem `json:"items"`
}

// InventoryItem is the outcome for one device within an inventory event
type InventoryItem struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	DeviceID  int64     `json:"device_id"`
	Found     bool      `json:"found"`
	Condition Condition `json:"condition"`
	Comments  *string   `json:"comments,omitempty"`
}

// InventoryItemRequest is the body for POST /inventory-events/{id}/items
type InventoryItemRequest struct {
	DeviceID  int64     `json:"device_id" validate:"required"`
	Found     bool      `json:"found"`
	Condition Condition `json:"condition"`
	Comments  *string   `json:"comments,omitempty"`
}

// InventoryEventInput is the body for creating or replacing an inventory event
type InventoryEventInput struct {
	EventDate  Date    `json:"event_date" validate:"required"`
	LocationID int64   `json:"location_id" validate:"required"`
	Notes      *string `json:"notes,omitempty"`
}
