package auth

import (
	"context"

	"equipment-inventory-console/internal/maintenance"
	"equipment-inventory-console/internal/models"
)

// Capabilities is what the current session may do. It is resolved once per
// request and handed to the workflow functions that need it.
type Capabilities struct {
	UserID             int64       `json:"user_id"`
	Role               models.Role `json:"role"`
	CanEditSchedule    bool        `json:"can_edit_schedule"`
	CanReassign        bool        `json:"can_reassign"`
	CanApprove         bool        `json:"can_approve"`
	CanManageLocations bool        `json:"can_manage_locations"`
}

// ForRole builds the capability set of a role
func ForRole(userID int64, role models.Role) Capabilities {
	admin := role == models.RoleAdmin
	return Capabilities{
		UserID:             userID,
		Role:               role,
		CanEditSchedule:    admin,
		CanReassign:        admin,
		CanApprove:         admin,
		CanManageLocations: admin,
	}
}

// FromClaims resolves capabilities from validated session claims
func FromClaims(c *Claims) Capabilities {
	return ForRole(c.UserID, models.EffectiveRole(c.Roles))
}

// IsAdmin reports whether the session has the admin role
func (c Capabilities) IsAdmin() bool { return c.Role == models.RoleAdmin }

// AllowedStatusTransitions lists the task statuses this session may select
func (c Capabilities) AllowedStatusTransitions(current models.TaskStatus) []models.TaskStatus {
	return maintenance.AllowedTransitions(current, c.Role)
}

// CapabilitiesFromContext returns the capabilities stored by AuthMiddleware
func CapabilitiesFromContext(ctx context.Context) (Capabilities, bool) {
	caps, ok := ctx.Value(CapabilitiesKey).(Capabilities)
	return caps, ok
}

// WithCapabilities stores caps in ctx
func WithCapabilities(ctx context.Context, caps Capabilities) context.Context {
	return context.WithValue(ctx, CapabilitiesKey, caps)
}
