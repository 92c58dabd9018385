// Package maintenance enforces the maintenance task status workflow and the
// field-level edit rules that depend on the caller's role.
package maintenance

import (
	"strings"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/models"
)

// userTransitions is the forward-only adjacency a regular user may follow.
// pending -> cancelled is reserved for admins.
var userTransitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskPending:    {models.TaskInProgress},
	models.TaskInProgress: {models.TaskCompleted},
	models.TaskCompleted:  {},
	models.TaskCancelled:  {},
}

// IsTerminal reports whether no regular user transition leaves s
func IsTerminal(s models.TaskStatus) bool {
	return s == models.TaskCompleted || s == models.TaskCancelled
}

// AllowedTransitions returns the statuses a caller with role may pick for a
// task currently in current. The current status is always included for a
// known status so the select control can show it.
func AllowedTransitions(current models.TaskStatus, role models.Role) []models.TaskStatus {
	if role == models.RoleAdmin {
		out := make([]models.TaskStatus, len(models.AllTaskStatuses))
		copy(out, models.AllTaskStatuses)
		return out
	}
	next, ok := userTransitions[current]
	if !ok {
		return []models.TaskStatus{}
	}
	out := make([]models.TaskStatus, 0, len(next)+1)
	out = append(out, current)
	return append(out, next...)
}

// CanTransition reports whether role may move a task from current to next
func CanTransition(current, next models.TaskStatus, role models.Role) bool {
	if !next.IsValid() {
		return false
	}
	for _, s := range AllowedTransitions(current, role) {
		if s == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns a ValidationError naming the allowed targets
// when role may not move current to next
func ValidateTransition(current, next models.TaskStatus, role models.Role) error {
	if !next.IsValid() {
		return apperr.Validation("UNKNOWN_STATUS", "unknown task status %q", next)
	}
	if CanTransition(current, next, role) {
		return nil
	}
	allowed := AllowedTransitions(current, role)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	list := strings.Join(names, ", ")
	if list == "" {
		list = "none"
	}
	return apperr.Validation("TRANSITION_NOT_ALLOWED",
		"cannot change task status from %s to %s as %s (allowed: %s)", current, next, role, list)
}

// Admin-only fields of a task update
const (
	FieldScheduledDate = "scheduled_date"
	FieldCompletedDate = "completed_date"
	FieldAssignedTo    = "assigned_to"
)

// SanitizeUpdate strips fields role may not edit and returns the names of
// the dropped fields. Admin updates pass through unchanged.
func SanitizeUpdate(u models.MaintenanceTaskUpdate, role models.Role) (models.MaintenanceTaskUpdate, []string) {
	if role == models.RoleAdmin {
		return u, nil
	}
	var dropped []string
	if u.ScheduledDate != nil {
		u.ScheduledDate = nil
		dropped = append(dropped, FieldScheduledDate)
	}
	if u.CompletedDate != nil {
		u.CompletedDate = nil
		dropped = append(dropped, FieldCompletedDate)
	}
	if u.AssignedTo != nil {
		u.AssignedTo = nil
		dropped = append(dropped, FieldAssignedTo)
	}
	return u, dropped
}

// Result is a validated update ready to be sent to the backend
type Result struct {
	Update  models.MaintenanceTaskUpdate `json:"update"`
	Dropped []string                     `json:"dropped_fields,omitempty"`
}

// PrepareUpdate sanitizes u for role and checks the status transition
// against task. Nothing is sent when it returns an error.
func PrepareUpdate(task *models.MaintenanceTask, u models.MaintenanceTaskUpdate, role models.Role) (Result, error) {
	clean, dropped := SanitizeUpdate(u, role)
	if clean.IsEmpty() {
		return Result{Dropped: dropped}, apperr.Validation("EMPTY_UPDATE", "no editable fields in update")
	}
	if clean.Status != nil && *clean.Status != task.Status {
		if err := ValidateTransition(task.Status, *clean.Status, role); err != nil {
			return Result{Dropped: dropped}, err
		}
	}
	if clean.Status != nil && *clean.Status == task.Status {
		clean.Status = nil
		if clean.IsEmpty() {
			return Result{Dropped: dropped}, apperr.Validation("EMPTY_UPDATE", "update does not change the task")
		}
	}
	return Result{Update: clean, Dropped: dropped}, nil
}
