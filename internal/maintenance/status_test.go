package maintenance

import (
	"testing"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(s models.TaskStatus) *models.TaskStatus { return &s }

func TestAllowedTransitions(t *testing.T) {
	all := []models.TaskStatus{models.TaskPending, models.TaskInProgress, models.TaskCompleted, models.TaskCancelled}

	tests := []struct {
		name    string
		current models.TaskStatus
		role    models.Role
		want    []models.TaskStatus
	}{
		{"user pending", models.TaskPending, models.RoleUser, []models.TaskStatus{models.TaskPending, models.TaskInProgress}},
		{"user in progress", models.TaskInProgress, models.RoleUser, []models.TaskStatus{models.TaskInProgress, models.TaskCompleted}},
		{"user completed", models.TaskCompleted, models.RoleUser, []models.TaskStatus{models.TaskCompleted}},
		{"user cancelled", models.TaskCancelled, models.RoleUser, []models.TaskStatus{models.TaskCancelled}},
		{"user unknown", "archived", models.RoleUser, []models.TaskStatus{}},
		{"admin pending", models.TaskPending, models.RoleAdmin, all},
		{"admin completed", models.TaskCompleted, models.RoleAdmin, all},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedTransitions(tt.current, tt.role))
		})
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	got := AllowedTransitions(models.TaskPending, models.RoleAdmin)
	got[0] = "mutated"
	assert.Equal(t, models.TaskPending, models.AllTaskStatuses[0])
}

func TestUserNeverMovesBackward(t *testing.T) {
	order := map[models.TaskStatus]int{
		models.TaskPending: 0, models.TaskInProgress: 1, models.TaskCompleted: 2, models.TaskCancelled: 2,
	}
	for _, cur := range models.AllTaskStatuses {
		for _, next := range AllowedTransitions(cur, models.RoleUser) {
			assert.GreaterOrEqual(t, order[next], order[cur], "%s -> %s", cur, next)
		}
	}
	for _, cur := range []models.TaskStatus{models.TaskCompleted, models.TaskCancelled} {
		assert.True(t, IsTerminal(cur))
		assert.Equal(t, []models.TaskStatus{cur}, AllowedTransitions(cur, models.RoleUser))
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.TaskStatus
		to      models.TaskStatus
		role    models.Role
		code    string
		message string
	}{
		{"user start", models.TaskPending, models.TaskInProgress, models.RoleUser, "", ""},
		{"user finish", models.TaskInProgress, models.TaskCompleted, models.RoleUser, "", ""},
		{"user skip ahead", models.TaskPending, models.TaskCompleted, models.RoleUser, "TRANSITION_NOT_ALLOWED", "allowed: pending, in_progress"},
		{"user cancel", models.TaskPending, models.TaskCancelled, models.RoleUser, "TRANSITION_NOT_ALLOWED", "pending to cancelled"},
		{"user reopen", models.TaskCompleted, models.TaskPending, models.RoleUser, "TRANSITION_NOT_ALLOWED", "allowed: completed"},
		{"admin reopen", models.TaskCompleted, models.TaskPending, models.RoleAdmin, "", ""},
		{"admin cancel", models.TaskPending, models.TaskCancelled, models.RoleAdmin, "", ""},
		{"unknown target", models.TaskPending, "done", models.RoleAdmin, "UNKNOWN_STATUS", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to, tt.role)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Equal(t, tt.code, apperr.CodeOf(err))
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestSanitizeUpdate(t *testing.T) {
	notes := "replaced filter"
	sched := models.NewDate(2024, 3, 1)
	assignee := int64(7)
	u := models.MaintenanceTaskUpdate{
		Status:        status(models.TaskInProgress),
		Notes:         &notes,
		ScheduledDate: &sched,
		CompletedDate: &sched,
		AssignedTo:    &assignee,
	}

	t.Run("user", func(t *testing.T) {
		clean, dropped := SanitizeUpdate(u, models.RoleUser)
		assert.Equal(t, []string{FieldScheduledDate, FieldCompletedDate, FieldAssignedTo}, dropped)
		assert.Nil(t, clean.ScheduledDate)
		assert.Nil(t, clean.CompletedDate)
		assert.Nil(t, clean.AssignedTo)
		assert.Equal(t, models.TaskInProgress, *clean.Status)
		assert.Equal(t, notes, *clean.Notes)
		// the caller's value is not modified
		assert.NotNil(t, u.AssignedTo)
	})

	t.Run("admin", func(t *testing.T) {
		clean, dropped := SanitizeUpdate(u, models.RoleAdmin)
		assert.Empty(t, dropped)
		assert.Equal(t, u, clean)
	})
}

func TestPrepareUpdate(t *testing.T) {
	task := &models.MaintenanceTask{ID: 1, DeviceID: 2, Status: models.TaskPending}
	notes := "checked"
	assignee := int64(3)

	t.Run("user status change", func(t *testing.T) {
		res, err := PrepareUpdate(task, models.MaintenanceTaskUpdate{Status: status(models.TaskInProgress), AssignedTo: &assignee}, models.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, []string{FieldAssignedTo}, res.Dropped)
		assert.Nil(t, res.Update.AssignedTo)
	})

	t.Run("user only restricted fields", func(t *testing.T) {
		res, err := PrepareUpdate(task, models.MaintenanceTaskUpdate{AssignedTo: &assignee}, models.RoleUser)
		assert.Equal(t, "EMPTY_UPDATE", apperr.CodeOf(err))
		assert.Equal(t, []string{FieldAssignedTo}, res.Dropped)
	})

	t.Run("user disallowed transition", func(t *testing.T) {
		_, err := PrepareUpdate(task, models.MaintenanceTaskUpdate{Status: status(models.TaskCompleted), Notes: &notes}, models.RoleUser)
		assert.Equal(t, "TRANSITION_NOT_ALLOWED", apperr.CodeOf(err))
	})

	t.Run("same status keeps notes", func(t *testing.T) {
		res, err := PrepareUpdate(task, models.MaintenanceTaskUpdate{Status: status(models.TaskPending), Notes: &notes}, models.RoleUser)
		require.NoError(t, err)
		assert.Nil(t, res.Update.Status)
		assert.Equal(t, notes, *res.Update.Notes)
	})

	t.Run("same status only", func(t *testing.T) {
		_, err := PrepareUpdate(task, models.MaintenanceTaskUpdate{Status: status(models.TaskPending)}, models.RoleUser)
		assert.Equal(t, "EMPTY_UPDATE", apperr.CodeOf(err))
	})

	t.Run("admin assigns", func(t *testing.T) {
		res, err := PrepareUpdate(task, models.MaintenanceTaskUpdate{AssignedTo: &assignee}, models.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, &assignee, res.Update.AssignedTo)
	})
}
