package internal

import (
	"context"
	"net/http"
	"strings"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/maintenance"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/querycache"
	"equipment-inventory-console/internal/render"

	"go.uber.org/zap"
)

var taskSort = map[string]string{
	"id":             "id",
	"scheduled_date": "scheduled_date",
	"date":           "scheduled_date",
	"status":         "status",
}

func taskKey(id int64) string { return querycache.TaskPrefix(id) + "detail" }

func taskInvalidation(task *models.MaintenanceTask) []string {
	out := []string{querycache.TaskPrefix(task.ID), querycache.TaskListPrefix}
	if task.DeviceID > 0 {
		out = append(out, querycache.DevicePrefix(task.DeviceID))
	}
	return out
}

// taskView is a task with what the caller may do to it
type taskView struct {
	models.MaintenanceTask
	AllowedTransitions []models.TaskStatus `json:"allowed_transitions"`
	EditableFields     []string            `json:"editable_fields"`
}

func newTaskView(t models.MaintenanceTask, caps auth.Capabilities) taskView {
	fields := []string{"status", "notes"}
	if caps.CanEditSchedule {
		fields = append(fields, maintenance.FieldScheduledDate, maintenance.FieldCompletedDate)
	}
	if caps.CanReassign {
		fields = append(fields, maintenance.FieldAssignedTo)
	}
	return taskView{
		MaintenanceTask:    t,
		AllowedTransitions: caps.AllowedStatusTransitions(t.Status),
		EditableFields:     fields,
	}
}

func (s *Server) listMaintenanceTasks(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, taskSort, "status", "device_id", "assigned_to")
	query := params.query()
	tasks, err := cachedFetch(s, r, querycache.Query(querycache.TaskListPrefix, query), func(ctx context.Context) ([]models.MaintenanceTask, error) {
		return s.Backend.ListMaintenanceTasks(ctx, query)
	})
	if err != nil {
		s.fail(w, r, "list_maintenance_tasks", err)
		return
	}
	caps := capabilities(r)
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t, caps))
	}
	sendListResponse(w, views, len(views), params)
}

func (s *Server) createMaintenanceTask(w http.ResponseWriter, r *http.Request) {
	var in models.MaintenanceTaskInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "create_maintenance_task", err)
		return
	}
	switch {
	case in.DeviceID <= 0:
		s.fail(w, r, "create_maintenance_task", apperr.Validation("DEVICE_REQUIRED", "device_id is required"))
		return
	case strings.TrimSpace(in.TaskType) == "":
		s.fail(w, r, "create_maintenance_task", apperr.Validation("TASK_TYPE_REQUIRED", "task_type is required"))
		return
	case in.ScheduledDate.IsZero():
		s.fail(w, r, "create_maintenance_task", apperr.Validation("SCHEDULED_DATE_REQUIRED", "scheduled_date is required"))
		return
	}
	task, err := s.Backend.CreateMaintenanceTask(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create_maintenance_task", err)
		return
	}
	s.invalidate(r, taskInvalidation(task)...)
	render.JSON(w, http.StatusCreated, newTaskView(*task, capabilities(r)))
}

func (s *Server) getMaintenanceTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "get_maintenance_task", err)
		return
	}
	task, err := cachedFetch(s, r, taskKey(id), func(ctx context.Context) (*models.MaintenanceTask, error) {
		return s.Backend.GetMaintenanceTask(ctx, id)
	})
	if err != nil {
		s.fail(w, r, "get_maintenance_task", err, querycache.TaskPrefix(id))
		return
	}
	render.JSON(w, http.StatusOK, newTaskView(*task, capabilities(r)))
}

func (s *Server) getTaskTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "task_transitions", err)
		return
	}
	task, err := cachedFetch(s, r, taskKey(id), func(ctx context.Context) (*models.MaintenanceTask, error) {
		return s.Backend.GetMaintenanceTask(ctx, id)
	})
	if err != nil {
		s.fail(w, r, "task_transitions", err, querycache.TaskPrefix(id))
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{
		"current":  task.Status,
		"terminal": maintenance.IsTerminal(task.Status),
		"allowed":  capabilities(r).AllowedStatusTransitions(task.Status),
	})
}

func (s *Server) updateMaintenanceTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "update_maintenance_task", err)
		return
	}
	var u models.MaintenanceTaskUpdate
	if err := decodeJSON(r, &u); err != nil {
		s.fail(w, r, "update_maintenance_task", err)
		return
	}
	// The transition is checked against the backend's status, not a cached one
	task, err := s.Backend.GetMaintenanceTask(r.Context(), id)
	if err != nil {
		s.fail(w, r, "update_maintenance_task", err, querycache.TaskPrefix(id), querycache.TaskListPrefix)
		return
	}

	caps := capabilities(r)
	res, err := maintenance.PrepareUpdate(task, u, caps.Role)
	if len(res.Dropped) > 0 {
		s.Logger.Debug("dropped fields outside role",
			zap.Int64("task_id", id),
			zap.String("role", string(caps.Role)),
			zap.Strings("fields", res.Dropped),
		)
	}
	if err != nil {
		s.fail(w, r, "update_maintenance_task", err)
		return
	}

	updated, err := s.Backend.UpdateMaintenanceTask(r.Context(), id, res.Update)
	if err != nil {
		s.fail(w, r, "update_maintenance_task", err, taskInvalidation(task)...)
		return
	}
	s.invalidate(r, taskInvalidation(task)...)
	render.JSON(w, http.StatusOK, map[string]any{
		"data":           newTaskView(*updated, caps),
		"dropped_fields": res.Dropped,
	})
}

func (s *Server) deleteMaintenanceTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "delete_maintenance_task", err)
		return
	}
	stale := []string{querycache.TaskPrefix(id), querycache.TaskListPrefix}
	if err := s.Backend.DeleteMaintenanceTask(r.Context(), id); err != nil {
		s.fail(w, r, "delete_maintenance_task", err, stale...)
		return
	}
	s.invalidate(r, stale...)
	w.WriteHeader(http.StatusNoContent)
}
