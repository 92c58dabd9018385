package models

// TaskStatus is the status of a maintenance task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// AllTaskStatuses lists statuses in workflow order
var AllTaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted, TaskCancelled}

// IsValid reports whether s is a known task status
func (s TaskStatus) IsValid() bool {
	for _, v := range AllTaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// MaintenanceTask is scheduled work on a device
type MaintenanceTask struct {
	ID            int64      `json:"id"`
	DeviceID      int64      `json:"device_id"`
	TaskType      string     `json:"task_type"`
	ScheduledDate Date       `json:"scheduled_date"`
	CompletedDate *Date      `json:"completed_date"`
	Status        TaskStatus `json:"status"`
	AssignedTo    *int64     `json:"assigned_to"`
	Notes         *string    `json:"notes,omitempty"`
}

// MaintenanceTaskUpdate is the body for PUT /maintenance-tasks/{id}.
// Nil fields are left unchanged.
type MaintenanceTaskUpdate struct {
	Status        *TaskStatus `json:"status,omitempty"`
	Notes         *string     `json:"notes,omitempty"`
	ScheduledDate *Date       `json:"scheduled_date,omitempty"`
	CompletedDate *Date       `json:"completed_date,omitempty"`
	AssignedTo    *int64      `json:"assigned_to,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u MaintenanceTaskUpdate) IsEmpty() bool {
	return u.Status == nil && u.Notes == nil && u.ScheduledDate == nil &&
		u.CompletedDate == nil && u.AssignedTo == nil
}

// MaintenanceTaskInput is the body for scheduling a new task
type MaintenanceTaskInput struct {
	DeviceID      int64   `json:"device_id" validate:"required"`
	TaskType      string  `json:"task_type" validate:"required"`
	ScheduledDate Date    `json:"scheduled_date" validate:"required"`
	AssignedTo    *int64  `json:"assigned_to,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}
