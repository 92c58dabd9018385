package backend

import (
	"context"
	"net/url"

	"equipment-inventory-console/internal/models"
)

func (c *Client) ListMaintenanceTasks(ctx context.Context, query url.Values) ([]models.MaintenanceTask, error) {
	return getList[models.MaintenanceTask](ctx, c, "/maintenance-tasks", "/maintenance-tasks", query)
}

func (c *Client) GetMaintenanceTask(ctx context.Context, id int64) (*models.MaintenanceTask, error) {
	var task models.MaintenanceTask
	if err := c.get(ctx, "/maintenance-tasks/{id}", idPath("/maintenance-tasks/%d", id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateMaintenanceTask(ctx context.Context, in models.MaintenanceTaskInput) (*models.MaintenanceTask, error) {
	var task models.MaintenanceTask
	if err := c.post(ctx, "/maintenance-tasks", "/maintenance-tasks", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateMaintenanceTask sends a partial update; nil fields are omitted
func (c *Client) UpdateMaintenanceTask(ctx context.Context, id int64, u models.MaintenanceTaskUpdate) (*models.MaintenanceTask, error) {
	var task models.MaintenanceTask
	if err := c.put(ctx, "/maintenance-tasks/{id}", idPath("/maintenance-tasks/%d", id), u, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteMaintenanceTask(ctx context.Context, id int64) error {
	return c.delete(ctx, "/maintenance-tasks/{id}", idPath("/maintenance-tasks/%d", id))
}
