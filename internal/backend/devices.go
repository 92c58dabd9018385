package backend

import (
	"context"
	"fmt"
	"net/url"

	"equipment-inventory-console/internal/models"
)

// ListDevices forwards list filters such as status, location_id and pagination
func (c *Client) ListDevices(ctx context.Context, query url.Values) ([]models.Device, error) {
	return getList[models.Device](ctx, c, "/devices", "/devices", query)
}

func (c *Client) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	var d models.Device
	if err := c.get(ctx, "/devices/{id}", idPath("/devices/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) CreateDevice(ctx context.Context, in models.DeviceInput) (*models.Device, error) {
	var d models.Device
	if err := c.post(ctx, "/devices", "/devices", in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) UpdateDevice(ctx context.Context, id int64, in models.DeviceInput) (*models.Device, error) {
	var d models.Device
	if err := c.put(ctx, "/devices/{id}", idPath("/devices/%d", id), in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) DeleteDevice(ctx context.Context, id int64) error {
	return c.delete(ctx, "/devices/{id}", idPath("/devices/%d", id))
}

func (c *Client) ListDeviceTypes(ctx context.Context) ([]models.DeviceType, error) {
	return getList[models.DeviceType](ctx, c, "/device-types", "/device-types", nil)
}

// ListMovements returns the device's history in backend order; callers sort it
func (c *Client) ListMovements(ctx context.Context, deviceID int64) ([]models.Movement, error) {
	return getList[models.Movement](ctx, c, "/devices/{id}/movements", movementsPath(deviceID), nil)
}

// CreateMovement records a relocation. The backend's copy is returned.
func (c *Client) CreateMovement(ctx context.Context, deviceID int64, req models.MovementRequest) (*models.Movement, error) {
	var m models.Movement
	if err := c.post(ctx, "/devices/{id}/movements", movementsPath(deviceID), req, &m); err != nil {
		return nil, err
	}
	if m.DeviceID == 0 {
		m.DeviceID = deviceID
	}
	return &m, nil
}

func movementsPath(deviceID int64) string { return fmt.Sprintf("/devices/%d/movements", deviceID) }
