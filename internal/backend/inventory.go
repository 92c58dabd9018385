package backend

import (
	"context"
	"net/url"

	"equipment-inventory-console/internal/models"
)

func (c *Client) ListInventoryEvents(ctx context.Context, query url.Values) ([]models.InventoryEvent, error) {
	return getList[models.InventoryEvent](ctx, c, "/inventory-events", "/inventory-events", query)
}

// GetInventoryEvent returns the event with its items
func (c *Client) GetInventoryEvent(ctx context.Context, id int64) (*models.InventoryEvent, error) {
	var ev models.InventoryEvent
	if err := c.get(ctx, "/inventory-events/{id}", idPath("/inventory-events/%d", id), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) CreateInventoryEvent(ctx context.Context, in models.InventoryEventInput) (*models.InventoryEvent, error) {
	var ev models.InventoryEvent
	if err := c.post(ctx, "/inventory-events", "/inventory-events", in, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) UpdateInventoryEvent(ctx context.Context, id int64, in models.InventoryEventInput) (*models.InventoryEvent, error) {
	var ev models.InventoryEvent
	if err := c.put(ctx, "/inventory-events/{id}", idPath("/inventory-events/%d", id), in, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *Client) DeleteInventoryEvent(ctx context.Context, id int64) error {
	return c.delete(ctx, "/inventory-events/{id}", idPath("/inventory-events/%d", id))
}

func (c *Client) AddInventoryItem(ctx context.Context, eventID int64, req models.InventoryItemRequest) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := c.post(ctx, "/inventory-events/{id}/items", idPath("/inventory-events/%d/items", eventID), req, &it); err != nil {
		return nil, err
	}
	if it.EventID == 0 {
		it.EventID = eventID
	}
	return &it, nil
}

func (c *Client) UpdateInventoryItem(ctx context.Context, itemID int64, req models.InventoryItemRequest) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := c.put(ctx, "/inventory-items/{id}", idPath("/inventory-items/%d", itemID), req, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) DeleteInventoryItem(ctx context.Context, itemID int64) error {
	return c.delete(ctx, "/inventory-items/{id}", idPath("/inventory-items/%d", itemID))
}
