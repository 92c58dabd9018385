package backend

import (
	"context"

	"equipment-inventory-console/internal/models"
)

// ListLocations returns the nested location forest with devices embedded
func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	return getList[models.Location](ctx, c, "/locations", "/locations", nil)
}

func (c *Client) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	var loc models.Location
	if err := c.get(ctx, "/locations/{id}", idPath("/locations/%d", id), nil, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (c *Client) CreateLocation(ctx context.Context, in models.LocationInput) (*models.Location, error) {
	var loc models.Location
	if err := c.post(ctx, "/locations", "/locations", in, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// UpdateLocation replaces the location; a nil ParentID makes it a root
func (c *Client) UpdateLocation(ctx context.Context, id int64, in models.LocationInput) (*models.Location, error) {
	var loc models.Location
	if err := c.put(ctx, "/locations/{id}", idPath("/locations/%d", id), in, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (c *Client) DeleteLocation(ctx context.Context, id int64) error {
	return c.delete(ctx, "/locations/{id}", idPath("/locations/%d", id))
}
