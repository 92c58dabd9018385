package backend

import (
	"context"
	"net/url"

	"equipment-inventory-console/internal/models"
)

func (c *Client) ListWriteOffReports(ctx context.Context, query url.Values) ([]models.WriteOffReport, error) {
	return getList[models.WriteOffReport](ctx, c, "/write-off-reports", "/write-off-reports", query)
}

func (c *Client) GetWriteOffReport(ctx context.Context, id int64) (*models.WriteOffReport, error) {
	var r models.WriteOffReport
	if err := c.get(ctx, "/write-off-reports/{id}", idPath("/write-off-reports/%d", id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CreateWriteOffReport(ctx context.Context, in models.WriteOffInput) (*models.WriteOffReport, error) {
	var r models.WriteOffReport
	if err := c.post(ctx, "/write-off-reports", "/write-off-reports", in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UpdateWriteOffReport(ctx context.Context, id int64, u models.WriteOffUpdate) (*models.WriteOffReport, error) {
	var r models.WriteOffReport
	if err := c.put(ctx, "/write-off-reports/{id}", idPath("/write-off-reports/%d", id), u, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) DeleteWriteOffReport(ctx context.Context, id int64) error {
	return c.delete(ctx, "/write-off-reports/{id}", idPath("/write-off-reports/%d", id))
}

// ApproveWriteOffReport approves a pending report. A second approval comes
// back from the backend as a conflict.
func (c *Client) ApproveWriteOffReport(ctx context.Context, id int64) (*models.WriteOffReport, error) {
	var r models.WriteOffReport
	if err := c.post(ctx, "/write-off-reports/{id}/approve", idPath("/write-off-reports/%d/approve", id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
