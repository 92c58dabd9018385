package models

import "time"

// Movement is one entry of a device's append-only relocation history
type Movement struct {
	ID             int64     `json:"id"`
	DeviceID       int64     `json:"device_id"`
	FromLocationID *int64    `json:"from_location_id"`
	ToLocationID   int64     `json:"to_location_id"`
	MovedAt        time.Time `json:"moved_at"`
	Notes          *string   `json:"notes,omitempty"`
	PerformedBy    int64     `json:"performed_by"`
}

// MovementRequest is the body for POST /devices/{id}/movements
type MovementRequest struct {
	FromLocationID *int64     `json:"from_location_id"`
	ToLocationID   int64      `json:"to_location_id" validate:"required"`
	MovedAt        *time.Time `json:"moved_at,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}
