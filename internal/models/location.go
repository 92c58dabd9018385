package models

// Location is a node of the location tree as returned by the backend.
// Children and Devices are embedded by the list endpoint.
type Location struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	ParentID    *int64     `json:"parent_id"`
	Description *string    `json:"description,omitempty"`
	Children    []Location `json:"children,omitempty"`
	Devices     []Device   `json:"devices,omitempty"`
}

// LocationSummary is the short form embedded in device payloads
type LocationSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LocationInput is the request body for creating or replacing a location.
// A nil ParentID makes the location a root.
type LocationInput struct {
	Name        string  `json:"name" validate:"required"`
	ParentID    *int64  `json:"parent_id"`
	Description *string `json:"description,omitempty"`
}
