package models

// DeviceStatus is the lifecycle status of a device
type DeviceStatus string

const (
	DeviceActive         DeviceStatus = "active"
	DeviceMaintenance    DeviceStatus = "maintenance"
	DeviceStorage        DeviceStatus = "storage"
	DeviceRepair         DeviceStatus = "repair"
	DeviceDecommissioned DeviceStatus = "decommissioned"
)

// ValidDeviceStatuses lists every status the backend accepts
var ValidDeviceStatuses = []DeviceStatus{
	DeviceActive,
	DeviceMaintenance,
	DeviceStorage,
	DeviceRepair,
	DeviceDecommissioned,
}

// IsValid reports whether s is a known device status
func (s DeviceStatus) IsValid() bool {
	for _, v := range ValidDeviceStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Device represents a tracked piece of equipment
type Device struct {
	ID                int64            `json:"id"`
	SerialNumber      string           `json:"serial_number"`
	TypeID            int64            `json:"type_id"`
	Status            DeviceStatus     `json:"status"`
	CurrentLocationID *int64           `json:"current_location_id"`
	CurrentLocation   *LocationSummary `json:"current_location,omitempty"`
	PurchaseDate      *Date            `json:"purchase_date,omitempty"`
	WarrantyEnd       *Date            `json:"warranty_end,omitempty"`
	CreatedBy         int64            `json:"created_by"`
}

// LocationID returns the device's current location, preferring the explicit
// id field and falling back to the embedded location
func (d *Device) LocationID() *int64 {
	if d.CurrentLocationID != nil {
		return d.CurrentLocationID
	}
	if d.CurrentLocation != nil {
		id := d.CurrentLocation.ID
		return &id
	}
	return nil
}

// DeviceType groups devices of the same kind
type DeviceType struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// DeviceInput is the body for creating or replacing a device. Placement is
// changed through movements, never through this payload.
type DeviceInput struct {
	SerialNumber string       `json:"serial_number" validate:"required"`
	TypeID       int64        `json:"type_id" validate:"required"`
	Status       DeviceStatus `json:"status"`
	PurchaseDate *Date        `json:"purchase_date,omitempty"`
	WarrantyEnd  *Date        `json:"warranty_end,omitempty"`
}
