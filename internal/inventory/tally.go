// Package inventory computes audit statistics from inventory items without
// touching backend state.
package inventory

import (
	"fmt"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/models"
)

// Counts is the found/missing/problem tally of a set of items
type Counts struct {
	Found    int `json:"found"`
	Missing  int `json:"missing"`
	Problems int `json:"problems"`
}

// Total is the number of items counted
func (c Counts) Total() int { return c.Found + c.Missing }

// Add returns the element-wise sum
func (c Counts) Add(o Counts) Counts {
	return Counts{Found: c.Found + o.Found, Missing: c.Missing + o.Missing, Problems: c.Problems + o.Problems}
}

// Tally counts found, missing, and problem items. It depends only on the
// items themselves, so devices that are not loaded still count.
func Tally(items []models.InventoryItem) Counts {
	var c Counts
	for _, it := range items {
		if it.Found {
			c.Found++
		} else {
			c.Missing++
		}
		if it.Condition.IsProblem() {
			c.Problems++
		}
	}
	return c
}

// Summary aggregates tallies over several events
type Summary struct {
	Events int `json:"events"`
	Counts
}

// TallyAcrossEvents sums the per-event tallies
func TallyAcrossEvents(events []models.InventoryEvent) Summary {
	s := Summary{Events: len(events)}
	for _, ev := range events {
		s.Counts = s.Counts.Add(Tally(ev.Items))
	}
	return s
}

// DeviceLabel is the serial number when the device is loaded, else the raw id
func DeviceLabel(deviceID int64, devices map[int64]models.Device) string {
	if d, ok := devices[deviceID]; ok && d.SerialNumber != "" {
		return d.SerialNumber
	}
	return fmt.Sprintf("#%d", deviceID)
}

// ValidateNewItem checks a new item against the event it is added to and
// returns the request with its condition normalized
func ValidateNewItem(event *models.InventoryEvent, req models.InventoryItemRequest) (models.InventoryItemRequest, error) {
	if req.DeviceID <= 0 {
		return req, apperr.Validation("DEVICE_REQUIRED", "device_id is required")
	}
	if req.Condition == "" {
		req.Condition = models.ConditionOK
	}
	c, ok := models.ParseCondition(string(req.Condition))
	if !ok {
		return req, apperr.Validation("UNKNOWN_CONDITION", "unknown condition %q", req.Condition)
	}
	req.Condition = c
	for _, it := range event.Items {
		if it.DeviceID == req.DeviceID {
			return req, apperr.Validation("DUPLICATE_ITEM",
				"device %d is already recorded in inventory event %d (item %d)", req.DeviceID, event.ID, it.ID)
		}
	}
	return req, nil
}

// Anomaly kinds
const (
	AnomalyUnknownDevice    = "unknown_device"
	AnomalyLocationMismatch = "location_mismatch"
	AnomalyDuplicateDevice  = "duplicate_device"
)

// Anomaly is an item that contradicts the loaded device data
type Anomaly struct {
	ItemID             int64  `json:"item_id"`
	DeviceID           int64  `json:"device_id"`
	Kind               string `json:"kind"`
	ExpectedLocationID int64  `json:"expected_location_id"`
	ActualLocationID   *int64 `json:"actual_location_id,omitempty"`
}

// Anomalies lists items whose device is unknown, is recorded elsewhere than
// the audited location, or appears more than once. Nothing is corrected.
func Anomalies(event *models.InventoryEvent, devices map[int64]models.Device) []Anomaly {
	var out []Anomaly
	seen := make(map[int64]bool, len(event.Items))
	for _, it := range event.Items {
		if seen[it.DeviceID] {
			out = append(out, Anomaly{ItemID: it.ID, DeviceID: it.DeviceID, Kind: AnomalyDuplicateDevice, ExpectedLocationID: event.LocationID})
		}
		seen[it.DeviceID] = true

		d, ok := devices[it.DeviceID]
		if !ok {
			out = append(out, Anomaly{ItemID: it.ID, DeviceID: it.DeviceID, Kind: AnomalyUnknownDevice, ExpectedLocationID: event.LocationID})
			continue
		}
		loc := d.LocationID()
		if loc == nil || *loc != event.LocationID {
			out = append(out, Anomaly{
				ItemID:             it.ID,
				DeviceID:           it.DeviceID,
				Kind:               AnomalyLocationMismatch,
				ExpectedLocationID: event.LocationID,
				ActualLocationID:   loc,
			})
		}
	}
	return out
}

// ItemRow is an item prepared for display
type ItemRow struct {
	models.InventoryItem
	DeviceLabel string `json:"device_label"`
}

// EventView is an inventory event with its tally and anomalies
type EventView struct {
	models.InventoryEvent
	Tally     Counts    `json:"tally"`
	Rows      []ItemRow `json:"rows"`
	Anomalies []Anomaly `json:"anomalies"`
}

// BuildView assembles the display view of an event
func BuildView(event models.InventoryEvent, devices map[int64]models.Device) EventView {
	rows := make([]ItemRow, 0, len(event.Items))
	for _, it := range event.Items {
		rows = append(rows, ItemRow{InventoryItem: it, DeviceLabel: DeviceLabel(it.DeviceID, devices)})
	}
	anomalies := Anomalies(&event, devices)
	if anomalies == nil {
		anomalies = []Anomaly{}
	}
	return EventView{
		InventoryEvent: event,
		Tally:          Tally(event.Items),
		Rows:           rows,
		Anomalies:      anomalies,
	}
}

// DevicesByID indexes a device list
func DevicesByID(devices []models.Device) map[int64]models.Device {
	m := make(map[int64]models.Device, len(devices))
	for _, d := range devices {
		m[d.ID] = d
	}
	return m
}
