package querycache

import (
	"fmt"
	"net/url"
)

// Key prefixes. Entity prefixes end in ':' so device 1 never matches device 10.
const (
	LocationsPrefix      = "locations:"
	DeviceListPrefix     = "devices:list:"
	DeviceTypesPrefix    = "device-types:"
	InventoryListPrefix  = "inventory:list:"
	MaintenanceTaskLabel = "task"
	WriteOffLabel        = "writeoff"
	TaskListPrefix       = MaintenanceTaskLabel + ":list:"
	WriteOffListPrefix   = WriteOffLabel + ":list:"
)

// DevicePrefix covers a device and its sub-collections
func DevicePrefix(id int64) string { return fmt.Sprintf("device:%d:", id) }

// InventoryEventPrefix covers an inventory event and its items
func InventoryEventPrefix(id int64) string { return fmt.Sprintf("inventory:%d:", id) }

// TaskPrefix covers a maintenance task
func TaskPrefix(id int64) string { return fmt.Sprintf("%s:%d:", MaintenanceTaskLabel, id) }

// WriteOffPrefix covers a write-off report
func WriteOffPrefix(id int64) string { return fmt.Sprintf("%s:%d:", WriteOffLabel, id) }

// Query appends encoded query parameters to a list prefix
func Query(prefix string, q url.Values) string { return prefix + q.Encode() }

// Scoped suffixes key with the viewer so sessions never read each other's
// entries. Prefix invalidation still covers every viewer.
func Scoped(key string, userID int64) string { return fmt.Sprintf("%s@u%d", key, userID) }
