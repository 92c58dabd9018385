// Package movements keeps a device's current location consistent with its
// append-only movement history.
package movements

import (
	"fmt"
	"sort"
	"time"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/models"
)

// Sentinels for errors.Is
var (
	ErrStaleFromLocation = &apperr.Error{Kind: apperr.KindValidation, Code: "STALE_FROM_LOCATION"}
	ErrNoOpMovement      = &apperr.Error{Kind: apperr.KindValidation, Code: "NO_OP_MOVEMENT"}
	ErrOutOfOrder        = &apperr.Error{Kind: apperr.KindNotFoundOrStale, Code: "HISTORY_OUT_OF_ORDER"}
	ErrWrongDevice       = &apperr.Error{Kind: apperr.KindValidation, Code: "WRONG_DEVICE"}
	ErrBackdated         = &apperr.Error{Kind: apperr.KindValidation, Code: "MOVEMENT_OUT_OF_ORDER"}
)

// Proposal is a movement the user wants to submit
type Proposal struct {
	FromLocationID *int64
	ToLocationID   int64
}

// ProposalFrom extracts the locations of a movement request
func ProposalFrom(req models.MovementRequest) Proposal {
	return Proposal{FromLocationID: req.FromLocationID, ToLocationID: req.ToLocationID}
}

// Sorted returns a copy of ms ordered by moved_at ascending. Equal
// timestamps fall back to id so the order is deterministic.
func Sorted(ms []models.Movement) []models.Movement {
	out := make([]models.Movement, len(ms))
	copy(out, ms)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].MovedAt.Equal(out[j].MovedAt) {
			return out[i].MovedAt.Before(out[j].MovedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LatestLocation returns the destination of the most recent movement, or nil
// for an empty history. Input order does not matter.
func LatestLocation(ms []models.Movement) *int64 {
	if len(ms) == 0 {
		return nil
	}
	sorted := Sorted(ms)
	to := sorted[len(sorted)-1].ToLocationID
	return &to
}

// ValidateMovement checks a proposal against the device's current location
func ValidateMovement(device *models.Device, p Proposal) error {
	current := device.LocationID()
	if !sameLocation(p.FromLocationID, current) {
		return &apperr.Error{
			Kind:    apperr.KindValidation,
			Code:    ErrStaleFromLocation.Code,
			Message: fmt.Sprintf("device %s is at %s, not %s; reload and try again", device.SerialNumber, describe(current), describe(p.FromLocationID)),
		}
	}
	if p.FromLocationID != nil && *p.FromLocationID == p.ToLocationID {
		return &apperr.Error{
			Kind:    apperr.KindValidation,
			Code:    ErrNoOpMovement.Code,
			Message: fmt.Sprintf("device %s is already at location %d", device.SerialNumber, p.ToLocationID),
		}
	}
	return nil
}

func sameLocation(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func describe(id *int64) string {
	if id == nil {
		return "no location"
	}
	return fmt.Sprintf("location %d", *id)
}

// History is one device's movements in chronological order
type History struct {
	deviceID int64
	items    []models.Movement
}

// NewHistory sorts ms into a history for deviceID
func NewHistory(deviceID int64, ms []models.Movement) *History {
	return &History{deviceID: deviceID, items: Sorted(ms)}
}

// Append adds an acknowledged movement at the end. A movement older than the
// last entry means the cached history is stale and must be re-fetched.
func (h *History) Append(m models.Movement) error {
	if m.DeviceID != h.deviceID {
		return &apperr.Error{
			Kind:    apperr.KindValidation,
			Code:    ErrWrongDevice.Code,
			Message: fmt.Sprintf("movement %d belongs to device %d, not %d", m.ID, m.DeviceID, h.deviceID),
		}
	}
	if n := len(h.items); n > 0 && m.MovedAt.Before(h.items[n-1].MovedAt) {
		return &apperr.Error{
			Kind:    apperr.KindNotFoundOrStale,
			Code:    ErrOutOfOrder.Code,
			Message: fmt.Sprintf("movement %d at %s precedes the last recorded movement", m.ID, m.MovedAt.Format(time.RFC3339)),
		}
	}
	h.items = append(h.items, m)
	return nil
}

// CheckNext rejects a proposed movement time earlier than the last recorded
// movement, so a submission can only extend the history
func (h *History) CheckNext(at time.Time) error {
	n := len(h.items)
	if n == 0 || !at.Before(h.items[n-1].MovedAt) {
		return nil
	}
	last := h.items[n-1]
	return &apperr.Error{
		Kind: apperr.KindValidation,
		Code: ErrBackdated.Code,
		Message: fmt.Sprintf("moved_at %s precedes the last recorded movement %d at %s",
			at.Format(time.RFC3339), last.ID, last.MovedAt.Format(time.RFC3339)),
	}
}

// Movements returns a copy of the history
func (h *History) Movements() []models.Movement {
	out := make([]models.Movement, len(h.items))
	copy(out, h.items)
	return out
}

// Latest returns the current location according to the history
func (h *History) Latest() *int64 {
	if len(h.items) == 0 {
		return nil
	}
	to := h.items[len(h.items)-1].ToLocationID
	return &to
}

// Len returns the number of movements
func (h *History) Len() int { return len(h.items) }

// Apply records an acknowledged movement: the history gains the movement and
// the returned device copy points at its destination
func Apply(device models.Device, h *History, m models.Movement) (models.Device, error) {
	if err := h.Append(m); err != nil {
		return device, err
	}
	to := m.ToLocationID
	device.CurrentLocationID = &to
	if device.CurrentLocation != nil && device.CurrentLocation.ID != to {
		device.CurrentLocation = nil
	}
	return device, nil
}

// ChainBreak marks a movement whose origin is not where the previous one ended
type ChainBreak struct {
	MovementID     int64  `json:"movement_id"`
	ExpectedFromID *int64 `json:"expected_from_location_id"`
	ActualFromID   *int64 `json:"actual_from_location_id"`
}

// State is the reconciled view of where a device is
type State struct {
	DeviceID          int64             `json:"device_id"`
	CurrentLocationID *int64            `json:"current_location_id"`
	DerivedLocationID *int64            `json:"derived_location_id"`
	Consistent        bool              `json:"consistent"`
	MovementCount     int               `json:"movement_count"`
	LastMovedAt       *time.Time        `json:"last_moved_at,omitempty"`
	ChainBreaks       []ChainBreak      `json:"chain_breaks,omitempty"`
	Movements         []models.Movement `json:"movements"`
}

// Reconcile compares the device's recorded location with the one derived
// from its history and checks that consecutive movements link up
func Reconcile(device *models.Device, ms []models.Movement) State {
	sorted := Sorted(ms)
	st := State{
		DeviceID:          device.ID,
		CurrentLocationID: device.LocationID(),
		DerivedLocationID: LatestLocation(sorted),
		MovementCount:     len(sorted),
		Movements:         sorted,
	}
	st.Consistent = sameLocation(st.CurrentLocationID, st.DerivedLocationID)
	if n := len(sorted); n > 0 {
		last := sorted[n-1].MovedAt
		st.LastMovedAt = &last
	}
	for i := 1; i < len(sorted); i++ {
		prevTo := sorted[i-1].ToLocationID
		if !sameLocation(sorted[i].FromLocationID, &prevTo) {
			st.ChainBreaks = append(st.ChainBreaks, ChainBreak{
				MovementID:     sorted[i].ID,
				ExpectedFromID: &prevTo,
				ActualFromID:   sorted[i].FromLocationID,
			})
		}
	}
	if len(st.ChainBreaks) > 0 {
		st.Consistent = false
	}
	return st
}
