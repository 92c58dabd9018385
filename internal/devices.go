package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/locations"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/movements"
	"equipment-inventory-console/internal/querycache"
	"equipment-inventory-console/internal/render"

	"go.uber.org/zap"
)

var deviceSort = map[string]string{
	"id":            "id",
	"serial":        "serial_number",
	"serial_number": "serial_number",
	"status":        "status",
	"purchase_date": "purchase_date",
	"warranty_end":  "warranty_end",
}

func deviceDetailKey(id int64) string    { return querycache.DevicePrefix(id) + "detail" }
func deviceMovementsKey(id int64) string { return querycache.DevicePrefix(id) + "movements" }

// deviceInvalidation lists what a device mutation makes stale. Location rows
// carry device counts.
func deviceInvalidation(id int64) []string {
	return []string{querycache.DevicePrefix(id), querycache.DeviceListPrefix, querycache.LocationsPrefix}
}

func validateDeviceInput(in models.DeviceInput) error {
	if strings.TrimSpace(in.SerialNumber) == "" {
		return apperr.Validation("SERIAL_REQUIRED", "serial_number is required")
	}
	if in.TypeID <= 0 {
		return apperr.Validation("TYPE_REQUIRED", "type_id must reference a device type")
	}
	if in.Status != "" && !in.Status.IsValid() {
		return apperr.Validation("UNKNOWN_DEVICE_STATUS", "unknown device status %q", in.Status)
	}
	if in.PurchaseDate != nil && in.WarrantyEnd != nil && in.WarrantyEnd.Before(in.PurchaseDate.Time) {
		return apperr.Validation("WARRANTY_BEFORE_PURCHASE", "warranty_end %s is before purchase_date %s", in.WarrantyEnd, in.PurchaseDate)
	}
	return nil
}

func (s *Server) listDeviceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := cachedFetch(s, r, querycache.DeviceTypesPrefix+"all", func(ctx context.Context) ([]models.DeviceType, error) {
		return s.Backend.ListDeviceTypes(ctx)
	})
	if err != nil {
		s.fail(w, r, "list_device_types", err)
		return
	}
	render.JSON(w, http.StatusOK, types)
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, deviceSort, "status", "type_id", "location_id")
	query := params.query()
	devices, err := cachedFetch(s, r, querycache.Query(querycache.DeviceListPrefix, query), func(ctx context.Context) ([]models.Device, error) {
		return s.Backend.ListDevices(ctx, query)
	})
	if err != nil {
		s.fail(w, r, "list_devices", err)
		return
	}
	sendListResponse(w, devices, len(devices), params)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "get_device", err)
		return
	}
	device, err := cachedFetch(s, r, deviceDetailKey(id), func(ctx context.Context) (*models.Device, error) {
		return s.Backend.GetDevice(ctx, id)
	})
	if err != nil {
		s.fail(w, r, "get_device", err, querycache.DevicePrefix(id))
		return
	}
	render.JSON(w, http.StatusOK, device)
}

func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	var in models.DeviceInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "create_device", err)
		return
	}
	if in.Status == "" {
		in.Status = models.DeviceActive
	}
	if err := validateDeviceInput(in); err != nil {
		s.fail(w, r, "create_device", err)
		return
	}
	device, err := s.Backend.CreateDevice(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create_device", err)
		return
	}
	s.invalidate(r, querycache.DeviceListPrefix, querycache.LocationsPrefix)
	render.JSON(w, http.StatusCreated, device)
}

func (s *Server) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "update_device", err)
		return
	}
	var in models.DeviceInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "update_device", err)
		return
	}
	if err := validateDeviceInput(in); err != nil {
		s.fail(w, r, "update_device", err)
		return
	}
	device, err := s.Backend.UpdateDevice(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, "update_device", err, deviceInvalidation(id)...)
		return
	}
	s.invalidate(r, deviceInvalidation(id)...)
	render.JSON(w, http.StatusOK, device)
}

func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "delete_device", err)
		return
	}
	if err := s.Backend.DeleteDevice(r.Context(), id); err != nil {
		s.fail(w, r, "delete_device", err, deviceInvalidation(id)...)
		return
	}
	s.invalidate(r, deviceInvalidation(id)...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cachedMovements(r *http.Request, id int64) ([]models.Movement, error) {
	return cachedFetch(s, r, deviceMovementsKey(id), func(ctx context.Context) ([]models.Movement, error) {
		return s.Backend.ListMovements(ctx, id)
	})
}

func (s *Server) listMovements(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "list_movements", err)
		return
	}
	ms, err := s.cachedMovements(r, id)
	if err != nil {
		s.fail(w, r, "list_movements", err, querycache.DevicePrefix(id))
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{
		"data":             movements.Sorted(ms),
		"derived_location": movements.LatestLocation(ms),
	})
}

func (s *Server) getDeviceLocationState(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "device_location_state", err)
		return
	}
	device, err := cachedFetch(s, r, deviceDetailKey(id), func(ctx context.Context) (*models.Device, error) {
		return s.Backend.GetDevice(ctx, id)
	})
	if err != nil {
		s.fail(w, r, "device_location_state", err, querycache.DevicePrefix(id))
		return
	}
	ms, err := s.cachedMovements(r, id)
	if err != nil {
		s.fail(w, r, "device_location_state", err, querycache.DevicePrefix(id))
		return
	}
	state := movements.Reconcile(device, ms)
	if !state.Consistent {
		s.Logger.Warn("device location disagrees with movement history",
			zap.Int64("device_id", id),
			zap.Int("chain_breaks", len(state.ChainBreaks)),
		)
	}
	render.JSON(w, http.StatusOK, state)
}

// movementResult is the response to a recorded movement. Warning is set when
// the backend acknowledged the movement but the local history could not
// absorb it; the next read re-fetches either way.
type movementResult struct {
	Movement *models.Movement `json:"movement"`
	Device   models.Device    `json:"device"`
	Warning  string           `json:"warning,omitempty"`
}

func (s *Server) createMovement(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "create_movement", err)
		return
	}
	var req models.MovementRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, "create_movement", err)
		return
	}
	if req.ToLocationID <= 0 {
		s.fail(w, r, "create_movement", apperr.Validation("DESTINATION_REQUIRED", "to_location_id is required"))
		return
	}

	ctx := r.Context()
	device, err := s.Backend.GetDevice(ctx, id)
	if err != nil {
		s.fail(w, r, "create_movement", err, querycache.DevicePrefix(id))
		return
	}
	if err := movements.ValidateMovement(device, movements.ProposalFrom(req)); err != nil {
		if errors.Is(err, movements.ErrStaleFromLocation) {
			s.invalidate(r, querycache.DevicePrefix(id), querycache.DeviceListPrefix)
		}
		s.fail(w, r, "create_movement", err)
		return
	}

	tree, err := s.Backend.ListLocations(ctx)
	if err != nil {
		s.fail(w, r, "create_movement", err)
		return
	}
	if _, ok := locations.NewIndex(tree).Get(req.ToLocationID); !ok {
		s.fail(w, r, "create_movement", apperr.Validation("UNKNOWN_LOCATION", "location %d does not exist", req.ToLocationID))
		return
	}

	existing, err := s.Backend.ListMovements(ctx, id)
	if err != nil {
		s.fail(w, r, "create_movement", err, querycache.DevicePrefix(id))
		return
	}
	history := movements.NewHistory(id, existing)
	if req.MovedAt != nil {
		if err := history.CheckNext(*req.MovedAt); err != nil {
			s.fail(w, r, "create_movement", err)
			return
		}
	}

	m, err := s.Backend.CreateMovement(ctx, id, req)
	if err != nil {
		s.fail(w, r, "create_movement", err, deviceInvalidation(id)...)
		return
	}
	s.invalidate(r, deviceInvalidation(id)...)

	res := movementResult{Movement: m}
	res.Device, err = movements.Apply(*device, history, *m)
	if err != nil {
		s.Logger.Warn("acknowledged movement does not extend history",
			zap.Int64("device_id", id),
			zap.Int64("movement_id", m.ID),
			zap.Error(err),
		)
		res.Warning = fmt.Sprintf("movement recorded but history needs a reload: %s", err)
	}
	render.JSON(w, http.StatusCreated, res)
}
