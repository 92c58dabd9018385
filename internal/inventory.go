package internal

import (
	"context"
	"net/http"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/handlers"
	"equipment-inventory-console/internal/inventory"
	"equipment-inventory-console/internal/locations"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/querycache"
	"equipment-inventory-console/internal/render"

	"golang.org/x/sync/errgroup"
)

var inventorySort = map[string]string{
	"id":         "id",
	"date":       "event_date",
	"event_date": "event_date",
	"location":   "location_id",
}

// summaryFetchLimit bounds concurrent event detail fetches
const summaryFetchLimit = 4

func inventoryEventKey(id int64) string { return querycache.InventoryEventPrefix(id) + "detail" }

func inventoryInvalidation(id int64) []string {
	return []string{querycache.InventoryEventPrefix(id), querycache.InventoryListPrefix}
}

// eventRow is a list entry: the event and its tally
type eventRow struct {
	models.InventoryEvent
	Tally inventory.Counts `json:"tally"`
}

func (s *Server) cachedEvent(r *http.Request, id int64) (*models.InventoryEvent, error) {
	return cachedFetch(s, r, inventoryEventKey(id), func(ctx context.Context) (*models.InventoryEvent, error) {
		return s.Backend.GetInventoryEvent(ctx, id)
	})
}

func (s *Server) validateEventInput(r *http.Request, in models.InventoryEventInput) error {
	if in.EventDate.IsZero() {
		return apperr.Validation("EVENT_DATE_REQUIRED", "event_date is required")
	}
	if in.LocationID <= 0 {
		return apperr.Validation("LOCATION_REQUIRED", "location_id is required")
	}
	tree, err := s.Backend.ListLocations(r.Context())
	if err != nil {
		return err
	}
	if _, ok := locations.NewIndex(tree).Get(in.LocationID); !ok {
		return apperr.Validation("UNKNOWN_LOCATION", "location %d does not exist", in.LocationID)
	}
	return nil
}

func (s *Server) listInventoryEvents(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, inventorySort, "location_id", "from", "to")
	query := params.query()
	events, err := cachedFetch(s, r, querycache.Query(querycache.InventoryListPrefix, query), func(ctx context.Context) ([]models.InventoryEvent, error) {
		return s.Backend.ListInventoryEvents(ctx, query)
	})
	if err != nil {
		s.fail(w, r, "list_inventory_events", err)
		return
	}
	rows := make([]eventRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, eventRow{InventoryEvent: ev, Tally: inventory.Tally(ev.Items)})
	}
	sendListResponse(w, rows, len(rows), params)
}

// getInventorySummary totals found, missing and problem items across the
// events matching the list filters. Events listed without their items are
// fetched individually.
func (s *Server) getInventorySummary(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, inventorySort, "location_id", "from", "to")
	query := params.query()
	events, err := cachedFetch(s, r, querycache.Query(querycache.InventoryListPrefix, query), func(ctx context.Context) ([]models.InventoryEvent, error) {
		return s.Backend.ListInventoryEvents(ctx, query)
	})
	if err != nil {
		s.fail(w, r, "inventory_summary", err)
		return
	}

	full := make([]models.InventoryEvent, len(events))
	copy(full, events)
	var g errgroup.Group
	g.SetLimit(summaryFetchLimit)
	for i := range full {
		if full[i].Items != nil {
			continue
		}
		i := i
		g.Go(func() error {
			ev, err := s.cachedEvent(r, full[i].ID)
			if err != nil {
				return err
			}
			full[i] = *ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(w, r, "inventory_summary", err, querycache.InventoryListPrefix)
		return
	}

	render.JSON(w, http.StatusOK, inventory.TallyAcrossEvents(full))
}

func (s *Server) createInventoryEvent(w http.ResponseWriter, r *http.Request) {
	var in models.InventoryEventInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "create_inventory_event", err)
		return
	}
	if err := s.validateEventInput(r, in); err != nil {
		s.fail(w, r, "create_inventory_event", err)
		return
	}
	ev, err := s.Backend.CreateInventoryEvent(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create_inventory_event", err)
		return
	}
	s.invalidate(r, querycache.InventoryListPrefix)
	render.JSON(w, http.StatusCreated, ev)
}

func (s *Server) getInventoryEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "get_inventory_event", err)
		return
	}
	ev, err := s.cachedEvent(r, id)
	if err != nil {
		s.fail(w, r, "get_inventory_event", err, querycache.InventoryEventPrefix(id))
		return
	}
	view, err := handlers.LoadView(r.Context(), s.Backend, ev)
	if err != nil {
		s.fail(w, r, "get_inventory_event", err)
		return
	}
	render.JSON(w, http.StatusOK, view)
}

func (s *Server) getInventoryTally(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "inventory_tally", err)
		return
	}
	ev, err := s.cachedEvent(r, id)
	if err != nil {
		s.fail(w, r, "inventory_tally", err, querycache.InventoryEventPrefix(id))
		return
	}
	render.JSON(w, http.StatusOK, inventory.Tally(ev.Items))
}

func (s *Server) updateInventoryEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "update_inventory_event", err)
		return
	}
	var in models.InventoryEventInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "update_inventory_event", err)
		return
	}
	if err := s.validateEventInput(r, in); err != nil {
		s.fail(w, r, "update_inventory_event", err)
		return
	}
	ev, err := s.Backend.UpdateInventoryEvent(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, "update_inventory_event", err, inventoryInvalidation(id)...)
		return
	}
	s.invalidate(r, inventoryInvalidation(id)...)
	render.JSON(w, http.StatusOK, ev)
}

func (s *Server) deleteInventoryEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "delete_inventory_event", err)
		return
	}
	if err := s.Backend.DeleteInventoryEvent(r.Context(), id); err != nil {
		s.fail(w, r, "delete_inventory_event", err, inventoryInvalidation(id)...)
		return
	}
	s.invalidate(r, inventoryInvalidation(id)...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addInventoryItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "add_inventory_item", err)
		return
	}
	var req models.InventoryItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, "add_inventory_item", err)
		return
	}
	// Duplicate detection needs the backend's current items
	ev, err := s.Backend.GetInventoryEvent(r.Context(), id)
	if err != nil {
		s.fail(w, r, "add_inventory_item", err, querycache.InventoryEventPrefix(id))
		return
	}
	req, err = inventory.ValidateNewItem(ev, req)
	if err != nil {
		s.fail(w, r, "add_inventory_item", err)
		return
	}
	item, err := s.Backend.AddInventoryItem(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, "add_inventory_item", err, inventoryInvalidation(id)...)
		return
	}
	s.invalidate(r, inventoryInvalidation(id)...)
	render.JSON(w, http.StatusCreated, item)
}

var errItemNotInEvent = &apperr.Error{
	Kind:    apperr.KindNotFoundOrStale,
	Code:    "NOT_FOUND",
	Message: "item is not part of this inventory event",
}

func (s *Server) updateInventoryItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "update_inventory_item", err)
		return
	}
	itemID, err := parseID(r, "itemID")
	if err != nil {
		s.fail(w, r, "update_inventory_item", err)
		return
	}
	var req models.InventoryItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, "update_inventory_item", err)
		return
	}
	ev, err := s.Backend.GetInventoryEvent(r.Context(), id)
	if err != nil {
		s.fail(w, r, "update_inventory_item", err, querycache.InventoryEventPrefix(id))
		return
	}

	// Validate against the other items of the event
	others := *ev
	others.Items = make([]models.InventoryItem, 0, len(ev.Items))
	belongs := false
	for _, it := range ev.Items {
		if it.ID == itemID {
			belongs = true
			continue
		}
		others.Items = append(others.Items, it)
	}
	if !belongs {
		s.fail(w, r, "update_inventory_item", errItemNotInEvent, inventoryInvalidation(id)...)
		return
	}
	req, err = inventory.ValidateNewItem(&others, req)
	if err != nil {
		s.fail(w, r, "update_inventory_item", err)
		return
	}

	item, err := s.Backend.UpdateInventoryItem(r.Context(), itemID, req)
	if err != nil {
		s.fail(w, r, "update_inventory_item", err, inventoryInvalidation(id)...)
		return
	}
	s.invalidate(r, inventoryInvalidation(id)...)
	render.JSON(w, http.StatusOK, item)
}

func (s *Server) deleteInventoryItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "delete_inventory_item", err)
		return
	}
	itemID, err := parseID(r, "itemID")
	if err != nil {
		s.fail(w, r, "delete_inventory_item", err)
		return
	}
	ev, err := s.Backend.GetInventoryEvent(r.Context(), id)
	if err != nil {
		s.fail(w, r, "delete_inventory_item", err, querycache.InventoryEventPrefix(id))
		return
	}
	belongs := false
	for _, it := range ev.Items {
		if it.ID == itemID {
			belongs = true
			break
		}
	}
	if !belongs {
		s.fail(w, r, "delete_inventory_item", errItemNotInEvent, inventoryInvalidation(id)...)
		return
	}

	if err := s.Backend.DeleteInventoryItem(r.Context(), itemID); err != nil {
		s.fail(w, r, "delete_inventory_item", err, inventoryInvalidation(id)...)
		return
	}
	s.invalidate(r, inventoryInvalidation(id)...)
	w.WriteHeader(http.StatusNoContent)
}
