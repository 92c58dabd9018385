package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/locations"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/querycache"
	"equipment-inventory-console/internal/render"

	"go.uber.org/zap"
)

const locationTreeKey = querycache.LocationsPrefix + "tree"

func locationKey(id int64) string { return fmt.Sprintf("%s%d", querycache.LocationsPrefix, id) }

func errLocationNotFound(id int64) error {
	return &apperr.Error{Kind: apperr.KindNotFoundOrStale, Code: "NOT_FOUND", Message: fmt.Sprintf("location %d not found", id)}
}

// cachedTree returns the location tree, from cache when possible
func (s *Server) cachedTree(r *http.Request) ([]models.Location, error) {
	return cachedFetch(s, r, locationTreeKey, func(ctx context.Context) ([]models.Location, error) {
		return s.Backend.ListLocations(ctx)
	})
}

// flatten logs inconsistencies and returns the rows it could build
func (s *Server) flatten(tree []models.Location) ([]locations.LocationRef, []locations.Problem) {
	rows, err := locations.Flatten(tree, s.indentMarker)
	return rows, s.treeProblems(err)
}

func (s *Server) treeProblems(err error) []locations.Problem {
	if err == nil {
		return nil
	}
	var inc *locations.InconsistencyError
	if errors.As(err, &inc) {
		s.Logger.Warn("location tree inconsistent", zap.Int("problems", len(inc.Problems)), zap.Error(err))
		return inc.Problems
	}
	s.Logger.Error("flatten location tree", zap.Error(err))
	return nil
}

func (s *Server) getLocationTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.cachedTree(r)
	if err != nil {
		s.fail(w, r, "list_locations", err)
		return
	}
	render.JSON(w, http.StatusOK, tree)
}

func (s *Server) getFlatLocations(w http.ResponseWriter, r *http.Request) {
	tree, err := s.cachedTree(r)
	if err != nil {
		s.fail(w, r, "list_locations", err)
		return
	}
	rows, problems := s.flatten(tree)
	render.JSON(w, http.StatusOK, map[string]any{
		"data":     rows,
		"problems": problems,
	})
}

func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "get_location", err)
		return
	}
	loc, err := cachedFetch(s, r, locationKey(id), func(ctx context.Context) (*models.Location, error) {
		return s.Backend.GetLocation(ctx, id)
	})
	if err != nil {
		s.fail(w, r, "get_location", err, locationKey(id), locationTreeKey)
		return
	}

	var path []string
	if tree, err := s.cachedTree(r); err == nil {
		path = locations.NewIndex(tree).Path(id)
	}
	render.JSON(w, http.StatusOK, map[string]any{
		"data": loc,
		"path": path,
	})
}

func (s *Server) getParentOptions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "parent_options", err)
		return
	}
	tree, err := s.cachedTree(r)
	if err != nil {
		s.fail(w, r, "parent_options", err)
		return
	}
	if _, ok := locations.NewIndex(tree).Get(id); !ok {
		s.fail(w, r, "parent_options", errLocationNotFound(id), locationTreeKey)
		return
	}
	opts, ferr := locations.ParentOptions(id, tree, s.indentMarker)
	render.JSON(w, http.StatusOK, map[string]any{
		"data":     opts,
		"problems": s.treeProblems(ferr),
	})
}

func (s *Server) createLocation(w http.ResponseWriter, r *http.Request) {
	var in models.LocationInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "create_location", err)
		return
	}
	// Validate against the backend's current tree, not a cached copy
	tree, err := s.Backend.ListLocations(r.Context())
	if err != nil {
		s.fail(w, r, "create_location", err)
		return
	}
	if err := locations.ValidateInput(in, nil, locations.NewIndex(tree)); err != nil {
		s.fail(w, r, "create_location", err)
		return
	}
	loc, err := s.Backend.CreateLocation(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create_location", err, querycache.LocationsPrefix)
		return
	}
	s.invalidate(r, querycache.LocationsPrefix)
	render.JSON(w, http.StatusCreated, loc)
}

func (s *Server) updateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "update_location", err)
		return
	}
	var in models.LocationInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "update_location", err)
		return
	}
	tree, err := s.Backend.ListLocations(r.Context())
	if err != nil {
		s.fail(w, r, "update_location", err)
		return
	}
	idx := locations.NewIndex(tree)
	if _, ok := idx.Get(id); !ok {
		s.fail(w, r, "update_location", errLocationNotFound(id), querycache.LocationsPrefix)
		return
	}
	if err := locations.ValidateInput(in, &id, idx); err != nil {
		s.fail(w, r, "update_location", err)
		return
	}
	loc, err := s.Backend.UpdateLocation(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, "update_location", err, querycache.LocationsPrefix)
		return
	}
	// Device rows embed their location's name
	s.invalidate(r, querycache.LocationsPrefix, querycache.DeviceListPrefix)
	render.JSON(w, http.StatusOK, loc)
}

func (s *Server) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "delete_location", err)
		return
	}
	loc, err := s.Backend.GetLocation(r.Context(), id)
	if err != nil {
		s.fail(w, r, "delete_location", err, querycache.LocationsPrefix)
		return
	}
	if len(loc.Children) == 0 || len(loc.Devices) == 0 {
		// Detail responses may omit children or devices; the tree nests both
		tree, err := s.Backend.ListLocations(r.Context())
		if err != nil {
			s.fail(w, r, "delete_location", err)
			return
		}
		if node, ok := locations.NewIndex(tree).Get(id); ok {
			if len(loc.Children) == 0 {
				loc.Children = node.Children
			}
			if len(loc.Devices) == 0 {
				loc.Devices = node.Devices
			}
		}
	}
	if err := locations.CanDelete(loc); err != nil {
		s.fail(w, r, "delete_location", err)
		return
	}
	if err := s.Backend.DeleteLocation(r.Context(), id); err != nil {
		s.fail(w, r, "delete_location", err, querycache.LocationsPrefix)
		return
	}
	s.invalidate(r, querycache.LocationsPrefix)
	w.WriteHeader(http.StatusNoContent)
}
