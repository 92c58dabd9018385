package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/backend"
	"equipment-inventory-console/internal/querycache"
	"equipment-inventory-console/internal/render"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// fail answers a request with the classified error. Validation failures are
// counted per operation; NotFoundOrStale drops the cached entries named in
// invalidate so the next read re-fetches.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error, invalidate ...string) {
	kind := apperr.KindOf(err)
	code := apperr.CodeOf(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("kind", kind.String()),
		zap.String("code", code),
		zap.String("request_id", backend.RequestIDFromContext(r.Context())),
		zap.Error(err),
	}

	switch kind {
	case apperr.KindValidation:
		s.Metrics.RejectValidation(op, code)
		s.Logger.Debug("request rejected", fields...)
	case apperr.KindNotFoundOrStale:
		if len(invalidate) > 0 {
			// Outlives request cancellation
			if ierr := s.Cache.Invalidate(context.WithoutCancel(r.Context()), invalidate...); ierr != nil {
				fields = append(fields, zap.NamedError("invalidate_error", ierr))
			}
		}
		s.Logger.Info("entity missing or stale", fields...)
	case apperr.KindTransient:
		s.Logger.Warn("backend unavailable", fields...)
	case 0:
		s.Logger.Error("unclassified failure", fields...)
	default:
		s.Logger.Info("request failed", fields...)
	}

	render.Error(w, err)
}

// decodeJSON decodes the request body into dest, rejecting unknown fields
func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperr.Wrap(apperr.KindValidation, "INVALID_JSON", err, "invalid JSON body")
	}
	return nil
}

// parseID reads a positive integer URL parameter
func parseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("INVALID_ID", "%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// cachedFetch serves key from the query cache, scoped to the caller, and
// falls back to fetch on a miss
func cachedFetch[T any](s *Server, r *http.Request, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	ctx := r.Context()
	scoped := querycache.Scoped(key, auth.UserIDFromContext(ctx))

	var v T
	if s.Cache != nil {
		hit := s.Cache.GetJSON(ctx, scoped, &v)
		s.Metrics.CacheLookup(hit)
		if hit {
			return v, nil
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	_ = s.Cache.SetJSON(ctx, scoped, v)
	return v, nil
}

// invalidate drops cached entries after a successful mutation
func (s *Server) invalidate(r *http.Request, prefixes ...string) {
	_ = s.Cache.Invalidate(context.WithoutCancel(r.Context()), prefixes...)
}
