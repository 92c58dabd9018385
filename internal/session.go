package internal

import (
	"net/http"
	"time"

	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/render"
)

// capabilities returns the caller's capability set, resolved from whatever
// AuthMiddleware stored. Requests without a session get the least privileged set.
func capabilities(r *http.Request) auth.Capabilities {
	ctx := r.Context()
	if caps, ok := auth.CapabilitiesFromContext(ctx); ok {
		return caps
	}
	if claims := auth.ClaimsFromContext(ctx); claims != nil {
		return auth.FromClaims(claims)
	}
	if roles := auth.RolesFromContext(ctx); len(roles) > 0 {
		return auth.ForRole(auth.UserIDFromContext(ctx), models.EffectiveRole(roles))
	}
	return auth.ForRole(0, models.RoleUser)
}

type sessionInfo struct {
	auth.Capabilities
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) getCapabilities(w http.ResponseWriter, r *http.Request) {
	info := sessionInfo{Capabilities: capabilities(r)}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil && claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		info.ExpiresAt = &exp
	}
	render.JSON(w, http.StatusOK, info)
}
