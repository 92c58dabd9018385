package internal

import (
	"context"
	"net/http/httptest"
	"testing"

	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesResolution(t *testing.T) {
	tests := []struct {
		name   string
		ctx    func(context.Context) context.Context
		userID int64
		role   models.Role
	}{
		{
			name:   "no session",
			ctx:    func(ctx context.Context) context.Context { return ctx },
			userID: 0,
			role:   models.RoleUser,
		},
		{
			name: "stored capabilities win",
			ctx: func(ctx context.Context) context.Context {
				ctx = context.WithValue(ctx, auth.RolesKey, []string{"user"})
				return auth.WithCapabilities(ctx, auth.ForRole(5, models.RoleAdmin))
			},
			userID: 5,
			role:   models.RoleAdmin,
		},
		{
			name: "claims",
			ctx: func(ctx context.Context) context.Context {
				return context.WithValue(ctx, auth.ClaimsKey, &auth.Claims{UserID: 8, Roles: []string{"admin"}})
			},
			userID: 8,
			role:   models.RoleAdmin,
		},
		{
			name: "roles and user id only",
			ctx: func(ctx context.Context) context.Context {
				ctx = context.WithValue(ctx, auth.UserIDKey, int64(3))
				return context.WithValue(ctx, auth.RolesKey, []string{"user", "admin"})
			},
			userID: 3,
			role:   models.RoleAdmin,
		},
		{
			name: "unknown roles resolve to user",
			ctx: func(ctx context.Context) context.Context {
				ctx = context.WithValue(ctx, auth.UserIDKey, int64(4))
				return context.WithValue(ctx, auth.RolesKey, []string{"auditor"})
			},
			userID: 4,
			role:   models.RoleUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/auth/capabilities", nil)
			r = r.WithContext(tt.ctx(r.Context()))

			caps := capabilities(r)
			assert.Equal(t, tt.userID, caps.UserID)
			assert.Equal(t, tt.role, caps.Role)
			assert.Equal(t, tt.role == models.RoleAdmin, caps.CanApprove)
		})
	}
}
