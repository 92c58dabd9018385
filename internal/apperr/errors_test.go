package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"ok", http.StatusOK, 0},
		{"created", http.StatusCreated, 0},
		{"unauthorized", http.StatusUnauthorized, KindSessionExpired},
		{"forbidden", http.StatusForbidden, KindPermission},
		{"not found", http.StatusNotFound, KindNotFoundOrStale},
		{"conflict", http.StatusConflict, KindNotFoundOrStale},
		{"server error", http.StatusInternalServerError, KindTransient},
		{"bad gateway", http.StatusBadGateway, KindTransient},
		{"too many requests", http.StatusTooManyRequests, KindTransient},
		{"bad request", http.StatusBadRequest, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus(tt.status, "")
			if tt.want == 0 {
				assert.Nil(t, err)
				return
			}
			assert.Equal(t, tt.want, err.Kind)
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(Validation("X", "bad")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(Permission("X", "nope")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(FromStatus(http.StatusNotFound, "")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(FromStatus(http.StatusConflict, "")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(FromStatus(http.StatusBadGateway, "")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(FromStatus(http.StatusUnauthorized, "")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestErrorsIsMatchesKindAndCode(t *testing.T) {
	sentinel := &Error{Kind: KindValidation, Code: "NO_OP_MOVEMENT"}
	err := fmt.Errorf("submit: %w", Validation("NO_OP_MOVEMENT", "device is already at location %d", 3))

	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, &Error{Kind: KindValidation, Code: "STALE_FROM_LOCATION"}))
	assert.True(t, errors.Is(err, &Error{Kind: KindValidation}))
	assert.Equal(t, "NO_OP_MOVEMENT", CodeOf(err))
	assert.True(t, IsKind(err, KindValidation))
}

func TestFromStatusKeepsBody(t *testing.T) {
	err := FromStatus(http.StatusForbidden, `{"error":"admins only"}`)
	assert.Contains(t, err.Error(), "admins only")
}
