package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type observed struct {
	method, endpoint, outcome string
}

type recorder struct {
	mu    sync.Mutex
	calls []observed
}

func (r *recorder) observe(method, endpoint, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, observed{method, endpoint, outcome})
}

func setup(t *testing.T, retries int, h http.HandlerFunc) (*Client, *recorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	rec := &recorder{}
	c := New(Options{
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		Retries:  retries,
		Logger:   zap.NewNop(),
		Observer: rec.observe,
	})
	return c, rec
}

func authed() context.Context {
	ctx := auth.WithToken(context.Background(), "header.payload.sig")
	return WithRequestID(ctx, "req-123")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ForwardsTokenAndRequestID(t *testing.T) {
	c, rec := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer header.payload.sig", r.Header.Get("Authorization"))
		assert.Equal(t, "req-123", r.Header.Get(RequestIDHeader))
		assert.Equal(t, "/devices/7", r.URL.Path)
		writeJSON(w, http.StatusOK, models.Device{ID: 7, SerialNumber: "SN-7"})
	})

	d, err := c.GetDevice(authed(), 7)
	require.NoError(t, err)
	assert.Equal(t, "SN-7", d.SerialNumber)
	assert.Equal(t, []observed{{http.MethodGet, "/devices/{id}", OutcomeOK}}, rec.calls)
}

func TestClient_GeneratesRequestID(t *testing.T) {
	c, _ := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Len(t, r.Header.Get(RequestIDHeader), 36)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []models.DeviceType{})
	})

	_, err := c.ListDeviceTypes(context.Background())
	require.NoError(t, err)
}

func TestClient_ListShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":1},{"id":2}]`, 2},
		{"data envelope", `{"data":[{"id":1}],"total":1}`, 1},
		{"items envelope", `{"items":[{"id":1},{"id":2},{"id":3}]}`, 3},
		{"results envelope", `{"results":[]}`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			})
			got, err := c.ListMaintenanceTasks(authed(), nil)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestClient_ForwardsQuery(t *testing.T) {
	c, _ := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "maintenance", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, []models.Device{{ID: 1}})
	})
	_, err := c.ListDevices(authed(), url.Values{"status": {"maintenance"}, "page": {"2"}})
	require.NoError(t, err)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   apperr.Kind
		code   string
	}{
		{http.StatusUnauthorized, apperr.KindSessionExpired, "SESSION_EXPIRED"},
		{http.StatusForbidden, apperr.KindPermission, "FORBIDDEN"},
		{http.StatusNotFound, apperr.KindNotFoundOrStale, "NOT_FOUND"},
		{http.StatusConflict, apperr.KindNotFoundOrStale, "STALE"},
		{http.StatusBadRequest, apperr.KindValidation, "BACKEND_REJECTED"},
		{http.StatusBadGateway, apperr.KindTransient, "BACKEND_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, rec := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"error": "nope"})
			})
			_, err := c.ApproveWriteOffReport(authed(), 3)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.code, apperr.CodeOf(err))
			assert.Contains(t, err.Error(), "nope")
			assert.Equal(t, tt.kind.String(), rec.calls[0].outcome)
			assert.Equal(t, "/write-off-reports/{id}/approve", rec.calls[0].endpoint)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	rec := &recorder{}
	c := New(Options{BaseURL: base, Timeout: time.Second, Observer: rec.observe})
	_, err := c.GetLocation(authed(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
	assert.Equal(t, "BACKEND_UNREACHABLE", apperr.CodeOf(err))
	assert.Equal(t, OutcomeTransport, rec.calls[0].outcome)
}

func TestClient_CancelledContext(t *testing.T) {
	c, rec := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Location{})
	})
	ctx, cancel := context.WithCancel(authed())
	cancel()

	_, err := c.ListLocations(ctx)
	assert.Equal(t, "REQUEST_CANCELLED", apperr.CodeOf(err))
	assert.Equal(t, OutcomeCancelled, rec.calls[0].outcome)
}

func TestClient_RetriesOnlyGets(t *testing.T) {
	var gets, posts atomic.Int32
	c, _ := setup(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if gets.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, http.StatusOK, []models.Movement{})
			return
		}
		posts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ListMovements(authed(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), gets.Load())

	_, err = c.CreateMovement(authed(), 1, models.MovementRequest{ToLocationID: 2})
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
	assert.Equal(t, int32(1), posts.Load())
}

func TestClient_CreateMovementSendsBody(t *testing.T) {
	from := int64(2)
	c, _ := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/devices/9/movements", r.URL.Path)
		var req models.MovementRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, &from, req.FromLocationID)
		assert.Equal(t, int64(1), req.ToLocationID)
		writeJSON(w, http.StatusCreated, models.Movement{ID: 50, FromLocationID: req.FromLocationID, ToLocationID: req.ToLocationID, MovedAt: time.Now()})
	})

	m, err := c.CreateMovement(authed(), 9, models.MovementRequest{FromLocationID: &from, ToLocationID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(50), m.ID)
	assert.Equal(t, int64(9), m.DeviceID)
}

func TestClient_UpdateTaskOmitsNilFields(t *testing.T) {
	c, _ := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"status": "in_progress"}, body)
		writeJSON(w, http.StatusOK, models.MaintenanceTask{ID: 4, Status: models.TaskInProgress})
	})

	s := models.TaskInProgress
	task, err := c.UpdateMaintenanceTask(authed(), 4, models.MaintenanceTaskUpdate{Status: &s})
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, task.Status)
}

func TestClient_DeleteNoContent(t *testing.T) {
	c, _ := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/inventory-items/12", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.DeleteInventoryItem(authed(), 12))
}

func TestClient_BadPayload(t *testing.T) {
	c, _ := setup(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `"not a list"`)
	})
	_, err := c.ListInventoryEvents(authed(), nil)
	assert.Equal(t, "BACKEND_BAD_PAYLOAD", apperr.CodeOf(err))
}
