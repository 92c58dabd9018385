package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/config"
	"equipment-inventory-console/internal/handlers"
	"equipment-inventory-console/internal/locations"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/querycache"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Backend is the subset of the backend REST client the console uses.
// *backend.Client implements it.
type Backend interface {
	handlers.Backend

	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	CreateLocation(ctx context.Context, in models.LocationInput) (*models.Location, error)
	UpdateLocation(ctx context.Context, id int64, in models.LocationInput) (*models.Location, error)
	DeleteLocation(ctx context.Context, id int64) error

	CreateDevice(ctx context.Context, in models.DeviceInput) (*models.Device, error)
	UpdateDevice(ctx context.Context, id int64, in models.DeviceInput) (*models.Device, error)
	DeleteDevice(ctx context.Context, id int64) error
	ListDeviceTypes(ctx context.Context) ([]models.DeviceType, error)
	ListMovements(ctx context.Context, deviceID int64) ([]models.Movement, error)
	CreateMovement(ctx context.Context, deviceID int64, req models.MovementRequest) (*models.Movement, error)

	ListInventoryEvents(ctx context.Context, query url.Values) ([]models.InventoryEvent, error)
	CreateInventoryEvent(ctx context.Context, in models.InventoryEventInput) (*models.InventoryEvent, error)
	UpdateInventoryEvent(ctx context.Context, id int64, in models.InventoryEventInput) (*models.InventoryEvent, error)
	DeleteInventoryEvent(ctx context.Context, id int64) error
	UpdateInventoryItem(ctx context.Context, itemID int64, req models.InventoryItemRequest) (*models.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, itemID int64) error

	ListMaintenanceTasks(ctx context.Context, query url.Values) ([]models.MaintenanceTask, error)
	GetMaintenanceTask(ctx context.Context, id int64) (*models.MaintenanceTask, error)
	CreateMaintenanceTask(ctx context.Context, in models.MaintenanceTaskInput) (*models.MaintenanceTask, error)
	UpdateMaintenanceTask(ctx context.Context, id int64, u models.MaintenanceTaskUpdate) (*models.MaintenanceTask, error)
	DeleteMaintenanceTask(ctx context.Context, id int64) error

	ListWriteOffReports(ctx context.Context, query url.Values) ([]models.WriteOffReport, error)
	GetWriteOffReport(ctx context.Context, id int64) (*models.WriteOffReport, error)
	CreateWriteOffReport(ctx context.Context, in models.WriteOffInput) (*models.WriteOffReport, error)
	UpdateWriteOffReport(ctx context.Context, id int64, u models.WriteOffUpdate) (*models.WriteOffReport, error)
	DeleteWriteOffReport(ctx context.Context, id int64) error
	ApproveWriteOffReport(ctx context.Context, id int64) (*models.WriteOffReport, error)
}

type Server struct {
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Backend    Backend
	Cache      *querycache.Cache
	Logger     *zap.Logger

	indentMarker  string
	enableMetrics bool
}

// NewServer wires the console routes. metrics may be nil when the caller
// does not share a registry with the backend client.
func NewServer(cfg *config.Config, be Backend, cache *querycache.Cache, metrics *Metrics, logger *zap.Logger) (*Server, error) {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("JWT configuration validation failed: %w", err)
	}

	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	marker := cfg.LocationIndentMarker
	if marker == "" {
		marker = locations.DefaultIndentMarker
	}

	s := &Server{
		Router:        chi.NewRouter(),
		JWTManager:    jwtManager,
		Metrics:       metrics,
		Backend:       be,
		Cache:         cache,
		Logger:        logger,
		indentMarker:  marker,
		enableMetrics: cfg.EnableMetrics,
	}

	s.Router.Use(RequestID)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(RequestLogger(logger))
	if s.enableMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}

	// Mount public routes FIRST
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	if s.enableMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

// Close releases the query cache
func (s *Server) Close(ctx context.Context) error {
	return s.Cache.Close()
}

func adminOnly(h http.HandlerFunc) http.HandlerFunc {
	return auth.MustRole(string(models.RoleAdmin))(h).ServeHTTP
}

// mountProtectedRoutes mounts all routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Get("/auth/capabilities", s.getCapabilities)

	// Locations - writes are admin only
	r.Get("/locations", s.getLocationTree)
	r.Get("/locations/flat", s.getFlatLocations)
	r.Get("/locations/{id}", s.getLocation)
	r.Get("/locations/{id}/parent-options", s.getParentOptions)
	r.Post("/locations", adminOnly(s.createLocation))
	r.Put("/locations/{id}", adminOnly(s.updateLocation))
	r.Delete("/locations/{id}", adminOnly(s.deleteLocation))

	// Devices and movements
	r.Get("/device-types", s.listDeviceTypes)
	r.Get("/devices", s.listDevices)
	r.Get("/devices/{id}", s.getDevice)
	r.Post("/devices", adminOnly(s.createDevice))
	r.Put("/devices/{id}", adminOnly(s.updateDevice))
	r.Delete("/devices/{id}", adminOnly(s.deleteDevice))
	r.Get("/devices/{id}/location-state", s.getDeviceLocationState)
	r.Get("/devices/{id}/movements", s.listMovements)
	r.Post("/devices/{id}/movements", s.createMovement)

	// Inventory audits
	audits := handlers.NewAuditHandler(s.Backend, s.Cache, s.Logger, s.fail)
	r.Get("/inventory-events", s.listInventoryEvents)
	r.Post("/inventory-events", s.createInventoryEvent)
	r.Get("/inventory-events/summary", s.getInventorySummary)
	r.Get("/inventory-events/{id}", s.getInventoryEvent)
	r.Put("/inventory-events/{id}", s.updateInventoryEvent)
	r.Delete("/inventory-events/{id}", adminOnly(s.deleteInventoryEvent))
	r.Get("/inventory-events/{id}/tally", s.getInventoryTally)
	r.Post("/inventory-events/{id}/items", s.addInventoryItem)
	r.Put("/inventory-events/{id}/items/{itemID}", s.updateInventoryItem)
	r.Delete("/inventory-events/{id}/items/{itemID}", s.deleteInventoryItem)
	r.Post("/inventory-events/{id}/items/import", audits.ImportItems)
	r.Get("/inventory-events/{id}/report.xlsx", audits.ExportReport)

	// Maintenance
	r.Get("/maintenance-tasks", s.listMaintenanceTasks)
	r.Post("/maintenance-tasks", adminOnly(s.createMaintenanceTask))
	r.Get("/maintenance-tasks/{id}", s.getMaintenanceTask)
	r.Get("/maintenance-tasks/{id}/transitions", s.getTaskTransitions)
	r.Put("/maintenance-tasks/{id}", s.updateMaintenanceTask)
	r.Delete("/maintenance-tasks/{id}", adminOnly(s.deleteMaintenanceTask))

	// Write-offs
	r.Get("/write-off-reports", s.listWriteOffReports)
	r.Post("/write-off-reports", s.createWriteOffReport)
	r.Get("/write-off-reports/{id}", s.getWriteOffReport)
	r.Put("/write-off-reports/{id}", s.updateWriteOffReport)
	r.Delete("/write-off-reports/{id}", s.deleteWriteOffReport)
	r.Post("/write-off-reports/{id}/approve", s.approveWriteOffReport)
}
