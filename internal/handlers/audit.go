package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/inventory"
	"equipment-inventory-console/internal/locations"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/querycache"
	"equipment-inventory-console/internal/render"
	"equipment-inventory-console/pkg/importer"
	"equipment-inventory-console/pkg/report"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxUploadBytes limits audit sheet uploads
const DefaultMaxUploadBytes = 20 << 20 // 20 MB

// deviceFetchLimit bounds concurrent device lookups per request
const deviceFetchLimit = 8

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Backend is what the audit handlers need from the inventory backend
type Backend interface {
	GetInventoryEvent(ctx context.Context, id int64) (*models.InventoryEvent, error)
	AddInventoryItem(ctx context.Context, eventID int64, req models.InventoryItemRequest) (*models.InventoryItem, error)
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	ListDevices(ctx context.Context, query url.Values) ([]models.Device, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
}

// FailFunc answers a request with a classified error and drops the cache
// prefixes named in invalidate when the error says the data is stale
type FailFunc func(w http.ResponseWriter, r *http.Request, op string, err error, invalidate ...string)

// AuditHandler handles audit sheet import and report export
type AuditHandler struct {
	Backend  Backend
	Cache    *querycache.Cache
	Logger   *zap.Logger
	MaxBytes int64
	Fail     FailFunc
}

// NewAuditHandler creates an audit handler with the default upload limit
func NewAuditHandler(be Backend, cache *querycache.Cache, logger *zap.Logger, fail FailFunc) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{
		Backend:  be,
		Cache:    cache,
		Logger:   logger,
		MaxBytes: DefaultMaxUploadBytes,
		Fail:     fail,
	}
}

func (h *AuditHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error, invalidate ...string) {
	if h.Fail != nil {
		h.Fail(w, r, op, err, invalidate...)
		return
	}
	if apperr.IsKind(err, apperr.KindNotFoundOrStale) && len(invalidate) > 0 {
		_ = h.Cache.Invalidate(context.WithoutCancel(r.Context()), invalidate...)
	}
	h.Logger.Info("audit request failed", zap.String("op", op), zap.Error(err))
	render.Error(w, err)
}

// ImportSummary reports the outcome of an audit sheet import
type ImportSummary struct {
	EventID int64           `json:"event_id"`
	Created int             `json:"created"`
	Skipped int             `json:"skipped"`
	Errors  int             `json:"errors"`
	DryRun  bool            `json:"dry_run"`
	Sheet   *importer.Sheet `json:"sheet"`
}

// ImportItems adds one inventory item per sheet row to an event. Rows are
// validated like single item submissions, including duplicates within the
// sheet itself. Bad rows are reported and skipped; a backend outage aborts.
func (h *AuditHandler) ImportItems(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || eventID <= 0 {
		h.fail(w, r, "import_items", apperr.Validation("INVALID_ID", "id must be a positive integer"))
		return
	}

	// Limit body size
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	// Require multipart
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.fail(w, r, "import_items", apperr.Validation("INVALID_CONTENT_TYPE", "content-type must be multipart/form-data"))
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		h.fail(w, r, "import_items", apperr.Wrap(apperr.KindValidation, "INVALID_FORM", err, "invalid multipart form"))
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := importer.DefaultMaxErrors
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	mapping, err := mappingFromForm(r)
	if err != nil {
		h.fail(w, r, "import_items", apperr.Wrap(apperr.KindValidation, "INVALID_MAPPING", err, "invalid mapping"))
		return
	}

	// File
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, "import_items", apperr.Wrap(apperr.KindValidation, "FILE_REQUIRED", err, "file is required"))
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		h.fail(w, r, "import_items", apperr.Validation("UNSUPPORTED_FILE", "only .xlsx files are accepted"))
		return
	}

	sheet, err := importer.ReadAuditSheet(file, mapping, maxErrors)
	if err != nil {
		h.fail(w, r, "import_items", apperr.Wrap(apperr.KindValidation, "UNREADABLE_SHEET", err, "cannot read audit sheet"))
		return
	}

	ctx := r.Context()
	event, err := h.Backend.GetInventoryEvent(ctx, eventID)
	if err != nil {
		h.fail(w, r, "import_items", err, querycache.InventoryEventPrefix(eventID))
		return
	}

	serials, err := h.resolveSerials(ctx, sheet.Rows)
	if err != nil {
		h.fail(w, r, "import_items", err)
		return
	}

	sum := ImportSummary{EventID: eventID, DryRun: dryRun, Sheet: sheet}
	for _, row := range sheet.Rows {
		deviceID := row.DeviceID
		if deviceID == 0 {
			id, ok := serials[row.Serial]
			if !ok {
				sheet.AddError(row.Line, maxErrors, "no device with serial %q", row.Serial)
				continue
			}
			deviceID = id
		}

		req, err := inventory.ValidateNewItem(event, models.InventoryItemRequest{
			DeviceID:  deviceID,
			Found:     row.Found,
			Condition: models.Condition(row.Condition),
			Comments:  row.Comments,
		})
		if err != nil {
			sheet.AddError(row.Line, maxErrors, "%s", err)
			continue
		}

		item := &models.InventoryItem{EventID: eventID, DeviceID: req.DeviceID, Found: req.Found, Condition: req.Condition, Comments: req.Comments}
		if !dryRun {
			item, err = h.Backend.AddInventoryItem(ctx, eventID, req)
			if err != nil {
				if apperr.IsKind(err, apperr.KindValidation) {
					sheet.AddError(row.Line, maxErrors, "%s", err)
					continue
				}
				h.Logger.Warn("audit import aborted",
					zap.Int64("event_id", eventID),
					zap.Int("row", row.Line),
					zap.Int("created", sum.Created),
					zap.Error(err),
				)
				h.invalidate(ctx, sum.Created, eventID)
				h.fail(w, r, "import_items", err, querycache.InventoryEventPrefix(eventID))
				return
			}
		}
		event.Items = append(event.Items, *item)
		sum.Created++
	}

	if !dryRun {
		h.invalidate(ctx, sum.Created, eventID)
	}
	sum.Skipped = sheet.Skipped
	sum.Errors = sheet.Errors

	h.Logger.Info("audit sheet imported",
		zap.Int64("event_id", eventID),
		zap.Bool("dry_run", dryRun),
		zap.Int("created", sum.Created),
		zap.Int("errors", sum.Errors),
	)

	render.JSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
		},
	})
}

func (h *AuditHandler) invalidate(ctx context.Context, created int, eventID int64) {
	if created == 0 {
		return
	}
	_ = h.Cache.Invalidate(context.WithoutCancel(ctx), querycache.InventoryEventPrefix(eventID), querycache.InventoryListPrefix)
}

// resolveSerials looks up the device id of every serial-only row. Serials
// the backend does not know are absent from the result.
func (h *AuditHandler) resolveSerials(ctx context.Context, rows []importer.Row) (map[string]int64, error) {
	var serials []string
	seen := map[string]bool{}
	for _, row := range rows {
		if row.DeviceID == 0 && row.Serial != "" && !seen[row.Serial] {
			seen[row.Serial] = true
			serials = append(serials, row.Serial)
		}
	}

	ids := make([]int64, len(serials))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deviceFetchLimit)
	for i, serial := range serials {
		i, serial := i, serial
		g.Go(func() error {
			devices, err := h.Backend.ListDevices(gctx, url.Values{"serial_number": {serial}})
			if err != nil {
				return err
			}
			for _, d := range devices {
				if strings.EqualFold(d.SerialNumber, serial) {
					ids[i] = d.ID
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(serials))
	for i, serial := range serials {
		if ids[i] != 0 {
			out[serial] = ids[i]
		}
	}
	return out, nil
}

// ExportReport streams the event's audit report as an xlsx workbook
func (h *AuditHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || eventID <= 0 {
		h.fail(w, r, "export_report", apperr.Validation("INVALID_ID", "id must be a positive integer"))
		return
	}

	ctx := r.Context()
	event, err := h.Backend.GetInventoryEvent(ctx, eventID)
	if err != nil {
		h.fail(w, r, "export_report", err, querycache.InventoryEventPrefix(eventID))
		return
	}
	view, err := LoadView(ctx, h.Backend, event)
	if err != nil {
		h.fail(w, r, "export_report", err)
		return
	}

	ev := report.Event{View: view}
	if tree, err := h.Backend.ListLocations(ctx); err == nil {
		ev.LocationName = strings.Join(locations.NewIndex(tree).Path(event.LocationID), " / ")
	} else {
		h.Logger.Debug("report without location name", zap.Int64("event_id", eventID), zap.Error(err))
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, ev); err != nil {
		h.fail(w, r, "export_report", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(ev)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, &buf); err != nil {
		h.Logger.Debug("report download interrupted", zap.Int64("event_id", eventID), zap.Error(err))
	}
}

// LoadView fetches the devices an event references and builds its view.
// A device the backend no longer has is left out and shows up as an
// unknown_device anomaly; any other failure is returned.
func LoadView(ctx context.Context, be Backend, event *models.InventoryEvent) (inventory.EventView, error) {
	ids := make([]int64, 0, len(event.Items))
	seen := make(map[int64]bool, len(event.Items))
	for _, it := range event.Items {
		if !seen[it.DeviceID] {
			seen[it.DeviceID] = true
			ids = append(ids, it.DeviceID)
		}
	}

	fetched := make([]*models.Device, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deviceFetchLimit)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			d, err := be.GetDevice(gctx, id)
			if err != nil {
				if apperr.IsKind(err, apperr.KindNotFoundOrStale) {
					return nil
				}
				return err
			}
			fetched[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return inventory.EventView{}, err
	}

	devices := make(map[int64]models.Device, len(ids))
	for _, d := range fetched {
		if d != nil {
			devices[d.ID] = *d
		}
	}
	return inventory.BuildView(*event, devices), nil
}

// mappingFromForm reads an optional YAML "mapping" part
func mappingFromForm(r *http.Request) (importer.Mapping, error) {
	part, _, err := r.FormFile("mapping")
	if errors.Is(err, http.ErrMissingFile) {
		return importer.DefaultMapping(), nil
	}
	if err != nil {
		return importer.Mapping{}, err
	}
	defer part.Close()
	data, err := io.ReadAll(part)
	if err != nil {
		return importer.Mapping{}, err
	}
	return importer.ParseMapping(data)
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	name := strings.ToLower(h.Filename)
	return strings.HasSuffix(name, ".xlsx")
}
