package internal

import (
	"context"
	"net/url"
	"sync"
	"time"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/models"
)

// fakeBackend is an in-memory inventory backend. Errors queued in failNext
// are returned by the named method once.
type fakeBackend struct {
	mu        sync.Mutex
	tree      []models.Location
	devices   map[int64]*models.Device
	movements map[int64][]models.Movement
	events    map[int64]*models.InventoryEvent
	tasks     map[int64]*models.MaintenanceTask
	reports   map[int64]*models.WriteOffReport
	types     []models.DeviceType
	calls     map[string]int
	failNext  map[string]error
	nextID    int64

	lastTaskUpdate models.MaintenanceTaskUpdate
	// listWithoutItems strips items from event listings
	listWithoutItems bool
	// bareLocationDetail strips children and devices from GetLocation
	bareLocationDetail bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		devices:   map[int64]*models.Device{},
		movements: map[int64][]models.Movement{},
		events:    map[int64]*models.InventoryEvent{},
		tasks:     map[int64]*models.MaintenanceTask{},
		reports:   map[int64]*models.WriteOffReport{},
		calls:     map[string]int{},
		failNext:  map[string]error{},
		nextID:    1000,
	}
}

func notFound() error { return apperr.FromStatus(404, "not found") }

func (f *fakeBackend) enter(method string) error {
	f.calls[method]++
	if err, ok := f.failNext[method]; ok {
		delete(f.failNext, method)
		return err
	}
	return nil
}

func (f *fakeBackend) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBackend) id() int64 {
	f.nextID++
	return f.nextID
}

func findLocation(nodes []models.Location, id int64) *models.Location {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
		if n := findLocation(nodes[i].Children, id); n != nil {
			return n
		}
	}
	return nil
}

func (f *fakeBackend) ListLocations(ctx context.Context) ([]models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListLocations"); err != nil {
		return nil, err
	}
	return f.tree, nil
}

func (f *fakeBackend) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetLocation"); err != nil {
		return nil, err
	}
	n := findLocation(f.tree, id)
	if n == nil {
		return nil, notFound()
	}
	loc := *n
	if f.bareLocationDetail {
		loc.Children, loc.Devices = nil, nil
		return &loc, nil
	}
	for _, d := range f.devices {
		if d.CurrentLocationID != nil && *d.CurrentLocationID == id {
			loc.Devices = append(loc.Devices, *d)
		}
	}
	return &loc, nil
}

func (f *fakeBackend) CreateLocation(ctx context.Context, in models.LocationInput) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateLocation"); err != nil {
		return nil, err
	}
	loc := models.Location{ID: f.id(), Name: in.Name, ParentID: in.ParentID, Description: in.Description}
	if in.ParentID == nil {
		f.tree = append(f.tree, loc)
	} else {
		p := findLocation(f.tree, *in.ParentID)
		p.Children = append(p.Children, loc)
	}
	return &loc, nil
}

func (f *fakeBackend) UpdateLocation(ctx context.Context, id int64, in models.LocationInput) (*models.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateLocation"); err != nil {
		return nil, err
	}
	n := findLocation(f.tree, id)
	if n == nil {
		return nil, notFound()
	}
	n.Name = in.Name
	n.Description = in.Description
	out := *n
	return &out, nil
}

func (f *fakeBackend) DeleteLocation(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("DeleteLocation")
}

func (f *fakeBackend) ListDevices(ctx context.Context, query url.Values) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListDevices"); err != nil {
		return nil, err
	}
	out := []models.Device{}
	for _, d := range f.devices {
		if s := query.Get("serial_number"); s != "" && d.SerialNumber != s {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeBackend) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetDevice"); err != nil {
		return nil, err
	}
	d, ok := f.devices[id]
	if !ok {
		return nil, notFound()
	}
	out := *d
	return &out, nil
}

func (f *fakeBackend) CreateDevice(ctx context.Context, in models.DeviceInput) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateDevice"); err != nil {
		return nil, err
	}
	d := &models.Device{ID: f.id(), SerialNumber: in.SerialNumber, TypeID: in.TypeID, Status: in.Status}
	f.devices[d.ID] = d
	out := *d
	return &out, nil
}

func (f *fakeBackend) UpdateDevice(ctx context.Context, id int64, in models.DeviceInput) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateDevice"); err != nil {
		return nil, err
	}
	d, ok := f.devices[id]
	if !ok {
		return nil, notFound()
	}
	d.SerialNumber, d.TypeID, d.Status = in.SerialNumber, in.TypeID, in.Status
	out := *d
	return &out, nil
}

func (f *fakeBackend) DeleteDevice(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteDevice"); err != nil {
		return err
	}
	delete(f.devices, id)
	return nil
}

func (f *fakeBackend) ListDeviceTypes(ctx context.Context) ([]models.DeviceType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListDeviceTypes"); err != nil {
		return nil, err
	}
	return f.types, nil
}

func (f *fakeBackend) ListMovements(ctx context.Context, deviceID int64) ([]models.Movement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListMovements"); err != nil {
		return nil, err
	}
	return append([]models.Movement(nil), f.movements[deviceID]...), nil
}

func (f *fakeBackend) CreateMovement(ctx context.Context, deviceID int64, req models.MovementRequest) (*models.Movement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateMovement"); err != nil {
		return nil, err
	}
	m := models.Movement{
		ID:             f.id(),
		DeviceID:       deviceID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		MovedAt:        time.Now().UTC(),
		Notes:          req.Notes,
	}
	if req.MovedAt != nil {
		m.MovedAt = *req.MovedAt
	}
	f.movements[deviceID] = append(f.movements[deviceID], m)
	to := req.ToLocationID
	f.devices[deviceID].CurrentLocationID = &to
	return &m, nil
}

func (f *fakeBackend) ListInventoryEvents(ctx context.Context, query url.Values) ([]models.InventoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListInventoryEvents"); err != nil {
		return nil, err
	}
	out := []models.InventoryEvent{}
	for _, ev := range f.events {
		cp := *ev
		if f.listWithoutItems {
			cp.Items = nil
		}
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeBackend) GetInventoryEvent(ctx context.Context, id int64) (*models.InventoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetInventoryEvent"); err != nil {
		return nil, err
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, notFound()
	}
	cp := *ev
	cp.Items = append([]models.InventoryItem{}, ev.Items...)
	return &cp, nil
}

func (f *fakeBackend) CreateInventoryEvent(ctx context.Context, in models.InventoryEventInput) (*models.InventoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateInventoryEvent"); err != nil {
		return nil, err
	}
	ev := &models.InventoryEvent{ID: f.id(), EventDate: in.EventDate, LocationID: in.LocationID, Notes: in.Notes, Items: []models.InventoryItem{}}
	f.events[ev.ID] = ev
	cp := *ev
	return &cp, nil
}

func (f *fakeBackend) UpdateInventoryEvent(ctx context.Context, id int64, in models.InventoryEventInput) (*models.InventoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateInventoryEvent"); err != nil {
		return nil, err
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, notFound()
	}
	ev.EventDate, ev.LocationID, ev.Notes = in.EventDate, in.LocationID, in.Notes
	cp := *ev
	return &cp, nil
}

func (f *fakeBackend) DeleteInventoryEvent(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteInventoryEvent"); err != nil {
		return err
	}
	delete(f.events, id)
	return nil
}

func (f *fakeBackend) AddInventoryItem(ctx context.Context, eventID int64, req models.InventoryItemRequest) (*models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddInventoryItem"); err != nil {
		return nil, err
	}
	ev, ok := f.events[eventID]
	if !ok {
		return nil, notFound()
	}
	it := models.InventoryItem{ID: f.id(), EventID: eventID, DeviceID: req.DeviceID, Found: req.Found, Condition: req.Condition, Comments: req.Comments}
	ev.Items = append(ev.Items, it)
	return &it, nil
}

func (f *fakeBackend) UpdateInventoryItem(ctx context.Context, itemID int64, req models.InventoryItemRequest) (*models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateInventoryItem"); err != nil {
		return nil, err
	}
	for _, ev := range f.events {
		for i := range ev.Items {
			if ev.Items[i].ID == itemID {
				ev.Items[i].DeviceID, ev.Items[i].Found, ev.Items[i].Condition, ev.Items[i].Comments = req.DeviceID, req.Found, req.Condition, req.Comments
				it := ev.Items[i]
				return &it, nil
			}
		}
	}
	return nil, notFound()
}

func (f *fakeBackend) DeleteInventoryItem(ctx context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteInventoryItem"); err != nil {
		return err
	}
	for _, ev := range f.events {
		for i, it := range ev.Items {
			if it.ID == itemID {
				ev.Items = append(ev.Items[:i], ev.Items[i+1:]...)
				return nil
			}
		}
	}
	return notFound()
}

func (f *fakeBackend) ListMaintenanceTasks(ctx context.Context, query url.Values) ([]models.MaintenanceTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListMaintenanceTasks"); err != nil {
		return nil, err
	}
	out := []models.MaintenanceTask{}
	for _, t := range f.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeBackend) GetMaintenanceTask(ctx context.Context, id int64) (*models.MaintenanceTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetMaintenanceTask"); err != nil {
		return nil, err
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound()
	}
	cp := *t
	return &cp, nil
}

func (f *fakeBackend) CreateMaintenanceTask(ctx context.Context, in models.MaintenanceTaskInput) (*models.MaintenanceTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateMaintenanceTask"); err != nil {
		return nil, err
	}
	t := &models.MaintenanceTask{ID: f.id(), DeviceID: in.DeviceID, TaskType: in.TaskType, ScheduledDate: in.ScheduledDate, Status: models.TaskPending, AssignedTo: in.AssignedTo, Notes: in.Notes}
	f.tasks[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeBackend) UpdateMaintenanceTask(ctx context.Context, id int64, u models.MaintenanceTaskUpdate) (*models.MaintenanceTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateMaintenanceTask"); err != nil {
		return nil, err
	}
	f.lastTaskUpdate = u
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound()
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Notes != nil {
		t.Notes = u.Notes
	}
	if u.ScheduledDate != nil {
		t.ScheduledDate = *u.ScheduledDate
	}
	if u.CompletedDate != nil {
		t.CompletedDate = u.CompletedDate
	}
	if u.AssignedTo != nil {
		t.AssignedTo = u.AssignedTo
	}
	cp := *t
	return &cp, nil
}

func (f *fakeBackend) DeleteMaintenanceTask(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteMaintenanceTask"); err != nil {
		return err
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeBackend) ListWriteOffReports(ctx context.Context, query url.Values) ([]models.WriteOffReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListWriteOffReports"); err != nil {
		return nil, err
	}
	out := []models.WriteOffReport{}
	for _, r := range f.reports {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeBackend) GetWriteOffReport(ctx context.Context, id int64) (*models.WriteOffReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetWriteOffReport"); err != nil {
		return nil, err
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, notFound()
	}
	cp := *r
	return &cp, nil
}

func (f *fakeBackend) CreateWriteOffReport(ctx context.Context, in models.WriteOffInput) (*models.WriteOffReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateWriteOffReport"); err != nil {
		return nil, err
	}
	r := &models.WriteOffReport{ID: f.id(), DeviceID: in.DeviceID, ReportDate: in.ReportDate, Reason: in.Reason, DisposedBy: in.DisposedBy}
	f.reports[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *fakeBackend) UpdateWriteOffReport(ctx context.Context, id int64, u models.WriteOffUpdate) (*models.WriteOffReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateWriteOffReport"); err != nil {
		return nil, err
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, notFound()
	}
	if u.Reason != nil {
		r.Reason = *u.Reason
	}
	cp := *r
	return &cp, nil
}

func (f *fakeBackend) DeleteWriteOffReport(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteWriteOffReport"); err != nil {
		return err
	}
	delete(f.reports, id)
	return nil
}

func (f *fakeBackend) ApproveWriteOffReport(ctx context.Context, id int64) (*models.WriteOffReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ApproveWriteOffReport"); err != nil {
		return nil, err
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, notFound()
	}
	if r.ApprovedBy != nil {
		return nil, apperr.FromStatus(409, "already approved")
	}
	approver := int64(1)
	r.ApprovedBy = &approver
	cp := *r
	return &cp, nil
}
