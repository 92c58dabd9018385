package internal

import (
	"context"
	"net/http"
	"strings"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/models"
	"equipment-inventory-console/internal/querycache"
	"equipment-inventory-console/internal/render"
	"equipment-inventory-console/internal/writeoff"

	"go.uber.org/zap"
)

var writeOffSort = map[string]string{
	"id":          "id",
	"date":        "report_date",
	"report_date": "report_date",
}

func writeOffKey(id int64) string { return querycache.WriteOffPrefix(id) + "detail" }

func writeOffInvalidation(report *models.WriteOffReport) []string {
	out := []string{querycache.WriteOffPrefix(report.ID), querycache.WriteOffListPrefix}
	if report.DeviceID > 0 {
		out = append(out, querycache.DevicePrefix(report.DeviceID), querycache.DeviceListPrefix)
	}
	return out
}

// writeOffView is a report with what the caller may do to it
type writeOffView struct {
	models.WriteOffReport
	Approved   bool `json:"approved"`
	CanApprove bool `json:"can_approve"`
	Editable   bool `json:"editable"`
}

func newWriteOffView(rep models.WriteOffReport, caps auth.Capabilities) writeOffView {
	return writeOffView{
		WriteOffReport: rep,
		Approved:       rep.IsApproved(),
		CanApprove:     caps.CanApprove && writeoff.CanApprove(&rep, caps.Role),
		Editable:       writeoff.GuardEdit(&rep) == nil,
	}
}

func (s *Server) listWriteOffReports(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, writeOffSort, "device_id", "approved")
	query := params.query()
	reports, err := cachedFetch(s, r, querycache.Query(querycache.WriteOffListPrefix, query), func(ctx context.Context) ([]models.WriteOffReport, error) {
		return s.Backend.ListWriteOffReports(ctx, query)
	})
	if err != nil {
		s.fail(w, r, "list_write_off_reports", err)
		return
	}
	caps := capabilities(r)
	views := make([]writeOffView, 0, len(reports))
	for _, rep := range reports {
		views = append(views, newWriteOffView(rep, caps))
	}
	sendListResponse(w, views, len(views), params)
}

func (s *Server) createWriteOffReport(w http.ResponseWriter, r *http.Request) {
	var in models.WriteOffInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, "create_write_off_report", err)
		return
	}
	switch {
	case in.DeviceID <= 0:
		s.fail(w, r, "create_write_off_report", apperr.Validation("DEVICE_REQUIRED", "device_id is required"))
		return
	case in.ReportDate.IsZero():
		s.fail(w, r, "create_write_off_report", apperr.Validation("REPORT_DATE_REQUIRED", "report_date is required"))
		return
	case strings.TrimSpace(in.Reason) == "":
		s.fail(w, r, "create_write_off_report", apperr.Validation("REASON_REQUIRED", "reason is required"))
		return
	case in.DisposedBy <= 0:
		s.fail(w, r, "create_write_off_report", apperr.Validation("INVALID_DISPOSER", "disposed_by must reference a user"))
		return
	}
	rep, err := s.Backend.CreateWriteOffReport(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create_write_off_report", err)
		return
	}
	s.invalidate(r, writeOffInvalidation(rep)...)
	render.JSON(w, http.StatusCreated, newWriteOffView(*rep, capabilities(r)))
}

func (s *Server) getWriteOffReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, "get_write_off_report", err)
		return
	}
	rep, err := cachedFetch(s, r, writeOffKey(id), func(ctx context.Context) (*models.WriteOffReport, error) {
		return s.Backend.GetWriteOffReport(ctx, id)
	})
	if err != nil {
		s.fail(w, r, "get_write_off_report", err, querycache.WriteOffPrefix(id))
		return
	}
	render.JSON(w, http.StatusOK, newWriteOffView(*rep, capabilities(r)))
}

// freshWriteOff reads the report from the backend, bypassing the cache, so
// the approval guard sees the current state
func (s *Server) freshWriteOff(w http.ResponseWriter, r *http.Request, op string) (*models.WriteOffReport, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		s.fail(w, r, op, err)
		return nil, false
	}
	rep, err := s.Backend.GetWriteOffReport(r.Context(), id)
	if err != nil {
		s.fail(w, r, op, err, querycache.WriteOffPrefix(id), querycache.WriteOffListPrefix)
		return nil, false
	}
	return rep, true
}

func (s *Server) updateWriteOffReport(w http.ResponseWriter, r *http.Request) {
	var u models.WriteOffUpdate
	if err := decodeJSON(r, &u); err != nil {
		s.fail(w, r, "update_write_off_report", err)
		return
	}
	rep, ok := s.freshWriteOff(w, r, "update_write_off_report")
	if !ok {
		return
	}
	if err := writeoff.ValidateUpdate(rep, u); err != nil {
		s.fail(w, r, "update_write_off_report", err)
		return
	}
	updated, err := s.Backend.UpdateWriteOffReport(r.Context(), rep.ID, u)
	if err != nil {
		s.fail(w, r, "update_write_off_report", err, writeOffInvalidation(rep)...)
		return
	}
	s.invalidate(r, writeOffInvalidation(rep)...)
	render.JSON(w, http.StatusOK, newWriteOffView(*updated, capabilities(r)))
}

func (s *Server) deleteWriteOffReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.freshWriteOff(w, r, "delete_write_off_report")
	if !ok {
		return
	}
	if err := writeoff.GuardEdit(rep); err != nil {
		s.fail(w, r, "delete_write_off_report", err)
		return
	}
	if err := s.Backend.DeleteWriteOffReport(r.Context(), rep.ID); err != nil {
		s.fail(w, r, "delete_write_off_report", err, writeOffInvalidation(rep)...)
		return
	}
	s.invalidate(r, writeOffInvalidation(rep)...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) approveWriteOffReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.freshWriteOff(w, r, "approve_write_off_report")
	if !ok {
		return
	}
	caps := capabilities(r)
	expected, err := writeoff.Approve(*rep, caps)
	if err != nil {
		s.fail(w, r, "approve_write_off_report", err)
		return
	}

	// A concurrent approval surfaces as 409 and clears the cached report
	approved, err := s.Backend.ApproveWriteOffReport(r.Context(), rep.ID)
	if err != nil {
		s.fail(w, r, "approve_write_off_report", err, writeOffInvalidation(rep)...)
		return
	}
	s.invalidate(r, writeOffInvalidation(rep)...)

	if !approved.IsApproved() {
		s.Logger.Warn("approval acknowledged without approver",
			zap.Int64("report_id", rep.ID),
			zap.Int64("approver", caps.UserID),
		)
		approved.ApprovedBy = expected.ApprovedBy
	}
	s.Logger.Info("write-off approved",
		zap.Int64("report_id", rep.ID),
		zap.Int64("device_id", rep.DeviceID),
		zap.Int64("approved_by", *approved.ApprovedBy),
	)
	render.JSON(w, http.StatusOK, newWriteOffView(*approved, caps))
}
