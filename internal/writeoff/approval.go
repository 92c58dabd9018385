// Package writeoff implements the one-way approval of write-off reports.
package writeoff

import (
	"strings"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/auth"
	"equipment-inventory-console/internal/models"
)

var (
	// ErrAlreadyApproved is returned for any change to an approved report
	ErrAlreadyApproved = &apperr.Error{Kind: apperr.KindValidation, Code: "ALREADY_APPROVED", Message: "write-off report is already approved"}
	// ErrNotAdmin is returned when a non-admin tries to approve
	ErrNotAdmin = &apperr.Error{Kind: apperr.KindPermission, Code: "APPROVAL_REQUIRES_ADMIN", Message: "only administrators can approve write-off reports"}
)

// CanApprove reports whether role may approve report right now
func CanApprove(report *models.WriteOffReport, role models.Role) bool {
	return role == models.RoleAdmin && !report.IsApproved()
}

// Approve validates an approval by caps and returns the report as it will
// look once the backend acknowledges it. The backend response replaces it.
func Approve(report models.WriteOffReport, caps auth.Capabilities) (models.WriteOffReport, error) {
	if report.IsApproved() {
		return report, ErrAlreadyApproved
	}
	if !caps.CanApprove || !CanApprove(&report, caps.Role) {
		return report, ErrNotAdmin
	}
	approver := caps.UserID
	report.ApprovedBy = &approver
	return report, nil
}

// GuardEdit rejects edits and deletes of approved reports
func GuardEdit(report *models.WriteOffReport) error {
	if report.IsApproved() {
		return ErrAlreadyApproved
	}
	return nil
}

// ValidateUpdate checks an edit of a pending report
func ValidateUpdate(report *models.WriteOffReport, u models.WriteOffUpdate) error {
	if err := GuardEdit(report); err != nil {
		return err
	}
	if u.Reason == nil && u.ReportDate == nil && u.DisposedBy == nil {
		return apperr.Validation("EMPTY_UPDATE", "no fields to update")
	}
	if u.Reason != nil && strings.TrimSpace(*u.Reason) == "" {
		return apperr.Validation("REASON_REQUIRED", "reason cannot be empty")
	}
	if u.DisposedBy != nil && *u.DisposedBy <= 0 {
		return apperr.Validation("INVALID_DISPOSER", "disposed_by must reference a user")
	}
	return nil
}
