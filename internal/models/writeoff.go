package models

// WriteOffReport is a decommissioning request for a device.
// A nil ApprovedBy means the report is still pending.
type WriteOffReport struct {
	ID         int64  `json:"id"`
	DeviceID   int64  `json:"device_id"`
	ReportDate Date   `json:"report_date"`
	Reason     string `json:"reason"`
	DisposedBy int64  `json:"disposed_by"`
	ApprovedBy *int64 `json:"approved_by"`
}

// IsApproved reports whether the report has been approved
func (r *WriteOffReport) IsApproved() bool {
	return r.ApprovedBy != nil
}

// WriteOffUpdate is the body for PUT /write-off-reports/{id}
type WriteOffUpdate struct {
	Reason     *string `json:"reason,omitempty"`
	ReportDate *Date   `json:"report_date,omitempty"`
	DisposedBy *int64  `json:"disposed_by,omitempty"`
}

// WriteOffInput is the body for filing a write-off report
type WriteOffInput struct {
	DeviceID   int64  `json:"device_id" validate:"required"`
	ReportDate Date   `json:"report_date" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
	DisposedBy int64  `json:"disposed_by" validate:"required"`
}
