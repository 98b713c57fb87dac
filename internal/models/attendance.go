package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusExcused, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// Counts reports whether the status contributes to the member's aggregate
// attendance count.
func (s AttendanceStatus) Counts() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// AttendanceRecord is one ledger entry. The ledger holds at most one record
// per (member, class, date); a second write for the same key replaces the
// first.
type AttendanceRecord struct {
	MemberID   string           `db:"member_id" json:"member_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Reason     *string          `db:"reason" json:"reason,omitempty"`
	RecordedAt time.Time        `db:"recorded_at" json:"recorded_at"`
}

// ClassReportRow summarises one member's mark for a class/date report.
type ClassReportRow struct {
	MemberID   string           `db:"member_id" json:"member_id"`
	MemberName string           `db:"member_name" json:"member_name"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Reason     *string          `db:"reason" json:"reason,omitempty"`
}

// BulkMarkResult summarises a bulk-present run. Skipped lists members that
// already carried a record for the class/date and were left untouched.
type BulkMarkResult struct {
	Marked  []string `json:"marked"`
	Skipped []string `json:"skipped"`
}
