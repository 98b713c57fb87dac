package models

import (
	"time"

	"github.com/lib/pq"
)

// ExceptionType identifies the four point-override kinds for a series date.
type ExceptionType string

const (
	ExceptionCancel     ExceptionType = "cancel"
	ExceptionMove       ExceptionType = "move"
	ExceptionReschedule ExceptionType = "reschedule"
	ExceptionInstructor ExceptionType = "instructor"
)

// Valid returns true when the exception type is supported.
func (t ExceptionType) Valid() bool {
	switch t {
	case ExceptionCancel, ExceptionMove, ExceptionReschedule, ExceptionInstructor:
		return true
	default:
		return false
	}
}

// SessionException overrides a single date of a recurring series. At most one
// exception exists per (series, date); a later write replaces the earlier one.
type SessionException struct {
	ID            string        `db:"id" json:"id"`
	SeriesID      string        `db:"series_id" json:"series_id"`
	Date          time.Time     `db:"date" json:"date"`
	Type          ExceptionType `db:"type" json:"type"`
	NewDate       *time.Time    `db:"new_date" json:"new_date,omitempty"`
	NewStartTime  *string       `db:"new_start_time" json:"new_start_time,omitempty"`
	NewEndTime    *string       `db:"new_end_time" json:"new_end_time,omitempty"`
	NewInstructor *string       `db:"new_instructor" json:"new_instructor,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// RecurringSeries is a weekly class definition. Wall-clock times carry no
// timezone and are interpreted in the organization's local time. MemberIDs is
// the enrolled roster used by bulk attendance marking.
type RecurringSeries struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Instructor string         `db:"instructor" json:"instructor"`
	Weekdays   pq.StringArray `db:"weekdays" json:"weekdays"`
	StartTime  string         `db:"start_time" json:"start_time"`
	EndTime    string         `db:"end_time" json:"end_time"`
	MemberIDs  pq.StringArray `db:"member_ids" json:"member_ids"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`

	Exceptions []SessionException `db:"-" json:"exceptions,omitempty"`
}

// DateKey normalises a timestamp to its calendar-date key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ExceptionOn returns the exception for the given date, or nil when the date
// is unaffected.
func (s *RecurringSeries) ExceptionOn(date time.Time) *SessionException {
	key := DateKey(date)
	for i := range s.Exceptions {
		if DateKey(s.Exceptions[i].Date) == key {
			return &s.Exceptions[i]
		}
	}
	return nil
}

// RecursOn reports whether the series' weekday pattern covers the date.
func (s *RecurringSeries) RecursOn(date time.Time) bool {
	name := date.Weekday().String()
	for _, day := range s.Weekdays {
		if day == name {
			return true
		}
	}
	return false
}

// ValidWeekday reports whether the name is one of the seven weekday names.
func ValidWeekday(name string) bool {
	switch name {
	case "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday":
		return true
	default:
		return false
	}
}
