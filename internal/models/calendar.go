package models

import "time"

// InstanceStatus tags the disposition of a rendered calendar instance.
type InstanceStatus string

const (
	InstanceActive      InstanceStatus = "active"
	InstanceCancelled   InstanceStatus = "cancelled"
	InstanceRescheduled InstanceStatus = "rescheduled"
)

// InstanceSource distinguishes recurring-derived instances from one-offs.
type InstanceSource string

const (
	SourceSeries InstanceSource = "series"
	SourceEvent  InstanceSource = "event"
)

// CalendarInstance is one concrete, dated occurrence inside the expansion
// window. Instances are never persisted; they are recomputed on every read
// from series, event and exception state.
type CalendarInstance struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Instructor string         `json:"instructor,omitempty"`
	StartsAt   time.Time      `json:"starts_at"`
	EndsAt     time.Time      `json:"ends_at"`
	Status     InstanceStatus `json:"status"`
	Source     InstanceSource `json:"source"`
	SeriesID   string         `json:"series_id,omitempty"`
	EventID    string         `json:"event_id,omitempty"`
}

// Window bounds a schedule expansion, inclusive on both ends.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether the date (compared at day granularity) falls
// inside the window.
func (w Window) Contains(date time.Time) bool {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	from := time.Date(w.From.Year(), w.From.Month(), w.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(w.To.Year(), w.To.Month(), w.To.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(from) && !day.After(to)
}
