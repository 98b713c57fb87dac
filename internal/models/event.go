package models

import (
	"time"

	"github.com/lib/pq"
)

// EventType tags a one-off event and drives its default registrant policy.
type EventType string

const (
	EventTypeExam       EventType = "exam"
	EventTypeTournament EventType = "tournament"
	EventTypeSeminar    EventType = "seminar"
	EventTypeSocial     EventType = "social"
)

// Valid returns true when the event type is supported.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeExam, EventTypeTournament, EventTypeSeminar, EventTypeSocial:
		return true
	default:
		return false
	}
}

// OneOffEvent is a non-recurring calendar item. EndsAt is optional; the
// expander defaults it to one hour after start. Cancellation removes the
// event outright, there is no exception mechanism for one-offs.
type OneOffEvent struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Type          EventType      `db:"type" json:"type"`
	StartsAt      time.Time      `db:"starts_at" json:"starts_at"`
	EndsAt        *time.Time     `db:"ends_at" json:"ends_at,omitempty"`
	Location      *string        `db:"location" json:"location,omitempty"`
	RegistrantIDs pq.StringArray `db:"registrant_ids" json:"registrant_ids"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
