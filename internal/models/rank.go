package models

import "time"

// Rank is one tier in the academy's progression ladder. Ordinal makes the
// progression order explicit and stable so reordering the stored list can
// never change which rank comes next.
type Rank struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Color              string    `db:"color" json:"color"`
	Ordinal            int       `db:"ordinal" json:"ordinal"`
	RequiredAttendance int       `db:"required_attendance" json:"required_attendance"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// RankByID returns the rank with the given id, or nil when absent.
func RankByID(ranks []Rank, id string) *Rank {
	for i := range ranks {
		if ranks[i].ID == id {
			return &ranks[i]
		}
	}
	return nil
}

// NextRank returns the rank with the smallest ordinal strictly greater than
// the given rank's ordinal, or nil when the rank is already at the top.
func NextRank(ranks []Rank, current Rank) *Rank {
	var next *Rank
	for i := range ranks {
		if ranks[i].Ordinal <= current.Ordinal {
			continue
		}
		if next == nil || ranks[i].Ordinal < next.Ordinal {
			next = &ranks[i]
		}
	}
	return next
}
