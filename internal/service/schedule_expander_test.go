package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatamihq/academy-api/internal/models"
)

func juneWindow() models.Window {
	return models.Window{
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func kidsSeries() models.RecurringSeries {
	return models.RecurringSeries{
		ID:         "kids",
		Name:       "Kids BJJ",
		Instructor: "Prof. Silva",
		Weekdays:   []string{"Monday", "Wednesday"},
		StartTime:  "17:00",
		EndTime:    "18:00",
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestExpandWindowWeeklyPattern(t *testing.T) {
	series := kidsSeries()

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	// June 2024 has four Mondays (3, 10, 17, 24) and four Wednesdays
	// (5, 12, 19, 26).
	require.Len(t, instances, 8)
	for _, inst := range instances {
		assert.Equal(t, models.InstanceActive, inst.Status)
		assert.Equal(t, models.SourceSeries, inst.Source)
		assert.Equal(t, "kids", inst.SeriesID)
		assert.Equal(t, 17, inst.StartsAt.Hour())
		assert.Equal(t, 18, inst.EndsAt.Hour())
	}
	assert.Equal(t, "kids:20240603", instances[0].ID)
}

func TestExpandWindowDeterministic(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{SeriesID: "kids", Date: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), Type: models.ExceptionCancel},
	}
	events := []models.OneOffEvent{
		{ID: "ev1", Title: "Summer Exam", StartsAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)},
	}

	first := ExpandWindow([]models.RecurringSeries{series}, events, juneWindow())
	second := ExpandWindow([]models.RecurringSeries{series}, events, juneWindow())

	assert.Equal(t, first, second)
}

func TestExpandWindowCancelKeepsInstance(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{SeriesID: "kids", Date: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), Type: models.ExceptionCancel},
	}

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	require.Len(t, instances, 8)
	var cancelled *models.CalendarInstance
	for i := range instances {
		if instances[i].ID == "kids:20240610" {
			cancelled = &instances[i]
		}
	}
	require.NotNil(t, cancelled)
	assert.Equal(t, models.InstanceCancelled, cancelled.Status)
}

func TestExpandWindowMoveConservation(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{
			SeriesID: "kids",
			Date:     time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
			Type:     models.ExceptionMove,
			NewDate:  timePtr(time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)),
		},
	}

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	// Still eight: the origin disappears, the destination appears.
	require.Len(t, instances, 8)
	ids := make(map[string]models.InstanceStatus, len(instances))
	for _, inst := range instances {
		ids[inst.ID] = inst.Status
	}
	assert.NotContains(t, ids, "kids:20240610")
	require.Contains(t, ids, "kids:20240611")
	assert.Equal(t, models.InstanceRescheduled, ids["kids:20240611"])
}

func TestExpandWindowMoveDestinationOutsideWindow(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{
			SeriesID: "kids",
			Date:     time.Date(2024, 6, 24, 0, 0, 0, 0, time.UTC),
			Type:     models.ExceptionMove,
			NewDate:  timePtr(time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)),
		},
	}

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	// The moved session renders in July's window, not here.
	require.Len(t, instances, 7)
	for _, inst := range instances {
		assert.NotEqual(t, "kids:20240624", inst.ID)
	}
}

func TestExpandWindowMoveInFromOutsideWindow(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{
			SeriesID: "kids",
			Date:     time.Date(2024, 5, 29, 0, 0, 0, 0, time.UTC),
			Type:     models.ExceptionMove,
			NewDate:  timePtr(time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)),
		},
	}

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	require.Len(t, instances, 9)
	ids := make(map[string]models.InstanceStatus, len(instances))
	for _, inst := range instances {
		ids[inst.ID] = inst.Status
	}
	require.Contains(t, ids, "kids:20240604")
	assert.Equal(t, models.InstanceRescheduled, ids["kids:20240604"])
}

func TestExpandWindowRescheduleOverridesTimes(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{
			SeriesID:     "kids",
			Date:         time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
			Type:         models.ExceptionReschedule,
			NewStartTime: strPtr("19:30"),
			NewEndTime:   strPtr("20:30"),
		},
	}

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	require.Len(t, instances, 8)
	for _, inst := range instances {
		if inst.ID != "kids:20240612" {
			continue
		}
		assert.Equal(t, models.InstanceRescheduled, inst.Status)
		assert.Equal(t, 19, inst.StartsAt.Hour())
		assert.Equal(t, 30, inst.StartsAt.Minute())
		assert.Equal(t, 20, inst.EndsAt.Hour())
		// Unset fields fall through to the series definition.
		assert.Equal(t, "Prof. Silva", inst.Instructor)
	}
}

func TestExpandWindowInstructorSubstitution(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{
			SeriesID:      "kids",
			Date:          time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC),
			Type:          models.ExceptionInstructor,
			NewInstructor: strPtr("Coach Diaz"),
		},
	}

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	require.Len(t, instances, 8)
	for _, inst := range instances {
		if inst.ID != "kids:20240617" {
			continue
		}
		assert.Equal(t, models.InstanceActive, inst.Status)
		assert.Equal(t, "Coach Diaz", inst.Instructor)
		assert.Equal(t, 17, inst.StartsAt.Hour())
	}
}

func TestExpandWindowMalformedSeriesTime(t *testing.T) {
	series := kidsSeries()
	series.StartTime = "not-a-time"

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	assert.Empty(t, instances)
}

func TestExpandWindowMalformedExceptionTimeSuppressesOneInstance(t *testing.T) {
	series := kidsSeries()
	series.Exceptions = []models.SessionException{
		{
			SeriesID:     "kids",
			Date:         time.Date(2024, 6, 19, 0, 0, 0, 0, time.UTC),
			Type:         models.ExceptionReschedule,
			NewStartTime: strPtr("25:99"),
		},
	}

	instances := ExpandWindow([]models.RecurringSeries{series}, nil, juneWindow())

	require.Len(t, instances, 7)
	for _, inst := range instances {
		assert.NotEqual(t, "kids:20240619", inst.ID)
	}
}

func TestExpandWindowEvents(t *testing.T) {
	events := []models.OneOffEvent{
		{ID: "ev1", Title: "Belt Exam", StartsAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)},
		{
			ID:       "ev2",
			Title:    "Tournament",
			StartsAt: time.Date(2024, 6, 22, 9, 0, 0, 0, time.UTC),
			EndsAt:   timePtr(time.Date(2024, 6, 22, 17, 0, 0, 0, time.UTC)),
		},
		{ID: "ev3", Title: "July Social", StartsAt: time.Date(2024, 7, 5, 18, 0, 0, 0, time.UTC)},
	}

	instances := ExpandWindow(nil, events, juneWindow())

	require.Len(t, instances, 2)
	assert.Equal(t, "ev1", instances[0].ID)
	assert.Equal(t, models.SourceEvent, instances[0].Source)
	assert.Equal(t, instances[0].StartsAt.Add(time.Hour), instances[0].EndsAt)
	assert.Equal(t, 17, instances[1].EndsAt.Hour())
}
