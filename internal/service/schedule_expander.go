package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/tatamihq/academy-api/internal/models"
)

const defaultEventDuration = 60 * time.Minute

// ExpandWindow projects recurring series and one-off events into the concrete
// calendar instances falling inside the window. The function is pure and
// deterministic: identical inputs always produce the identical instance set.
// Instances are recomputed on every call, never stored.
func ExpandWindow(series []models.RecurringSeries, events []models.OneOffEvent, window models.Window) []models.CalendarInstance {
	instances := make([]models.CalendarInstance, 0, len(events)+len(series)*8)

	for i := range events {
		if inst, ok := eventInstance(&events[i], window); ok {
			instances = append(instances, inst)
		}
	}

	for i := range series {
		instances = append(instances, expandSeries(&series[i], window)...)
	}

	return instances
}

func eventInstance(event *models.OneOffEvent, window models.Window) (models.CalendarInstance, bool) {
	if !window.Contains(event.StartsAt) {
		return models.CalendarInstance{}, false
	}
	end := event.StartsAt.Add(defaultEventDuration)
	if event.EndsAt != nil && event.EndsAt.After(event.StartsAt) {
		end = *event.EndsAt
	}
	return models.CalendarInstance{
		ID:       event.ID,
		Title:    event.Title,
		StartsAt: event.StartsAt,
		EndsAt:   end,
		Status:   models.InstanceActive,
		Source:   models.SourceEvent,
		EventID:  event.ID,
	}, true
}

func expandSeries(s *models.RecurringSeries, window models.Window) []models.CalendarInstance {
	var instances []models.CalendarInstance

	from := dayOf(window.From)
	to := dayOf(window.To)
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		// First match wins: a move landing on this date takes precedence
		// over the series' own recurrence pattern.
		if exc := moveInOn(s, date); exc != nil {
			if inst, ok := seriesInstance(s, date, exc, models.InstanceRescheduled); ok {
				instances = append(instances, inst)
			}
			continue
		}

		if !s.RecursOn(date) {
			continue
		}

		exc := s.ExceptionOn(date)
		if exc != nil && exc.Type == models.ExceptionMove {
			// Origin of a move: rendered at its destination, or nowhere
			// when the destination falls outside the window.
			continue
		}

		status := models.InstanceActive
		if exc != nil {
			switch exc.Type {
			case models.ExceptionCancel:
				status = models.InstanceCancelled
			case models.ExceptionReschedule:
				status = models.InstanceRescheduled
			}
		}
		if inst, ok := seriesInstance(s, date, exc, status); ok {
			instances = append(instances, inst)
		}
	}

	return instances
}

// moveInOn returns the first move exception whose destination is the given
// date. The origin date may lie outside the window; only the destination
// matters here.
func moveInOn(s *models.RecurringSeries, date time.Time) *models.SessionException {
	key := models.DateKey(date)
	for i := range s.Exceptions {
		exc := &s.Exceptions[i]
		if exc.Type == models.ExceptionMove && exc.NewDate != nil && models.DateKey(*exc.NewDate) == key {
			return exc
		}
	}
	return nil
}

// seriesInstance renders one dated occurrence, applying the exception's
// overrides field by field. Missing or malformed time fields suppress this
// single instance only; the rest of the series still renders.
func seriesInstance(s *models.RecurringSeries, date time.Time, exc *models.SessionException, status models.InstanceStatus) (models.CalendarInstance, bool) {
	startRaw := s.StartTime
	endRaw := s.EndTime
	instructor := s.Instructor
	if exc != nil {
		if exc.NewStartTime != nil {
			startRaw = *exc.NewStartTime
		}
		if exc.NewEndTime != nil {
			endRaw = *exc.NewEndTime
		}
		if exc.NewInstructor != nil {
			instructor = *exc.NewInstructor
		}
	}

	start, ok := atWallClock(date, startRaw)
	if !ok {
		return models.CalendarInstance{}, false
	}
	end, ok := atWallClock(date, endRaw)
	if !ok {
		return models.CalendarInstance{}, false
	}

	return models.CalendarInstance{
		ID:         instanceID(s.ID, date),
		Title:      s.Name,
		Instructor: instructor,
		StartsAt:   start,
		EndsAt:     end,
		Status:     status,
		Source:     models.SourceSeries,
		SeriesID:   s.ID,
	}, true
}

// instanceID derives the stable identifier for a recurring-derived instance,
// usable as an idempotency key by downstream caches.
func instanceID(seriesID string, date time.Time) string {
	return fmt.Sprintf("%s:%s", seriesID, date.Format("20060102"))
}

// atWallClock combines a calendar date with an HH:MM wall-clock value.
func atWallClock(date time.Time, hhmm string) (time.Time, bool) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC), true
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
