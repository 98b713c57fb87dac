package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
	"github.com/tatamihq/academy-api/pkg/jobs"
)

type eventRepository interface {
	ListAll(ctx context.Context) ([]models.OneOffEvent, error)
	FindByID(ctx context.Context, id string) (*models.OneOffEvent, error)
	Create(ctx context.Context, event *models.OneOffEvent) error
	Update(ctx context.Context, event *models.OneOffEvent) error
	Delete(ctx context.Context, id string) error
}

type eventMemberRepository interface {
	ListByStatus(ctx context.Context, status models.MemberStatus) ([]models.Member, error)
}

// EventService manages one-off events: exams, tournaments, seminars and
// socials. Exam events auto-enroll every member who is exam_ready at
// creation time; later eligibility changes do not re-run enrollment.
type EventService struct {
	repo      eventRepository
	members   eventMemberRepository
	calendar  calendarNotifier
	queue     refreshQueue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the event service.
func NewEventService(repo eventRepository, members eventMemberRepository, calendar calendarNotifier, queue refreshQueue, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EventService{repo: repo, members: members, calendar: calendar, queue: queue, validator: validate, logger: logger}
	svc.validator.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return models.EventType(fl.Field().String()).Valid()
	})
	return svc
}

// CreateEventRequest describes the create payload.
type CreateEventRequest struct {
	Title    string     `json:"title" validate:"required"`
	Type     string     `json:"type" validate:"required,event_type"`
	StartsAt time.Time  `json:"starts_at" validate:"required"`
	EndsAt   *time.Time `json:"ends_at"`
	Location *string    `json:"location"`
}

// UpdateEventRequest describes the update payload.
type UpdateEventRequest struct {
	Title    string     `json:"title" validate:"required"`
	Type     string     `json:"type" validate:"required,event_type"`
	StartsAt time.Time  `json:"starts_at" validate:"required"`
	EndsAt   *time.Time `json:"ends_at"`
	Location *string    `json:"location"`
}

// ListAll returns every one-off event.
func (s *EventService) ListAll(ctx context.Context) ([]models.OneOffEvent, error) {
	events, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, id string) (*models.OneOffEvent, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get event")
	}
	return event, nil
}

// Create registers an event. Exam events start with every currently
// exam_ready member registered.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest) (*models.OneOffEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ends_at must be after starts_at")
	}

	event := &models.OneOffEvent{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Type:          models.EventType(req.Type),
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Location:      req.Location,
		RegistrantIDs: []string{},
	}

	if event.Type == models.EventTypeExam {
		ready, err := s.members.ListByStatus(ctx, models.MemberStatusExamReady)
		if err != nil {
			s.logger.Warn("exam auto-enroll skipped, members unavailable", zap.Error(err))
		} else {
			for _, m := range ready {
				event.RegistrantIDs = append(event.RegistrantIDs, m.ID)
			}
		}
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.scheduleChanged(ctx)
	return event, nil
}

// Update replaces an event definition, keeping its registrants.
func (s *EventService) Update(ctx context.Context, id string, req UpdateEventRequest) (*models.OneOffEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ends_at must be after starts_at")
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	event.Title = req.Title
	event.Type = models.EventType(req.Type)
	event.StartsAt = req.StartsAt
	event.EndsAt = req.EndsAt
	event.Location = req.Location
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	s.scheduleChanged(ctx)
	return event, nil
}

// Delete removes an event outright; one-offs have no cancellation overlay.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.scheduleChanged(ctx)
	return nil
}

// Register adds a member to the registrant list; already-registered is a
// no-op.
func (s *EventService) Register(ctx context.Context, eventID, memberID string) (*models.OneOffEvent, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, id := range event.RegistrantIDs {
		if id == memberID {
			return event, nil
		}
	}
	event.RegistrantIDs = append(event.RegistrantIDs, memberID)
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register member")
	}
	return event, nil
}

// Unregister removes a member from the registrant list.
func (s *EventService) Unregister(ctx context.Context, eventID, memberID string) (*models.OneOffEvent, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	kept := event.RegistrantIDs[:0]
	for _, id := range event.RegistrantIDs {
		if id != memberID {
			kept = append(kept, id)
		}
	}
	event.RegistrantIDs = kept
	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unregister member")
	}
	return event, nil
}

func (s *EventService) scheduleChanged(ctx context.Context) {
	if s.calendar != nil {
		s.calendar.Invalidate(ctx)
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "calendar_refresh"}); err != nil {
			s.logger.Warn("failed to enqueue calendar refresh", zap.Error(err))
		}
	}
}
