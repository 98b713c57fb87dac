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

type seriesRepository interface {
	ListAll(ctx context.Context) ([]models.RecurringSeries, error)
	FindByID(ctx context.Context, id string) (*models.RecurringSeries, error)
	Create(ctx context.Context, series *models.RecurringSeries) error
	Update(ctx context.Context, series *models.RecurringSeries) error
	Delete(ctx context.Context, id string) error
	UpsertException(ctx context.Context, exc *models.SessionException) error
	DeleteException(ctx context.Context, seriesID string, date time.Time) error
}

type calendarNotifier interface {
	Invalidate(ctx context.Context)
}

type refreshQueue interface {
	Enqueue(job jobs.Job) error
}

// SeriesService manages recurring class definitions and their exceptions.
// Every mutation invalidates the expanded calendar and schedules a background
// re-expansion.
type SeriesService struct {
	repo      seriesRepository
	calendar  calendarNotifier
	queue     refreshQueue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSeriesService constructs the series service.
func NewSeriesService(repo seriesRepository, calendar calendarNotifier, queue refreshQueue, validate *validator.Validate, logger *zap.Logger) *SeriesService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SeriesService{repo: repo, calendar: calendar, queue: queue, validator: validate, logger: logger}
	svc.validator.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return models.ValidWeekday(fl.Field().String())
	})
	svc.validator.RegisterValidation("wallclock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	svc.validator.RegisterValidation("exception_type", func(fl validator.FieldLevel) bool {
		return models.ExceptionType(fl.Field().String()).Valid()
	})
	return svc
}

// CreateSeriesRequest describes the create payload.
type CreateSeriesRequest struct {
	Name       string   `json:"name" validate:"required"`
	Instructor string   `json:"instructor" validate:"required"`
	Weekdays   []string `json:"weekdays" validate:"required,min=1,max=7,dive,weekday"`
	StartTime  string   `json:"start_time" validate:"required,wallclock"`
	EndTime    string   `json:"end_time" validate:"required,wallclock"`
	MemberIDs  []string `json:"member_ids"`
}

// UpdateSeriesRequest describes the update payload; whole-record upsert, no
// partial-field patch.
type UpdateSeriesRequest struct {
	Name       string   `json:"name" validate:"required"`
	Instructor string   `json:"instructor" validate:"required"`
	Weekdays   []string `json:"weekdays" validate:"required,min=1,max=7,dive,weekday"`
	StartTime  string   `json:"start_time" validate:"required,wallclock"`
	EndTime    string   `json:"end_time" validate:"required,wallclock"`
	MemberIDs  []string `json:"member_ids"`
}

// UpsertExceptionRequest overrides one date of a series. A later write for
// the same date replaces the earlier exception.
type UpsertExceptionRequest struct {
	Date          string  `json:"date" validate:"required"`
	Type          string  `json:"type" validate:"required,exception_type"`
	NewDate       *string `json:"new_date"`
	NewStartTime  *string `json:"new_start_time" validate:"omitempty,wallclock"`
	NewEndTime    *string `json:"new_end_time" validate:"omitempty,wallclock"`
	NewInstructor *string `json:"new_instructor"`
}

// ListAll returns every recurring series with exceptions attached.
func (s *SeriesService) ListAll(ctx context.Context) ([]models.RecurringSeries, error) {
	series, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list series")
	}
	return series, nil
}

// Get returns a single series.
func (s *SeriesService) Get(ctx context.Context, id string) (*models.RecurringSeries, error) {
	series, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "series not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get series")
	}
	return series, nil
}

// Create registers a new recurring series.
func (s *SeriesService) Create(ctx context.Context, req CreateSeriesRequest) (*models.RecurringSeries, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	series := &models.RecurringSeries{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Instructor: req.Instructor,
		Weekdays:   req.Weekdays,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		MemberIDs:  req.MemberIDs,
	}
	if err := s.repo.Create(ctx, series); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create series")
	}
	s.scheduleChanged(ctx)
	return series, nil
}

// Update replaces a series definition.
func (s *SeriesService) Update(ctx context.Context, id string, req UpdateSeriesRequest) (*models.RecurringSeries, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	series, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	series.Name = req.Name
	series.Instructor = req.Instructor
	series.Weekdays = req.Weekdays
	series.StartTime = req.StartTime
	series.EndTime = req.EndTime
	series.MemberIDs = req.MemberIDs
	if err := s.repo.Update(ctx, series); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update series")
	}
	s.scheduleChanged(ctx)
	return series, nil
}

// Delete removes a series together with its exceptions.
func (s *SeriesService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete series")
	}
	s.scheduleChanged(ctx)
	return nil
}

// UpsertException writes the point override for one date of the series.
func (s *SeriesService) UpsertException(ctx context.Context, seriesID string, req UpsertExceptionRequest) (*models.SessionException, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	excType := models.ExceptionType(req.Type)
	var newDate *time.Time
	if excType == models.ExceptionMove {
		if req.NewDate == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "move exception requires new_date")
		}
		parsed, err := parseDate(*req.NewDate)
		if err != nil {
			return nil, err
		}
		newDate = &parsed
	}

	if _, err := s.Get(ctx, seriesID); err != nil {
		return nil, err
	}

	exc := &models.SessionException{
		ID:            uuid.NewString(),
		SeriesID:      seriesID,
		Date:          date,
		Type:          excType,
		NewDate:       newDate,
		NewStartTime:  req.NewStartTime,
		NewEndTime:    req.NewEndTime,
		NewInstructor: req.NewInstructor,
	}
	if err := s.repo.UpsertException(ctx, exc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save exception")
	}
	s.scheduleChanged(ctx)
	return exc, nil
}

// DeleteException removes the override for a date; missing override is a
// no-op.
func (s *SeriesService) DeleteException(ctx context.Context, seriesID string, rawDate string) error {
	date, err := parseDate(rawDate)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteException(ctx, seriesID, date); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exception")
	}
	s.scheduleChanged(ctx)
	return nil
}

func (s *SeriesService) scheduleChanged(ctx context.Context) {
	if s.calendar != nil {
		s.calendar.Invalidate(ctx)
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "calendar_refresh"}); err != nil {
			s.logger.Warn("failed to enqueue calendar refresh", zap.Error(err))
		}
	}
}
