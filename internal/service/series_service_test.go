package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/pkg/jobs"
)

type mockSeriesRepo struct {
	series    map[string]models.RecurringSeries
	upserted  *models.SessionException
	deleted   []string
	excDeleted []string
}

func (m *mockSeriesRepo) ListAll(ctx context.Context) ([]models.RecurringSeries, error) {
	var out []models.RecurringSeries
	for _, s := range m.series {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSeriesRepo) FindByID(ctx context.Context, id string) (*models.RecurringSeries, error) {
	if s, ok := m.series[id]; ok {
		copied := s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSeriesRepo) Create(ctx context.Context, series *models.RecurringSeries) error {
	if m.series == nil {
		m.series = make(map[string]models.RecurringSeries)
	}
	m.series[series.ID] = *series
	return nil
}

func (m *mockSeriesRepo) Update(ctx context.Context, series *models.RecurringSeries) error {
	m.series[series.ID] = *series
	return nil
}

func (m *mockSeriesRepo) Delete(ctx context.Context, id string) error {
	delete(m.series, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSeriesRepo) UpsertException(ctx context.Context, exc *models.SessionException) error {
	m.upserted = exc
	return nil
}

func (m *mockSeriesRepo) DeleteException(ctx context.Context, seriesID string, date time.Time) error {
	m.excDeleted = append(m.excDeleted, seriesID+":"+models.DateKey(date))
	return nil
}

type mockNotifier struct {
	invalidations int
}

func (m *mockNotifier) Invalidate(ctx context.Context) {
	m.invalidations++
}

type mockQueue struct {
	enqueued []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func newSeriesFixture(repo *mockSeriesRepo) (*SeriesService, *mockNotifier, *mockQueue) {
	notifier := &mockNotifier{}
	queue := &mockQueue{}
	svc := NewSeriesService(repo, notifier, queue, nil, zap.NewNop())
	return svc, notifier, queue
}

func TestSeriesCreateInvalidatesCalendar(t *testing.T) {
	repo := &mockSeriesRepo{}
	svc, notifier, queue := newSeriesFixture(repo)

	series, err := svc.Create(context.Background(), CreateSeriesRequest{
		Name:       "Kids BJJ",
		Instructor: "Prof. Silva",
		Weekdays:   []string{"Monday", "Wednesday"},
		StartTime:  "17:00",
		EndTime:    "18:00",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, series.ID)
	assert.Equal(t, 1, notifier.invalidations)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "calendar_refresh", queue.enqueued[0].Type)
}

func TestSeriesCreateValidation(t *testing.T) {
	svc, _, _ := newSeriesFixture(&mockSeriesRepo{})

	_, err := svc.Create(context.Background(), CreateSeriesRequest{
		Name:       "Kids BJJ",
		Instructor: "Prof. Silva",
		Weekdays:   []string{"Moonday"},
		StartTime:  "17:00",
		EndTime:    "18:00",
	})
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), CreateSeriesRequest{
		Name:       "Kids BJJ",
		Instructor: "Prof. Silva",
		Weekdays:   []string{"Monday"},
		StartTime:  "5pm",
		EndTime:    "18:00",
	})
	assert.Error(t, err)
}

func TestSeriesUpsertException(t *testing.T) {
	repo := &mockSeriesRepo{series: map[string]models.RecurringSeries{"s1": {ID: "s1"}}}
	svc, notifier, _ := newSeriesFixture(repo)

	newDate := "2024-06-11"
	exc, err := svc.UpsertException(context.Background(), "s1", UpsertExceptionRequest{
		Date:    "2024-06-10",
		Type:    "move",
		NewDate: &newDate,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExceptionMove, exc.Type)
	require.NotNil(t, exc.NewDate)
	assert.Equal(t, "2024-06-11", models.DateKey(*exc.NewDate))
	assert.Equal(t, 1, notifier.invalidations)
}

func TestSeriesUpsertExceptionMoveRequiresNewDate(t *testing.T) {
	repo := &mockSeriesRepo{series: map[string]models.RecurringSeries{"s1": {ID: "s1"}}}
	svc, _, _ := newSeriesFixture(repo)

	_, err := svc.UpsertException(context.Background(), "s1", UpsertExceptionRequest{
		Date: "2024-06-10",
		Type: "move",
	})
	assert.Error(t, err)
}

func TestSeriesUpsertExceptionUnknownSeries(t *testing.T) {
	svc, _, _ := newSeriesFixture(&mockSeriesRepo{})

	_, err := svc.UpsertException(context.Background(), "ghost", UpsertExceptionRequest{
		Date: "2024-06-10",
		Type: "cancel",
	})
	assert.Error(t, err)
}

func TestSeriesDeleteException(t *testing.T) {
	repo := &mockSeriesRepo{series: map[string]models.RecurringSeries{"s1": {ID: "s1"}}}
	svc, notifier, _ := newSeriesFixture(repo)

	require.NoError(t, svc.DeleteException(context.Background(), "s1", "2024-06-10"))
	assert.Contains(t, repo.excDeleted, "s1:2024-06-10")
	assert.Equal(t, 1, notifier.invalidations)
}
