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
)

type mockEventRepo struct {
	events  map[string]models.OneOffEvent
	deleted []string
}

func (m *mockEventRepo) ListAll(ctx context.Context) ([]models.OneOffEvent, error) {
	var out []models.OneOffEvent
	for _, e := range m.events {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*models.OneOffEvent, error) {
	if e, ok := m.events[id]; ok {
		copied := e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.OneOffEvent) error {
	if m.events == nil {
		m.events = make(map[string]models.OneOffEvent)
	}
	m.events[event.ID] = *event
	return nil
}

func (m *mockEventRepo) Update(ctx context.Context, event *models.OneOffEvent) error {
	m.events[event.ID] = *event
	return nil
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	delete(m.events, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockStatusLister struct {
	byStatus map[models.MemberStatus][]models.Member
}

func (m *mockStatusLister) ListByStatus(ctx context.Context, status models.MemberStatus) ([]models.Member, error) {
	return m.byStatus[status], nil
}

func newEventFixture(repo *mockEventRepo, members *mockStatusLister) (*EventService, *mockNotifier, *mockQueue) {
	notifier := &mockNotifier{}
	queue := &mockQueue{}
	svc := NewEventService(repo, members, notifier, queue, nil, zap.NewNop())
	return svc, notifier, queue
}

func TestEventCreateExamAutoEnrolls(t *testing.T) {
	repo := &mockEventRepo{}
	members := &mockStatusLister{byStatus: map[models.MemberStatus][]models.Member{
		models.MemberStatusExamReady: {{ID: "m1"}, {ID: "m2"}},
	}}
	svc, notifier, queue := newEventFixture(repo, members)

	event, err := svc.Create(context.Background(), CreateEventRequest{
		Title:    "Summer Belt Exam",
		Type:     "exam",
		StartsAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2"}, []string(event.RegistrantIDs))
	assert.Equal(t, 1, notifier.invalidations)
	require.Len(t, queue.enqueued, 1)
}

func TestEventCreateNonExamStartsEmpty(t *testing.T) {
	repo := &mockEventRepo{}
	members := &mockStatusLister{byStatus: map[models.MemberStatus][]models.Member{
		models.MemberStatusExamReady: {{ID: "m1"}},
	}}
	svc, _, _ := newEventFixture(repo, members)

	event, err := svc.Create(context.Background(), CreateEventRequest{
		Title:    "Open Mat",
		Type:     "social",
		StartsAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, event.RegistrantIDs)
}

func TestEventCreateValidation(t *testing.T) {
	svc, _, _ := newEventFixture(&mockEventRepo{}, &mockStatusLister{})

	_, err := svc.Create(context.Background(), CreateEventRequest{
		Title:    "Mystery",
		Type:     "openhouse",
		StartsAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)

	ends := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), CreateEventRequest{
		Title:    "Backwards",
		Type:     "seminar",
		StartsAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		EndsAt:   &ends,
	})
	assert.Error(t, err)
}

func TestEventRegisterIdempotent(t *testing.T) {
	repo := &mockEventRepo{events: map[string]models.OneOffEvent{
		"ev1": {ID: "ev1", Title: "Tournament", RegistrantIDs: []string{"m1"}},
	}}
	svc, _, _ := newEventFixture(repo, &mockStatusLister{})

	event, err := svc.Register(context.Background(), "ev1", "m1")
	require.NoError(t, err)
	assert.Len(t, event.RegistrantIDs, 1)

	event, err = svc.Register(context.Background(), "ev1", "m2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2"}, []string(event.RegistrantIDs))
}

func TestEventUnregister(t *testing.T) {
	repo := &mockEventRepo{events: map[string]models.OneOffEvent{
		"ev1": {ID: "ev1", Title: "Tournament", RegistrantIDs: []string{"m1", "m2"}},
	}}
	svc, _, _ := newEventFixture(repo, &mockStatusLister{})

	event, err := svc.Unregister(context.Background(), "ev1", "m1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m2"}, []string(event.RegistrantIDs))
}

func TestEventDelete(t *testing.T) {
	repo := &mockEventRepo{events: map[string]models.OneOffEvent{"ev1": {ID: "ev1"}}}
	svc, notifier, _ := newEventFixture(repo, &mockStatusLister{})

	require.NoError(t, svc.Delete(context.Background(), "ev1"))
	assert.Contains(t, repo.deleted, "ev1")
	assert.Equal(t, 1, notifier.invalidations)
}
