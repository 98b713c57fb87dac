package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/pkg/clock"
)

type mockMemberRepo struct {
	members map[string]models.Member
	created *models.Member
	updated *models.Member
	deleted []string
}

func (m *mockMemberRepo) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error) {
	var out []models.Member
	for _, member := range m.members {
		out = append(out, member)
	}
	return out, len(out), nil
}

func (m *mockMemberRepo) ListByStatus(ctx context.Context, status models.MemberStatus) ([]models.Member, error) {
	var out []models.Member
	for _, member := range m.members {
		if member.Status == status {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) FindByID(ctx context.Context, id string) (*models.Member, error) {
	if member, ok := m.members[id]; ok {
		copied := member
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMemberRepo) Create(ctx context.Context, member *models.Member) error {
	if m.members == nil {
		m.members = make(map[string]models.Member)
	}
	m.members[member.ID] = *member
	m.created = member
	return nil
}

func (m *mockMemberRepo) Update(ctx context.Context, member *models.Member) error {
	m.members[member.ID] = *member
	m.updated = member
	return nil
}

func (m *mockMemberRepo) DeleteEverywhere(ctx context.Context, id string) error {
	delete(m.members, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockUserWriter struct {
	created *models.User
	fail    bool
}

func (m *mockUserWriter) CreateUser(ctx context.Context, user *models.User) error {
	if m.fail {
		return errors.New("duplicate email")
	}
	m.created = user
	return nil
}

func newMemberFixture(repo *mockMemberRepo, users *mockUserWriter) *MemberService {
	return NewMemberService(repo, users, nil, clock.Fixed{T: time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)}, zap.NewNop())
}

func TestMemberCreateProvisionsAccount(t *testing.T) {
	repo := &mockMemberRepo{}
	users := &mockUserWriter{}
	svc := newMemberFixture(repo, users)

	outcome, err := svc.Create(context.Background(), CreateMemberRequest{
		FullName: "Ana Souza",
		Email:    "ana@example.com",
		RankID:   "white",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.True(t, outcome.AccountProvisioned)
	assert.Equal(t, models.MemberStatusActive, outcome.Member.Status)

	require.NotNil(t, users.created)
	assert.Equal(t, models.RoleStudent, users.created.Role)
	require.NotNil(t, users.created.MemberID)
	assert.Equal(t, outcome.Member.ID, *users.created.MemberID)
	assert.NotEqual(t, "secret123", users.created.PasswordHash)
}

func TestMemberCreateProvisioningFailureIsPartialSuccess(t *testing.T) {
	repo := &mockMemberRepo{}
	users := &mockUserWriter{fail: true}
	svc := newMemberFixture(repo, users)

	outcome, err := svc.Create(context.Background(), CreateMemberRequest{
		FullName: "Ana Souza",
		Email:    "ana@example.com",
		RankID:   "white",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.False(t, outcome.AccountProvisioned)
	assert.NotEmpty(t, outcome.ProvisionError)
	// The roster entry survives the failed provisioning.
	require.NotNil(t, repo.created)
	_, found := repo.members[outcome.Member.ID]
	assert.True(t, found)
}

func TestMemberCreateValidation(t *testing.T) {
	svc := newMemberFixture(&mockMemberRepo{}, &mockUserWriter{})

	_, err := svc.Create(context.Background(), CreateMemberRequest{
		FullName: "Ana Souza",
		Email:    "not-an-email",
		RankID:   "white",
		Password: "secret123",
	})
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), CreateMemberRequest{
		FullName: "Ana Souza",
		Email:    "ana@example.com",
		RankID:   "white",
		Password: "short",
	})
	assert.Error(t, err)
}

func TestMemberUpdate(t *testing.T) {
	repo := &mockMemberRepo{members: map[string]models.Member{
		"m1": {ID: "m1", FullName: "Ana Souza", Email: "ana@example.com", RankID: "white", Status: models.MemberStatusActive, AttendanceCount: 12},
	}}
	svc := newMemberFixture(repo, &mockUserWriter{})

	member, err := svc.Update(context.Background(), "m1", UpdateMemberRequest{
		FullName: "Ana Souza",
		Email:    "ana@example.com",
		RankID:   "blue",
		Status:   "debtor",
	})
	require.NoError(t, err)
	assert.Equal(t, "blue", member.RankID)
	assert.Equal(t, models.MemberStatusDebtor, member.Status)
	// Ledger-derived aggregates are not touched by profile updates.
	assert.Equal(t, 12, member.AttendanceCount)
}

func TestMemberDelete(t *testing.T) {
	repo := &mockMemberRepo{members: map[string]models.Member{
		"m1": {ID: "m1", FullName: "Ana Souza"},
	}}
	svc := newMemberFixture(repo, &mockUserWriter{})

	require.NoError(t, svc.Delete(context.Background(), "m1"))
	assert.Contains(t, repo.deleted, "m1")

	err := svc.Delete(context.Background(), "ghost")
	assert.Error(t, err)
}
