package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatamihq/academy-api/internal/models"
)

func newMemberMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func memberRows(ids ...string) *sqlmock.Rows {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "phone", "rank_id", "status",
		"attendance_count", "last_attendance_date", "joined_at", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, "Member "+id, id+"@dojo.test", "", "white", "active", 0, nil, now, now, now)
	}
	return rows
}

func TestMemberRepositoryListWithFilters(t *testing.T) {
	db, mock, closeFn := newMemberMock(t)
	defer closeFn()
	repo := NewMemberRepository(db)

	status := models.MemberStatusActive
	filter := models.MemberFilter{Search: "ana", Status: &status, Page: 2, PageSize: 10}

	mock.ExpectQuery(regexp.QuoteMeta("FROM members WHERE 1=1 AND (full_name ILIKE $1 OR email ILIKE $1) AND status = $2 ORDER BY full_name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%ana%", status).
		WillReturnRows(memberRows("m1", "m2"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM members WHERE 1=1")).
		WithArgs("%ana%", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	members, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, 12, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepositoryListByStatus(t *testing.T) {
	db, mock, closeFn := newMemberMock(t)
	defer closeFn()
	repo := NewMemberRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM members WHERE status = $1 ORDER BY full_name ASC")).
		WithArgs(models.MemberStatusExamReady).
		WillReturnRows(memberRows("m3"))

	members, err := repo.ListByStatus(context.Background(), models.MemberStatusExamReady)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "m3", members[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepositoryCreateAssignsID(t *testing.T) {
	db, mock, closeFn := newMemberMock(t)
	defer closeFn()
	repo := NewMemberRepository(db)

	member := &models.Member{
		FullName: "Ana Souza",
		Email:    "ana@dojo.test",
		RankID:   "white",
		Status:   models.MemberStatusActive,
		JoinedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO members").
		WithArgs(sqlmock.AnyArg(), "Ana Souza", "ana@dojo.test", "", "white", "active",
			0, nil, member.JoinedAt, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), member))
	assert.NotEmpty(t, member.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepositoryDeleteEverywhere(t *testing.T) {
	db, mock, closeFn := newMemberMock(t)
	defer closeFn()
	repo := NewMemberRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE recurring_series SET member_ids = array_remove(member_ids, $1)")).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE one_off_events SET registrant_ids = array_remove(registrant_ids, $1)")).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM attendance_records WHERE member_id").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("DELETE FROM users WHERE member_id").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM members WHERE id").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteEverywhere(context.Background(), "m1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepositoryCommitPromotion(t *testing.T) {
	db, mock, closeFn := newMemberMock(t)
	defer closeFn()
	repo := NewMemberRepository(db)

	member := &models.Member{
		ID:     "m1",
		RankID: "blue",
		Status: models.MemberStatusActive,
	}
	entry := &models.PromotionEntry{
		ID:         "p1",
		MemberID:   "m1",
		FromRank:   "White",
		ToRank:     "Blue",
		PromotedAt: time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE members SET rank_id").
		WithArgs("blue", "active", 0, sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM attendance_records WHERE member_id").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 20))
	mock.ExpectExec("INSERT INTO promotion_history").
		WithArgs("p1", "m1", "White", "Blue", entry.PromotedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CommitPromotion(context.Background(), member, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepositoryCommitPromotionRollsBackOnFailure(t *testing.T) {
	db, mock, closeFn := newMemberMock(t)
	defer closeFn()
	repo := NewMemberRepository(db)

	member := &models.Member{ID: "m1", RankID: "blue", Status: models.MemberStatusActive}
	entry := &models.PromotionEntry{ID: "p1", MemberID: "m1", FromRank: "White", ToRank: "Blue"}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE members SET rank_id").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.CommitPromotion(context.Background(), member, entry)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepositoryPromotionHistory(t *testing.T) {
	db, mock, closeFn := newMemberMock(t)
	defer closeFn()
	repo := NewMemberRepository(db)

	rows := sqlmock.NewRows([]string{"id", "member_id", "from_rank", "to_rank", "promoted_at"}).
		AddRow("p2", "m1", "Blue", "Purple", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)).
		AddRow("p1", "m1", "White", "Blue", time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery(regexp.QuoteMeta("FROM promotion_history")).
		WithArgs("m1").
		WillReturnRows(rows)

	entries, err := repo.PromotionHistory(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Purple", entries[0].ToRank)
	assert.NoError(t, mock.ExpectationsWereMet())
}
