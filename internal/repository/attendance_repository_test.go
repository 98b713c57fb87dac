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

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryHistoryByMember(t *testing.T) {
	db, mock, closeFn := newAttendanceMock(t)
	defer closeFn()
	repo := NewAttendanceRepository(db)

	recorded := time.Date(2024, 6, 3, 18, 5, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"member_id", "class_id", "date", "status", "reason", "recorded_at"}).
		AddRow("m1", "kids:20240605", time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), "present", nil, recorded).
		AddRow("m1", "kids:20240603", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), "late", nil, recorded)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT member_id, class_id, date, status, reason, recorded_at FROM attendance_records")).
		WithArgs("m1").
		WillReturnRows(rows)

	records, err := repo.HistoryByMember(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "kids:20240605", records[0].ClassID)
	assert.Equal(t, models.AttendanceStatusLate, records[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryClassReport(t *testing.T) {
	db, mock, closeFn := newAttendanceMock(t)
	defer closeFn()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"member_id", "member_name", "status", "reason"}).
		AddRow("m2", "Ana Souza", "present", nil).
		AddRow("m1", "Bruno Lima", "excused", "injury")

	mock.ExpectQuery(regexp.QuoteMeta("JOIN members m ON m.id = a.member_id")).
		WithArgs("kids:20240603", date).
		WillReturnRows(rows)

	report, err := repo.ClassReport(context.Background(), "kids:20240603", date)
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, "Ana Souza", report[0].MemberName)
	require.NotNil(t, report[1].Reason)
	assert.Equal(t, "injury", *report[1].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySaveMark(t *testing.T) {
	db, mock, closeFn := newAttendanceMock(t)
	defer closeFn()
	repo := NewAttendanceRepository(db)

	last := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	member := &models.Member{
		ID:                 "m1",
		Status:             models.MemberStatusActive,
		AttendanceCount:    12,
		LastAttendanceDate: &last,
	}
	record := &models.AttendanceRecord{
		MemberID:   "m1",
		ClassID:    "kids:20240603",
		Date:       last,
		Status:     models.AttendanceStatusPresent,
		RecordedAt: time.Date(2024, 6, 3, 18, 5, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").
		WithArgs("m1", "kids:20240603", record.Date, "present", nil, record.RecordedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE members SET").
		WithArgs("active", 12, last, sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveMark(context.Background(), member, record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteMark(t *testing.T) {
	db, mock, closeFn := newAttendanceMock(t)
	defer closeFn()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	member := &models.Member{ID: "m1", Status: models.MemberStatusActive, AttendanceCount: 11}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM attendance_records").
		WithArgs("m1", "kids:20240603", date).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE members SET").
		WithArgs("active", 11, nil, sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteMark(context.Background(), member, "kids:20240603", date))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySaveBulkRollsBackOnFailure(t *testing.T) {
	db, mock, closeFn := newAttendanceMock(t)
	defer closeFn()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	members := []*models.Member{{ID: "m1", Status: models.MemberStatusActive, AttendanceCount: 5, LastAttendanceDate: &date}}
	records := []models.AttendanceRecord{{
		MemberID: "m1", ClassID: "kids:20240603", Date: date,
		Status: models.AttendanceStatusPresent, RecordedAt: date,
	}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.SaveBulk(context.Background(), members, records)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
