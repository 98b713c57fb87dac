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

func newSeriesMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSeriesRepositoryListAllAttachesExceptions(t *testing.T) {
	db, mock, closeFn := newSeriesMock(t)
	defer closeFn()
	repo := NewSeriesRepository(db)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seriesRows := sqlmock.NewRows([]string{"id", "name", "instructor", "weekdays", "start_time", "end_time", "member_ids", "created_at", "updated_at"}).
		AddRow("adults", "Adults BJJ", "Prof. Costa", `{Tuesday,Thursday}`, "19:00", "20:30", `{}`, now, now).
		AddRow("kids", "Kids Judo", "Prof. Silva", `{Monday,Wednesday}`, "17:00", "18:00", `{m1,m2}`, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM recurring_series ORDER BY name ASC")).
		WillReturnRows(seriesRows)

	excDate := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	excRows := sqlmock.NewRows([]string{"id", "series_id", "date", "type", "new_date", "new_start_time", "new_end_time", "new_instructor", "created_at", "updated_at"}).
		AddRow("e1", "kids", excDate, "cancel", nil, nil, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM series_exceptions ORDER BY date ASC")).
		WillReturnRows(excRows)

	series, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Empty(t, series[0].Exceptions)
	require.Len(t, series[1].Exceptions, 1)
	assert.Equal(t, models.ExceptionCancel, series[1].Exceptions[0].Type)
	assert.Equal(t, []string{"m1", "m2"}, []string(series[1].MemberIDs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesRepositoryFindByID(t *testing.T) {
	db, mock, closeFn := newSeriesMock(t)
	defer closeFn()
	repo := NewSeriesRepository(db)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seriesRows := sqlmock.NewRows([]string{"id", "name", "instructor", "weekdays", "start_time", "end_time", "member_ids", "created_at", "updated_at"}).
		AddRow("kids", "Kids Judo", "Prof. Silva", `{Monday,Wednesday}`, "17:00", "18:00", `{}`, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM recurring_series WHERE id = $1")).
		WithArgs("kids").
		WillReturnRows(seriesRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM series_exceptions WHERE series_id = $1")).
		WithArgs("kids").
		WillReturnRows(sqlmock.NewRows([]string{"id", "series_id", "date", "type", "new_date", "new_start_time", "new_end_time", "new_instructor", "created_at", "updated_at"}))

	series, err := repo.FindByID(context.Background(), "kids")
	require.NoError(t, err)
	assert.Equal(t, "Kids Judo", series.Name)
	assert.Empty(t, series.Exceptions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesRepositoryCreateAssignsID(t *testing.T) {
	db, mock, closeFn := newSeriesMock(t)
	defer closeFn()
	repo := NewSeriesRepository(db)

	series := &models.RecurringSeries{
		Name:       "Kids Judo",
		Instructor: "Prof. Silva",
		Weekdays:   []string{"Monday", "Wednesday"},
		StartTime:  "17:00",
		EndTime:    "18:00",
		MemberIDs:  []string{},
	}

	mock.ExpectExec("INSERT INTO recurring_series").
		WithArgs(sqlmock.AnyArg(), "Kids Judo", "Prof. Silva", sqlmock.AnyArg(), "17:00", "18:00",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), series))
	assert.NotEmpty(t, series.ID)
	assert.False(t, series.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesRepositoryUpsertException(t *testing.T) {
	db, mock, closeFn := newSeriesMock(t)
	defer closeFn()
	repo := NewSeriesRepository(db)

	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	newDate := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	exc := &models.SessionException{
		SeriesID: "kids",
		Date:     date,
		Type:     models.ExceptionMove,
		NewDate:  &newDate,
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (series_id, date) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "kids", date, "move", newDate, nil, nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertException(context.Background(), exc))
	assert.NotEmpty(t, exc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesRepositoryDeleteRemovesExceptionsFirst(t *testing.T) {
	db, mock, closeFn := newSeriesMock(t)
	defer closeFn()
	repo := NewSeriesRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM series_exceptions WHERE series_id").
		WithArgs("kids").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM recurring_series WHERE id").
		WithArgs("kids").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "kids"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesRepositoryDeleteException(t *testing.T) {
	db, mock, closeFn := newSeriesMock(t)
	defer closeFn()
	repo := NewSeriesRepository(db)

	date := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM series_exceptions WHERE series_id").
		WithArgs("kids", date).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteException(context.Background(), "kids", date))
	assert.NoError(t, mock.ExpectationsWereMet())
}
