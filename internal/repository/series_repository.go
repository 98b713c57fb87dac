package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tatamihq/academy-api/internal/models"
)

// SeriesRepository persists recurring series and their date-keyed
// exceptions.
type SeriesRepository struct {
	db *sqlx.DB
}

// NewSeriesRepository constructs a series repository.
func NewSeriesRepository(db *sqlx.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

const seriesColumns = `id, name, instructor, weekdays, start_time, end_time, member_ids, created_at, updated_at`

// ListAll returns every series with exceptions attached.
func (r *SeriesRepository) ListAll(ctx context.Context) ([]models.RecurringSeries, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_series ORDER BY name ASC", seriesColumns)
	var series []models.RecurringSeries
	if err := r.db.SelectContext(ctx, &series, query); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	const excQuery = `SELECT id, series_id, date, type, new_date, new_start_time, new_end_time, new_instructor, created_at, updated_at
FROM series_exceptions ORDER BY date ASC`
	var exceptions []models.SessionException
	if err := r.db.SelectContext(ctx, &exceptions, excQuery); err != nil {
		return nil, fmt.Errorf("list series exceptions: %w", err)
	}

	byID := make(map[string]int, len(series))
	for i := range series {
		byID[series[i].ID] = i
	}
	for _, exc := range exceptions {
		if i, ok := byID[exc.SeriesID]; ok {
			series[i].Exceptions = append(series[i].Exceptions, exc)
		}
	}
	return series, nil
}

// FindByID fetches a single series with its exceptions.
func (r *SeriesRepository) FindByID(ctx context.Context, id string) (*models.RecurringSeries, error) {
	query := fmt.Sprintf("SELECT %s FROM recurring_series WHERE id = $1", seriesColumns)
	var series models.RecurringSeries
	if err := r.db.GetContext(ctx, &series, query, id); err != nil {
		return nil, err
	}

	const excQuery = `SELECT id, series_id, date, type, new_date, new_start_time, new_end_time, new_instructor, created_at, updated_at
FROM series_exceptions WHERE series_id = $1 ORDER BY date ASC`
	if err := r.db.SelectContext(ctx, &series.Exceptions, excQuery, id); err != nil {
		return nil, fmt.Errorf("list exceptions for series: %w", err)
	}
	return &series, nil
}

// Create inserts a series row.
func (r *SeriesRepository) Create(ctx context.Context, series *models.RecurringSeries) error {
	if series.ID == "" {
		series.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if series.CreatedAt.IsZero() {
		series.CreatedAt = now
	}
	series.UpdatedAt = now
	query := `INSERT INTO recurring_series (id, name, instructor, weekdays, start_time, end_time, member_ids, created_at, updated_at)
VALUES (:id, :name, :instructor, :weekdays, :start_time, :end_time, :member_ids, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, series); err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	return nil
}

// Update replaces a series row.
func (r *SeriesRepository) Update(ctx context.Context, series *models.RecurringSeries) error {
	series.UpdatedAt = time.Now().UTC()
	query := `UPDATE recurring_series SET name = :name, instructor = :instructor, weekdays = :weekdays,
start_time = :start_time, end_time = :end_time, member_ids = :member_ids, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, series); err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	return nil
}

// Delete removes a series and its exceptions.
func (r *SeriesRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete series: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM series_exceptions WHERE series_id = $1", id); err != nil {
		return fmt.Errorf("delete series exceptions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM recurring_series WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete series: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete series: %w", err)
	}
	return nil
}

// UpsertException writes the exception for a (series, date) key, replacing
// any earlier exception on the same date.
func (r *SeriesRepository) UpsertException(ctx context.Context, exc *models.SessionException) error {
	if exc.ID == "" {
		exc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exc.CreatedAt.IsZero() {
		exc.CreatedAt = now
	}
	exc.UpdatedAt = now
	query := `INSERT INTO series_exceptions (id, series_id, date, type, new_date, new_start_time, new_end_time, new_instructor, created_at, updated_at)
VALUES (:id, :series_id, :date, :type, :new_date, :new_start_time, :new_end_time, :new_instructor, :created_at, :updated_at)
ON CONFLICT (series_id, date) DO UPDATE SET type = EXCLUDED.type, new_date = EXCLUDED.new_date,
new_start_time = EXCLUDED.new_start_time, new_end_time = EXCLUDED.new_end_time,
new_instructor = EXCLUDED.new_instructor, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, exc); err != nil {
		return fmt.Errorf("upsert series exception: %w", err)
	}
	return nil
}

// DeleteException removes the override for a date.
func (r *SeriesRepository) DeleteException(ctx context.Context, seriesID string, date time.Time) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM series_exceptions WHERE series_id = $1 AND date = $2", seriesID, date); err != nil {
		return fmt.Errorf("delete series exception: %w", err)
	}
	return nil
}
