package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tatamihq/academy-api/internal/models"
)

// EventRepository persists one-off events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs an event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, type, starts_at, ends_at, location, registrant_ids, created_at, updated_at`

// ListAll returns every one-off event.
func (r *EventRepository) ListAll(ctx context.Context) ([]models.OneOffEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM one_off_events ORDER BY starts_at ASC", eventColumns)
	var events []models.OneOffEvent
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// FindByID fetches one event.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.OneOffEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM one_off_events WHERE id = $1", eventColumns)
	var event models.OneOffEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts an event row.
func (r *EventRepository) Create(ctx context.Context, event *models.OneOffEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	query := `INSERT INTO one_off_events (id, title, type, starts_at, ends_at, location, registrant_ids, created_at, updated_at)
VALUES (:id, :title, :type, :starts_at, :ends_at, :location, :registrant_ids, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// Update replaces an event row.
func (r *EventRepository) Update(ctx context.Context, event *models.OneOffEvent) error {
	event.UpdatedAt = time.Now().UTC()
	query := `UPDATE one_off_events SET title = :title, type = :type, starts_at = :starts_at,
ends_at = :ends_at, location = :location, registrant_ids = :registrant_ids, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// Delete removes an event.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM one_off_events WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
