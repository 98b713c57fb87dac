package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tatamihq/academy-api/internal/models"
)

// RankRepository persists the progression ladder.
type RankRepository struct {
	db *sqlx.DB
}

// NewRankRepository constructs a rank repository.
func NewRankRepository(db *sqlx.DB) *RankRepository {
	return &RankRepository{db: db}
}

const rankColumns = `id, name, color, ordinal, required_attendance, created_at, updated_at`

// ListAll returns the ladder sorted by ordinal.
func (r *RankRepository) ListAll(ctx context.Context) ([]models.Rank, error) {
	query := fmt.Sprintf("SELECT %s FROM ranks ORDER BY ordinal ASC", rankColumns)
	var ranks []models.Rank
	if err := r.db.SelectContext(ctx, &ranks, query); err != nil {
		return nil, fmt.Errorf("list ranks: %w", err)
	}
	return ranks, nil
}

// FindByID fetches one rank.
func (r *RankRepository) FindByID(ctx context.Context, id string) (*models.Rank, error) {
	query := fmt.Sprintf("SELECT %s FROM ranks WHERE id = $1", rankColumns)
	var rank models.Rank
	if err := r.db.GetContext(ctx, &rank, query, id); err != nil {
		return nil, err
	}
	return &rank, nil
}

// ExistsByOrdinal reports whether another rank already occupies the ordinal.
func (r *RankRepository) ExistsByOrdinal(ctx context.Context, ordinal int, excludeID string) (bool, error) {
	var count int
	if excludeID == "" {
		if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM ranks WHERE ordinal = $1", ordinal); err != nil {
			return false, fmt.Errorf("check rank ordinal: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM ranks WHERE ordinal = $1 AND id <> $2", ordinal, excludeID); err != nil {
			return false, fmt.Errorf("check rank ordinal: %w", err)
		}
	}
	return count > 0, nil
}

// Create inserts a rank row.
func (r *RankRepository) Create(ctx context.Context, rank *models.Rank) error {
	if rank.ID == "" {
		rank.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rank.CreatedAt.IsZero() {
		rank.CreatedAt = now
	}
	rank.UpdatedAt = now
	query := `INSERT INTO ranks (id, name, color, ordinal, required_attendance, created_at, updated_at)
VALUES (:id, :name, :color, :ordinal, :required_attendance, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rank); err != nil {
		return fmt.Errorf("create rank: %w", err)
	}
	return nil
}

// Update replaces a rank row.
func (r *RankRepository) Update(ctx context.Context, rank *models.Rank) error {
	rank.UpdatedAt = time.Now().UTC()
	query := `UPDATE ranks SET name = :name, color = :color, ordinal = :ordinal,
required_attendance = :required_attendance, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, rank); err != nil {
		return fmt.Errorf("update rank: %w", err)
	}
	return nil
}

// Delete removes a rank.
func (r *RankRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM ranks WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete rank: %w", err)
	}
	return nil
}
