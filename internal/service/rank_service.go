package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
)

type rankRepository interface {
	ListAll(ctx context.Context) ([]models.Rank, error)
	FindByID(ctx context.Context, id string) (*models.Rank, error)
	ExistsByOrdinal(ctx context.Context, ordinal int, excludeID string) (bool, error)
	Create(ctx context.Context, rank *models.Rank) error
	Update(ctx context.Context, rank *models.Rank) error
	Delete(ctx context.Context, id string) error
}

// RankService manages the progression ladder.
type RankService struct {
	repo      rankRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRankService constructs the rank service.
func NewRankService(repo rankRepository, validate *validator.Validate, logger *zap.Logger) *RankService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankService{repo: repo, validator: validate, logger: logger}
}

// SaveRankRequest describes create and update payloads.
type SaveRankRequest struct {
	Name               string `json:"name" validate:"required"`
	Color              string `json:"color"`
	Ordinal            int    `json:"ordinal" validate:"gte=0"`
	RequiredAttendance int    `json:"required_attendance" validate:"gte=0"`
}

// ListAll returns the ladder sorted by ordinal.
func (s *RankService) ListAll(ctx context.Context) ([]models.Rank, error) {
	ranks, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ranks")
	}
	return ranks, nil
}

// Create registers a new rank. Ordinals must stay unique so the next-rank
// lookup is unambiguous.
func (s *RankService) Create(ctx context.Context, req SaveRankRequest) (*models.Rank, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	taken, err := s.repo.ExistsByOrdinal(ctx, req.Ordinal, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ordinal")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "ordinal already in use")
	}
	rank := &models.Rank{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Color:              req.Color,
		Ordinal:            req.Ordinal,
		RequiredAttendance: req.RequiredAttendance,
	}
	if err := s.repo.Create(ctx, rank); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rank")
	}
	return rank, nil
}

// Update replaces a rank definition.
func (s *RankService) Update(ctx context.Context, id string, req SaveRankRequest) (*models.Rank, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	rank, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rank not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rank")
	}
	taken, err := s.repo.ExistsByOrdinal(ctx, req.Ordinal, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ordinal")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "ordinal already in use")
	}
	rank.Name = req.Name
	rank.Color = req.Color
	rank.Ordinal = req.Ordinal
	rank.RequiredAttendance = req.RequiredAttendance
	if err := s.repo.Update(ctx, rank); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rank")
	}
	return rank, nil
}

// Delete removes a rank from the ladder.
func (s *RankService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete rank")
	}
	return nil
}
