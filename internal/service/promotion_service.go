package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/pkg/clock"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
)

// EvaluatePromotion decides whether the member's status should flip to
// exam_ready. Pure and idempotent: an unknown rank id is a no-op (rank data
// may be mid-load), and only active or debtor members are eligible, so
// suspended and already-exam-ready members can never flap.
func EvaluatePromotion(member models.Member, ranks []models.Rank) models.Member {
	rank := models.RankByID(ranks, member.RankID)
	if rank == nil {
		return member
	}
	if member.AttendanceCount >= rank.RequiredAttendance && member.Status.PromotionEligible() {
		member.Status = models.MemberStatusExamReady
	}
	return member
}

type promotionRepository interface {
	CommitPromotion(ctx context.Context, member *models.Member, entry *models.PromotionEntry) error
	PromotionHistory(ctx context.Context, memberID string) ([]models.PromotionEntry, error)
}

type promotionMemberRepository interface {
	FindByID(ctx context.Context, id string) (*models.Member, error)
}

type promotionRankRepository interface {
	ListAll(ctx context.Context) ([]models.Rank, error)
}

// PromotionService commits operator-initiated rank advances.
type PromotionService struct {
	repo    promotionRepository
	members promotionMemberRepository
	ranks   promotionRankRepository
	clock   clock.Clock
	logger  *zap.Logger
}

// NewPromotionService constructs the promotion service.
func NewPromotionService(repo promotionRepository, members promotionMemberRepository, ranks promotionRankRepository, clk clock.Clock, logger *zap.Logger) *PromotionService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{repo: repo, members: members, ranks: ranks, clock: clk, logger: logger}
}

// Commit advances an exam_ready member to the next rank by ordinal: the
// attendance count resets, the ledger is cleared, status returns to active
// and a promotion-history entry is written. A member already at the top rank
// is left unchanged.
func (s *PromotionService) Commit(ctx context.Context, memberID string) (*models.Member, error) {
	member, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}

	if member.Status != models.MemberStatusExamReady {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, "member is not exam ready")
	}

	ranks, err := s.ranks.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ranks")
	}

	current := models.RankByID(ranks, member.RankID)
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "member references an unknown rank")
	}

	next := models.NextRank(ranks, *current)
	if next == nil {
		// Top of the ladder: nothing to advance to.
		return member, nil
	}

	now := s.clock.Now()
	entry := &models.PromotionEntry{
		ID:         uuid.NewString(),
		MemberID:   member.ID,
		FromRank:   current.Name,
		ToRank:     next.Name,
		PromotedAt: now,
	}

	member.RankID = next.ID
	member.AttendanceCount = 0
	member.Status = models.MemberStatusActive

	if err := s.repo.CommitPromotion(ctx, member, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit promotion")
	}

	s.logger.Info("member promoted",
		zap.String("member_id", member.ID),
		zap.String("from_rank", entry.FromRank),
		zap.String("to_rank", entry.ToRank),
	)
	return member, nil
}

// History lists committed promotions for a member, newest first.
func (s *PromotionService) History(ctx context.Context, memberID string) ([]models.PromotionEntry, error) {
	entries, err := s.repo.PromotionHistory(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promotion history")
	}
	return entries, nil
}
