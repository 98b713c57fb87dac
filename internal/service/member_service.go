package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/pkg/clock"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
)

type memberRepository interface {
	List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error)
	ListByStatus(ctx context.Context, status models.MemberStatus) ([]models.Member, error)
	FindByID(ctx context.Context, id string) (*models.Member, error)
	Create(ctx context.Context, member *models.Member) error
	Update(ctx context.Context, member *models.Member) error
	// DeleteEverywhere removes the member row and strips the id from every
	// class roster and event registrant list in one transaction.
	DeleteEverywhere(ctx context.Context, id string) error
}

type memberUserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
}

// MemberService manages the roster. Creation provisions a student login
// after the roster row is written; a provisioning failure is reported as a
// partial success, never as a rollback of the roster entry.
type MemberService struct {
	repo      memberRepository
	users     memberUserRepository
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewMemberService constructs the member service.
func NewMemberService(repo memberRepository, users memberUserRepository, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *MemberService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MemberService{repo: repo, users: users, validator: validate, clock: clk, logger: logger}
	svc.validator.RegisterValidation("member_status", func(fl validator.FieldLevel) bool {
		return models.MemberStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// CreateMemberRequest describes the create payload.
type CreateMemberRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	RankID   string `json:"rank_id" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// UpdateMemberRequest describes the update payload; whole-record upsert.
type UpdateMemberRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	RankID   string `json:"rank_id" validate:"required"`
	Status   string `json:"status" validate:"required,member_status"`
}

// List returns paginated members.
func (s *MemberService) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	members, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return members, pagination, nil
}

// Get returns one member.
func (s *MemberService) Get(ctx context.Context, id string) (*models.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get member")
	}
	return member, nil
}

// Create writes the roster entry, then provisions the login account. The
// roster write leads: if account provisioning fails afterwards the member
// stays created and the outcome flags the dependent failure.
func (s *MemberService) Create(ctx context.Context, req CreateMemberRequest) (*models.CreateMemberOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	now := s.clock.Now()
	member := &models.Member{
		ID:       uuid.NewString(),
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		RankID:   req.RankID,
		Status:   models.MemberStatusActive,
		JoinedAt: now,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create member")
	}

	outcome := &models.CreateMemberOutcome{Member: member, AccountProvisioned: true}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		outcome.AccountProvisioned = false
		outcome.ProvisionError = "failed to hash password"
		return outcome, nil
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleStudent,
		MemberID:     &member.ID,
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		s.logger.Warn("member created but account provisioning failed",
			zap.String("member_id", member.ID), zap.Error(err))
		outcome.AccountProvisioned = false
		outcome.ProvisionError = "login account could not be created"
	}
	return outcome, nil
}

// Update replaces the member's editable fields. Derived aggregates are owned
// by the attendance ledger and left untouched here.
func (s *MemberService) Update(ctx context.Context, id string, req UpdateMemberRequest) (*models.Member, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	member.FullName = req.FullName
	member.Email = req.Email
	member.Phone = req.Phone
	member.RankID = req.RankID
	member.Status = models.MemberStatus(strings.ToLower(req.Status))
	if err := s.repo.Update(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update member")
	}
	return member, nil
}

// Delete removes the member and fans out to every roster and registrant list
// as a single logical unit.
func (s *MemberService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteEverywhere(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete member")
	}
	return nil
}
