package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tatamihq/academy-api/internal/models"
)

// MemberRepository persists roster entries and promotion history.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository constructs a member repository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `id, full_name, email, phone, rank_id, status, attendance_count, last_attendance_date, joined_at, created_at, updated_at`

// List returns members matching the filter.
func (r *MemberRepository) List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.RankID != "" {
		where = append(where, fmt.Sprintf("rank_id = $%d", len(args)+1))
		args = append(args, filter.RankID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	sortBy := "full_name"
	if filter.SortBy == "joined_at" || filter.SortBy == "attendance_count" {
		sortBy = filter.SortBy
	}
	order := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		order = "DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM members WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		memberColumns, whereClause, sortBy, order, size, offset)
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM members WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}
	return members, total, nil
}

// ListByStatus returns every member with the given lifecycle status.
func (r *MemberRepository) ListByStatus(ctx context.Context, status models.MemberStatus) ([]models.Member, error) {
	query := fmt.Sprintf("SELECT %s FROM members WHERE status = $1 ORDER BY full_name ASC", memberColumns)
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, status); err != nil {
		return nil, fmt.Errorf("list members by status: %w", err)
	}
	return members, nil
}

// FindByID fetches one member.
func (r *MemberRepository) FindByID(ctx context.Context, id string) (*models.Member, error) {
	query := fmt.Sprintf("SELECT %s FROM members WHERE id = $1", memberColumns)
	var member models.Member
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// Create inserts a member row.
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now
	query := `INSERT INTO members (id, full_name, email, phone, rank_id, status, attendance_count, last_attendance_date, joined_at, created_at, updated_at)
VALUES (:id, :full_name, :email, :phone, :rank_id, :status, :attendance_count, :last_attendance_date, :joined_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// Update replaces the member row, derived aggregates included.
func (r *MemberRepository) Update(ctx context.Context, member *models.Member) error {
	member.UpdatedAt = time.Now().UTC()
	query := `UPDATE members SET full_name = :full_name, email = :email, phone = :phone, rank_id = :rank_id,
status = :status, attendance_count = :attendance_count, last_attendance_date = :last_attendance_date, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

// DeleteEverywhere removes the member and strips its id from every class
// roster and event registrant list in a single transaction, so the fan-out
// can never half-apply.
func (r *MemberRepository) DeleteEverywhere(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete member: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "UPDATE recurring_series SET member_ids = array_remove(member_ids, $1) WHERE $1 = ANY(member_ids)", id); err != nil {
		return fmt.Errorf("strip member from rosters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE one_off_events SET registrant_ids = array_remove(registrant_ids, $1) WHERE $1 = ANY(registrant_ids)", id); err != nil {
		return fmt.Errorf("strip member from registrants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance_records WHERE member_id = $1", id); err != nil {
		return fmt.Errorf("delete member attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE member_id = $1", id); err != nil {
		return fmt.Errorf("delete member account: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM members WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete member: %w", err)
	}
	return nil
}

// CommitPromotion advances the member, clears their ledger and records the
// promotion entry atomically.
func (r *MemberRepository) CommitPromotion(ctx context.Context, member *models.Member, entry *models.PromotionEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin promotion: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	member.UpdatedAt = time.Now().UTC()
	if _, err := tx.NamedExecContext(ctx, `UPDATE members SET rank_id = :rank_id, status = :status,
attendance_count = :attendance_count, updated_at = :updated_at WHERE id = :id`, member); err != nil {
		return fmt.Errorf("update member rank: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance_records WHERE member_id = $1", member.ID); err != nil {
		return fmt.Errorf("clear attendance ledger: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO promotion_history (id, member_id, from_rank, to_rank, promoted_at)
VALUES (:id, :member_id, :from_rank, :to_rank, :promoted_at)`, entry); err != nil {
		return fmt.Errorf("record promotion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit promotion: %w", err)
	}
	return nil
}

// PromotionHistory lists committed promotions, newest first.
func (r *MemberRepository) PromotionHistory(ctx context.Context, memberID string) ([]models.PromotionEntry, error) {
	const query = `SELECT id, member_id, from_rank, to_rank, promoted_at FROM promotion_history
WHERE member_id = $1 ORDER BY promoted_at DESC`
	var entries []models.PromotionEntry
	if err := r.db.SelectContext(ctx, &entries, query, memberID); err != nil {
		return nil, fmt.Errorf("list promotion history: %w", err)
	}
	return entries, nil
}
