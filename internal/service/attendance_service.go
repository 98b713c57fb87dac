package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/pkg/clock"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
)

type attendanceRepository interface {
	HistoryByMember(ctx context.Context, memberID string) ([]models.AttendanceRecord, error)
	RecordsForClassDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
	ClassReport(ctx context.Context, classID string, date time.Time) ([]models.ClassReportRow, error)
	SaveMark(ctx context.Context, member *models.Member, upsert *models.AttendanceRecord) error
	DeleteMark(ctx context.Context, member *models.Member, classID string, date time.Time) error
	SaveBulk(ctx context.Context, members []*models.Member, records []models.AttendanceRecord) error
}

type attendanceMemberRepository interface {
	FindByID(ctx context.Context, id string) (*models.Member, error)
}

type attendanceSeriesRepository interface {
	FindByID(ctx context.Context, id string) (*models.RecurringSeries, error)
}

type attendanceRankRepository interface {
	ListAll(ctx context.Context) ([]models.Rank, error)
}

// AttendanceService maintains the per-member attendance ledger. Every write
// recomputes the member's derived aggregates and re-evaluates promotion
// eligibility; ledger row and member row are persisted in one transaction.
type AttendanceService struct {
	repo      attendanceRepository
	members   attendanceMemberRepository
	series    attendanceSeriesRepository
	ranks     attendanceRankRepository
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, members attendanceMemberRepository, series attendanceSeriesRepository, ranks attendanceRankRepository, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, members: members, series: series, ranks: ranks, validator: validate, clock: clk, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// MarkAttendanceRequest describes a single mark payload. An empty status is a
// deletion signal handled by Unmark instead.
type MarkAttendanceRequest struct {
	MemberID string  `json:"member_id" validate:"required"`
	ClassID  string  `json:"class_id" validate:"required"`
	Date     string  `json:"date" validate:"required"`
	Status   string  `json:"status" validate:"required,attendance_status"`
	Reason   *string `json:"reason"`
}

// UnmarkAttendanceRequest removes a mark for a (member, class, date) key.
type UnmarkAttendanceRequest struct {
	MemberID string `json:"member_id" validate:"required"`
	ClassID  string `json:"class_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
}

// BulkMarkPresentRequest marks every enrolled member of a class present for a
// date, skipping members that already carry any record for that key.
type BulkMarkPresentRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Date    string `json:"date" validate:"required"`
}

// Mark upserts one ledger record and returns the member with refreshed
// aggregates and (possibly) a new promotion-eligibility status.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.Member, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	member, err := s.loadMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.HistoryByMember(ctx, req.MemberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}

	status := models.AttendanceStatus(strings.ToLower(req.Status))
	record := models.AttendanceRecord{
		MemberID:   req.MemberID,
		ClassID:    req.ClassID,
		Date:       date,
		Status:     status,
		Reason:     req.Reason,
		RecordedAt: s.clock.Now(),
	}
	history = upsertRecord(history, record)
	recomputeAggregates(member, history)
	s.evaluatePromotion(ctx, member)

	if err := s.repo.SaveMark(ctx, member, &record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	return member, nil
}

// Unmark deletes the record for the (member, class, date) key. A missing
// record is a no-op, but aggregates are still recomputed and persisted.
func (s *AttendanceService) Unmark(ctx context.Context, req UnmarkAttendanceRequest) (*models.Member, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	member, err := s.loadMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.HistoryByMember(ctx, req.MemberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}

	history = removeRecord(history, req.ClassID, date)
	recomputeAggregates(member, history)
	s.evaluatePromotion(ctx, member)

	if err := s.repo.DeleteMark(ctx, member, req.ClassID, date); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return member, nil
}

// BulkMarkPresent marks every enrolled member without an existing record for
// the class/date as present. Existing marks of any status are never
// overwritten, so an already-recorded excused stays excused.
func (s *AttendanceService) BulkMarkPresent(ctx context.Context, req BulkMarkPresentRequest) (*models.BulkMarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	class, err := s.series.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	existing, err := s.repo.RecordsForClassDate(ctx, req.ClassID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}
	marked := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		marked[rec.MemberID] = struct{}{}
	}

	result := &models.BulkMarkResult{Marked: []string{}, Skipped: []string{}}
	var members []*models.Member
	var records []models.AttendanceRecord

	for _, memberID := range class.MemberIDs {
		if _, ok := marked[memberID]; ok {
			result.Skipped = append(result.Skipped, memberID)
			continue
		}
		member, err := s.loadMember(ctx, memberID)
		if err != nil {
			s.logger.Warn("bulk mark skipping unknown member", zap.String("member_id", memberID), zap.Error(err))
			result.Skipped = append(result.Skipped, memberID)
			continue
		}
		history, err := s.repo.HistoryByMember(ctx, memberID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
		}

		record := models.AttendanceRecord{
			MemberID:   memberID,
			ClassID:    req.ClassID,
			Date:       date,
			Status:     models.AttendanceStatusPresent,
			RecordedAt: s.clock.Now(),
		}
		history = upsertRecord(history, record)
		recomputeAggregates(member, history)
		s.evaluatePromotion(ctx, member)

		members = append(members, member)
		records = append(records, record)
		result.Marked = append(result.Marked, memberID)
	}

	if len(records) > 0 {
		if err := s.repo.SaveBulk(ctx, members, records); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save bulk attendance")
		}
	}
	return result, nil
}

// History returns the member's ledger, most recent date first.
func (s *AttendanceService) History(ctx context.Context, memberID string) ([]models.AttendanceRecord, error) {
	history, err := s.repo.HistoryByMember(ctx, memberID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	sortHistory(history)
	return history, nil
}

// ClassReport lists every member's mark for a class and date.
func (s *AttendanceService) ClassReport(ctx context.Context, classID string, date time.Time) ([]models.ClassReportRow, error) {
	rows, err := s.repo.ClassReport(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build class report")
	}
	return rows, nil
}

func (s *AttendanceService) loadMember(ctx context.Context, id string) (*models.Member, error) {
	member, err := s.members.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return member, nil
}

// evaluatePromotion applies the eligibility rule in place. Rank data failing
// to load is transient; the member simply stays as-is until the next write.
func (s *AttendanceService) evaluatePromotion(ctx context.Context, member *models.Member) {
	ranks, err := s.ranks.ListAll(ctx)
	if err != nil {
		s.logger.Warn("promotion evaluation skipped, ranks unavailable", zap.Error(err))
		return
	}
	*member = EvaluatePromotion(*member, ranks)
}

// upsertRecord applies one write to the ledger: a record matching the
// (class, date) key is merged with new fields winning, otherwise the record
// is appended. The result is sorted date-descending.
func upsertRecord(history []models.AttendanceRecord, record models.AttendanceRecord) []models.AttendanceRecord {
	key := models.DateKey(record.Date)
	replaced := false
	for i := range history {
		if history[i].ClassID == record.ClassID && models.DateKey(history[i].Date) == key {
			history[i].Status = record.Status
			if record.Reason != nil {
				history[i].Reason = record.Reason
			}
			history[i].RecordedAt = record.RecordedAt
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, record)
	}
	sortHistory(history)
	return history
}

// removeRecord drops the record matching the (class, date) key, if any.
func removeRecord(history []models.AttendanceRecord, classID string, date time.Time) []models.AttendanceRecord {
	key := models.DateKey(date)
	out := history[:0]
	for _, rec := range history {
		if rec.ClassID == classID && models.DateKey(rec.Date) == key {
			continue
		}
		out = append(out, rec)
	}
	sortHistory(out)
	return out
}

// recomputeAggregates refreshes the member's cached derived state from the
// ledger. LastAttendanceDate never regresses to nil once set: with no
// counting records left, the previously stored value stands.
func recomputeAggregates(member *models.Member, history []models.AttendanceRecord) {
	count := 0
	var last *time.Time
	for i := range history {
		if !history[i].Status.Counts() {
			continue
		}
		count++
		if last == nil || history[i].Date.After(*last) {
			d := history[i].Date
			last = &d
		}
	}
	member.AttendanceCount = count
	if last != nil {
		member.LastAttendanceDate = last
	}
}

func sortHistory(history []models.AttendanceRecord) {
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Date.After(history[j].Date)
	})
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	return date, nil
}
