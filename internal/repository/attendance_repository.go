package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tatamihq/academy-api/internal/models"
)

// AttendanceRepository persists ledger records together with the member's
// derived aggregates. Ledger row and member row always change in one
// transaction so the cached aggregates can never drift from the ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// HistoryByMember returns the member's ledger, most recent date first.
func (r *AttendanceRepository) HistoryByMember(ctx context.Context, memberID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT member_id, class_id, date, status, reason, recorded_at FROM attendance_records
WHERE member_id = $1 ORDER BY date DESC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, memberID); err != nil {
		return nil, fmt.Errorf("list attendance history: %w", err)
	}
	return records, nil
}

// RecordsForClassDate returns every record for a class on a date.
func (r *AttendanceRepository) RecordsForClassDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT member_id, class_id, date, status, reason, recorded_at FROM attendance_records
WHERE class_id = $1 AND date = $2`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, date); err != nil {
		return nil, fmt.Errorf("list class attendance: %w", err)
	}
	return records, nil
}

// ClassReport joins records with member names for reporting.
func (r *AttendanceRepository) ClassReport(ctx context.Context, classID string, date time.Time) ([]models.ClassReportRow, error) {
	const query = `SELECT a.member_id, m.full_name AS member_name, a.status, a.reason
FROM attendance_records a JOIN members m ON m.id = a.member_id
WHERE a.class_id = $1 AND a.date = $2 ORDER BY m.full_name ASC`
	var rows []models.ClassReportRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, date); err != nil {
		return nil, fmt.Errorf("class attendance report: %w", err)
	}
	return rows, nil
}

// SaveMark upserts one ledger record and the member's aggregates atomically.
func (r *AttendanceRepository) SaveMark(ctx context.Context, member *models.Member, record *models.AttendanceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save mark: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertRecordTx(ctx, tx, record); err != nil {
		return err
	}
	if err := updateMemberAggregatesTx(ctx, tx, member); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save mark: %w", err)
	}
	return nil
}

// DeleteMark removes one ledger record and refreshes the member's aggregates
// atomically. A missing record still persists the recomputed member state.
func (r *AttendanceRepository) DeleteMark(ctx context.Context, member *models.Member, classID string, date time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete mark: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM attendance_records WHERE member_id = $1 AND class_id = $2 AND date = $3",
		member.ID, classID, date); err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	if err := updateMemberAggregatesTx(ctx, tx, member); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete mark: %w", err)
	}
	return nil
}

// SaveBulk writes a batch of records plus every touched member in one
// transaction.
func (r *AttendanceRepository) SaveBulk(ctx context.Context, members []*models.Member, records []models.AttendanceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range records {
		if err := upsertRecordTx(ctx, tx, &records[i]); err != nil {
			return err
		}
	}
	for _, member := range members {
		if err := updateMemberAggregatesTx(ctx, tx, member); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk save: %w", err)
	}
	return nil
}

func upsertRecordTx(ctx context.Context, tx *sqlx.Tx, record *models.AttendanceRecord) error {
	const query = `INSERT INTO attendance_records (member_id, class_id, date, status, reason, recorded_at)
VALUES (:member_id, :class_id, :date, :status, :reason, :recorded_at)
ON CONFLICT (member_id, class_id, date) DO UPDATE SET status = EXCLUDED.status,
reason = COALESCE(EXCLUDED.reason, attendance_records.reason), recorded_at = EXCLUDED.recorded_at`
	if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

func updateMemberAggregatesTx(ctx context.Context, tx *sqlx.Tx, member *models.Member) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE members SET status = :status, attendance_count = :attendance_count,
last_attendance_date = :last_attendance_date, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("update member aggregates: %w", err)
	}
	return nil
}
