package models

import "time"

// MemberStatus tracks the roster lifecycle of a member.
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "active"
	MemberStatusDebtor    MemberStatus = "debtor"
	MemberStatusExamReady MemberStatus = "exam_ready"
	MemberStatusSuspended MemberStatus = "suspended"
	MemberStatusInactive  MemberStatus = "inactive"
)

// Valid returns true when the status is a supported value.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusActive, MemberStatusDebtor, MemberStatusExamReady, MemberStatusSuspended, MemberStatusInactive:
		return true
	default:
		return false
	}
}

// PromotionEligible reports whether the status allows the automatic
// transition to exam_ready. Suspended and already-exam-ready members are
// excluded so repeated evaluation cannot flap them.
func (s MemberStatus) PromotionEligible() bool {
	return s == MemberStatusActive || s == MemberStatusDebtor
}

// Member represents an enrolled academy member. AttendanceCount and
// LastAttendanceDate are derived from the attendance ledger and persisted
// together with every ledger write.
type Member struct {
	ID                 string       `db:"id" json:"id"`
	FullName           string       `db:"full_name" json:"full_name"`
	Email              string       `db:"email" json:"email"`
	Phone              string       `db:"phone" json:"phone"`
	RankID             string       `db:"rank_id" json:"rank_id"`
	Status             MemberStatus `db:"status" json:"status"`
	AttendanceCount    int          `db:"attendance_count" json:"attendance_count"`
	LastAttendanceDate *time.Time   `db:"last_attendance_date" json:"last_attendance_date,omitempty"`
	JoinedAt           time.Time    `db:"joined_at" json:"joined_at"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// PromotionEntry records a committed rank advance.
type PromotionEntry struct {
	ID         string    `db:"id" json:"id"`
	MemberID   string    `db:"member_id" json:"member_id"`
	FromRank   string    `db:"from_rank" json:"from_rank"`
	ToRank     string    `db:"to_rank" json:"to_rank"`
	PromotedAt time.Time `db:"promoted_at" json:"promoted_at"`
}

// MemberFilter captures search parameters for listing members.
type MemberFilter struct {
	Search    string
	RankID    string
	Status    *MemberStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateMemberOutcome reports the result of a member creation, including
// whether the dependent login account could be provisioned. A failed
// provisioning after a successful roster write is a partial success, not an
// error.
type CreateMemberOutcome struct {
	Member             *Member `json:"member"`
	AccountProvisioned bool    `json:"account_provisioned"`
	ProvisionError     string  `json:"provision_error,omitempty"`
}
