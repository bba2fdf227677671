package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/schedule"
)

// Common errors
var (
	ErrActionNotFound       = errors.New("action not found")
	ErrInstanceNotFound     = errors.New("task instance not found")
	ErrAdminTaskNotFound    = errors.New("admin task not found")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrEnrollmentNotFound   = errors.New("enrollment not found")
	ErrAttendanceNotFound   = errors.New("attendance record not found")
	ErrEnrollmentExists     = errors.New("participant already has an active enrollment")
	ErrEnrollmentSuspended  = errors.New("enrollment is suspended")
	ErrEnrollmentNotActive  = errors.New("enrollment is not active")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrEvidenceNotApproved  = errors.New("evidence is not approved")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Enums and types
type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusSkipped   InstanceStatus = "skipped"
	InstanceStatusExpired   InstanceStatus = "expired"
)

type EvidenceStatus string

const (
	EvidenceStatusNone     EvidenceStatus = "none"
	EvidenceStatusPending  EvidenceStatus = "pending"
	EvidenceStatusApproved EvidenceStatus = "approved"
	EvidenceStatusRejected EvidenceStatus = "rejected"
)

type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusApproved  SubmissionStatus = "approved"
	SubmissionStatusRejected  SubmissionStatus = "rejected"
	SubmissionStatusExpired   SubmissionStatus = "expired"
)

type AdminTaskKind string

const (
	AdminTaskKindExtraordinary AdminTaskKind = "extraordinary"
	AdminTaskKindEvent         AdminTaskKind = "event"
)

type TargetScope string

const (
	TargetScopeAll   TargetScope = "all"
	TargetScopeGroup TargetScope = "group"
	TargetScopeUser  TargetScope = "user"
)

type CycleType string

const (
	CycleTypeSolo  CycleType = "solo"
	CycleTypeGroup CycleType = "group"
)

type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	// Deserter is the suspended terminal state reached when a
	// participant runs out of attendance lives.
	EnrollmentStatusDeserter EnrollmentStatus = "deserter"
	EnrollmentStatusDropped  EnrollmentStatus = "dropped"
)

// Action is a recurring personal commitment under a goal, owned by the
// participant who authored the goal. The frequency rule drives task
// instance materialization against the enrollment window.
type Action struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	GoalID        uuid.UUID     `json:"goal_id" db:"goal_id"`
	ParticipantID uuid.UUID     `json:"participant_id" db:"participant_id"`
	Text          string        `json:"text" db:"text"`
	Frequency     schedule.Rule `json:"frequency"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// TaskInstance is one scheduled obligation for one action on one
// calendar date. Due dates are stored as timezone-neutral UTC midnight
// anchors. Instances are never physically deleted; lifecycle is soft.
type TaskInstance struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	ActionID        uuid.UUID      `json:"action_id" db:"action_id"`
	GoalID          uuid.UUID      `json:"goal_id" db:"goal_id"`
	ParticipantID   uuid.UUID      `json:"participant_id" db:"participant_id"`
	DueDate         time.Time      `json:"due_date" db:"due_date"`
	OriginalDueDate *time.Time     `json:"original_due_date" db:"original_due_date"`
	Status          InstanceStatus `json:"status" db:"status"`
	PostponeCount   int            `json:"postpone_count" db:"postpone_count"`
	EvidenceStatus  EvidenceStatus `json:"evidence_status" db:"evidence_status"`
	EvidenceRef     *string        `json:"evidence_ref" db:"evidence_ref"`
	ActionText      string         `json:"action_text" db:"action_text"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// AdminTask is a mentor-issued obligation independent of personal
// goals: an extraordinary task (deadline-bound) or an event
// (date-of-occurrence, optionally located). DueDate is the deadline
// date for extraordinary tasks and the occurrence date for events.
type AdminTask struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Kind        AdminTaskKind `json:"kind" db:"kind"`
	Title       string        `json:"title" db:"title"`
	Description *string       `json:"description" db:"description"`
	Reward      int           `json:"reward" db:"reward"`
	Scope       TargetScope   `json:"scope" db:"scope"`
	TargetID    *uuid.UUID    `json:"target_id" db:"target_id"`
	DueDate     time.Time     `json:"due_date" db:"due_date"`
	TimeOfDay   *string       `json:"time_of_day" db:"time_of_day"`
	Location    *string       `json:"location" db:"location"`
	Active      bool          `json:"active" db:"active"`
	CreatedBy   uuid.UUID     `json:"created_by" db:"created_by"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// TaskSubmission is a participant's tracking row for an AdminTask,
// fanned out at creation time.
type TaskSubmission struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	AdminTaskID   uuid.UUID        `json:"admin_task_id" db:"admin_task_id"`
	ParticipantID uuid.UUID        `json:"participant_id" db:"participant_id"`
	Status        SubmissionStatus `json:"status" db:"status"`
	EvidenceRef   *string          `json:"evidence_ref" db:"evidence_ref"`
	Feedback      *string          `json:"feedback" db:"feedback"`
	SubmittedAt   *time.Time       `json:"submitted_at" db:"submitted_at"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// CycleEnrollment is the participant's active program membership.
type CycleEnrollment struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	ParticipantID uuid.UUID        `json:"participant_id" db:"participant_id"`
	Type          CycleType        `json:"type" db:"cycle_type"`
	StartDate     time.Time        `json:"start_date" db:"start_date"`
	EndDate       time.Time        `json:"end_date" db:"end_date"`
	Status        EnrollmentStatus `json:"status" db:"status"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// AttendanceRecord tracks a participant's mandatory check-in budget.
type AttendanceRecord struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ParticipantID  uuid.UUID `json:"participant_id" db:"participant_id"`
	LivesRemaining int       `json:"lives_remaining" db:"lives_remaining"`
	MissedCount    int       `json:"missed_count" db:"missed_count"`
	Suspended      bool      `json:"suspended" db:"suspended"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Business logic methods for TaskInstance
func (ti *TaskInstance) CanComplete() bool {
	return ti.Status == InstanceStatusPending
}

func (ti *TaskInstance) CanPostpone() bool {
	return ti.Status == InstanceStatusPending
}

// Complete transitions the instance to completed. Completion is gated
// on approved evidence; anything else is a precondition failure.
func (ti *TaskInstance) Complete() error {
	if !ti.CanComplete() {
		return ErrPreconditionFailed
	}
	if ti.EvidenceStatus != EvidenceStatusApproved {
		return ErrEvidenceNotApproved
	}
	ti.Status = InstanceStatusCompleted
	return nil
}

// Postpone moves the due date forward, anchoring the original due date
// on the first postponement so delay labeling survives later moves.
// The counter is intentionally unbounded.
func (ti *TaskInstance) Postpone(days int) error {
	if !ti.CanPostpone() {
		return ErrPreconditionFailed
	}
	if ti.OriginalDueDate == nil {
		anchor := ti.DueDate
		ti.OriginalDueDate = &anchor
	}
	ti.DueDate = ti.DueDate.AddDate(0, 0, days)
	ti.PostponeCount++
	return nil
}

// DelayBaseline is the date delay labeling is computed from: the
// original due date once a postponement has anchored it, otherwise the
// current due date.
func (ti *TaskInstance) DelayBaseline() time.Time {
	if ti.OriginalDueDate != nil {
		return *ti.OriginalDueDate
	}
	return ti.DueDate
}

// Business logic methods for AdminTask
func (at *AdminTask) DeadlineSpec() schedule.DeadlineSpec {
	spec := schedule.DeadlineSpec{Date: at.DueDate}
	if at.TimeOfDay != nil {
		spec.TimeOfDay = *at.TimeOfDay
	}
	return spec
}

// Business logic methods for TaskSubmission
func (ts *TaskSubmission) CanSubmit() bool {
	return ts.Status == SubmissionStatusPending || ts.Status == SubmissionStatusRejected
}

func (ts *TaskSubmission) CanReview() bool {
	return ts.Status == SubmissionStatusSubmitted
}

// CanExpire is true only for submissions still awaiting first action.
// The sweep never expires submitted, approved, or rejected work.
func (ts *TaskSubmission) CanExpire() bool {
	return ts.Status == SubmissionStatusPending
}

// CanReopen is true for expired submissions; expiration is irreversible
// by the sweep but administratively reversible.
func (ts *TaskSubmission) CanReopen() bool {
	return ts.Status == SubmissionStatusExpired
}

func (ts *TaskSubmission) Submit(evidenceRef string, at time.Time) error {
	if !ts.CanSubmit() {
		return ErrPreconditionFailed
	}
	ts.Status = SubmissionStatusSubmitted
	ts.EvidenceRef = &evidenceRef
	ts.SubmittedAt = &at
	return nil
}

// Business logic methods for CycleEnrollment
func (ce *CycleEnrollment) IsActive() bool {
	return ce.Status == EnrollmentStatusActive
}

func (ce *CycleEnrollment) IsSuspended() bool {
	return ce.Status == EnrollmentStatusDeserter
}

// LengthDays is the enrollment window length, start inclusive.
func (ce *CycleEnrollment) LengthDays() int {
	return int(ce.EndDate.Sub(ce.StartDate).Hours()/24) + 1
}

// Contains reports whether a due date anchor falls inside the
// enrollment window.
func (ce *CycleEnrollment) Contains(date time.Time) bool {
	return !date.Before(ce.StartDate) && !date.After(ce.EndDate)
}

// Suspend flips the enrollment to its suspended terminal state. There
// is no automatic un-suspension.
func (ce *CycleEnrollment) Suspend() error {
	if !ce.IsActive() {
		return ErrEnrollmentNotActive
	}
	ce.Status = EnrollmentStatusDeserter
	return nil
}

// Business logic methods for AttendanceRecord

// RecordMiss decrements lives with a floor of zero and reports whether
// this miss exhausted the budget. Lives are a hard gate: a later miss
// neither goes negative nor un-suspends.
func (ar *AttendanceRecord) RecordMiss() (suspendedNow bool) {
	ar.MissedCount++
	if ar.LivesRemaining > 0 {
		ar.LivesRemaining--
	}
	if ar.LivesRemaining == 0 && !ar.Suspended {
		ar.Suspended = true
		return true
	}
	return false
}

// Utility methods
func (is InstanceStatus) IsValid() bool {
	switch is {
	case InstanceStatusPending, InstanceStatusCompleted, InstanceStatusSkipped, InstanceStatusExpired:
		return true
	default:
		return false
	}
}

func (es EvidenceStatus) IsValid() bool {
	switch es {
	case EvidenceStatusNone, EvidenceStatusPending, EvidenceStatusApproved, EvidenceStatusRejected:
		return true
	default:
		return false
	}
}

func (ss SubmissionStatus) IsValid() bool {
	switch ss {
	case SubmissionStatusPending, SubmissionStatusSubmitted, SubmissionStatusApproved, SubmissionStatusRejected, SubmissionStatusExpired:
		return true
	default:
		return false
	}
}

func (ak AdminTaskKind) IsValid() bool {
	switch ak {
	case AdminTaskKindExtraordinary, AdminTaskKindEvent:
		return true
	default:
		return false
	}
}

func (sc TargetScope) IsValid() bool {
	switch sc {
	case TargetScopeAll, TargetScopeGroup, TargetScopeUser:
		return true
	default:
		return false
	}
}

func (ct CycleType) IsValid() bool {
	switch ct {
	case CycleTypeSolo, CycleTypeGroup:
		return true
	default:
		return false
	}
}

func (es EnrollmentStatus) IsValid() bool {
	switch es {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDeserter, EnrollmentStatusDropped:
		return true
	default:
		return false
	}
}
