package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
)

// ScheduleService interface for recurrence expansion and task
// instance mutations.
type ScheduleService interface {
	RegisterAction(ctx context.Context, req RegisterActionRequest) (*RegisterActionResult, error)
	CompleteTask(ctx context.Context, participantID, instanceID uuid.UUID) (*entities.TaskInstance, error)
	PostponeTask(ctx context.Context, participantID, instanceID uuid.UUID, days int) (*entities.TaskInstance, error)
	SubmitEvidence(ctx context.Context, participantID, instanceID uuid.UUID, evidenceRef string) (*entities.TaskInstance, error)
	ReviewEvidence(ctx context.Context, instanceID uuid.UUID, approved bool) (*entities.TaskInstance, error)
	ListInstances(ctx context.Context, participantID uuid.UUID, filter InstanceFilter) ([]*entities.TaskInstance, error)
}

// AgendaService interface for visibility classification and the
// expiration sweep.
type AgendaService interface {
	GetAgenda(ctx context.Context, participantID uuid.UUID, referenceDate *time.Time) (*AgendaResponse, error)
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// AdminTaskService interface for mentor-issued obligations.
type AdminTaskService interface {
	Create(ctx context.Context, req CreateAdminTaskRequest) (*CreateAdminTaskResult, error)
	SubmitWork(ctx context.Context, participantID, submissionID uuid.UUID, evidenceRef string) (*entities.TaskSubmission, error)
	ReviewSubmission(ctx context.Context, submissionID uuid.UUID, approved bool, feedback *string) (*entities.TaskSubmission, error)
	ReopenSubmission(ctx context.Context, submissionID uuid.UUID) (*entities.TaskSubmission, error)
}

// AttendanceService interface for the strike engine.
type AttendanceService interface {
	RecordMiss(ctx context.Context, participantID uuid.UUID) (*AttendanceState, error)
	GetState(ctx context.Context, participantID uuid.UUID) (*AttendanceState, error)
}

// EnrollmentService interface for program cycle lifecycle.
type EnrollmentService interface {
	Start(ctx context.Context, req StartEnrollmentRequest) (*entities.CycleEnrollment, error)
	GetActive(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error)
	Withdraw(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error)
	Complete(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error)
}

// Request/Response Types

// FrequencyPayload is the wire shape of a recurrence rule. Weekdays use
// Go's numbering (Sunday = 0). LastDay selects the month's final
// calendar date for monthly rules.
type FrequencyPayload struct {
	Kind       string `json:"kind" validate:"required,oneof=daily weekly biweekly monthly"`
	Weekdays   []int  `json:"weekdays" validate:"omitempty,dive,min=0,max=6"`
	DayOfMonth int    `json:"day_of_month" validate:"omitempty,min=1,max=31"`
	LastDay    bool   `json:"last_day"`
}

type RegisterActionRequest struct {
	ActionID      uuid.UUID        `json:"action_id" validate:"required"`
	GoalID        uuid.UUID        `json:"goal_id" validate:"required"`
	ParticipantID uuid.UUID        `json:"participant_id"`
	Text          string           `json:"text" validate:"required,max=500"`
	Frequency     FrequencyPayload `json:"frequency" validate:"required"`
}

type RegisterActionResult struct {
	Action       *entities.Action `json:"action"`
	Materialized int              `json:"materialized"`
	TotalDates   int              `json:"total_dates"`
}

type CreateAdminTaskRequest struct {
	Kind        string     `json:"kind" validate:"required,oneof=extraordinary event"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Reward      int        `json:"reward" validate:"min=0"`
	Scope       string     `json:"scope" validate:"required,oneof=all group user"`
	TargetID    *uuid.UUID `json:"target_id"`
	DueDate     string     `json:"due_date" validate:"required"`
	TimeOfDay   *string    `json:"time_of_day"`
	Location    *string    `json:"location" validate:"omitempty,max=300"`
	CreatedBy   uuid.UUID  `json:"created_by"`
}

type CreateAdminTaskResult struct {
	Task      *entities.AdminTask `json:"task"`
	FannedOut int                 `json:"fanned_out"`
}

type StartEnrollmentRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	CycleType     string    `json:"cycle_type" validate:"required,oneof=solo group"`
	StartDate     string    `json:"start_date" validate:"required"`
	// LengthDays overrides the configured cycle length for solo cycles;
	// group cycles take EndDate from the shared group schedule instead.
	LengthDays int     `json:"length_days" validate:"omitempty,min=1,max=366"`
	EndDate    *string `json:"end_date"`
}

// AgendaEntry is the common projection of one obligation, whatever its
// shape, inside an agenda bucket.
type AgendaEntry struct {
	Kind          string     `json:"kind"` // event | extraordinary | recurring
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Due           time.Time  `json:"due"`
	DaysLate      int        `json:"days_late,omitempty"`
	PostponeCount int        `json:"postpone_count,omitempty"`
	Reward        int        `json:"reward,omitempty"`
	Location      *string    `json:"location,omitempty"`
	GoalID        *uuid.UUID `json:"goal_id,omitempty"`
}

// AgendaBreakdown counts entries per kind per bucket.
type AgendaBreakdown struct {
	TodayRecurring       int `json:"today_recurring"`
	TodayExtraordinary   int `json:"today_extraordinary"`
	TodayEvents          int `json:"today_events"`
	OverdueRecurring     int `json:"overdue_recurring"`
	OverdueExtraordinary int `json:"overdue_extraordinary"`
}

type AgendaResponse struct {
	Today     []AgendaEntry   `json:"today"`
	Overdue   []AgendaEntry   `json:"overdue"`
	Breakdown AgendaBreakdown `json:"breakdown"`
	Reference time.Time       `json:"reference"`
}

type AttendanceState struct {
	ParticipantID  uuid.UUID `json:"participant_id"`
	LivesRemaining int       `json:"lives_remaining"`
	MissedCount    int       `json:"missed_count"`
	Suspended      bool      `json:"suspended"`
}
