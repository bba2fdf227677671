package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
)

// ActionRepository defines the interface for action data operations.
// Actions are authored by the external goal provider; this engine
// stores the scheduling-relevant projection.
type ActionRepository interface {
	Upsert(ctx context.Context, action *entities.Action) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Action, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entities.Action, error)
}

// TaskInstanceRepository defines the interface for the task instance
// store. Materialization is idempotent: inserting an already-present
// (action, due date) pair must not touch the existing row.
type TaskInstanceRepository interface {
	InsertBatch(ctx context.Context, instances []*entities.TaskInstance) (inserted int, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TaskInstance, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID, filter InstanceFilter) ([]*entities.TaskInstance, error)
	ListPendingBefore(ctx context.Context, participantID uuid.UUID, before time.Time, limit int) ([]*entities.TaskInstance, error)
	ListPendingInRange(ctx context.Context, participantID uuid.UUID, from, to time.Time) ([]*entities.TaskInstance, error)
	// MarkCompleted transitions pending -> completed only while the row
	// is still pending with approved evidence (compare-and-swap).
	MarkCompleted(ctx context.Context, id uuid.UUID) (*entities.TaskInstance, error)
	// Postpone shifts the due date, anchors the original due date on
	// first postponement and increments the counter, all in one
	// conditional statement guarded on pending status.
	Postpone(ctx context.Context, id uuid.UUID, days int) (*entities.TaskInstance, error)
	SetEvidence(ctx context.Context, id uuid.UUID, status entities.EvidenceStatus, ref *string) (*entities.TaskInstance, error)
}

// AdminTaskRepository defines the interface for mentor-issued tasks.
type AdminTaskRepository interface {
	Create(ctx context.Context, task *entities.AdminTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.AdminTask, error)
	ListActive(ctx context.Context) ([]*entities.AdminTask, error)
}

// SubmissionRepository defines the interface for per-participant
// admin task tracking rows.
type SubmissionRepository interface {
	// InsertBatch fans an admin task out to participants, duplicate-safe
	// on (admin_task_id, participant_id).
	InsertBatch(ctx context.Context, submissions []*entities.TaskSubmission) (inserted int, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TaskSubmission, error)
	// ListOpenByParticipant returns non-terminal submissions joined with
	// their admin task.
	ListOpenByParticipant(ctx context.Context, participantID uuid.UUID) ([]*SubmissionWithTask, error)
	ListPendingExtraordinary(ctx context.Context) ([]*SubmissionWithTask, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, evidenceRef string, at time.Time) (*entities.TaskSubmission, error)
	Review(ctx context.Context, id uuid.UUID, approved bool, feedback *string) (*entities.TaskSubmission, error)
	// ExpireBatch flips the given pending submissions to expired;
	// applying it twice has no further effect.
	ExpireBatch(ctx context.Context, ids []uuid.UUID) (expired int, err error)
	Reopen(ctx context.Context, id uuid.UUID) (*entities.TaskSubmission, error)
}

// EnrollmentRepository defines the interface for cycle enrollments.
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *entities.CycleEnrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.CycleEnrollment, error)
	GetActive(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error)
	// UpdateStatus transitions only from the expected current status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entities.EnrollmentStatus) error
	ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	// ListActiveParticipants is the fan-out audience for scope "all".
	ListActiveParticipants(ctx context.Context) ([]uuid.UUID, error)
}

// AttendanceRepository defines the interface for attendance records.
type AttendanceRepository interface {
	Get(ctx context.Context, participantID uuid.UUID) (*entities.AttendanceRecord, error)
	// RecordMiss atomically decrements lives (floor zero), increments
	// the missed count and returns the updated record.
	RecordMiss(ctx context.Context, participantID uuid.UUID) (*entities.AttendanceRecord, error)
	Init(ctx context.Context, participantID uuid.UUID, lives int) error
}

// EventPublisher forwards the engine's logical events to the external
// notification subsystem. The engine never sends user-visible messages
// itself.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

// Event is a logical engine event.
type Event struct {
	Type          string                 `json:"type"`
	ParticipantID uuid.UUID              `json:"participant_id"`
	OccurredAt    time.Time              `json:"occurred_at"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Event types emitted by the engine.
const (
	EventTaskExpired          = "task_expired"
	EventParticipantSuspended = "participant_suspended"
)

// Filter types for repository queries
type InstanceFilter struct {
	Status   *entities.InstanceStatus
	DueAfter *time.Time
	DueUntil *time.Time
	Limit    int
	Offset   int
}

// SubmissionWithTask joins a submission with its admin task for
// classification and display.
type SubmissionWithTask struct {
	Submission entities.TaskSubmission
	Task       entities.AdminTask
}
