package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/ports"
)

// SubmissionRepositoryImpl implements the SubmissionRepository interface
type SubmissionRepositoryImpl struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sqlx.DB) ports.SubmissionRepository {
	return &SubmissionRepositoryImpl{db: db}
}

// InsertBatch fans an admin task out to its audience. The unique
// (admin_task_id, participant_id) key makes re-running the fan-out safe.
func (r *SubmissionRepositoryImpl) InsertBatch(ctx context.Context, submissions []*entities.TaskSubmission) (int, error) {
	if len(submissions) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO task_submissions (id, admin_task_id, participant_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (admin_task_id, participant_id) DO NOTHING`

	inserted := 0
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, sub := range submissions {
			if sub.ID == uuid.Nil {
				sub.ID = uuid.New()
			}
			result, err := tx.ExecContext(ctx, query, sub.ID, sub.AdminTaskID, sub.ParticipantID, entities.SubmissionStatusPending)
			if err != nil {
				return fmt.Errorf("insert submission: %w", err)
			}
			rows, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("get rows affected: %w", err)
			}
			inserted += int(rows)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func (r *SubmissionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.TaskSubmission, error) {
	query := `
		SELECT id, admin_task_id, participant_id, status, evidence_ref, feedback,
			submitted_at, created_at, updated_at
		FROM task_submissions
		WHERE id = $1`

	var submission entities.TaskSubmission
	err := r.db.GetContext(ctx, &submission, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("get submission by id: %w", err)
	}

	return &submission, nil
}

// submissionTaskRow flattens the submission/admin-task join for scanning.
type submissionTaskRow struct {
	entities.TaskSubmission
	TaskKind        entities.AdminTaskKind `db:"task_kind"`
	TaskTitle       string                 `db:"task_title"`
	TaskDescription *string                `db:"task_description"`
	TaskReward      int                    `db:"task_reward"`
	TaskScope       entities.TargetScope   `db:"task_scope"`
	TaskTargetID    *uuid.UUID             `db:"task_target_id"`
	TaskDueDate     time.Time              `db:"task_due_date"`
	TaskTimeOfDay   *string                `db:"task_time_of_day"`
	TaskLocation    *string                `db:"task_location"`
	TaskActive      bool                   `db:"task_active"`
	TaskCreatedBy   uuid.UUID              `db:"task_created_by"`
}

const submissionTaskColumns = `
	s.id, s.admin_task_id, s.participant_id, s.status, s.evidence_ref, s.feedback,
	s.submitted_at, s.created_at, s.updated_at,
	t.kind AS task_kind, t.title AS task_title, t.description AS task_description,
	t.reward AS task_reward, t.scope AS task_scope, t.target_id AS task_target_id,
	t.due_date AS task_due_date, t.time_of_day AS task_time_of_day,
	t.location AS task_location, t.active AS task_active, t.created_by AS task_created_by`

func (row submissionTaskRow) toJoined() *ports.SubmissionWithTask {
	return &ports.SubmissionWithTask{
		Submission: row.TaskSubmission,
		Task: entities.AdminTask{
			ID:          row.AdminTaskID,
			Kind:        row.TaskKind,
			Title:       row.TaskTitle,
			Description: row.TaskDescription,
			Reward:      row.TaskReward,
			Scope:       row.TaskScope,
			TargetID:    row.TaskTargetID,
			DueDate:     row.TaskDueDate,
			TimeOfDay:   row.TaskTimeOfDay,
			Location:    row.TaskLocation,
			Active:      row.TaskActive,
			CreatedBy:   row.TaskCreatedBy,
		},
	}
}

func (r *SubmissionRepositoryImpl) ListOpenByParticipant(ctx context.Context, participantID uuid.UUID) ([]*ports.SubmissionWithTask, error) {
	query := `
		SELECT ` + submissionTaskColumns + `
		FROM task_submissions s
		JOIN admin_tasks t ON t.id = s.admin_task_id
		WHERE s.participant_id = $1 AND t.active = true
			AND s.status IN ($2, $3, $4)
		ORDER BY t.due_date ASC`

	var rows []submissionTaskRow
	err := r.db.SelectContext(ctx, &rows, query, participantID,
		entities.SubmissionStatusPending, entities.SubmissionStatusSubmitted, entities.SubmissionStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("list open submissions: %w", err)
	}

	joined := make([]*ports.SubmissionWithTask, 0, len(rows))
	for _, row := range rows {
		joined = append(joined, row.toJoined())
	}

	return joined, nil
}

func (r *SubmissionRepositoryImpl) ListPendingExtraordinary(ctx context.Context) ([]*ports.SubmissionWithTask, error) {
	query := `
		SELECT ` + submissionTaskColumns + `
		FROM task_submissions s
		JOIN admin_tasks t ON t.id = s.admin_task_id
		WHERE s.status = $1 AND t.kind = $2 AND t.active = true
		ORDER BY t.due_date ASC`

	var rows []submissionTaskRow
	err := r.db.SelectContext(ctx, &rows, query, entities.SubmissionStatusPending, entities.AdminTaskKindExtraordinary)
	if err != nil {
		return nil, fmt.Errorf("list pending extraordinary submissions: %w", err)
	}

	joined := make([]*ports.SubmissionWithTask, 0, len(rows))
	for _, row := range rows {
		joined = append(joined, row.toJoined())
	}

	return joined, nil
}

// MarkSubmitted admits first submissions and resubmissions after a
// rejection; any other state loses the conditional update.
func (r *SubmissionRepositoryImpl) MarkSubmitted(ctx context.Context, id uuid.UUID, evidenceRef string, at time.Time) (*entities.TaskSubmission, error) {
	query := `
		UPDATE task_submissions
		SET status = $2, evidence_ref = $3, submitted_at = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status IN ($5, $6)`

	result, err := r.db.ExecContext(ctx, query,
		id, entities.SubmissionStatusSubmitted, evidenceRef, at,
		entities.SubmissionStatusPending, entities.SubmissionStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("mark submission submitted: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, entities.ErrPreconditionFailed
	}

	return r.GetByID(ctx, id)
}

func (r *SubmissionRepositoryImpl) Review(ctx context.Context, id uuid.UUID, approved bool, feedback *string) (*entities.TaskSubmission, error) {
	status := entities.SubmissionStatusRejected
	if approved {
		status = entities.SubmissionStatusApproved
	}

	query := `
		UPDATE task_submissions
		SET status = $2, feedback = COALESCE($3, feedback), updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, id, status, feedback, entities.SubmissionStatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("review submission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, entities.ErrPreconditionFailed
	}

	return r.GetByID(ctx, id)
}

// ExpireBatch flips still-pending submissions to expired in one
// statement. Re-running it matches zero rows, so the sweep is
// idempotent by construction.
func (r *SubmissionRepositoryImpl) ExpireBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE task_submissions
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ANY($2) AND status = $3`

	result, err := r.db.ExecContext(ctx, query,
		entities.SubmissionStatusExpired, pq.Array(ids), entities.SubmissionStatusPending)
	if err != nil {
		return 0, fmt.Errorf("expire submissions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// Reopen is the administrative reversal of an expiration.
func (r *SubmissionRepositoryImpl) Reopen(ctx context.Context, id uuid.UUID) (*entities.TaskSubmission, error) {
	query := `
		UPDATE task_submissions
		SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, id, entities.SubmissionStatusPending, entities.SubmissionStatusExpired)
	if err != nil {
		return nil, fmt.Errorf("reopen submission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, entities.ErrPreconditionFailed
	}

	return r.GetByID(ctx, id)
}
