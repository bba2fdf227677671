package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/ports"
)

// TaskInstanceRepositoryImpl implements the TaskInstanceRepository interface
type TaskInstanceRepositoryImpl struct {
	db *sqlx.DB
}

// NewTaskInstanceRepository creates a new task instance repository
func NewTaskInstanceRepository(db *sqlx.DB) ports.TaskInstanceRepository {
	return &TaskInstanceRepositoryImpl{db: db}
}

// InsertBatch materializes instances idempotently: the unique
// (action_id, due_date) key plus ON CONFLICT DO NOTHING guarantees an
// existing row's status, postpone count and original due date are never
// touched by regeneration.
func (r *TaskInstanceRepositoryImpl) InsertBatch(ctx context.Context, instances []*entities.TaskInstance) (int, error) {
	if len(instances) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO task_instances (id, action_id, goal_id, participant_id, due_date, status, postpone_count, evidence_status)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		ON CONFLICT (action_id, due_date) DO NOTHING`

	inserted := 0
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, inst := range instances {
			if inst.ID == uuid.Nil {
				inst.ID = uuid.New()
			}
			result, err := tx.ExecContext(ctx, query,
				inst.ID, inst.ActionID, inst.GoalID, inst.ParticipantID,
				inst.DueDate, entities.InstanceStatusPending, entities.EvidenceStatusNone,
			)
			if err != nil {
				return fmt.Errorf("insert task instance: %w", err)
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

func (r *TaskInstanceRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.TaskInstance, error) {
	query := `
		SELECT ti.id, ti.action_id, ti.goal_id, ti.participant_id, ti.due_date, ti.original_due_date,
			ti.status, ti.postpone_count, ti.evidence_status, ti.evidence_ref,
			a.text AS action_text, ti.created_at, ti.updated_at
		FROM task_instances ti
		JOIN actions a ON a.id = ti.action_id
		WHERE ti.id = $1`

	var instance entities.TaskInstance
	err := r.db.GetContext(ctx, &instance, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("get task instance by id: %w", err)
	}

	return &instance, nil
}

func (r *TaskInstanceRepositoryImpl) ListByParticipant(ctx context.Context, participantID uuid.UUID, filter ports.InstanceFilter) ([]*entities.TaskInstance, error) {
	query := `
		SELECT ti.id, ti.action_id, ti.goal_id, ti.participant_id, ti.due_date, ti.original_due_date,
			ti.status, ti.postpone_count, ti.evidence_status, ti.evidence_ref,
			a.text AS action_text, ti.created_at, ti.updated_at
		FROM task_instances ti
		JOIN actions a ON a.id = ti.action_id
		WHERE ti.participant_id = $1`

	args := []interface{}{participantID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND ti.status = $%d", len(args))
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		query += fmt.Sprintf(" AND ti.due_date >= $%d", len(args))
	}
	if filter.DueUntil != nil {
		args = append(args, *filter.DueUntil)
		query += fmt.Sprintf(" AND ti.due_date <= $%d", len(args))
	}

	query += " ORDER BY ti.due_date ASC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var instances []*entities.TaskInstance
	err := r.db.SelectContext(ctx, &instances, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task instances: %w", err)
	}

	return instances, nil
}

func (r *TaskInstanceRepositoryImpl) ListPendingBefore(ctx context.Context, participantID uuid.UUID, before time.Time, limit int) ([]*entities.TaskInstance, error) {
	query := `
		SELECT ti.id, ti.action_id, ti.goal_id, ti.participant_id, ti.due_date, ti.original_due_date,
			ti.status, ti.postpone_count, ti.evidence_status, ti.evidence_ref,
			a.text AS action_text, ti.created_at, ti.updated_at
		FROM task_instances ti
		JOIN actions a ON a.id = ti.action_id
		WHERE ti.participant_id = $1 AND ti.status = $2 AND ti.due_date < $3
		ORDER BY ti.due_date ASC
		LIMIT $4`

	var instances []*entities.TaskInstance
	err := r.db.SelectContext(ctx, &instances, query, participantID, entities.InstanceStatusPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending instances before date: %w", err)
	}

	return instances, nil
}

func (r *TaskInstanceRepositoryImpl) ListPendingInRange(ctx context.Context, participantID uuid.UUID, from, to time.Time) ([]*entities.TaskInstance, error) {
	query := `
		SELECT ti.id, ti.action_id, ti.goal_id, ti.participant_id, ti.due_date, ti.original_due_date,
			ti.status, ti.postpone_count, ti.evidence_status, ti.evidence_ref,
			a.text AS action_text, ti.created_at, ti.updated_at
		FROM task_instances ti
		JOIN actions a ON a.id = ti.action_id
		WHERE ti.participant_id = $1 AND ti.status = $2 AND ti.due_date >= $3 AND ti.due_date < $4
		ORDER BY ti.due_date ASC`

	var instances []*entities.TaskInstance
	err := r.db.SelectContext(ctx, &instances, query, participantID, entities.InstanceStatusPending, from, to)
	if err != nil {
		return nil, fmt.Errorf("list pending instances in range: %w", err)
	}

	return instances, nil
}

// MarkCompleted is a compare-and-swap: the transition applies only
// while the row is still pending with approved evidence, so a
// double-submit loses cleanly instead of overwriting.
func (r *TaskInstanceRepositoryImpl) MarkCompleted(ctx context.Context, id uuid.UUID) (*entities.TaskInstance, error) {
	query := `
		UPDATE task_instances
		SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3 AND evidence_status = $4`

	result, err := r.db.ExecContext(ctx, query,
		id, entities.InstanceStatusCompleted, entities.InstanceStatusPending, entities.EvidenceStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("mark instance completed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, r.completionFailure(ctx, id)
	}

	return r.GetByID(ctx, id)
}

// completionFailure distinguishes why a conditional completion matched
// no rows: missing row, non-pending status, or unapproved evidence.
func (r *TaskInstanceRepositoryImpl) completionFailure(ctx context.Context, id uuid.UUID) error {
	instance, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if instance.Status != entities.InstanceStatusPending {
		return entities.ErrPreconditionFailed
	}
	return entities.ErrEvidenceNotApproved
}

// Postpone applies the due-date shift, the original-due-date anchor and
// the counter increment in a single conditional statement; partial
// application is structurally impossible.
func (r *TaskInstanceRepositoryImpl) Postpone(ctx context.Context, id uuid.UUID, days int) (*entities.TaskInstance, error) {
	query := `
		UPDATE task_instances
		SET due_date = due_date + ($2 * INTERVAL '1 day'),
			original_due_date = COALESCE(original_due_date, due_date),
			postpone_count = postpone_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, id, days, entities.InstanceStatusPending)
	if err != nil {
		return nil, fmt.Errorf("postpone instance: %w", err)
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

func (r *TaskInstanceRepositoryImpl) SetEvidence(ctx context.Context, id uuid.UUID, status entities.EvidenceStatus, ref *string) (*entities.TaskInstance, error) {
	query := `
		UPDATE task_instances
		SET evidence_status = $2, evidence_ref = COALESCE($3, evidence_ref), updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, ref)
	if err != nil {
		return nil, fmt.Errorf("set instance evidence: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, entities.ErrInstanceNotFound
	}

	return r.GetByID(ctx, id)
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("rollback: %v (original error: %w)", rollbackErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
