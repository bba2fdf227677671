package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/ports"
)

// EnrollmentRepositoryImpl implements the EnrollmentRepository interface
type EnrollmentRepositoryImpl struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sqlx.DB) ports.EnrollmentRepository {
	return &EnrollmentRepositoryImpl{db: db}
}

// Create inserts an enrollment. A partial unique index on
// (participant_id) WHERE status = 'active' enforces the single active
// enrollment invariant at the storage layer.
func (r *EnrollmentRepositoryImpl) Create(ctx context.Context, enrollment *entities.CycleEnrollment) error {
	query := `
		INSERT INTO cycle_enrollments (id, participant_id, cycle_type, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	if enrollment.ID == uuid.Nil {
		enrollment.ID = uuid.New()
	}

	err := r.db.QueryRowContext(ctx, query,
		enrollment.ID, enrollment.ParticipantID, enrollment.Type,
		enrollment.StartDate, enrollment.EndDate, enrollment.Status,
	).Scan(&enrollment.CreatedAt, &enrollment.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return entities.ErrEnrollmentExists
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	return nil
}

func (r *EnrollmentRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.CycleEnrollment, error) {
	query := `
		SELECT id, participant_id, cycle_type, start_date, end_date, status, created_at, updated_at
		FROM cycle_enrollments
		WHERE id = $1`

	var enrollment entities.CycleEnrollment
	err := r.db.GetContext(ctx, &enrollment, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment by id: %w", err)
	}

	return &enrollment, nil
}

func (r *EnrollmentRepositoryImpl) GetActive(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error) {
	query := `
		SELECT id, participant_id, cycle_type, start_date, end_date, status, created_at, updated_at
		FROM cycle_enrollments
		WHERE participant_id = $1 AND status = $2`

	var enrollment entities.CycleEnrollment
	err := r.db.GetContext(ctx, &enrollment, query, participantID, entities.EnrollmentStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get active enrollment: %w", err)
	}

	return &enrollment, nil
}

// UpdateStatus transitions only from the expected current status so
// concurrent lifecycle changes cannot clobber each other.
func (r *EnrollmentRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entities.EnrollmentStatus) error {
	query := `
		UPDATE cycle_enrollments
		SET status = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return entities.ErrPreconditionFailed
	}

	return nil
}

// ListGroupMembers resolves a group cycle's audience for admin task
// fan-out: every participant actively enrolled in the group's cycle.
func (r *EnrollmentRepositoryImpl) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT participant_id
		FROM group_members
		WHERE group_id = $1`

	var members []uuid.UUID
	err := r.db.SelectContext(ctx, &members, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}

	return members, nil
}

func (r *EnrollmentRepositoryImpl) ListActiveParticipants(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT participant_id
		FROM cycle_enrollments
		WHERE status = $1`

	var participants []uuid.UUID
	err := r.db.SelectContext(ctx, &participants, query, entities.EnrollmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active participants: %w", err)
	}

	return participants, nil
}
