package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/ports"
)

// AttendanceRepositoryImpl implements the AttendanceRepository interface
type AttendanceRepositoryImpl struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *sqlx.DB) ports.AttendanceRepository {
	return &AttendanceRepositoryImpl{db: db}
}

func (r *AttendanceRepositoryImpl) Get(ctx context.Context, participantID uuid.UUID) (*entities.AttendanceRecord, error) {
	query := `
		SELECT id, participant_id, lives_remaining, missed_count, suspended, updated_at
		FROM attendance_records
		WHERE participant_id = $1`

	var record entities.AttendanceRecord
	err := r.db.GetContext(ctx, &record, query, participantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("get attendance record: %w", err)
	}

	return &record, nil
}

// RecordMiss applies the strike atomically: lives floor at zero, the
// missed count is monotonic, and the suspended flag latches once set.
func (r *AttendanceRepositoryImpl) RecordMiss(ctx context.Context, participantID uuid.UUID) (*entities.AttendanceRecord, error) {
	query := `
		UPDATE attendance_records
		SET lives_remaining = GREATEST(lives_remaining - 1, 0),
			missed_count = missed_count + 1,
			suspended = suspended OR (lives_remaining - 1 <= 0),
			updated_at = CURRENT_TIMESTAMP
		WHERE participant_id = $1
		RETURNING id, participant_id, lives_remaining, missed_count, suspended, updated_at`

	var record entities.AttendanceRecord
	err := r.db.GetContext(ctx, &record, query, participantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("record miss: %w", err)
	}

	return &record, nil
}

// Init seeds the lives budget for a fresh enrollment; an existing
// record is left untouched.
func (r *AttendanceRepositoryImpl) Init(ctx context.Context, participantID uuid.UUID, lives int) error {
	query := `
		INSERT INTO attendance_records (id, participant_id, lives_remaining, missed_count, suspended)
		VALUES ($1, $2, $3, 0, false)
		ON CONFLICT (participant_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, uuid.New(), participantID, lives)
	if err != nil {
		return fmt.Errorf("init attendance record: %w", err)
	}

	return nil
}
