package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/infrastructure/metrics"
	"github.com/cyclepact/core/internal/ports"
)

// AttendanceService is the strike engine: it tracks the mandatory
// check-in budget and suspends the enrollment when it runs out. What
// counts as a miss is decided by the external call subsystem; this
// engine only applies the consequence.
type AttendanceService struct {
	attendanceRepo ports.AttendanceRepository
	enrollmentRepo ports.EnrollmentRepository
	publisher      ports.EventPublisher
	metrics        *metrics.Metrics
	logger         *logger.Logger
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(attendanceRepo ports.AttendanceRepository, enrollmentRepo ports.EnrollmentRepository, publisher ports.EventPublisher, m *metrics.Metrics, logger *logger.Logger) *AttendanceService {
	return &AttendanceService{
		attendanceRepo: attendanceRepo,
		enrollmentRepo: enrollmentRepo,
		publisher:      publisher,
		metrics:        m,
		logger:         logger,
	}
}

// RecordMiss burns one life. Lives floor at zero; the miss that
// exhausts the budget flips the active enrollment to its suspended
// terminal state exactly once, even under repeated or concurrent
// misses.
func (s *AttendanceService) RecordMiss(ctx context.Context, participantID uuid.UUID) (*ports.AttendanceState, error) {
	record, err := s.attendanceRepo.RecordMiss(ctx, participantID)
	if err != nil {
		return nil, err
	}

	if record.Suspended {
		suspendedNow, err := s.suspendEnrollment(ctx, participantID)
		if err != nil {
			return nil, err
		}
		if suspendedNow {
			s.metrics.ParticipantsSuspended.Inc()
			s.publisher.Publish(ctx, ports.Event{
				Type:          ports.EventParticipantSuspended,
				ParticipantID: participantID,
				OccurredAt:    time.Now(),
				Payload: map[string]interface{}{
					"missed_count": record.MissedCount,
				},
			})
			s.logger.Warnw("Participant suspended",
				"participant_id", participantID, "missed_count", record.MissedCount)
		}
	}

	s.logger.Infow("Check-in miss recorded",
		"participant_id", participantID,
		"lives_remaining", record.LivesRemaining,
		"missed_count", record.MissedCount)

	return stateFromRecord(record), nil
}

// GetState reports the participant's current lives budget.
func (s *AttendanceService) GetState(ctx context.Context, participantID uuid.UUID) (*ports.AttendanceState, error) {
	record, err := s.attendanceRepo.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}

	return stateFromRecord(record), nil
}

// suspendEnrollment flips the active enrollment to deserter. The
// conditional status update reports whether this call performed the
// flip; a miss after suspension finds no active enrollment and changes
// nothing.
func (s *AttendanceService) suspendEnrollment(ctx context.Context, participantID uuid.UUID) (bool, error) {
	enrollment, err := s.enrollmentRepo.GetActive(ctx, participantID)
	if err != nil {
		if errors.Is(err, entities.ErrEnrollmentNotFound) {
			return false, nil
		}
		return false, err
	}

	err = s.enrollmentRepo.UpdateStatus(ctx, enrollment.ID, entities.EnrollmentStatusActive, entities.EnrollmentStatusDeserter)
	if err != nil {
		if errors.Is(err, entities.ErrPreconditionFailed) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func stateFromRecord(record *entities.AttendanceRecord) *ports.AttendanceState {
	return &ports.AttendanceState{
		ParticipantID:  record.ParticipantID,
		LivesRemaining: record.LivesRemaining,
		MissedCount:    record.MissedCount,
		Suspended:      record.Suspended,
	}
}
