package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/domain/schedule"
	"github.com/cyclepact/core/internal/infrastructure/config"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/ports"
)

// EnrollmentService manages program cycle lifecycle
type EnrollmentService struct {
	enrollmentRepo ports.EnrollmentRepository
	attendanceRepo ports.AttendanceRepository
	logger         *logger.Logger
	cfg            config.EngineConfig
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(enrollmentRepo ports.EnrollmentRepository, attendanceRepo ports.AttendanceRepository, logger *logger.Logger, cfg config.EngineConfig) *EnrollmentService {
	return &EnrollmentService{
		enrollmentRepo: enrollmentRepo,
		attendanceRepo: attendanceRepo,
		logger:         logger,
		cfg:            cfg,
	}
}

// Start opens a new cycle for the participant. Solo cycles run for the
// configured length unless the request overrides it; group cycles take
// their end date from the shared group schedule, so the request must
// carry one. A participant holds at most one active enrollment; a
// second Start fails with ErrEnrollmentExists.
func (s *EnrollmentService) Start(ctx context.Context, req ports.StartEnrollmentRequest) (*entities.CycleEnrollment, error) {
	cycleType := entities.CycleType(req.CycleType)
	if !cycleType.IsValid() {
		return nil, fmt.Errorf("%w: unknown cycle type %q", entities.ErrInvalidConfiguration, req.CycleType)
	}

	startDate, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date: %v", entities.ErrInvalidConfiguration, err)
	}

	var endDate time.Time
	switch cycleType {
	case entities.CycleTypeSolo:
		length := req.LengthDays
		if length <= 0 {
			length = s.cfg.CycleLengthDays
		}
		endDate = startDate.AddDate(0, 0, length-1)
	case entities.CycleTypeGroup:
		if req.EndDate == nil {
			return nil, fmt.Errorf("%w: group cycles require an end_date", entities.ErrInvalidConfiguration)
		}
		endDate, err = schedule.ParseDate(*req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date: %v", entities.ErrInvalidConfiguration, err)
		}
	}

	// End date is inclusive; a cycle may start and end on the same day.
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("%w: cycle cannot end before it starts", entities.ErrInvalidConfiguration)
	}

	now := time.Now()
	enrollment := &entities.CycleEnrollment{
		ID:            uuid.New(),
		ParticipantID: req.ParticipantID,
		Type:          cycleType,
		StartDate:     startDate,
		EndDate:       endDate,
		Status:        entities.EnrollmentStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		return nil, err
	}

	if err := s.attendanceRepo.Init(ctx, req.ParticipantID, s.cfg.Lives); err != nil {
		return nil, fmt.Errorf("failed to initialize attendance record: %w", err)
	}

	s.logger.Infow("Enrollment started",
		"participant_id", req.ParticipantID,
		"cycle_type", cycleType,
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"))

	return enrollment, nil
}

// GetActive returns the participant's current active enrollment.
func (s *EnrollmentService) GetActive(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error) {
	return s.enrollmentRepo.GetActive(ctx, participantID)
}

// Withdraw closes the active enrollment as voluntarily dropped.
func (s *EnrollmentService) Withdraw(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error) {
	return s.transition(ctx, participantID, entities.EnrollmentStatusDropped, "Enrollment withdrawn")
}

// Complete closes the active enrollment as finished.
func (s *EnrollmentService) Complete(ctx context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error) {
	return s.transition(ctx, participantID, entities.EnrollmentStatusCompleted, "Enrollment completed")
}

func (s *EnrollmentService) transition(ctx context.Context, participantID uuid.UUID, to entities.EnrollmentStatus, msg string) (*entities.CycleEnrollment, error) {
	enrollment, err := s.enrollmentRepo.GetActive(ctx, participantID)
	if err != nil {
		return nil, err
	}

	if err := s.enrollmentRepo.UpdateStatus(ctx, enrollment.ID, entities.EnrollmentStatusActive, to); err != nil {
		return nil, err
	}

	enrollment.Status = to
	enrollment.UpdatedAt = time.Now()

	s.logger.Infow(msg, "participant_id", participantID, "enrollment_id", enrollment.ID)

	return enrollment, nil
}
