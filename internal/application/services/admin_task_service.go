package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/domain/schedule"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/ports"
)

// AdminTaskService handles mentor-issued obligations and their
// per-participant submissions.
type AdminTaskService struct {
	adminTaskRepo  ports.AdminTaskRepository
	submissionRepo ports.SubmissionRepository
	enrollmentRepo ports.EnrollmentRepository
	logger         *logger.Logger
}

// NewAdminTaskService creates a new admin task service
func NewAdminTaskService(adminTaskRepo ports.AdminTaskRepository, submissionRepo ports.SubmissionRepository, enrollmentRepo ports.EnrollmentRepository, logger *logger.Logger) *AdminTaskService {
	return &AdminTaskService{
		adminTaskRepo:  adminTaskRepo,
		submissionRepo: submissionRepo,
		enrollmentRepo: enrollmentRepo,
		logger:         logger,
	}
}

// Create stores the admin task and fans it out to its audience in one
// pass. The duplicate-safe batch insert makes a retried creation
// converge instead of double-assigning.
func (s *AdminTaskService) Create(ctx context.Context, req ports.CreateAdminTaskRequest) (*ports.CreateAdminTaskResult, error) {
	dueDate, err := schedule.ParseDate(req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidConfiguration, err)
	}

	if req.TimeOfDay != nil {
		if err := schedule.ValidateTimeOfDay(*req.TimeOfDay); err != nil {
			return nil, fmt.Errorf("%w: %v", entities.ErrInvalidConfiguration, err)
		}
	}

	kind := entities.AdminTaskKind(req.Kind)
	scope := entities.TargetScope(req.Scope)
	if !kind.IsValid() || !scope.IsValid() {
		return nil, entities.ErrInvalidConfiguration
	}

	if scope != entities.TargetScopeAll && req.TargetID == nil {
		return nil, fmt.Errorf("%w: scope %q requires a target", entities.ErrInvalidConfiguration, scope)
	}

	task := &entities.AdminTask{
		Kind:        kind,
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Scope:       scope,
		TargetID:    req.TargetID,
		DueDate:     dueDate,
		TimeOfDay:   req.TimeOfDay,
		Location:    req.Location,
		Active:      true,
		CreatedBy:   req.CreatedBy,
	}

	if err := s.adminTaskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create admin task: %w", err)
	}

	audience, err := s.resolveAudience(ctx, scope, req.TargetID)
	if err != nil {
		return nil, err
	}

	submissions := make([]*entities.TaskSubmission, 0, len(audience))
	for _, participantID := range audience {
		submissions = append(submissions, &entities.TaskSubmission{
			AdminTaskID:   task.ID,
			ParticipantID: participantID,
		})
	}

	fannedOut, err := s.submissionRepo.InsertBatch(ctx, submissions)
	if err != nil {
		return nil, fmt.Errorf("failed to fan out submissions: %w", err)
	}

	s.logger.Infow("Admin task created",
		"task_id", task.ID, "kind", task.Kind, "scope", task.Scope,
		"audience", len(audience), "fanned_out", fannedOut)

	return &ports.CreateAdminTaskResult{Task: task, FannedOut: fannedOut}, nil
}

// SubmitWork records a participant's evidence for an admin task.
// First submissions and resubmissions after a rejection both land here.
func (s *AdminTaskService) SubmitWork(ctx context.Context, participantID, submissionID uuid.UUID, evidenceRef string) (*entities.TaskSubmission, error) {
	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if submission.ParticipantID != participantID {
		return nil, entities.ErrSubmissionNotFound
	}

	updated, err := s.submissionRepo.MarkSubmitted(ctx, submissionID, evidenceRef, time.Now())
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Submission received",
		"submission_id", submissionID, "participant_id", participantID)

	return updated, nil
}

// ReviewSubmission records the mentor's verdict on submitted work.
func (s *AdminTaskService) ReviewSubmission(ctx context.Context, submissionID uuid.UUID, approved bool, feedback *string) (*entities.TaskSubmission, error) {
	updated, err := s.submissionRepo.Review(ctx, submissionID, approved, feedback)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Submission reviewed",
		"submission_id", submissionID, "approved", approved)

	return updated, nil
}

// ReopenSubmission is the administrative reversal of an automatic
// expiration; the sweep itself never reverses.
func (s *AdminTaskService) ReopenSubmission(ctx context.Context, submissionID uuid.UUID) (*entities.TaskSubmission, error) {
	updated, err := s.submissionRepo.Reopen(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Submission reopened", "submission_id", submissionID)

	return updated, nil
}

func (s *AdminTaskService) resolveAudience(ctx context.Context, scope entities.TargetScope, targetID *uuid.UUID) ([]uuid.UUID, error) {
	switch scope {
	case entities.TargetScopeAll:
		audience, err := s.enrollmentRepo.ListActiveParticipants(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audience: %w", err)
		}
		return audience, nil
	case entities.TargetScopeGroup:
		audience, err := s.enrollmentRepo.ListGroupMembers(ctx, *targetID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group audience: %w", err)
		}
		return audience, nil
	case entities.TargetScopeUser:
		return []uuid.UUID{*targetID}, nil
	}
	return nil, entities.ErrInvalidConfiguration
}
