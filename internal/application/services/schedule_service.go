package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/domain/schedule"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/infrastructure/metrics"
	"github.com/cyclepact/core/internal/ports"
)

// ScheduleService handles recurrence expansion and task instance mutations
type ScheduleService struct {
	actionRepo     ports.ActionRepository
	instanceRepo   ports.TaskInstanceRepository
	enrollmentRepo ports.EnrollmentRepository
	attendanceRepo ports.AttendanceRepository
	metrics        *metrics.Metrics
	logger         *logger.Logger
}

// NewScheduleService creates a new schedule service
func NewScheduleService(actionRepo ports.ActionRepository, instanceRepo ports.TaskInstanceRepository, enrollmentRepo ports.EnrollmentRepository, attendanceRepo ports.AttendanceRepository, m *metrics.Metrics, logger *logger.Logger) *ScheduleService {
	return &ScheduleService{
		actionRepo:     actionRepo,
		instanceRepo:   instanceRepo,
		enrollmentRepo: enrollmentRepo,
		attendanceRepo: attendanceRepo,
		metrics:        m,
		logger:         logger,
	}
}

// RuleFromPayload converts the wire shape of a frequency rule into the
// domain rule, rejecting misconfiguration at the boundary.
func RuleFromPayload(payload ports.FrequencyPayload) (schedule.Rule, error) {
	rule := schedule.Rule{Kind: schedule.FrequencyKind(payload.Kind)}

	switch rule.Kind {
	case schedule.FrequencyWeekly, schedule.FrequencyBiweekly:
		rule.Weekdays = make([]time.Weekday, 0, len(payload.Weekdays))
		for _, wd := range payload.Weekdays {
			rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
		}
	case schedule.FrequencyMonthly:
		rule.DayOfMonth = payload.DayOfMonth
		if payload.LastDay {
			rule.DayOfMonth = schedule.LastDayOfMonth
		}
	}

	if err := rule.Validate(); err != nil {
		return schedule.Rule{}, fmt.Errorf("%w: %v", entities.ErrInvalidConfiguration, err)
	}

	return rule, nil
}

// RegisterAction accepts an action from the goal provider, expands its
// frequency rule against the participant's active enrollment window and
// materializes the resulting task instances. The whole operation is
// idempotent: re-registering diff-inserts only missing dates.
func (s *ScheduleService) RegisterAction(ctx context.Context, req ports.RegisterActionRequest) (*ports.RegisterActionResult, error) {
	rule, err := RuleFromPayload(req.Frequency)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollmentRepo.GetActive(ctx, req.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("active enrollment required to schedule actions: %w", err)
	}

	action := &entities.Action{
		ID:            req.ActionID,
		GoalID:        req.GoalID,
		ParticipantID: req.ParticipantID,
		Text:          req.Text,
		Frequency:     rule,
	}

	if err := s.actionRepo.Upsert(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to store action: %w", err)
	}

	dates, err := schedule.Expand(rule, enrollment.StartDate, enrollment.LengthDays())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidConfiguration, err)
	}

	if len(dates) == 0 {
		s.logger.Warnw("Frequency rule produced no dates in enrollment window",
			"action_id", action.ID, "kind", rule.Kind,
			"start", enrollment.StartDate, "length_days", enrollment.LengthDays())
	}

	instances := make([]*entities.TaskInstance, 0, len(dates))
	for _, date := range dates {
		instances = append(instances, &entities.TaskInstance{
			ActionID:      action.ID,
			GoalID:        action.GoalID,
			ParticipantID: action.ParticipantID,
			DueDate:       date,
		})
	}

	inserted, err := s.instanceRepo.InsertBatch(ctx, instances)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize task instances: %w", err)
	}

	s.metrics.InstancesMaterialized.Add(float64(inserted))
	s.logger.Infow("Action registered",
		"action_id", action.ID, "participant_id", action.ParticipantID,
		"dates", len(dates), "materialized", inserted)

	return &ports.RegisterActionResult{
		Action:       action,
		Materialized: inserted,
		TotalDates:   len(dates),
	}, nil
}

// CompleteTask transitions a pending instance to completed. The
// conditional update in the store makes concurrent double-submits lose
// cleanly; completion additionally requires approved evidence.
func (s *ScheduleService) CompleteTask(ctx context.Context, participantID, instanceID uuid.UUID) (*entities.TaskInstance, error) {
	if err := s.guardEnrollment(ctx, participantID); err != nil {
		return nil, err
	}

	instance, err := s.ownedInstance(ctx, participantID, instanceID)
	if err != nil {
		return nil, err
	}

	updated, err := s.instanceRepo.MarkCompleted(ctx, instance.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task completed", "instance_id", instanceID, "participant_id", participantID)

	return updated, nil
}

// PostponeTask shifts a pending instance's due date forward. The first
// postponement anchors the original due date; the counter is unbounded
// by policy.
func (s *ScheduleService) PostponeTask(ctx context.Context, participantID, instanceID uuid.UUID, days int) (*entities.TaskInstance, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: postponement days must be positive", entities.ErrInvalidConfiguration)
	}

	if err := s.guardEnrollment(ctx, participantID); err != nil {
		return nil, err
	}

	instance, err := s.ownedInstance(ctx, participantID, instanceID)
	if err != nil {
		return nil, err
	}

	updated, err := s.instanceRepo.Postpone(ctx, instance.ID, days)
	if err != nil {
		return nil, err
	}

	s.metrics.PostponementsTotal.Inc()
	s.logger.Infow("Task postponed",
		"instance_id", instanceID, "participant_id", participantID,
		"days", days, "postpone_count", updated.PostponeCount)

	return updated, nil
}

// SubmitEvidence attaches an evidence reference and marks it awaiting
// review. The engine stores the opaque reference only; content lives in
// the external evidence subsystem.
func (s *ScheduleService) SubmitEvidence(ctx context.Context, participantID, instanceID uuid.UUID, evidenceRef string) (*entities.TaskInstance, error) {
	if err := s.guardEnrollment(ctx, participantID); err != nil {
		return nil, err
	}

	instance, err := s.ownedInstance(ctx, participantID, instanceID)
	if err != nil {
		return nil, err
	}

	if !instance.CanComplete() {
		return nil, entities.ErrPreconditionFailed
	}

	return s.instanceRepo.SetEvidence(ctx, instance.ID, entities.EvidenceStatusPending, &evidenceRef)
}

// ReviewEvidence records the evidence subsystem's verdict.
func (s *ScheduleService) ReviewEvidence(ctx context.Context, instanceID uuid.UUID, approved bool) (*entities.TaskInstance, error) {
	status := entities.EvidenceStatusRejected
	if approved {
		status = entities.EvidenceStatusApproved
	}

	return s.instanceRepo.SetEvidence(ctx, instanceID, status, nil)
}

// ListInstances retrieves instances joined with action metadata.
func (s *ScheduleService) ListInstances(ctx context.Context, participantID uuid.UUID, filter ports.InstanceFilter) ([]*entities.TaskInstance, error) {
	instances, err := s.instanceRepo.ListByParticipant(ctx, participantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	return instances, nil
}

// guardEnrollment blocks task interaction without an active enrollment.
// A suspended participant gets the specific suspension error so the
// surface can explain the hard gate.
func (s *ScheduleService) guardEnrollment(ctx context.Context, participantID uuid.UUID) error {
	_, err := s.enrollmentRepo.GetActive(ctx, participantID)
	if err == nil {
		return nil
	}

	record, attErr := s.attendanceRepo.Get(ctx, participantID)
	if attErr == nil && record.Suspended {
		return entities.ErrEnrollmentSuspended
	}

	return entities.ErrEnrollmentNotActive
}

func (s *ScheduleService) ownedInstance(ctx context.Context, participantID, instanceID uuid.UUID) (*entities.TaskInstance, error) {
	instance, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	// Ownership mismatch is indistinguishable from absence to the caller.
	if instance.ParticipantID != participantID {
		return nil, entities.ErrInstanceNotFound
	}

	return instance, nil
}
