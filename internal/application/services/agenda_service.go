package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/domain/schedule"
	"github.com/cyclepact/core/internal/infrastructure/config"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/infrastructure/metrics"
	"github.com/cyclepact/core/internal/ports"
)

// AgendaService classifies open obligations into today/overdue buckets
// and runs the auto-expiration sweep.
type AgendaService struct {
	instanceRepo   ports.TaskInstanceRepository
	submissionRepo ports.SubmissionRepository
	publisher      ports.EventPublisher
	metrics        *metrics.Metrics
	logger         *logger.Logger
	cfg            config.EngineConfig
}

// NewAgendaService creates a new agenda service
func NewAgendaService(instanceRepo ports.TaskInstanceRepository, submissionRepo ports.SubmissionRepository, publisher ports.EventPublisher, m *metrics.Metrics, logger *logger.Logger, cfg config.EngineConfig) *AgendaService {
	return &AgendaService{
		instanceRepo:   instanceRepo,
		submissionRepo: submissionRepo,
		publisher:      publisher,
		metrics:        m,
		logger:         logger,
		cfg:            cfg,
	}
}

// GetAgenda merges recurring instances, extraordinary tasks and events
// into the two disjoint visibility buckets for one participant. The
// reference instant is explicit so tests and backdated views can inject
// fixed points in time.
func (s *AgendaService) GetAgenda(ctx context.Context, participantID uuid.UUID, referenceDate *time.Time) (*ports.AgendaResponse, error) {
	now := time.Now()
	if referenceDate != nil {
		now = *referenceDate
	}

	loc := s.cfg.Location()
	dayStart := schedule.DayStart(now, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	windows := schedule.Windows{Lookahead: s.cfg.Lookahead, OverdueCutoff: s.cfg.OverdueCutoff}
	log := s.logger.WithParticipantID(participantID.String())

	// The sweep runs as a side effect of computing Overdue. A failed
	// write here only delays expiration until the next pass, so the
	// error is logged and the classification proceeds.
	if _, err := s.ExpireStale(ctx, now); err != nil {
		log.Errorw("Inline expiration sweep failed", "error", err)
	}

	response := &ports.AgendaResponse{
		Today:     []ports.AgendaEntry{},
		Overdue:   []ports.AgendaEntry{},
		Reference: now,
	}

	todayInstances, err := s.instanceRepo.ListPendingInRange(ctx, participantID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's instances: %w", err)
	}

	// Overdue recurring is capped to the most urgent few; the full
	// backlog is reachable through the instance listing, not the agenda.
	overdueInstances, err := s.instanceRepo.ListPendingBefore(ctx, participantID, dayStart, s.cfg.OverduePageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load overdue instances: %w", err)
	}

	// The queries narrow the candidate set; the classifier is the
	// authority on which bucket a due date lands in.
	recurring := make([]*entities.TaskInstance, 0, len(todayInstances)+len(overdueInstances))
	recurring = append(recurring, todayInstances...)
	recurring = append(recurring, overdueInstances...)
	for _, inst := range recurring {
		switch schedule.ClassifyRecurring(inst.DueDate, dayStart, dayEnd) {
		case schedule.BucketToday:
			response.Today = append(response.Today, recurringEntry(inst, dayStart))
			response.Breakdown.TodayRecurring++
		case schedule.BucketOverdue:
			response.Overdue = append(response.Overdue, recurringEntry(inst, dayStart))
			response.Breakdown.OverdueRecurring++
		}
	}

	submissions, err := s.submissionRepo.ListOpenByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	for _, sub := range submissions {
		deadline, err := sub.Task.DeadlineSpec().Compose(loc)
		if err != nil {
			log.Warnw("Skipping submission with malformed deadline",
				"submission_id", sub.Submission.ID, "error", err)
			continue
		}

		switch sub.Task.Kind {
		case entities.AdminTaskKindEvent:
			if windows.ClassifyEvent(sub.Task.DueDate, deadline, now, loc) == schedule.BucketToday {
				response.Today = append(response.Today, submissionEntry(sub, deadline))
				response.Breakdown.TodayEvents++
			}
		case entities.AdminTaskKindExtraordinary:
			switch windows.ClassifyExtraordinary(deadline, now, loc) {
			case schedule.BucketToday:
				response.Today = append(response.Today, submissionEntry(sub, deadline))
				response.Breakdown.TodayExtraordinary++
			case schedule.BucketOverdue:
				response.Overdue = append(response.Overdue, submissionEntry(sub, deadline))
				response.Breakdown.OverdueExtraordinary++
			}
		}
	}

	sortEntries(response.Today)
	sortEntries(response.Overdue)

	return response, nil
}

// ExpireStale transitions pending extraordinary submissions whose
// composed deadline is past the grace window into the terminal expired
// state. The batch update is idempotent; running it twice, or
// concurrently with a classification read, has no further effect.
func (s *AgendaService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	started := time.Now()
	loc := s.cfg.Location()

	pending, err := s.submissionRepo.ListPendingExtraordinary(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending submissions: %w", err)
	}

	var stale []*ports.SubmissionWithTask
	ids := make([]uuid.UUID, 0)
	for _, sub := range pending {
		deadline, err := sub.Task.DeadlineSpec().Compose(loc)
		if err != nil {
			s.logger.Warnw("Skipping submission with malformed deadline",
				"submission_id", sub.Submission.ID, "error", err)
			continue
		}
		if now.Sub(deadline) > s.cfg.OverdueCutoff {
			stale = append(stale, sub)
			ids = append(ids, sub.Submission.ID)
		}
	}

	expired, err := s.submissionRepo.ExpireBatch(ctx, ids)
	duration := float64(time.Since(started).Milliseconds())
	s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.logger.LogSweep(0, duration, err)
		return 0, err
	}

	for _, sub := range stale {
		s.publisher.Publish(ctx, ports.Event{
			Type:          ports.EventTaskExpired,
			ParticipantID: sub.Submission.ParticipantID,
			OccurredAt:    now,
			Payload: map[string]interface{}{
				"submission_id": sub.Submission.ID.String(),
				"task_id":       sub.Task.ID.String(),
				"title":         sub.Task.Title,
			},
		})
	}

	s.metrics.TasksExpired.Add(float64(expired))
	s.logger.LogSweep(expired, duration, nil)

	return expired, nil
}

func recurringEntry(inst *entities.TaskInstance, dayStart time.Time) ports.AgendaEntry {
	daysLate := 0
	if baseline := inst.DelayBaseline(); baseline.Before(dayStart) {
		daysLate = int(dayStart.Sub(baseline).Hours() / 24)
	}

	goalID := inst.GoalID
	return ports.AgendaEntry{
		Kind:          "recurring",
		ID:            inst.ID,
		Title:         inst.ActionText,
		Due:           inst.DueDate,
		DaysLate:      daysLate,
		PostponeCount: inst.PostponeCount,
		GoalID:        &goalID,
	}
}

func submissionEntry(sub *ports.SubmissionWithTask, deadline time.Time) ports.AgendaEntry {
	return ports.AgendaEntry{
		Kind:     string(sub.Task.Kind),
		ID:       sub.Submission.ID,
		Title:    sub.Task.Title,
		Due:      deadline,
		Reward:   sub.Task.Reward,
		Location: sub.Task.Location,
	}
}

func sortEntries(entries []ports.AgendaEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return schedule.Less(entryItem(entries[i]), entryItem(entries[j]))
	})
}

func entryItem(entry ports.AgendaEntry) schedule.Item {
	kind := schedule.KindRecurring
	switch entry.Kind {
	case string(entities.AdminTaskKindEvent):
		kind = schedule.KindEvent
	case string(entities.AdminTaskKindExtraordinary):
		kind = schedule.KindExtraordinary
	}
	return schedule.Item{Kind: kind, Due: entry.Due, ID: entry.ID.String()}
}
