package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/infrastructure/metrics"
	"github.com/cyclepact/core/internal/ports"
)

type agendaFixture struct {
	svc            *AgendaService
	instanceRepo   *fakeInstanceRepo
	adminTaskRepo  *fakeAdminTaskRepo
	submissionRepo *fakeSubmissionRepo
	publisher      *capturingPublisher
}

func newAgendaFixture() *agendaFixture {
	instanceRepo := newFakeInstanceRepo()
	adminTaskRepo := newFakeAdminTaskRepo()
	submissionRepo := newFakeSubmissionRepo(adminTaskRepo)
	publisher := &capturingPublisher{}
	svc := NewAgendaService(instanceRepo, submissionRepo, publisher, metrics.New(), testLogger(), testEngineConfig())
	return &agendaFixture{
		svc:            svc,
		instanceRepo:   instanceRepo,
		adminTaskRepo:  adminTaskRepo,
		submissionRepo: submissionRepo,
		publisher:      publisher,
	}
}

func (fx *agendaFixture) addInstance(participantID uuid.UUID, due time.Time) uuid.UUID {
	id := uuid.New()
	fx.instanceRepo.instances[id] = &entities.TaskInstance{
		ID:             id,
		ActionID:       uuid.New(),
		ParticipantID:  participantID,
		DueDate:        due,
		Status:         entities.InstanceStatusPending,
		EvidenceStatus: entities.EvidenceStatusNone,
		ActionText:     "recurring",
	}
	return id
}

func (fx *agendaFixture) addSubmission(participantID uuid.UUID, kind entities.AdminTaskKind, due time.Time, timeOfDay *string) uuid.UUID {
	task := &entities.AdminTask{
		ID:        uuid.New(),
		Kind:      kind,
		Title:     "assigned",
		Scope:     entities.TargetScopeUser,
		DueDate:   due,
		TimeOfDay: timeOfDay,
		Active:    true,
		CreatedBy: uuid.New(),
	}
	fx.adminTaskRepo.tasks[task.ID] = task

	sub := &entities.TaskSubmission{
		ID:            uuid.New(),
		AdminTaskID:   task.ID,
		ParticipantID: participantID,
		Status:        entities.SubmissionStatusPending,
	}
	fx.submissionRepo.submissions[sub.ID] = sub
	return sub.ID
}

func timePtr(s string) *string { return &s }

func TestGetAgenda_BucketsRecurringInstances(t *testing.T) {
	fx := newAgendaFixture()
	participantID := uuid.New()

	now := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	fx.addInstance(participantID, time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC))
	fx.addInstance(participantID, time.Date(2025, time.June, 8, 0, 0, 0, 0, time.UTC))
	fx.addInstance(participantID, time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC))

	agenda, err := fx.svc.GetAgenda(context.Background(), participantID, &now)
	if err != nil {
		t.Fatalf("GetAgenda failed: %v", err)
	}

	if agenda.Breakdown.TodayRecurring != 1 {
		t.Errorf("expected 1 recurring today, got %d", agenda.Breakdown.TodayRecurring)
	}
	if agenda.Breakdown.OverdueRecurring != 1 {
		t.Errorf("expected 1 recurring overdue, got %d", agenda.Breakdown.OverdueRecurring)
	}
	if len(agenda.Today) != 1 || len(agenda.Overdue) != 1 {
		t.Fatalf("expected 1 today and 1 overdue entry, got %d/%d", len(agenda.Today), len(agenda.Overdue))
	}
	if agenda.Overdue[0].DaysLate != 2 {
		t.Errorf("expected 2 days late, got %d", agenda.Overdue[0].DaysLate)
	}
}

func TestGetAgenda_ExtraordinaryWindows(t *testing.T) {
	fx := newAgendaFixture()
	participantID := uuid.New()
	now := time.Date(2025, time.March, 12, 19, 0, 0, 0, time.UTC)

	// Inside the 48h grace window: overdue.
	fx.addSubmission(participantID, entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC), timePtr("18:00"))
	// Within the 72h lookahead: today.
	fx.addSubmission(participantID, entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), timePtr("12:00"))
	// Far future: invisible.
	fx.addSubmission(participantID, entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC), nil)

	agenda, err := fx.svc.GetAgenda(context.Background(), participantID, &now)
	if err != nil {
		t.Fatalf("GetAgenda failed: %v", err)
	}

	if agenda.Breakdown.OverdueExtraordinary != 1 {
		t.Errorf("expected 1 extraordinary overdue, got %d", agenda.Breakdown.OverdueExtraordinary)
	}
	if agenda.Breakdown.TodayExtraordinary != 1 {
		t.Errorf("expected 1 extraordinary today, got %d", agenda.Breakdown.TodayExtraordinary)
	}
}

func TestGetAgenda_EventsNeverOverdue(t *testing.T) {
	fx := newAgendaFixture()
	participantID := uuid.New()
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

	// Event happening today.
	fx.addSubmission(participantID, entities.AdminTaskKindEvent,
		time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC), timePtr("20:00"))
	// Event from last week: gone, not overdue.
	fx.addSubmission(participantID, entities.AdminTaskKindEvent,
		time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), timePtr("20:00"))

	agenda, err := fx.svc.GetAgenda(context.Background(), participantID, &now)
	if err != nil {
		t.Fatalf("GetAgenda failed: %v", err)
	}

	if agenda.Breakdown.TodayEvents != 1 {
		t.Errorf("expected 1 event today, got %d", agenda.Breakdown.TodayEvents)
	}
	if agenda.Breakdown.OverdueExtraordinary != 0 || len(agenda.Overdue) != 0 {
		t.Errorf("events must never land in overdue, got %d entries", len(agenda.Overdue))
	}
}

func TestGetAgenda_MergedOrdering(t *testing.T) {
	fx := newAgendaFixture()
	participantID := uuid.New()
	now := time.Date(2025, time.March, 12, 8, 0, 0, 0, time.UTC)

	fx.addInstance(participantID, time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC))
	fx.addSubmission(participantID, entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC), timePtr("17:00"))
	fx.addSubmission(participantID, entities.AdminTaskKindEvent,
		time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC), timePtr("19:00"))

	agenda, err := fx.svc.GetAgenda(context.Background(), participantID, &now)
	if err != nil {
		t.Fatalf("GetAgenda failed: %v", err)
	}

	if len(agenda.Today) != 3 {
		t.Fatalf("expected 3 today entries, got %d", len(agenda.Today))
	}

	wantKinds := []string{"event", "extraordinary", "recurring"}
	for i, want := range wantKinds {
		if agenda.Today[i].Kind != want {
			t.Errorf("position %d: expected kind %s, got %s", i, want, agenda.Today[i].Kind)
		}
	}
}

func TestExpireStale_ExpiresOnlyStalePending(t *testing.T) {
	fx := newAgendaFixture()
	participantID := uuid.New()
	now := time.Date(2025, time.March, 12, 19, 0, 0, 0, time.UTC)

	// Deadline 2025-03-10 18:00; at 2025-03-12 19:00 the 48h window is
	// exceeded by one hour.
	staleID := fx.addSubmission(participantID, entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), timePtr("18:00"))
	// Still inside the grace window.
	graceID := fx.addSubmission(participantID, entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC), timePtr("18:00"))
	// Stale but already submitted: protected.
	protectedID := fx.addSubmission(participantID, entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), timePtr("18:00"))
	fx.submissionRepo.submissions[protectedID].Status = entities.SubmissionStatusSubmitted

	expired, err := fx.svc.ExpireStale(context.Background(), now)
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}

	if expired != 1 {
		t.Errorf("expected 1 expired, got %d", expired)
	}
	if fx.submissionRepo.submissions[staleID].Status != entities.SubmissionStatusExpired {
		t.Errorf("expected stale submission expired, got %s", fx.submissionRepo.submissions[staleID].Status)
	}
	if fx.submissionRepo.submissions[graceID].Status != entities.SubmissionStatusPending {
		t.Errorf("expected in-grace submission untouched, got %s", fx.submissionRepo.submissions[graceID].Status)
	}
	if fx.submissionRepo.submissions[protectedID].Status != entities.SubmissionStatusSubmitted {
		t.Errorf("expected submitted work untouched, got %s", fx.submissionRepo.submissions[protectedID].Status)
	}

	events := fx.publisher.byType(ports.EventTaskExpired)
	if len(events) != 1 {
		t.Fatalf("expected 1 expiration event, got %d", len(events))
	}
	if events[0].ParticipantID != participantID {
		t.Errorf("expected event for %s, got %s", participantID, events[0].ParticipantID)
	}
}

func TestExpireStale_Idempotent(t *testing.T) {
	fx := newAgendaFixture()
	now := time.Date(2025, time.March, 12, 19, 0, 0, 0, time.UTC)

	fx.addSubmission(uuid.New(), entities.AdminTaskKindExtraordinary,
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), nil)

	first, err := fx.svc.ExpireStale(context.Background(), now)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if first != 1 {
		t.Errorf("expected 1 expired on first sweep, got %d", first)
	}

	second, err := fx.svc.ExpireStale(context.Background(), now)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if second != 0 {
		t.Errorf("expected 0 expired on second sweep, got %d", second)
	}
}
