package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/ports"
)

type adminTaskFixture struct {
	svc            *AdminTaskService
	adminTaskRepo  *fakeAdminTaskRepo
	submissionRepo *fakeSubmissionRepo
	enrollmentRepo *fakeEnrollmentRepo
}

func newAdminTaskFixture() *adminTaskFixture {
	adminTaskRepo := newFakeAdminTaskRepo()
	submissionRepo := newFakeSubmissionRepo(adminTaskRepo)
	enrollmentRepo := newFakeEnrollmentRepo()
	return &adminTaskFixture{
		svc:            NewAdminTaskService(adminTaskRepo, submissionRepo, enrollmentRepo, testLogger()),
		adminTaskRepo:  adminTaskRepo,
		submissionRepo: submissionRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

func (f *adminTaskFixture) enrollParticipants(n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		activeEnrollment(f.enrollmentRepo, id,
			time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC))
		ids = append(ids, id)
	}
	return ids
}

func (f *adminTaskFixture) submissionFor(t *testing.T, taskID, participantID uuid.UUID) *entities.TaskSubmission {
	t.Helper()
	for _, sub := range f.submissionRepo.submissions {
		if sub.AdminTaskID == taskID && sub.ParticipantID == participantID {
			return sub
		}
	}
	t.Fatalf("no submission for task %s participant %s", taskID, participantID)
	return nil
}

func eventRequest(scope string, targetID *uuid.UUID) ports.CreateAdminTaskRequest {
	timeOfDay := "19:00"
	return ports.CreateAdminTaskRequest{
		Kind:      "event",
		Title:     "Monthly retrospective",
		Scope:     scope,
		TargetID:  targetID,
		DueDate:   "2025-03-12",
		TimeOfDay: &timeOfDay,
		CreatedBy: uuid.New(),
	}
}

func TestCreateAdminTask_FansOutToAllActive(t *testing.T) {
	f := newAdminTaskFixture()
	participants := f.enrollParticipants(3)

	result, err := f.svc.Create(context.Background(), eventRequest("all", nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if result.FannedOut != 3 {
		t.Errorf("expected fan-out to 3 participants, got %d", result.FannedOut)
	}
	for _, pid := range participants {
		sub := f.submissionFor(t, result.Task.ID, pid)
		if sub.Status != entities.SubmissionStatusPending {
			t.Errorf("expected pending submission for %s, got %s", pid, sub.Status)
		}
	}
	if !result.Task.Active {
		t.Error("expected task created active")
	}
}

func TestCreateAdminTask_GroupScope(t *testing.T) {
	f := newAdminTaskFixture()
	f.enrollParticipants(2)

	groupID := uuid.New()
	members := []uuid.UUID{uuid.New(), uuid.New()}
	f.enrollmentRepo.members[groupID] = members

	result, err := f.svc.Create(context.Background(), eventRequest("group", &groupID))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if result.FannedOut != 2 {
		t.Errorf("expected fan-out to 2 group members, got %d", result.FannedOut)
	}
	f.submissionFor(t, result.Task.ID, members[0])
	f.submissionFor(t, result.Task.ID, members[1])
}

func TestCreateAdminTask_UserScope(t *testing.T) {
	f := newAdminTaskFixture()
	f.enrollParticipants(5)

	targetID := uuid.New()
	result, err := f.svc.Create(context.Background(), eventRequest("user", &targetID))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if result.FannedOut != 1 {
		t.Errorf("expected fan-out to the single target, got %d", result.FannedOut)
	}
	f.submissionFor(t, result.Task.ID, targetID)
}

func TestCreateAdminTask_RetryConvergesFanOut(t *testing.T) {
	f := newAdminTaskFixture()
	participants := f.enrollParticipants(2)

	first, err := f.svc.Create(context.Background(), eventRequest("all", nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A retried fan-out for the same task must not double-assign.
	submissions := make([]*entities.TaskSubmission, 0, len(participants))
	for _, pid := range participants {
		submissions = append(submissions, &entities.TaskSubmission{
			AdminTaskID:   first.Task.ID,
			ParticipantID: pid,
		})
	}
	inserted, err := f.submissionRepo.InsertBatch(context.Background(), submissions)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("expected retried fan-out to insert nothing, got %d", inserted)
	}
}

func TestCreateAdminTask_Validation(t *testing.T) {
	f := newAdminTaskFixture()

	badTime := "25:00"
	tests := []struct {
		name   string
		mutate func(*ports.CreateAdminTaskRequest)
	}{
		{"scoped without target", func(r *ports.CreateAdminTaskRequest) { r.Scope = "user"; r.TargetID = nil }},
		{"unknown kind", func(r *ports.CreateAdminTaskRequest) { r.Kind = "chore" }},
		{"unknown scope", func(r *ports.CreateAdminTaskRequest) { r.Scope = "cohort" }},
		{"bad due date", func(r *ports.CreateAdminTaskRequest) { r.DueDate = "12/03/2025" }},
		{"bad time of day", func(r *ports.CreateAdminTaskRequest) { r.TimeOfDay = &badTime }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := eventRequest("all", nil)
			tt.mutate(&req)
			if _, err := f.svc.Create(context.Background(), req); !errors.Is(err, entities.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestSubmitWork_RecordsEvidence(t *testing.T) {
	f := newAdminTaskFixture()
	participants := f.enrollParticipants(1)

	result, err := f.svc.Create(context.Background(), eventRequest("all", nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sub := f.submissionFor(t, result.Task.ID, participants[0])

	updated, err := f.svc.SubmitWork(context.Background(), participants[0], sub.ID, "https://evidence.example/photo.jpg")
	if err != nil {
		t.Fatalf("SubmitWork failed: %v", err)
	}
	if updated.Status != entities.SubmissionStatusSubmitted {
		t.Errorf("expected submitted, got %s", updated.Status)
	}
	if updated.EvidenceRef == nil || *updated.EvidenceRef != "https://evidence.example/photo.jpg" {
		t.Error("expected evidence reference stored")
	}
}

func TestSubmitWork_ForeignSubmissionHidden(t *testing.T) {
	f := newAdminTaskFixture()
	participants := f.enrollParticipants(2)

	result, err := f.svc.Create(context.Background(), eventRequest("all", nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sub := f.submissionFor(t, result.Task.ID, participants[0])

	if _, err := f.svc.SubmitWork(context.Background(), participants[1], sub.ID, "ref"); !errors.Is(err, entities.ErrSubmissionNotFound) {
		t.Errorf("expected ErrSubmissionNotFound for another participant's submission, got %v", err)
	}
}

func TestReviewSubmission_RejectionAllowsResubmit(t *testing.T) {
	f := newAdminTaskFixture()
	participants := f.enrollParticipants(1)

	result, err := f.svc.Create(context.Background(), eventRequest("all", nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sub := f.submissionFor(t, result.Task.ID, participants[0])

	if _, err := f.svc.SubmitWork(context.Background(), participants[0], sub.ID, "first try"); err != nil {
		t.Fatalf("SubmitWork failed: %v", err)
	}

	feedback := "blurry photo, retake it"
	rejected, err := f.svc.ReviewSubmission(context.Background(), sub.ID, false, &feedback)
	if err != nil {
		t.Fatalf("ReviewSubmission failed: %v", err)
	}
	if rejected.Status != entities.SubmissionStatusRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}
	if rejected.Feedback == nil || *rejected.Feedback != feedback {
		t.Error("expected feedback stored")
	}

	resubmitted, err := f.svc.SubmitWork(context.Background(), participants[0], sub.ID, "second try")
	if err != nil {
		t.Fatalf("resubmission after rejection failed: %v", err)
	}
	if resubmitted.Status != entities.SubmissionStatusSubmitted {
		t.Errorf("expected submitted after resubmission, got %s", resubmitted.Status)
	}

	approved, err := f.svc.ReviewSubmission(context.Background(), sub.ID, true, nil)
	if err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	if approved.Status != entities.SubmissionStatusApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
}

func TestReviewSubmission_PendingNotReviewable(t *testing.T) {
	f := newAdminTaskFixture()
	participants := f.enrollParticipants(1)

	result, err := f.svc.Create(context.Background(), eventRequest("all", nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sub := f.submissionFor(t, result.Task.ID, participants[0])

	if _, err := f.svc.ReviewSubmission(context.Background(), sub.ID, true, nil); !errors.Is(err, entities.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed reviewing unsubmitted work, got %v", err)
	}
}

func TestReopenSubmission_OnlyExpired(t *testing.T) {
	f := newAdminTaskFixture()
	participants := f.enrollParticipants(1)

	result, err := f.svc.Create(context.Background(), eventRequest("all", nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sub := f.submissionFor(t, result.Task.ID, participants[0])

	if _, err := f.svc.ReopenSubmission(context.Background(), sub.ID); !errors.Is(err, entities.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed reopening a pending submission, got %v", err)
	}

	if _, err := f.submissionRepo.ExpireBatch(context.Background(), []uuid.UUID{sub.ID}); err != nil {
		t.Fatalf("ExpireBatch failed: %v", err)
	}

	reopened, err := f.svc.ReopenSubmission(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("ReopenSubmission failed: %v", err)
	}
	if reopened.Status != entities.SubmissionStatusPending {
		t.Errorf("expected pending after reopen, got %s", reopened.Status)
	}
}
