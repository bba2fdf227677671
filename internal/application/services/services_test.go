package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/infrastructure/config"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/ports"
)

// In-memory fakes backing the service tests. They mirror the store's
// conditional-update semantics so the services see the same transition
// guarantees the SQL layer provides.

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		OverdueCutoff:   48 * time.Hour,
		Lookahead:       72 * time.Hour,
		Lives:           3,
		CycleLengthDays: 100,
		OverduePageSize: 10,
		Timezone:        "UTC",
	}
}

type fakeActionRepo struct {
	actions map[uuid.UUID]*entities.Action
}

func newFakeActionRepo() *fakeActionRepo {
	return &fakeActionRepo{actions: make(map[uuid.UUID]*entities.Action)}
}

func (f *fakeActionRepo) Upsert(_ context.Context, action *entities.Action) error {
	cp := *action
	f.actions[action.ID] = &cp
	return nil
}

func (f *fakeActionRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.Action, error) {
	action, ok := f.actions[id]
	if !ok {
		return nil, entities.ErrActionNotFound
	}
	return action, nil
}

func (f *fakeActionRepo) ListByParticipant(_ context.Context, participantID uuid.UUID) ([]*entities.Action, error) {
	var out []*entities.Action
	for _, a := range f.actions {
		if a.ParticipantID == participantID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeInstanceRepo struct {
	instances map[uuid.UUID]*entities.TaskInstance
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{instances: make(map[uuid.UUID]*entities.TaskInstance)}
}

func (f *fakeInstanceRepo) InsertBatch(_ context.Context, instances []*entities.TaskInstance) (int, error) {
	inserted := 0
	for _, inst := range instances {
		if f.hasActionDate(inst.ActionID, inst.DueDate) {
			continue
		}
		cp := *inst
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		cp.Status = entities.InstanceStatusPending
		if cp.EvidenceStatus == "" {
			cp.EvidenceStatus = entities.EvidenceStatusNone
		}
		f.instances[cp.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (f *fakeInstanceRepo) hasActionDate(actionID uuid.UUID, due time.Time) bool {
	for _, inst := range f.instances {
		if inst.ActionID == actionID && inst.DueDate.Equal(due) {
			return true
		}
	}
	return false
}

func (f *fakeInstanceRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.TaskInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, entities.ErrInstanceNotFound
	}
	cp := *inst
	return &cp, nil
}

func (f *fakeInstanceRepo) ListByParticipant(_ context.Context, participantID uuid.UUID, filter ports.InstanceFilter) ([]*entities.TaskInstance, error) {
	var out []*entities.TaskInstance
	for _, inst := range f.instances {
		if inst.ParticipantID != participantID {
			continue
		}
		if filter.Status != nil && inst.Status != *filter.Status {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

func (f *fakeInstanceRepo) ListPendingBefore(_ context.Context, participantID uuid.UUID, before time.Time, limit int) ([]*entities.TaskInstance, error) {
	var out []*entities.TaskInstance
	for _, inst := range f.instances {
		if inst.ParticipantID == participantID && inst.Status == entities.InstanceStatusPending && inst.DueDate.Before(before) {
			out = append(out, inst)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeInstanceRepo) ListPendingInRange(_ context.Context, participantID uuid.UUID, from, to time.Time) ([]*entities.TaskInstance, error) {
	var out []*entities.TaskInstance
	for _, inst := range f.instances {
		if inst.ParticipantID == participantID && inst.Status == entities.InstanceStatusPending &&
			!inst.DueDate.Before(from) && inst.DueDate.Before(to) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeInstanceRepo) MarkCompleted(_ context.Context, id uuid.UUID) (*entities.TaskInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, entities.ErrInstanceNotFound
	}
	if inst.Status != entities.InstanceStatusPending {
		return nil, entities.ErrPreconditionFailed
	}
	if inst.EvidenceStatus != entities.EvidenceStatusApproved {
		return nil, entities.ErrEvidenceNotApproved
	}
	inst.Status = entities.InstanceStatusCompleted
	cp := *inst
	return &cp, nil
}

func (f *fakeInstanceRepo) Postpone(_ context.Context, id uuid.UUID, days int) (*entities.TaskInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, entities.ErrInstanceNotFound
	}
	if err := inst.Postpone(days); err != nil {
		return nil, err
	}
	cp := *inst
	return &cp, nil
}

func (f *fakeInstanceRepo) SetEvidence(_ context.Context, id uuid.UUID, status entities.EvidenceStatus, ref *string) (*entities.TaskInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, entities.ErrInstanceNotFound
	}
	inst.EvidenceStatus = status
	if ref != nil {
		inst.EvidenceRef = ref
	}
	cp := *inst
	return &cp, nil
}

type fakeAdminTaskRepo struct {
	tasks map[uuid.UUID]*entities.AdminTask
}

func newFakeAdminTaskRepo() *fakeAdminTaskRepo {
	return &fakeAdminTaskRepo{tasks: make(map[uuid.UUID]*entities.AdminTask)}
}

func (f *fakeAdminTaskRepo) Create(_ context.Context, task *entities.AdminTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	cp := *task
	f.tasks[task.ID] = &cp
	return nil
}

func (f *fakeAdminTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.AdminTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, entities.ErrAdminTaskNotFound
	}
	return task, nil
}

func (f *fakeAdminTaskRepo) ListActive(_ context.Context) ([]*entities.AdminTask, error) {
	var out []*entities.AdminTask
	for _, t := range f.tasks {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	submissions map[uuid.UUID]*entities.TaskSubmission
	tasks       *fakeAdminTaskRepo
}

func newFakeSubmissionRepo(tasks *fakeAdminTaskRepo) *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		submissions: make(map[uuid.UUID]*entities.TaskSubmission),
		tasks:       tasks,
	}
}

func (f *fakeSubmissionRepo) InsertBatch(_ context.Context, submissions []*entities.TaskSubmission) (int, error) {
	inserted := 0
	for _, sub := range submissions {
		if f.hasTaskParticipant(sub.AdminTaskID, sub.ParticipantID) {
			continue
		}
		cp := *sub
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if cp.Status == "" {
			cp.Status = entities.SubmissionStatusPending
		}
		f.submissions[cp.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (f *fakeSubmissionRepo) hasTaskParticipant(taskID, participantID uuid.UUID) bool {
	for _, sub := range f.submissions {
		if sub.AdminTaskID == taskID && sub.ParticipantID == participantID {
			return true
		}
	}
	return false
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.TaskSubmission, error) {
	sub, ok := f.submissions[id]
	if !ok {
		return nil, entities.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubmissionRepo) joined(sub *entities.TaskSubmission) (*ports.SubmissionWithTask, bool) {
	task, ok := f.tasks.tasks[sub.AdminTaskID]
	if !ok {
		return nil, false
	}
	return &ports.SubmissionWithTask{Submission: *sub, Task: *task}, true
}

func (f *fakeSubmissionRepo) ListOpenByParticipant(_ context.Context, participantID uuid.UUID) ([]*ports.SubmissionWithTask, error) {
	var out []*ports.SubmissionWithTask
	for _, sub := range f.submissions {
		if sub.ParticipantID != participantID {
			continue
		}
		if sub.Status != entities.SubmissionStatusPending && sub.Status != entities.SubmissionStatusRejected {
			continue
		}
		if j, ok := f.joined(sub); ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) ListPendingExtraordinary(_ context.Context) ([]*ports.SubmissionWithTask, error) {
	var out []*ports.SubmissionWithTask
	for _, sub := range f.submissions {
		if sub.Status != entities.SubmissionStatusPending {
			continue
		}
		j, ok := f.joined(sub)
		if !ok || j.Task.Kind != entities.AdminTaskKindExtraordinary {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeSubmissionRepo) MarkSubmitted(_ context.Context, id uuid.UUID, evidenceRef string, at time.Time) (*entities.TaskSubmission, error) {
	sub, ok := f.submissions[id]
	if !ok {
		return nil, entities.ErrSubmissionNotFound
	}
	if err := sub.Submit(evidenceRef, at); err != nil {
		return nil, err
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubmissionRepo) Review(_ context.Context, id uuid.UUID, approved bool, feedback *string) (*entities.TaskSubmission, error) {
	sub, ok := f.submissions[id]
	if !ok {
		return nil, entities.ErrSubmissionNotFound
	}
	if !sub.CanReview() {
		return nil, entities.ErrPreconditionFailed
	}
	if approved {
		sub.Status = entities.SubmissionStatusApproved
	} else {
		sub.Status = entities.SubmissionStatusRejected
	}
	if feedback != nil {
		sub.Feedback = feedback
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeSubmissionRepo) ExpireBatch(_ context.Context, ids []uuid.UUID) (int, error) {
	expired := 0
	for _, id := range ids {
		sub, ok := f.submissions[id]
		if !ok || !sub.CanExpire() {
			continue
		}
		sub.Status = entities.SubmissionStatusExpired
		expired++
	}
	return expired, nil
}

func (f *fakeSubmissionRepo) Reopen(_ context.Context, id uuid.UUID) (*entities.TaskSubmission, error) {
	sub, ok := f.submissions[id]
	if !ok {
		return nil, entities.ErrSubmissionNotFound
	}
	if !sub.CanReopen() {
		return nil, entities.ErrPreconditionFailed
	}
	sub.Status = entities.SubmissionStatusPending
	cp := *sub
	return &cp, nil
}

type fakeEnrollmentRepo struct {
	enrollments map[uuid.UUID]*entities.CycleEnrollment
	members     map[uuid.UUID][]uuid.UUID
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{
		enrollments: make(map[uuid.UUID]*entities.CycleEnrollment),
		members:     make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeEnrollmentRepo) Create(_ context.Context, enrollment *entities.CycleEnrollment) error {
	for _, e := range f.enrollments {
		if e.ParticipantID == enrollment.ParticipantID && e.IsActive() {
			return entities.ErrEnrollmentExists
		}
	}
	if enrollment.ID == uuid.Nil {
		enrollment.ID = uuid.New()
	}
	cp := *enrollment
	f.enrollments[enrollment.ID] = &cp
	return nil
}

func (f *fakeEnrollmentRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.CycleEnrollment, error) {
	e, ok := f.enrollments[id]
	if !ok {
		return nil, entities.ErrEnrollmentNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEnrollmentRepo) GetActive(_ context.Context, participantID uuid.UUID) (*entities.CycleEnrollment, error) {
	for _, e := range f.enrollments {
		if e.ParticipantID == participantID && e.IsActive() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, entities.ErrEnrollmentNotFound
}

func (f *fakeEnrollmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to entities.EnrollmentStatus) error {
	e, ok := f.enrollments[id]
	if !ok {
		return entities.ErrEnrollmentNotFound
	}
	if e.Status != from {
		return entities.ErrPreconditionFailed
	}
	e.Status = to
	return nil
}

func (f *fakeEnrollmentRepo) ListGroupMembers(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return f.members[groupID], nil
}

func (f *fakeEnrollmentRepo) ListActiveParticipants(_ context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, e := range f.enrollments {
		if e.IsActive() {
			out = append(out, e.ParticipantID)
		}
	}
	return out, nil
}

type fakeAttendanceRepo struct {
	records map[uuid.UUID]*entities.AttendanceRecord
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: make(map[uuid.UUID]*entities.AttendanceRecord)}
}

func (f *fakeAttendanceRepo) Get(_ context.Context, participantID uuid.UUID) (*entities.AttendanceRecord, error) {
	rec, ok := f.records[participantID]
	if !ok {
		return nil, entities.ErrAttendanceNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeAttendanceRepo) RecordMiss(_ context.Context, participantID uuid.UUID) (*entities.AttendanceRecord, error) {
	rec, ok := f.records[participantID]
	if !ok {
		return nil, entities.ErrAttendanceNotFound
	}
	rec.RecordMiss()
	cp := *rec
	return &cp, nil
}

func (f *fakeAttendanceRepo) Init(_ context.Context, participantID uuid.UUID, lives int) error {
	if _, ok := f.records[participantID]; ok {
		return nil
	}
	f.records[participantID] = &entities.AttendanceRecord{
		ID:             uuid.New(),
		ParticipantID:  participantID,
		LivesRemaining: lives,
	}
	return nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event ports.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) byType(eventType string) []ports.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ports.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func activeEnrollment(repo *fakeEnrollmentRepo, participantID uuid.UUID, start, end time.Time) *entities.CycleEnrollment {
	enrollment := &entities.CycleEnrollment{
		ID:            uuid.New(),
		ParticipantID: participantID,
		Type:          entities.CycleTypeSolo,
		StartDate:     start,
		EndDate:       end,
		Status:        entities.EnrollmentStatusActive,
	}
	repo.enrollments[enrollment.ID] = enrollment
	return enrollment
}
