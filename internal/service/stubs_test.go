package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/domain/model"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

// Hand-written stubs for the core ports, shared by the service tests.

type stubJobs struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	nextID  int
	updates int
}

func newStubJobs(jobs ...*model.Job) *stubJobs {
	s := &stubJobs{jobs: make(map[string]*model.Job), nextID: 100}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubJobs) Create(_ context.Context, job *model.Job) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = "job-" + time.Now().Format("150405") + "-" + string(rune('a'+s.nextID%26))
		s.nextID++
	}
	clone := *job
	s.jobs[clone.ID] = &clone
	return &clone, nil
}

func (s *stubJobs) GetByID(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j, nil
	}
	return nil, apperrors.NotFoundf("job %s not found", id)
}

func (s *stubJobs) Update(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.updates++
	return nil
}

func (s *stubJobs) SetUserEmail(_ context.Context, params core.SetUserEmailParams) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[params.JobID]
	if !ok {
		return nil, apperrors.NotFoundf("job %s not found", params.JobID)
	}
	j.UserEmail = params.UserEmail
	j.Reference = params.Reference
	if params.Address != "" {
		j.Address = params.Address
	}
	if params.Instructions != "" {
		j.Instructions = params.Instructions
	}
	if params.Town != "" {
		j.Town = params.Town
	}
	return j, nil
}

func (s *stubJobs) ListPending(context.Context) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if j.Status == model.JobStatusPending {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *stubJobs) ExpirePending(_ context.Context, now time.Time, _ int) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if j.Status == model.JobStatusPending && !j.WillExpireAt.After(now) {
			j.Status = model.JobStatusTimedout
			out = append(out, j)
		}
	}
	return out, nil
}

type stubRelations struct {
	mu        sync.Mutex
	relations []*model.TranslatorJobRelation
	overlaps  map[string]bool
	cancelled int
	deleted   int
}

func newStubRelations(rels ...*model.TranslatorJobRelation) *stubRelations {
	return &stubRelations{relations: rels, overlaps: make(map[string]bool)}
}

func (s *stubRelations) GetActive(_ context.Context, jobID string) (*model.TranslatorJobRelation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		if r.JobID == jobID && r.Active() {
			return r, nil
		}
	}
	return nil, apperrors.NotFoundf("no active relation for job %s", jobID)
}

func (s *stubRelations) AssignIfUnassigned(_ context.Context, params core.AssignParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		if r.JobID == params.JobID && r.Active() {
			return false, nil
		}
	}
	s.relations = append(s.relations, &model.TranslatorJobRelation{
		JobID:        params.JobID,
		TranslatorID: params.TranslatorID,
		AssignedAt:   params.At,
	})
	return true, nil
}

func (s *stubRelations) Cancel(_ context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		if r.JobID == jobID && r.Active() {
			cancelAt := at
			r.CancelAt = &cancelAt
			s.cancelled++
			return nil
		}
	}
	return apperrors.NotFoundf("no active relation for job %s", jobID)
}

func (s *stubRelations) Complete(_ context.Context, params core.CompleteParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.relations {
		if r.JobID == params.JobID && r.Active() {
			at := params.At
			by := params.CompletedBy
			r.CompletedAt = &at
			r.CompletedBy = &by
			return nil
		}
	}
	return apperrors.NotFoundf("no active relation for job %s", params.JobID)
}

func (s *stubRelations) Delete(_ context.Context, jobID, translatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.relations[:0]
	for _, r := range s.relations {
		if r.JobID == jobID && r.TranslatorID == translatorID {
			s.deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.relations = kept
	return nil
}

func (s *stubRelations) HasOverlappingAssignment(_ context.Context, params core.OverlapParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps[params.TranslatorID], nil
}

func (s *stubRelations) active(jobID string) []*model.TranslatorJobRelation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.TranslatorJobRelation
	for _, r := range s.relations {
		if r.JobID == jobID && r.Active() {
			out = append(out, r)
		}
	}
	return out
}

type stubDirectory struct {
	profiles map[string]*model.TranslatorProfile
	users    map[string]*model.User
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		profiles: make(map[string]*model.TranslatorProfile),
		users:    make(map[string]*model.User),
	}
}

func (s *stubDirectory) GetProfile(_ context.Context, id string) (*model.TranslatorProfile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, apperrors.NotFoundf("translator %s not found", id)
}

func (s *stubDirectory) ListActive(context.Context) ([]*model.TranslatorProfile, error) {
	var out []*model.TranslatorProfile
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubDirectory) GetUser(_ context.Context, id string) (*model.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFoundf("user %s not found", id)
}

func (s *stubDirectory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.NotFoundf("user with email %s not found", email)
}

type sentMail struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

type stubMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *stubMailer) Send(_ context.Context, msg core.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{
		To:       msg.To,
		Subject:  msg.Subject,
		Template: msg.Template,
		Data:     msg.Data,
	})
	return nil
}

func (s *stubMailer) templates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent {
		out = append(out, m.Template)
	}
	return out
}

type notifierCall struct {
	Method string
	JobID  string
	Target string
}

type stubNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (s *stubNotifier) record(method, jobID, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, notifierCall{Method: method, JobID: jobID, Target: target})
}

func (s *stubNotifier) NotifyEligibleTranslators(_ context.Context, job *model.Job, exclude string) error {
	s.record("NotifyEligibleTranslators", job.ID, exclude)
	return nil
}

func (s *stubNotifier) SMSEligibleTranslators(_ context.Context, job *model.Job) (int, error) {
	s.record("SMSEligibleTranslators", job.ID, "")
	return 0, nil
}

func (s *stubNotifier) SessionStartReminder(_ context.Context, job *model.Job, target model.NotificationTarget) error {
	s.record("SessionStartReminder", job.ID, target.UserID)
	return nil
}

func (s *stubNotifier) AssignmentConfirmation(_ context.Context, job *model.Job, target model.NotificationTarget) error {
	s.record("AssignmentConfirmation", job.ID, target.UserID)
	return nil
}

func (s *stubNotifier) AcceptedConfirmation(_ context.Context, job *model.Job, target model.NotificationTarget) error {
	s.record("AcceptedConfirmation", job.ID, target.UserID)
	return nil
}

func (s *stubNotifier) CancellationToTranslator(_ context.Context, job *model.Job, target model.NotificationTarget) error {
	s.record("CancellationToTranslator", job.ID, target.UserID)
	return nil
}

func (s *stubNotifier) CancellationToCustomer(_ context.Context, job *model.Job, target model.NotificationTarget) error {
	s.record("CancellationToCustomer", job.ID, target.UserID)
	return nil
}

func (s *stubNotifier) ExpiredNotification(_ context.Context, job *model.Job, target model.NotificationTarget) error {
	s.record("ExpiredNotification", job.ID, target.UserID)
	return nil
}

func (s *stubNotifier) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		out = append(out, c.Method)
	}
	return out
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }
