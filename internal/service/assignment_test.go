package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordtolk/booking-api/internal/domain/model"
	"github.com/nordtolk/booking-api/internal/domain/timepolicy"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
	"github.com/nordtolk/booking-api/internal/service"
)

type assignmentFixture struct {
	jobs      *stubJobs
	relations *stubRelations
	directory *stubDirectory
	mailer    *stubMailer
	notifier  *stubNotifier
	svc       *service.AssignmentService
}

func newAssignmentFixture(t *testing.T, jobs ...*model.Job) *assignmentFixture {
	t.Helper()

	dir := newStubDirectory()
	dir.users["cust-1"] = &model.User{ID: "cust-1", Name: "Kund", Email: "kund@x.se"}
	dir.users["tr-1"] = &model.User{ID: "tr-1", Name: "Tolk Ett", Email: "tolk1@x.se"}
	dir.profiles["tr-1"] = &model.TranslatorProfile{ID: "tr-1", Name: "Tolk Ett", Email: "tolk1@x.se"}
	dir.profiles["tr-2"] = &model.TranslatorProfile{ID: "tr-2", Name: "Tolk Två", Email: "tolk2@x.se"}

	f := &assignmentFixture{
		jobs:      newStubJobs(jobs...),
		relations: newStubRelations(),
		directory: dir,
		mailer:    &stubMailer{},
		notifier:  &stubNotifier{},
	}
	lifecycle := service.NewLifecycleService(service.LifecycleOptions{
		Jobs:      f.jobs,
		Relations: f.relations,
		Directory: f.directory,
		Mailer:    f.mailer,
		Notifier:  f.notifier,
		Clock:     &fixedClock{now: testNow},
	})
	f.svc = service.NewAssignmentService(service.AssignmentOptions{
		Jobs:      f.jobs,
		Relations: f.relations,
		Directory: f.directory,
		Mailer:    f.mailer,
		Notifier:  f.notifier,
		Lifecycle: lifecycle,
		Clock:     &fixedClock{now: testNow},
	})
	return f
}

func TestAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("pending booking is assigned and customer is confirmed", func(t *testing.T) {
		f := newAssignmentFixture(t, pendingJob("job-1"))

		job, err := f.svc.Accept(ctx, "job-1", "tr-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusAssigned, job.Status)

		rels := f.relations.active("job-1")
		require.Len(t, rels, 1)
		assert.Equal(t, "tr-1", rels[0].TranslatorID)

		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, "kund@x.se", f.mailer.sent[0].To)
		assert.Equal(t, service.TemplateJobAccepted, f.mailer.sent[0].Template)
		assert.Equal(t, "Bekräftelse - tolk har accepterat er bokning (bokning # job-1)", f.mailer.sent[0].Subject)

		require.Len(t, f.notifier.calls, 1)
		assert.Equal(t, "AcceptedConfirmation", f.notifier.calls[0].Method)
		assert.Equal(t, "cust-1", f.notifier.calls[0].Target)
	})

	t.Run("overlapping assignment is rejected before anything changes", func(t *testing.T) {
		f := newAssignmentFixture(t, pendingJob("job-1"))
		f.relations.overlaps["tr-1"] = true

		_, err := f.svc.Accept(ctx, "job-1", "tr-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.Contains(t, err.Error(), "Du har redan en bokning den tiden")

		job, err := f.jobs.GetByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Empty(t, f.relations.active("job-1"))
	})

	t.Run("non-pending booking cannot be accepted", func(t *testing.T) {
		job := pendingJob("job-1")
		job.Status = model.JobStatusAssigned
		f := newAssignmentFixture(t, job)

		_, err := f.svc.Accept(ctx, "job-1", "tr-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err))
		assert.Contains(t, err.Error(), "har redan accepterats av annan tolk")
	})

	t.Run("losing the insert race yields a conflict", func(t *testing.T) {
		f := newAssignmentFixture(t, pendingJob("job-1"))
		f.relations.relations = append(f.relations.relations, &model.TranslatorJobRelation{
			JobID:        "job-1",
			TranslatorID: "tr-2",
			AssignedAt:   testNow.Add(-time.Minute),
		})

		_, err := f.svc.Accept(ctx, "job-1", "tr-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.Contains(t, err.Error(), "har redan accepterats av annan tolk")
	})
}

func TestReassign(t *testing.T) {
	ctx := context.Background()
	f := newAssignmentFixture(t, pendingJob("job-1"))

	err := f.svc.Reassign(ctx, service.ReassignParams{
		JobID:        "job-1",
		TranslatorID: "tr-1",
		ActorID:      "admin-1",
	})
	require.NoError(t, err)

	rels := f.relations.active("job-1")
	require.Len(t, rels, 1)
	assert.Equal(t, "tr-1", rels[0].TranslatorID)
}

func TestCancelByCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("more than 24h out withdraws before24 and tells the translator", func(t *testing.T) {
		f := newAssignmentFixture(t, pendingJob("job-1"))
		f.relations.relations = append(f.relations.relations, &model.TranslatorJobRelation{
			JobID:        "job-1",
			TranslatorID: "tr-1",
			AssignedAt:   testNow.Add(-time.Hour),
		})

		require.NoError(t, f.svc.CancelByCustomer(ctx, "job-1", "cust-1"))

		job, err := f.jobs.GetByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusWithdrawBefore24, job.Status)
		require.NotNil(t, job.WithdrawAt)
		assert.Equal(t, testNow, *job.WithdrawAt)
		assert.Equal(t, 1, f.relations.cancelled)

		require.Len(t, f.notifier.calls, 1)
		assert.Equal(t, "CancellationToTranslator", f.notifier.calls[0].Method)
		assert.Equal(t, "tr-1", f.notifier.calls[0].Target)
	})

	t.Run("within 24h withdraws after24", func(t *testing.T) {
		job := pendingJob("job-1")
		job.Due = testNow.Add(2 * time.Hour)
		f := newAssignmentFixture(t, job)

		require.NoError(t, f.svc.CancelByCustomer(ctx, "job-1", "cust-1"))

		got, err := f.jobs.GetByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusWithdrawAfter24, got.Status)
	})

	t.Run("no assigned translator means no push", func(t *testing.T) {
		f := newAssignmentFixture(t, pendingJob("job-1"))

		require.NoError(t, f.svc.CancelByCustomer(ctx, "job-1", "cust-1"))
		assert.Empty(t, f.notifier.calls)
	})
}

func TestCancelByTranslator(t *testing.T) {
	ctx := context.Background()

	t.Run("within 24h is refused and nothing changes", func(t *testing.T) {
		job := pendingJob("job-1")
		job.Status = model.JobStatusAssigned
		job.Due = testNow.Add(2 * time.Hour)
		f := newAssignmentFixture(t, job)
		f.relations.relations = append(f.relations.relations, &model.TranslatorJobRelation{
			JobID:        "job-1",
			TranslatorID: "tr-1",
			AssignedAt:   testNow.Add(-time.Hour),
		})

		err := f.svc.CancelByTranslator(ctx, "job-1", "tr-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsWindowClosed(err))
		assert.Contains(t, err.Error(), "inom 24 timmar")

		got, getErr := f.jobs.GetByID(ctx, "job-1")
		require.NoError(t, getErr)
		assert.Equal(t, model.JobStatusAssigned, got.Status)
		assert.Len(t, f.relations.active("job-1"), 1)
		assert.Empty(t, f.notifier.calls)
	})

	t.Run("more than 24h out reopens and re-notifies without the canceller", func(t *testing.T) {
		job := pendingJob("job-1")
		job.Status = model.JobStatusAssigned
		f := newAssignmentFixture(t, job)
		f.relations.relations = append(f.relations.relations, &model.TranslatorJobRelation{
			JobID:        "job-1",
			TranslatorID: "tr-1",
			AssignedAt:   testNow.Add(-time.Hour),
		})

		require.NoError(t, f.svc.CancelByTranslator(ctx, "job-1", "tr-1"))

		got, err := f.jobs.GetByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, testNow, got.CreatedAt)
		assert.Equal(t, timepolicy.WillExpireAt(got.Due, testNow), got.WillExpireAt)
		assert.Equal(t, 1, f.relations.deleted)
		assert.Empty(t, f.relations.active("job-1"))

		require.Len(t, f.notifier.calls, 2)
		assert.Equal(t, "CancellationToCustomer", f.notifier.calls[0].Method)
		assert.Equal(t, "cust-1", f.notifier.calls[0].Target)
		assert.Equal(t, "NotifyEligibleTranslators", f.notifier.calls[1].Method)
		assert.Equal(t, "tr-1", f.notifier.calls[1].Target)
	})
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()

	t.Run("not started is a no-op success", func(t *testing.T) {
		f := newAssignmentFixture(t, pendingJob("job-1"))

		require.NoError(t, f.svc.EndSession(ctx, "job-1", "cust-1"))

		got, err := f.jobs.GetByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Empty(t, f.mailer.sent)
	})

	t.Run("started session completes with measured time and both emails", func(t *testing.T) {
		job := pendingJob("job-1")
		job.Status = model.JobStatusStarted
		job.Due = testNow.Add(-90 * time.Minute)
		f := newAssignmentFixture(t, job)
		f.relations.relations = append(f.relations.relations, &model.TranslatorJobRelation{
			JobID:        "job-1",
			TranslatorID: "tr-1",
			AssignedAt:   testNow.Add(-2 * time.Hour),
		})

		require.NoError(t, f.svc.EndSession(ctx, "job-1", "cust-1"))

		got, err := f.jobs.GetByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
		require.NotNil(t, got.EndAt)
		assert.Equal(t, testNow, *got.EndAt)
		require.NotNil(t, got.SessionTime)
		assert.Equal(t, 90*time.Minute, *got.SessionTime)

		rels := f.relations.relations
		require.Len(t, rels, 1)
		require.NotNil(t, rels[0].CompletedBy)
		assert.Equal(t, "cust-1", *rels[0].CompletedBy)

		require.Len(t, f.mailer.sent, 2)
		assert.Equal(t, "kund@x.se", f.mailer.sent[0].To)
		assert.Equal(t, "faktura", f.mailer.sent[0].Data["for_text"])
		assert.Equal(t, "1 tim 30 min", f.mailer.sent[0].Data["session_time"])
		assert.Equal(t, "tolk1@x.se", f.mailer.sent[1].To)
		assert.Equal(t, "lön", f.mailer.sent[1].Data["for_text"])
		assert.Equal(t, "Information om avslutad tolkning för bokningsnummer # job-1", f.mailer.sent[1].Subject)
	})
}

func TestNotCarriedOut(t *testing.T) {
	ctx := context.Background()

	job := pendingJob("job-1")
	job.Status = model.JobStatusStarted
	f := newAssignmentFixture(t, job)
	f.relations.relations = append(f.relations.relations, &model.TranslatorJobRelation{
		JobID:        "job-1",
		TranslatorID: "tr-1",
		AssignedAt:   testNow.Add(-time.Hour),
	})

	require.NoError(t, f.svc.NotCarriedOut(ctx, "job-1"))

	got, err := f.jobs.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusNotCarriedOutCustomer, got.Status)
	require.NotNil(t, got.EndAt)
	assert.Equal(t, testNow, *got.EndAt)

	rels := f.relations.relations
	require.Len(t, rels, 1)
	require.NotNil(t, rels[0].CompletedBy)
	assert.Equal(t, "tr-1", *rels[0].CompletedBy)
}

func TestPotentialJobs(t *testing.T) {
	ctx := context.Background()

	physical := pendingJob("job-2")
	physical.CustomerPhysicalType = true
	assigned := pendingJob("job-3")
	assigned.Status = model.JobStatusAssigned

	f := newAssignmentFixture(t, pendingJob("job-1"), physical, assigned)
	f.directory.users["cust-1"].Towns = []string{"Uppsala"}
	f.directory.profiles["tr-1"] = &model.TranslatorProfile{
		ID:        "tr-1",
		Name:      "Tolk Ett",
		Email:     "tolk1@x.se",
		Type:      model.TranslatorTypeProfessional,
		Levels:    []model.TranslatorLevel{model.LevelCertified},
		Languages: []string{"lang-sv"},
		Towns:     []string{"Stockholm"},
	}

	jobs, err := f.svc.PotentialJobs(ctx, "tr-1")
	require.NoError(t, err)

	// The phone booking matches; the on-site one is in the wrong town and
	// the assigned one is no longer open.
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)

	t.Run("unknown translator", func(t *testing.T) {
		_, err := f.svc.PotentialJobs(ctx, "tr-404")
		require.Error(t, err)
	})
}
