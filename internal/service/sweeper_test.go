package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordtolk/booking-api/internal/domain/model"
	"github.com/nordtolk/booking-api/internal/service"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()

	expired := pendingJob("job-old")
	expired.WillExpireAt = testNow.Add(-time.Minute)
	fresh := pendingJob("job-fresh")
	assigned := pendingJob("job-assigned")
	assigned.Status = model.JobStatusAssigned
	assigned.WillExpireAt = testNow.Add(-time.Hour)

	jobs := newStubJobs(expired, fresh, assigned)
	dir := newStubDirectory()
	dir.users["cust-1"] = &model.User{ID: "cust-1", Name: "Kund", Email: "kund@x.se"}
	notifier := &stubNotifier{}

	svc := service.NewSweeperService(service.SweeperOptions{
		Jobs:      jobs,
		Directory: dir,
		Notifier:  notifier,
		Clock:     &fixedClock{now: testNow},
	})

	count, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := jobs.GetByID(ctx, "job-old")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusTimedout, got.Status)

	still, err := jobs.GetByID(ctx, "job-fresh")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, still.Status)

	untouched, err := jobs.GetByID(ctx, "job-assigned")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusAssigned, untouched.Status)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "ExpiredNotification", notifier.calls[0].Method)
	assert.Equal(t, "job-old", notifier.calls[0].JobID)
	assert.Equal(t, "cust-1", notifier.calls[0].Target)
}

func TestSweepNothingExpired(t *testing.T) {
	jobs := newStubJobs(pendingJob("job-1"))
	notifier := &stubNotifier{}

	svc := service.NewSweeperService(service.SweeperOptions{
		Jobs:      jobs,
		Directory: newStubDirectory(),
		Notifier:  notifier,
		Clock:     &fixedClock{now: testNow},
	})

	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, notifier.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := service.NewSweeperService(service.SweeperOptions{
		Jobs:     newStubJobs(),
		Clock:    &fixedClock{now: testNow},
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
