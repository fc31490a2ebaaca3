package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/domain/model"
)

// Sweeper defaults, overridable via SweeperOptions.
const (
	defaultSweepInterval  = time.Minute
	defaultSweepBatchSize = 100
)

// SweeperOptions groups dependencies for SweeperService.
type SweeperOptions struct {
	Jobs      core.JobRepository
	Directory core.TranslatorDirectory
	Notifier  Notifier
	Clock     core.TimeProvider
	Logger    *slog.Logger
	Interval  time.Duration
	BatchSize int
}

// SweeperService times out pending bookings whose expiry has passed. It is
// an ordinary caller of the lifecycle rules, not part of them: the
// repository applies the pending-to-timedout transition atomically and the
// sweeper tells each affected customer by push.
type SweeperService struct {
	jobs      core.JobRepository
	directory core.TranslatorDirectory
	notifier  Notifier
	clock     core.TimeProvider
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewSweeperService constructs a SweeperService.
func NewSweeperService(opts SweeperOptions) *SweeperService {
	if opts.Jobs == nil {
		panic("JobRepository is required")
	}
	if opts.Clock == nil {
		panic("TimeProvider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "sweeper")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	return &SweeperService{
		jobs:      opts.Jobs,
		directory: opts.Directory,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting sweeper", "interval", s.interval)

	// Jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil && !isContextCancellation(err) {
		s.logger.ErrorContext(ctx, "initial sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !isContextCancellation(err) {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one expiry pass, batching until no pending bookings remain
// past their expiry. Returns the number of bookings timed out.
func (s *SweeperService) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0
	for {
		expired, err := s.jobs.ExpirePending(ctx, now, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(expired) == 0 {
			break
		}
		total += len(expired)
		for _, job := range expired {
			s.notifyExpired(ctx, job)
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "timed out expired bookings", "count", total)
	}
	return total, nil
}

func (s *SweeperService) notifyExpired(ctx context.Context, job *model.Job) {
	if s.notifier == nil || s.directory == nil {
		return
	}
	user, err := s.directory.GetUser(ctx, job.CustomerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "customer lookup failed", "job_id", job.ID, "error", err)
		return
	}
	if err := s.notifier.ExpiredNotification(ctx, job, model.TargetFromUser(user)); err != nil {
		s.logger.ErrorContext(ctx, "expiry push failed", "job_id", job.ID, "error", err)
	}
}

func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
