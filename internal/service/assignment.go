package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/domain/match"
	"github.com/nordtolk/booking-api/internal/domain/model"
	"github.com/nordtolk/booking-api/internal/domain/timepolicy"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

// AssignmentOptions configures the assignment service.
type AssignmentOptions struct {
	Jobs      core.JobRepository
	Relations core.RelationRepository
	Directory core.TranslatorDirectory
	Languages core.LanguageDirectory
	Mailer    core.Mailer
	Notifier  Notifier
	Lifecycle *LifecycleService
	Clock     core.TimeProvider
	Logger    *slog.Logger
}

// AssignmentService manages the translator-booking relation: acceptance,
// reassignment, cancellation and session end. Races on acceptance are
// decided by the repository's conditional insert; everything else is
// serialized per booking.
type AssignmentService struct {
	jobs      core.JobRepository
	relations core.RelationRepository
	directory core.TranslatorDirectory
	languages core.LanguageDirectory
	mailer    core.Mailer
	notifier  Notifier
	lifecycle *LifecycleService
	clock     core.TimeProvider
	logger    *slog.Logger
	locks     *jobLocks
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(opts AssignmentOptions) *AssignmentService {
	if opts.Jobs == nil {
		panic("JobRepository is required")
	}
	if opts.Relations == nil {
		panic("RelationRepository is required")
	}
	if opts.Directory == nil {
		panic("TranslatorDirectory is required")
	}
	if opts.Clock == nil {
		panic("TimeProvider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "assignment")
	}

	return &AssignmentService{
		jobs:      opts.Jobs,
		relations: opts.Relations,
		directory: opts.Directory,
		languages: opts.Languages,
		mailer:    opts.Mailer,
		notifier:  opts.Notifier,
		lifecycle: opts.Lifecycle,
		clock:     opts.Clock,
		logger:    logger,
		locks:     newJobLocks(),
	}
}

// Accept lets a translator take a pending booking. It fails with a
// conflict when the translator already holds an overlapping assignment,
// with an invalid transition when the booking is not pending, and with a
// conflict when another translator wins the insert race. On success the
// booking is assigned and the customer is told by email and push.
func (s *AssignmentService) Accept(ctx context.Context, jobID, translatorID string) (*model.Job, error) {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	overlap, err := s.relations.HasOverlappingAssignment(ctx, core.OverlapParams{
		TranslatorID: translatorID,
		Due:          job.Due,
		Duration:     time.Duration(job.Duration) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("overlap check for translator %s: %w", translatorID, err)
	}
	if overlap {
		return nil, apperrors.Conflict(
			"Du har redan en bokning den tiden! Bokningen är inte accepterad.")
	}

	if job.Status != model.JobStatusPending {
		return nil, apperrors.InvalidTransition(s.alreadyTakenMessage(ctx, job))
	}

	now := s.clock.Now()
	ok, err := s.relations.AssignIfUnassigned(ctx, core.AssignParams{
		JobID:        jobID,
		TranslatorID: translatorID,
		At:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("assign translator %s to job %s: %w", translatorID, jobID, err)
	}
	if !ok {
		return nil, apperrors.Conflict(s.alreadyTakenMessage(ctx, job))
	}

	job.Status = model.JobStatusAssigned
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("update job %s: %w", jobID, err)
	}

	s.logger.InfoContext(ctx, "booking accepted",
		"job_id", jobID,
		"translator_id", translatorID,
	)

	if user, err := s.directory.GetUser(ctx, job.CustomerID); err == nil {
		s.emailCustomer(ctx, job, user,
			fmt.Sprintf("Bekräftelse - tolk har accepterat er bokning (bokning # %s)", job.ID),
			TemplateJobAccepted, nil)
		if s.notifier != nil {
			if err := s.notifier.AcceptedConfirmation(ctx, job, model.TargetFromUser(user)); err != nil {
				s.logger.ErrorContext(ctx, "acceptance push failed", "job_id", job.ID, "error", err)
			}
		}
	}

	return job, nil
}

// ReassignParams groups parameters for Reassign. Exactly one of
// TranslatorID and TranslatorEmail must be set.
type ReassignParams struct {
	JobID           string
	TranslatorID    string
	TranslatorEmail string
	ActorID         string
}

// Reassign moves a booking to another translator, identified by id or by
// email. History is preserved: the old relation is cancelled, never
// rewritten.
func (s *AssignmentService) Reassign(ctx context.Context, params ReassignParams) error {
	if s.lifecycle == nil {
		panic("LifecycleService is required for Reassign")
	}
	return s.lifecycle.Update(ctx, params.JobID, model.JobUpdate{
		TranslatorID:    params.TranslatorID,
		TranslatorEmail: params.TranslatorEmail,
	}, params.ActorID)
}

// CancelByCustomer withdraws a booking on the customer's behalf. The
// status records which side of the 24-hour line the withdrawal fell on;
// the assigned translator, if any, is told by push.
func (s *AssignmentService) CancelByCustomer(ctx context.Context, jobID, actorID string) error {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	job.WithdrawAt = &now
	if timepolicy.WithdrawStatusIsBefore24(now, job.Due) {
		job.Status = model.JobStatusWithdrawBefore24
	} else {
		job.Status = model.JobStatusWithdrawAfter24
	}

	rel, relErr := s.relations.GetActive(ctx, jobID)
	if relErr != nil && !apperrors.IsNotFound(relErr) {
		return relErr
	}
	if rel != nil {
		if err := s.relations.Cancel(ctx, jobID, now); err != nil {
			return fmt.Errorf("cancel relation for job %s: %w", jobID, err)
		}
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}

	s.logger.InfoContext(ctx, "booking withdrawn by customer",
		"job_id", jobID,
		"actor_id", actorID,
		"status", job.Status,
	)

	if rel != nil && s.notifier != nil {
		if profile, err := s.directory.GetProfile(ctx, rel.TranslatorID); err == nil {
			if err := s.notifier.CancellationToTranslator(ctx, job, model.TargetFromProfile(profile)); err != nil {
				s.logger.ErrorContext(ctx, "cancellation push failed", "job_id", jobID, "error", err)
			}
		}
	}

	return nil
}

// CancelByTranslator lets the assigned translator withdraw, which is only
// allowed more than 24 hours before the session. The booking goes back to
// pending with fresh expiry, the relation row is removed, the customer is
// told, and other eligible translators are re-notified.
func (s *AssignmentService) CancelByTranslator(ctx context.Context, jobID, translatorID string) error {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if timepolicy.WithinCancellationWindow(now, job.Due) {
		return apperrors.WindowClosed(
			"Du kan inte avboka en bokning som sker inom 24 timmar genom NordTolk. Vänligen ring på +46 73 75 86 865 och gör din avbokning over telefon. Tack!")
	}

	job.Status = model.JobStatusPending
	job.CreatedAt = now
	job.WillExpireAt = timepolicy.WillExpireAt(job.Due, now)
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if err := s.relations.Delete(ctx, jobID, translatorID); err != nil {
		return fmt.Errorf("delete relation for job %s: %w", jobID, err)
	}

	s.logger.InfoContext(ctx, "booking cancelled by translator",
		"job_id", jobID,
		"translator_id", translatorID,
	)

	if s.notifier != nil {
		if user, err := s.directory.GetUser(ctx, job.CustomerID); err == nil {
			if err := s.notifier.CancellationToCustomer(ctx, job, model.TargetFromUser(user)); err != nil {
				s.logger.ErrorContext(ctx, "cancellation push failed", "job_id", jobID, "error", err)
			}
		}
		if err := s.notifier.NotifyEligibleTranslators(ctx, job, translatorID); err != nil {
			s.logger.ErrorContext(ctx, "re-notification fan-out failed", "job_id", jobID, "error", err)
		}
	}

	return nil
}

// EndSession completes a started session. Calling it on a booking that is
// not started is a no-op success, not an error; sweeps and double-submits
// hit this path. The measured session time is the gap between due and now.
func (s *AssignmentService) EndSession(ctx context.Context, jobID, endedByUserID string) error {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusStarted {
		return nil
	}

	now := s.clock.Now()
	session := now.Sub(job.Due)
	job.Status = model.JobStatusCompleted
	job.EndAt = &now
	job.SessionTime = &session

	rel, relErr := s.relations.GetActive(ctx, jobID)
	if relErr != nil && !apperrors.IsNotFound(relErr) {
		return relErr
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if rel != nil {
		err := s.relations.Complete(ctx, core.CompleteParams{
			JobID:       jobID,
			CompletedBy: endedByUserID,
			At:          now,
		})
		if err != nil {
			return fmt.Errorf("complete relation for job %s: %w", jobID, err)
		}
	}

	s.logger.InfoContext(ctx, "session ended",
		"job_id", jobID,
		"ended_by", endedByUserID,
		"session_time", session,
	)

	display := formatSessionTime(session)
	subject := fmt.Sprintf("Information om avslutad tolkning för bokningsnummer # %s", job.ID)
	if user, err := s.directory.GetUser(ctx, job.CustomerID); err == nil {
		s.emailCustomer(ctx, job, user, subject, TemplateSessionEnded, map[string]any{
			"session_time": display,
			"for_text":     "faktura",
		})
	}
	if rel != nil {
		if profile, err := s.directory.GetProfile(ctx, rel.TranslatorID); err == nil {
			s.sendMail(ctx, job, core.EmailMessage{
				To:       profile.Email,
				ToName:   profile.Name,
				Subject:  subject,
				Template: TemplateSessionEnded,
				Data: withJob(job, map[string]any{
					"session_time": display,
					"for_text":     "lön",
				}),
			})
		}
	}

	return nil
}

// NotCarriedOut records a customer no-show: the booking ends as
// not_carried_out_customer and the relation is completed by the translator
// themselves so the session still counts toward their paid work.
func (s *AssignmentService) NotCarriedOut(ctx context.Context, jobID string) error {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	job.Status = model.JobStatusNotCarriedOutCustomer
	job.EndAt = &now

	rel, relErr := s.relations.GetActive(ctx, jobID)
	if relErr != nil && !apperrors.IsNotFound(relErr) {
		return relErr
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if rel != nil {
		err := s.relations.Complete(ctx, core.CompleteParams{
			JobID:       jobID,
			CompletedBy: rel.TranslatorID,
			At:          now,
		})
		if err != nil {
			return fmt.Errorf("complete relation for job %s: %w", jobID, err)
		}
	}

	s.logger.InfoContext(ctx, "booking marked not carried out", "job_id", jobID)
	return nil
}

// PotentialJobs lists the pending bookings a translator may see and accept.
func (s *AssignmentService) PotentialJobs(ctx context.Context, translatorID string) ([]*model.Job, error) {
	profile, err := s.directory.GetProfile(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("load translator %s: %w", translatorID, err)
	}

	pending, err := s.jobs.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending bookings: %w", err)
	}

	townsByCustomer := make(map[string][]string)
	for _, job := range pending {
		if _, ok := townsByCustomer[job.CustomerID]; ok {
			continue
		}
		user, err := s.directory.GetUser(ctx, job.CustomerID)
		if err != nil {
			s.logger.WarnContext(ctx, "customer town lookup failed, matching without towns",
				"job_id", job.ID,
				"customer_id", job.CustomerID,
				"error", err,
			)
			continue
		}
		townsByCustomer[job.CustomerID] = user.Towns
	}

	return match.PotentialJobs(profile, pending, townsByCustomer), nil
}

func (s *AssignmentService) alreadyTakenMessage(ctx context.Context, job *model.Job) string {
	language := job.FromLanguageID
	if s.languages != nil {
		if name, err := s.languages.LanguageName(ctx, job.FromLanguageID); err == nil {
			language = name
		}
	}
	return fmt.Sprintf(
		"Denna %stolkning %dmin %s har redan accepterats av annan tolk. Du har inte fått denna tolkning",
		language, job.Duration, job.Due.Format("2006-01-02 15:04:05"))
}

func (s *AssignmentService) emailCustomer(ctx context.Context, job *model.Job, user *model.User, subject, template string, data map[string]any) {
	s.sendMail(ctx, job, core.EmailMessage{
		To:       job.ContactEmail(user.Email),
		ToName:   user.Name,
		Subject:  subject,
		Template: template,
		Data:     withJob(job, data),
	})
}

func (s *AssignmentService) sendMail(ctx context.Context, job *model.Job, msg core.EmailMessage) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "email delivery failed",
			"job_id", job.ID,
			"recipient", msg.To,
			"template", msg.Template,
			"error", err,
		)
	}
}
