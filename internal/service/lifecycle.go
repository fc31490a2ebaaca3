package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/domain/model"
	"github.com/nordtolk/booking-api/internal/domain/timepolicy"
	apperrors "github.com/nordtolk/booking-api/internal/errors"
)

// LifecycleOptions configures the lifecycle service.
type LifecycleOptions struct {
	Jobs      core.JobRepository
	Relations core.RelationRepository
	Directory core.TranslatorDirectory
	Languages core.LanguageDirectory
	Mailer    core.Mailer
	Notifier  Notifier
	Clock     core.TimeProvider
	Logger    *slog.Logger
}

// LifecycleService validates and applies booking status transitions. An
// admin edit may change translator, due date, language and status in one
// call; all guards run before anything is persisted, and notifications go
// out only after the booking is saved.
type LifecycleService struct {
	jobs      core.JobRepository
	relations core.RelationRepository
	directory core.TranslatorDirectory
	languages core.LanguageDirectory
	mailer    core.Mailer
	notifier  Notifier
	clock     core.TimeProvider
	logger    *slog.Logger
	locks     *jobLocks
}

// NewLifecycleService constructs a LifecycleService.
func NewLifecycleService(opts LifecycleOptions) *LifecycleService {
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
		logger = slog.Default().With("component", "lifecycle")
	}

	return &LifecycleService{
		jobs:      opts.Jobs,
		relations: opts.Relations,
		directory: opts.Directory,
		languages: opts.Languages,
		mailer:    opts.Mailer,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		logger:    logger,
		locks:     newJobLocks(),
	}
}

// translatorChange is a planned reassignment: cancel the active relation
// (when one exists) and create a new one. Relations are append-only; the
// old row keeps its translator id.
type translatorChange struct {
	oldTranslatorID string
	newTranslatorID string
}

// statusChange is the planned outcome of a status edit: whether the active
// relation must be cancelled alongside, and the notifications to send
// after the booking is persisted.
type statusChange struct {
	changed          bool
	cancelRelation   bool
	completeRelation bool
	post             []func(context.Context)
}

// Update applies an admin edit to a booking: translator change, due-date
// change, language change and status change, in that order. Guards run
// before any mutation; the edit is rejected as a whole when one fails.
// Change notifications fire only while the (new) due date is still in the
// future.
func (s *LifecycleService) Update(ctx context.Context, jobID string, upd model.JobUpdate, actorID string) error {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	current, err := s.activeRelation(ctx, jobID)
	if err != nil {
		return err
	}

	change, err := s.planTranslatorChange(ctx, job, current, upd)
	if err != nil {
		return err
	}

	dueChanged := false
	var oldDue time.Time
	if !upd.Due.IsZero() && !upd.Due.Equal(job.Due) {
		oldDue = job.Due
		job.Due = upd.Due
		dueChanged = true
	}

	langChanged := false
	oldLang := ""
	if upd.FromLanguageID != "" && upd.FromLanguageID != job.FromLanguageID {
		oldLang = job.FromLanguageID
		job.FromLanguageID = upd.FromLanguageID
		langChanged = true
	}

	status, err := s.planStatusChange(job, upd, change, current)
	if err != nil {
		return err
	}

	if upd.AdminComments != "" {
		job.AdminComments = upd.AdminComments
	}
	if upd.Reference != "" {
		job.Reference = upd.Reference
	}

	now := s.clock.Now()
	if change != nil {
		if err := s.applyTranslatorChange(ctx, job, change, now); err != nil {
			return err
		}
	}
	if status.cancelRelation && change == nil && current != nil {
		if err := s.relations.Cancel(ctx, job.ID, now); err != nil {
			return fmt.Errorf("cancel relation for job %s: %w", job.ID, err)
		}
	}
	if status.completeRelation && current != nil {
		err := s.relations.Complete(ctx, core.CompleteParams{
			JobID:       job.ID,
			CompletedBy: current.TranslatorID,
			At:          now,
		})
		if err != nil {
			return fmt.Errorf("complete relation for job %s: %w", job.ID, err)
		}
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}

	s.logger.InfoContext(ctx, "booking updated",
		"job_id", job.ID,
		"actor_id", actorID,
		"status", job.Status,
		"translator_changed", change != nil,
		"due_changed", dueChanged,
		"language_changed", langChanged,
	)

	if job.Due.After(now) {
		if dueChanged {
			s.sendChangedDate(ctx, job, oldDue)
		}
		if change != nil {
			s.sendChangedTranslator(ctx, job, change)
		}
		if langChanged {
			s.sendChangedLang(ctx, job, oldLang)
		}
	}
	for _, fn := range status.post {
		fn(ctx)
	}

	return nil
}

// Reopen restores a lapsed or cancelled booking to pending. A timedout
// booking is reopened as a brand-new record carrying an audit comment that
// references the original; any other status is reset in place. Either way
// the old booking's active relation is cancelled and eligible translators
// are re-notified. Returns the id of the pending booking.
func (s *LifecycleService) Reopen(ctx context.Context, jobID, actorID string) (string, error) {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	reopened := job
	if job.Status == model.JobStatusTimedout {
		clone := *job
		clone.ID = ""
		clone.Status = model.JobStatusPending
		clone.CreatedAt = now
		clone.WillExpireAt = timepolicy.WillExpireAt(job.Due, now)
		clone.EmailSentCount = 0
		clone.ReminderEmailCount = 0
		clone.AdminComments = "This booking is a reopening of booking #" + jobID
		created, err := s.jobs.Create(ctx, &clone)
		if err != nil {
			return "", fmt.Errorf("create reopened job from %s: %w", jobID, err)
		}
		reopened = created
	} else {
		job.Status = model.JobStatusPending
		job.CreatedAt = now
		job.WillExpireAt = timepolicy.WillExpireAt(job.Due, now)
		if err := s.jobs.Update(ctx, job); err != nil {
			return "", fmt.Errorf("reopen job %s: %w", jobID, err)
		}
	}

	if err := s.relations.Cancel(ctx, jobID, now); err != nil && !apperrors.IsNotFound(err) {
		return "", fmt.Errorf("cancel relation for job %s: %w", jobID, err)
	}

	s.logger.InfoContext(ctx, "booking reopened",
		"job_id", jobID,
		"reopened_job_id", reopened.ID,
		"actor_id", actorID,
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyEligibleTranslators(ctx, reopened, ""); err != nil {
			s.logger.ErrorContext(ctx, "reopen fan-out failed", "job_id", reopened.ID, "error", err)
		}
	}

	return reopened.ID, nil
}

func (s *LifecycleService) activeRelation(ctx context.Context, jobID string) (*model.TranslatorJobRelation, error) {
	rel, err := s.relations.GetActive(ctx, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return rel, nil
}

// planTranslatorChange resolves the requested translator and decides
// whether the edit reassigns the booking. A no-op when neither id nor
// email is supplied, or when the id matches the active relation.
func (s *LifecycleService) planTranslatorChange(ctx context.Context, job *model.Job, current *model.TranslatorJobRelation, upd model.JobUpdate) (*translatorChange, error) {
	newID := upd.TranslatorID
	if upd.TranslatorEmail != "" {
		user, err := s.directory.GetUserByEmail(ctx, upd.TranslatorEmail)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.NotFoundf("ingen tolk hittades med e-post %s", upd.TranslatorEmail)
			}
			return nil, err
		}
		newID = user.ID
	}
	if newID == "" {
		return nil, nil
	}

	if current != nil {
		if current.TranslatorID == newID {
			return nil, nil
		}
		return &translatorChange{oldTranslatorID: current.TranslatorID, newTranslatorID: newID}, nil
	}
	return &translatorChange{newTranslatorID: newID}, nil
}

func (s *LifecycleService) applyTranslatorChange(ctx context.Context, job *model.Job, change *translatorChange, now time.Time) error {
	if change.oldTranslatorID != "" {
		if err := s.relations.Cancel(ctx, job.ID, now); err != nil {
			return fmt.Errorf("cancel relation for job %s: %w", job.ID, err)
		}
	}
	ok, err := s.relations.AssignIfUnassigned(ctx, core.AssignParams{
		JobID:        job.ID,
		TranslatorID: change.newTranslatorID,
		At:           now,
	})
	if err != nil {
		return fmt.Errorf("assign translator %s to job %s: %w", change.newTranslatorID, job.ID, err)
	}
	if !ok {
		return apperrors.Conflict("bokningen har redan en aktiv tolk")
	}

	s.logger.InfoContext(ctx, "translator changed",
		"job_id", job.ID,
		"old_translator_id", change.oldTranslatorID,
		"new_translator_id", change.newTranslatorID,
	)
	return nil
}

// planStatusChange runs the transition table keyed by the booking's current
// status. Guard failures return typed errors and leave everything
// unpersisted.
func (s *LifecycleService) planStatusChange(job *model.Job, upd model.JobUpdate, change *translatorChange, current *model.TranslatorJobRelation) (statusChange, error) {
	target := upd.Status
	if target == "" || target == job.Status {
		return statusChange{}, nil
	}
	if !target.Valid() {
		return statusChange{}, apperrors.Validationf("okänd status: %s", target)
	}

	switch job.Status {
	case model.JobStatusPending:
		return s.planFromPending(job, upd, change)
	case model.JobStatusAssigned:
		return s.planFromAssigned(job, upd, current)
	case model.JobStatusStarted:
		return s.planFromStarted(job, upd, current)
	case model.JobStatusTimedout:
		return s.planFromTimedout(job, upd, change)
	case model.JobStatusWithdrawAfter24:
		return s.planFromWithdrawAfter24(job, upd)
	default:
		return statusChange{}, apperrors.InvalidTransitionf(
			"bokningen kan inte ändras från status %s", job.Status)
	}
}

func (s *LifecycleService) planFromPending(job *model.Job, upd model.JobUpdate, change *translatorChange) (statusChange, error) {
	switch upd.Status {
	case model.JobStatusAssigned:
		if change == nil {
			return statusChange{}, apperrors.InvalidTransition(
				"en tolk måste tilldelas för att markera bokningen som accepterad")
		}
		job.Status = model.JobStatusAssigned
		assignedTo := change.newTranslatorID
		return statusChange{
			changed: true,
			post: []func(context.Context){
				func(ctx context.Context) {
					s.emailCustomer(ctx, job,
						fmt.Sprintf("Bekräftelse - tolk har accepterat er bokning (bokning # %s)", job.ID),
						TemplateJobAccepted, nil)
					s.remindBothParties(ctx, job, assignedTo)
				},
			},
		}, nil
	case model.JobStatusTimedout:
		if upd.AdminComments == "" {
			return statusChange{}, apperrors.ValidationField("admin_comments",
				"admin_comments krävs för att markera bokningen som utgången")
		}
		job.Status = model.JobStatusTimedout
		return statusChange{changed: true, post: s.cancellationEmail(job)}, nil
	case model.JobStatusWithdrawBefore24, model.JobStatusWithdrawAfter24:
		job.Status = upd.Status
		return statusChange{changed: true, post: s.cancellationEmail(job)}, nil
	default:
		return statusChange{}, apperrors.InvalidTransitionf(
			"bokningen kan inte gå från pending till %s", upd.Status)
	}
}

func (s *LifecycleService) planFromAssigned(job *model.Job, upd model.JobUpdate, current *model.TranslatorJobRelation) (statusChange, error) {
	switch upd.Status {
	case model.JobStatusTimedout:
		if upd.AdminComments == "" {
			return statusChange{}, apperrors.ValidationField("admin_comments",
				"admin_comments krävs för att markera bokningen som utgången")
		}
		job.Status = model.JobStatusTimedout
		return statusChange{changed: true}, nil
	case model.JobStatusWithdrawBefore24, model.JobStatusWithdrawAfter24:
		job.Status = upd.Status
		translatorID := ""
		if current != nil {
			translatorID = current.TranslatorID
		}
		return statusChange{
			changed:        true,
			cancelRelation: true,
			post: []func(context.Context){
				func(ctx context.Context) {
					s.emailCustomer(ctx, job,
						fmt.Sprintf("Information om avslutad tolkning för bokningsnummer #%s", job.ID),
						TemplateStatusChangedCustomer, nil)
					if translatorID != "" {
						s.emailTranslator(ctx, job, translatorID,
							fmt.Sprintf("Information om avslutad tolkning för bokningsnummer # %s", job.ID),
							TemplateJobCancelTranslator, nil)
					}
				},
			},
		}, nil
	default:
		return statusChange{}, apperrors.InvalidTransitionf(
			"bokningen kan inte gå från assigned till %s", upd.Status)
	}
}

func (s *LifecycleService) planFromStarted(job *model.Job, upd model.JobUpdate, current *model.TranslatorJobRelation) (statusChange, error) {
	if upd.Status != model.JobStatusCompleted {
		return statusChange{}, apperrors.InvalidTransitionf(
			"bokningen kan inte gå från started till %s", upd.Status)
	}
	if upd.AdminComments == "" {
		return statusChange{}, apperrors.ValidationField("admin_comments",
			"admin_comments krävs för att avsluta tolkningen")
	}
	if upd.SessionTime == "" {
		return statusChange{}, apperrors.ValidationField("session_time",
			"session_time krävs för att avsluta tolkningen")
	}
	sessionTime, err := parseSessionTime(upd.SessionTime)
	if err != nil {
		return statusChange{}, apperrors.ValidationField("session_time", err.Error())
	}

	now := s.clock.Now()
	job.Status = model.JobStatusCompleted
	job.EndAt = &now
	job.SessionTime = &sessionTime

	display := formatSessionTime(sessionTime)
	translatorID := ""
	if current != nil {
		translatorID = current.TranslatorID
	}
	return statusChange{
		changed:          true,
		completeRelation: true,
		post: []func(context.Context){
			func(ctx context.Context) {
				subject := fmt.Sprintf("Information om avslutad tolkning för bokningsnummer #%s", job.ID)
				s.emailCustomer(ctx, job, subject, TemplateSessionEnded, map[string]any{
					"session_time": display,
					"for_text":     "faktura",
				})
				if translatorID != "" {
					s.emailTranslator(ctx, job, translatorID, subject, TemplateSessionEnded, map[string]any{
						"session_time": display,
						"for_text":     "lön",
					})
				}
			},
		},
	}, nil
}

func (s *LifecycleService) planFromTimedout(job *model.Job, upd model.JobUpdate, change *translatorChange) (statusChange, error) {
	switch upd.Status {
	case model.JobStatusPending:
		now := s.clock.Now()
		job.Status = model.JobStatusPending
		job.CreatedAt = now
		job.EmailSentCount = 0
		job.ReminderEmailCount = 0
		return statusChange{
			changed: true,
			post: []func(context.Context){
				func(ctx context.Context) {
					language := s.languageName(ctx, job.FromLanguageID)
					s.emailCustomer(ctx, job,
						fmt.Sprintf("Vi har nu återöppnat er bokning av %stolk för bokning #%s", language, job.ID),
						TemplateJobReopened, nil)
					if s.notifier != nil {
						if err := s.notifier.NotifyEligibleTranslators(ctx, job, ""); err != nil {
							s.logger.ErrorContext(ctx, "reopen fan-out failed", "job_id", job.ID, "error", err)
						}
					}
				},
			},
		}, nil
	case model.JobStatusAssigned:
		if change == nil {
			return statusChange{}, apperrors.InvalidTransition(
				"en tolk måste tilldelas för att markera bokningen som accepterad")
		}
		job.Status = model.JobStatusAssigned
		return statusChange{
			changed: true,
			post: []func(context.Context){
				func(ctx context.Context) {
					s.emailCustomer(ctx, job,
						fmt.Sprintf("Bekräftelse - tolk har accepterat er bokning (bokning # %s)", job.ID),
						TemplateJobAccepted, nil)
				},
			},
		}, nil
	default:
		return statusChange{}, apperrors.InvalidTransitionf(
			"bokningen kan inte gå från timedout till %s", upd.Status)
	}
}

func (s *LifecycleService) planFromWithdrawAfter24(job *model.Job, upd model.JobUpdate) (statusChange, error) {
	if upd.Status != model.JobStatusTimedout {
		return statusChange{}, apperrors.InvalidTransitionf(
			"bokningen kan inte gå från withdrawafter24 till %s", upd.Status)
	}
	if upd.AdminComments == "" {
		return statusChange{}, apperrors.ValidationField("admin_comments",
			"admin_comments krävs för att markera bokningen som utgången")
	}
	job.Status = model.JobStatusTimedout
	return statusChange{changed: true}, nil
}

func (s *LifecycleService) cancellationEmail(job *model.Job) []func(context.Context) {
	return []func(context.Context){
		func(ctx context.Context) {
			s.emailCustomer(ctx, job,
				fmt.Sprintf("Avbokning av bokningsnr: #%s", job.ID),
				TemplateStatusChangedCustomer, nil)
		},
	}
}

// remindBothParties pushes the session-start reminder to the customer and
// the newly assigned translator.
func (s *LifecycleService) remindBothParties(ctx context.Context, job *model.Job, translatorID string) {
	if s.notifier == nil {
		return
	}
	if user, err := s.directory.GetUser(ctx, job.CustomerID); err == nil {
		if err := s.notifier.SessionStartReminder(ctx, job, model.TargetFromUser(user)); err != nil {
			s.logger.ErrorContext(ctx, "customer reminder failed", "job_id", job.ID, "error", err)
		}
	}
	if translatorID == "" {
		return
	}
	if profile, err := s.directory.GetProfile(ctx, translatorID); err == nil {
		if err := s.notifier.SessionStartReminder(ctx, job, model.TargetFromProfile(profile)); err != nil {
			s.logger.ErrorContext(ctx, "translator reminder failed", "job_id", job.ID, "error", err)
		}
	}
}

func (s *LifecycleService) sendChangedDate(ctx context.Context, job *model.Job, oldDue time.Time) {
	subject := fmt.Sprintf("Meddelande om ändring av tolkbokning för uppdrag # %s", job.ID)
	data := map[string]any{"old_time": oldDue.Format("2006-01-02 15:04:05")}
	s.emailCustomer(ctx, job, subject, TemplateChangedDate, data)
	s.emailActiveTranslator(ctx, job, subject, TemplateChangedDate, data)
}

func (s *LifecycleService) sendChangedLang(ctx context.Context, job *model.Job, oldLang string) {
	subject := fmt.Sprintf("Meddelande om ändring av tolkbokning för uppdrag # %s", job.ID)
	data := map[string]any{"old_lang": s.languageName(ctx, oldLang)}
	s.emailCustomer(ctx, job, subject, TemplateChangedLang, data)
	s.emailActiveTranslator(ctx, job, subject, TemplateChangedLang, data)
}

func (s *LifecycleService) sendChangedTranslator(ctx context.Context, job *model.Job, change *translatorChange) {
	subject := fmt.Sprintf("Meddelande om tilldelning av tolkuppdrag för uppdrag # %s", job.ID)
	s.emailCustomer(ctx, job, subject, TemplateChangedTranslatorCust, nil)
	if change.oldTranslatorID != "" {
		s.emailTranslator(ctx, job, change.oldTranslatorID, subject, TemplateChangedTranslatorOld, nil)
	}
	s.emailTranslator(ctx, job, change.newTranslatorID, subject, TemplateChangedTranslatorNew, nil)
}

// emailCustomer mails the booking's contact address. Failures are logged,
// never propagated; the state change is already committed.
func (s *LifecycleService) emailCustomer(ctx context.Context, job *model.Job, subject, template string, data map[string]any) {
	if s.mailer == nil {
		return
	}
	user, err := s.directory.GetUser(ctx, job.CustomerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "customer lookup for email failed",
			"job_id", job.ID, "error", err)
		return
	}
	s.sendMail(ctx, job, core.EmailMessage{
		To:       job.ContactEmail(user.Email),
		ToName:   user.Name,
		Subject:  subject,
		Template: template,
		Data:     withJob(job, data),
	})
}

func (s *LifecycleService) emailActiveTranslator(ctx context.Context, job *model.Job, subject, template string, data map[string]any) {
	rel, err := s.activeRelation(ctx, job.ID)
	if err != nil || rel == nil {
		return
	}
	s.emailTranslator(ctx, job, rel.TranslatorID, subject, template, data)
}

func (s *LifecycleService) emailTranslator(ctx context.Context, job *model.Job, translatorID, subject, template string, data map[string]any) {
	if s.mailer == nil {
		return
	}
	profile, err := s.directory.GetProfile(ctx, translatorID)
	if err != nil {
		s.logger.ErrorContext(ctx, "translator lookup for email failed",
			"job_id", job.ID, "translator_id", translatorID, "error", err)
		return
	}
	s.sendMail(ctx, job, core.EmailMessage{
		To:       profile.Email,
		ToName:   profile.Name,
		Subject:  subject,
		Template: template,
		Data:     withJob(job, data),
	})
}

func (s *LifecycleService) sendMail(ctx context.Context, job *model.Job, msg core.EmailMessage) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "email delivery failed",
			"job_id", job.ID,
			"recipient", msg.To,
			"template", msg.Template,
			"error", err,
		)
	}
}

func (s *LifecycleService) languageName(ctx context.Context, languageID string) string {
	if s.languages == nil {
		return languageID
	}
	name, err := s.languages.LanguageName(ctx, languageID)
	if err != nil {
		return languageID
	}
	return name
}

func withJob(job *model.Job, data map[string]any) map[string]any {
	out := map[string]any{"job": job}
	for k, v := range data {
		out[k] = v
	}
	return out
}

// parseSessionTime parses the admin-entered "HH:MM:SS" session duration.
func parseSessionTime(v string) (time.Duration, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(v, "%d:%d:%d", &h, &m, &sec); err != nil {
		return 0, fmt.Errorf("ogiltig session_time %q, förväntat format HH:MM:SS", v)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// formatSessionTime renders a session duration the way the session-ended
// email shows it.
func formatSessionTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%d tim %d min", h, m)
}
