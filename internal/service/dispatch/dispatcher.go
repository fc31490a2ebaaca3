// Package dispatch fans booking notifications out to translators and
// customers over push, SMS and email. It owns recipient selection, the
// notification copy and the night-time delay rules; actual delivery is
// behind the core gateway ports.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nordtolk/booking-api/internal/core"
	"github.com/nordtolk/booking-api/internal/domain/match"
	"github.com/nordtolk/booking-api/internal/domain/model"
	"github.com/nordtolk/booking-api/internal/domain/timepolicy"
)

// Notification event names carried in the push payload. Mobile clients route
// on these values.
const (
	EventSuitableJob        = "suitable_job"
	EventSessionStartRemind = "session_start_remind"
	EventJobAccepted        = "job_accepted"
	EventJobCancelled       = "job_cancelled"
	EventJobExpired         = "job_expired"
)

const defaultSMSConcurrency = 8

// Options configures the dispatcher.
type Options struct {
	Directory core.TranslatorDirectory
	Languages core.LanguageDirectory
	Push      core.PushGateway
	SMS       core.SMSGateway
	Clock     core.TimeProvider
	Logger    *slog.Logger
	// SMSConcurrency bounds the parallel SMS sends per fan-out. Zero means
	// the default.
	SMSConcurrency int64
}

// Dispatcher selects recipients and sends booking notifications.
type Dispatcher struct {
	directory core.TranslatorDirectory
	languages core.LanguageDirectory
	push      core.PushGateway
	sms       core.SMSGateway
	clock     core.TimeProvider
	logger    *slog.Logger
	smsLimit  int64
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Directory == nil {
		panic("TranslatorDirectory is required")
	}
	if opts.Push == nil {
		panic("PushGateway is required")
	}
	if opts.Clock == nil {
		panic("TimeProvider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "dispatch")
	}

	limit := opts.SMSConcurrency
	if limit <= 0 {
		limit = defaultSMSConcurrency
	}

	return &Dispatcher{
		directory: opts.Directory,
		languages: opts.Languages,
		push:      opts.Push,
		sms:       opts.SMS,
		clock:     opts.Clock,
		logger:    logger,
		smsLimit:  limit,
	}
}

// languageName resolves the booking's language for notification copy. A
// lookup failure falls back to the raw id so a notification still goes out.
func (d *Dispatcher) languageName(ctx context.Context, languageID string) string {
	if d.languages == nil {
		return languageID
	}
	name, err := d.languages.LanguageName(ctx, languageID)
	if err != nil {
		d.logger.WarnContext(ctx, "language lookup failed, using id in notification",
			"language_id", languageID,
			"error", err,
		)
		return languageID
	}
	return name
}

// NotifyEligibleTranslators pushes a new-booking notification to every
// translator the booking matches. Translators are skipped when they opted
// out of pushes, or out of emergency pushes for immediate bookings.
// Recipients with the nighttime opt-out get the push delayed to the next
// business morning when the fan-out happens at night.
func (d *Dispatcher) NotifyEligibleTranslators(ctx context.Context, job *model.Job, excludeTranslatorID string) error {
	profiles, err := d.directory.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active translators: %w", err)
	}

	customerTowns, err := d.customerTowns(ctx, job.CustomerID)
	if err != nil {
		return err
	}

	now := d.clock.Now()
	night := timepolicy.IsNightTime(now)

	var immediate, delayed []model.NotificationTarget
	for _, p := range profiles {
		if p.ID == excludeTranslatorID {
			continue
		}
		if p.NotGetNotification {
			continue
		}
		if job.Immediate && p.NotGetEmergency {
			continue
		}
		if !match.Eligible(job, customerTowns, p) {
			continue
		}
		if night && p.NotGetNighttime {
			delayed = append(delayed, model.TargetFromProfile(p))
		} else {
			immediate = append(immediate, model.TargetFromProfile(p))
		}
	}

	language := d.languageName(ctx, job.FromLanguageID)
	var message string
	if job.Immediate {
		message = fmt.Sprintf("Ny akutbokning för %s tolk %dmin", language, job.Duration)
	} else {
		message = fmt.Sprintf("Ny bokning för %s tolk %dmin %s",
			language, job.Duration, job.Due.Format("2006-01-02 15:04:05"))
	}

	d.logger.InfoContext(ctx, "new booking push fan-out",
		"job_id", job.ID,
		"recipients", len(immediate),
		"delayed_recipients", len(delayed),
	)

	if err := d.sendBatch(ctx, job, immediate, message, nil); err != nil {
		return err
	}
	if len(delayed) > 0 {
		after := timepolicy.NextBusinessTime(now)
		if err := d.sendBatch(ctx, job, delayed, message, &after); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) sendBatch(ctx context.Context, job *model.Job, targets []model.NotificationTarget, message string, sendAfter *time.Time) error {
	if len(targets) == 0 {
		return nil
	}
	n := core.PushNotification{
		Recipients: targets,
		Title:      "NordTolk",
		Message:    message,
		Emergency:  job.Immediate,
		SendAfter:  sendAfter,
		Data: map[string]string{
			"notification_type": EventSuitableJob,
			"job_id":            job.ID,
		},
	}
	if err := d.push.SendBatch(ctx, n); err != nil {
		return fmt.Errorf("push batch for job %s: %w", job.ID, err)
	}
	return nil
}

// SMSEligibleTranslators texts the booking details to every eligible
// translator and returns how many were addressed. Delivery failures are
// logged per recipient and do not stop the fan-out.
func (d *Dispatcher) SMSEligibleTranslators(ctx context.Context, job *model.Job) (int, error) {
	if d.sms == nil {
		return 0, nil
	}

	profiles, err := d.directory.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active translators: %w", err)
	}
	customerTowns, err := d.customerTowns(ctx, job.CustomerID)
	if err != nil {
		return 0, err
	}

	var recipients []*model.TranslatorProfile
	for _, p := range profiles {
		if match.Eligible(job, customerTowns, p) {
			recipients = append(recipients, p)
		}
	}

	town := job.Town
	if town == "" && len(customerTowns) > 0 {
		town = customerTowns[0]
	}
	message := d.smsMessage(job, town)
	if message == "" {
		d.logger.WarnContext(ctx, "booking is neither phone nor physical, no SMS sent",
			"job_id", job.ID,
		)
		return len(recipients), nil
	}

	sem := semaphore.NewWeighted(d.smsLimit)
	for _, p := range recipients {
		if err := sem.Acquire(ctx, 1); err != nil {
			return len(recipients), err
		}
		go func() {
			defer sem.Release(1)
			if err := d.sms.Send(ctx, p.Mobile, message); err != nil {
				d.logger.ErrorContext(ctx, "sms delivery failed",
					"job_id", job.ID,
					"recipient", p.Email,
					"error", err,
				)
				return
			}
			d.logger.InfoContext(ctx, "sms sent",
				"job_id", job.ID,
				"recipient", p.Email,
			)
		}()
	}
	// Drain the semaphore so all sends finish before returning.
	if err := sem.Acquire(ctx, d.smsLimit); err != nil {
		return len(recipients), err
	}
	sem.Release(d.smsLimit)

	return len(recipients), nil
}

// smsMessage picks the phone or on-site template. A booking marked as both
// defaults to the phone template; one marked as neither yields no message.
func (d *Dispatcher) smsMessage(job *model.Job, town string) string {
	date := job.Due.Format("02.01.2006")
	clock := job.Due.Format("15:04")
	duration := FormatDuration(job.Duration)

	switch {
	case job.PhysicalOnly():
		return fmt.Sprintf(
			"Du har fått en platstolkning i %s den %s kl %s som varar i %s. Se bokning #%s för detaljer. Tack!",
			town, date, clock, duration, job.ID)
	case job.CustomerPhoneType:
		return fmt.Sprintf(
			"Du har fått en telefontolkning den %s kl %s som varar i %s. Se bokning #%s för detaljer. Tack!",
			date, clock, duration, job.ID)
	default:
		return ""
	}
}

// SessionStartReminder pushes a reminder ahead of the session start to one
// recipient, customer or translator.
func (d *Dispatcher) SessionStartReminder(ctx context.Context, job *model.Job, target model.NotificationTarget) error {
	language := d.languageName(ctx, job.FromLanguageID)

	sessionType := "telefon"
	if job.CustomerPhysicalType {
		sessionType = "på plats i " + job.Town
	}
	message := fmt.Sprintf(
		"Detta är en påminnelse om att du har en %s tolkning (%s) kl %s på %s som varar i %d min. Lycka till och kom ihåg att ge feedback efter utförd tolkning!",
		language, sessionType, job.Due.Format("15:04"), job.Due.Format("2006-01-02"), job.Duration)

	return d.pushOne(ctx, job, target, EventSessionStartRemind, message)
}

// AssignmentConfirmation tells a translator they now hold the booking.
func (d *Dispatcher) AssignmentConfirmation(ctx context.Context, job *model.Job, target model.NotificationTarget) error {
	language := d.languageName(ctx, job.FromLanguageID)

	kind := "telefontolkningen"
	if job.CustomerPhysicalType {
		kind = "platstolkningen"
	}
	message := fmt.Sprintf(
		"Du har nu fått %s för %s kl %s den %s. Vänligen säkerställ att du är förberedd för den tiden. Tack!",
		kind, language, job.Due.Format("15:04"), job.Due.Format("2006-01-02"))

	return d.pushOne(ctx, job, target, EventSessionStartRemind, message)
}

// AcceptedConfirmation tells the customer a translator accepted the booking.
func (d *Dispatcher) AcceptedConfirmation(ctx context.Context, job *model.Job, target model.NotificationTarget) error {
	language := d.languageName(ctx, job.FromLanguageID)
	message := fmt.Sprintf(
		"Din bokning för %s tolk, %dmin, %s har accepterats av en tolk. Vänligen öppna appen för att se detaljer om tolken.",
		language, job.Duration, job.Due.Format("2006-01-02 15:04:05"))

	return d.pushOne(ctx, job, target, EventJobAccepted, message)
}

// CancellationToTranslator tells the assigned translator the customer
// withdrew the booking.
func (d *Dispatcher) CancellationToTranslator(ctx context.Context, job *model.Job, target model.NotificationTarget) error {
	language := d.languageName(ctx, job.FromLanguageID)
	message := fmt.Sprintf(
		"Kunden har avbokat bokningen för %s tolk, %dmin, %s. Var god och kolla dina tidigare bokningar för detaljer.",
		language, job.Duration, job.Due.Format("2006-01-02 15:04:05"))

	return d.pushOne(ctx, job, target, EventJobCancelled, message)
}

// CancellationToCustomer tells the customer their translator withdrew and a
// replacement is being sought.
func (d *Dispatcher) CancellationToCustomer(ctx context.Context, job *model.Job, target model.NotificationTarget) error {
	language := d.languageName(ctx, job.FromLanguageID)
	message := fmt.Sprintf(
		"Er %s tolk, %dmin %s, har avbokat tolkningen. Vi letar nu efter en ny tolk som kan ersätta denne. Tack.",
		language, job.Duration, job.Due.Format("2006-01-02 15:04:05"))

	return d.pushOne(ctx, job, target, EventJobCancelled, message)
}

// ExpiredNotification tells the customer nobody accepted before expiry.
func (d *Dispatcher) ExpiredNotification(ctx context.Context, job *model.Job, target model.NotificationTarget) error {
	language := d.languageName(ctx, job.FromLanguageID)
	message := fmt.Sprintf(
		"Tyvärr har ingen tolk accepterat er bokning: (%s, %dmin, %s). Vänligen pröva boka om tiden.",
		language, job.Duration, job.Due.Format("2006-01-02 15:04:05"))

	return d.pushOne(ctx, job, target, EventJobExpired, message)
}

func (d *Dispatcher) pushOne(ctx context.Context, job *model.Job, target model.NotificationTarget, event, message string) error {
	if target.OptOutPush {
		d.logger.DebugContext(ctx, "recipient opted out of push",
			"job_id", job.ID,
			"recipient", target.Email,
			"event", event,
		)
		return nil
	}

	var sendAfter *time.Time
	now := d.clock.Now()
	if target.DelayNighttime && timepolicy.IsNightTime(now) {
		after := timepolicy.NextBusinessTime(now)
		sendAfter = &after
	}

	n := core.PushNotification{
		Recipients: []model.NotificationTarget{target},
		Title:      "NordTolk",
		Message:    message,
		SendAfter:  sendAfter,
		Data: map[string]string{
			"notification_type": event,
			"job_id":            job.ID,
		},
	}
	if err := d.push.SendBatch(ctx, n); err != nil {
		return fmt.Errorf("push %s for job %s: %w", event, job.ID, err)
	}
	return nil
}

func (d *Dispatcher) customerTowns(ctx context.Context, customerID string) ([]string, error) {
	user, err := d.directory.GetUser(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer %s: %w", customerID, err)
	}
	return user.Towns, nil
}

// FormatDuration renders minutes the way notification copy expects:
// "30min", "1h", "01h 30min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	if minutes == 60 {
		return "1h"
	}
	return fmt.Sprintf("%02dh %02dmin", minutes/60, minutes%60)
}
