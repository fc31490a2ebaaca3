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

// dueLayout is the wire format for due_date + due_time ("01/02/2006" + "15:04").
const dueLayout = "01/02/2006 15:04"

// BookingOptions configures the booking intake service.
type BookingOptions struct {
	Jobs      core.JobRepository
	Directory core.TranslatorDirectory
	Mailer    core.Mailer
	Notifier  Notifier
	Clock     core.TimeProvider
	Logger    *slog.Logger
}

// BookingService creates bookings and finalizes them with billing contact
// details. Creation only persists the job; the translator fan-out happens
// when the billing email lands, matching the two-step intake flow.
type BookingService struct {
	jobs      core.JobRepository
	directory core.TranslatorDirectory
	mailer    core.Mailer
	notifier  Notifier
	clock     core.TimeProvider
	logger    *slog.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(opts BookingOptions) *BookingService {
	if opts.Jobs == nil {
		panic("JobRepository is required")
	}
	if opts.Directory == nil {
		panic("TranslatorDirectory is required")
	}
	if opts.Clock == nil {
		panic("TimeProvider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "booking")
	}

	return &BookingService{
		jobs:      opts.Jobs,
		directory: opts.Directory,
		mailer:    opts.Mailer,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		logger:    logger,
	}
}

// CreateBookingResult is the outcome of Create. Type is "immediate" or
// "regular" so the caller can branch its confirmation flow.
type CreateBookingResult struct {
	Job  *model.Job
	Type string
}

// Create validates and persists a new booking for a customer. Translator
// accounts cannot create bookings. Immediate bookings get a due time five
// minutes out and are forced to phone interpretation; scheduled bookings
// must be in the future.
func (s *BookingService) Create(ctx context.Context, customerID string, req model.CreateBookingRequest) (*CreateBookingResult, error) {
	if _, err := s.directory.GetProfile(ctx, customerID); err == nil {
		return nil, apperrors.Validation("Translator can not create booking")
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	user, err := s.directory.GetUser(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	now := s.clock.Now()
	job := &model.Job{
		CustomerID:           customerID,
		Status:               model.JobStatusPending,
		JobType:              model.JobTypeForConsumer(user.ConsumerType),
		Immediate:            req.Immediate,
		Duration:             req.Duration,
		FromLanguageID:       req.FromLanguageID,
		Gender:               req.DerivedGender(),
		Certified:            req.DerivedCertified(),
		CustomerPhoneType:    req.CustomerPhoneType,
		CustomerPhysicalType: req.CustomerPhysicalType,
		Town:                 req.Town,
		ByAdmin:              req.ByAdmin,
		CreatedAt:            now,
	}

	responseType := "regular"
	if req.Immediate {
		job.Due = timepolicy.ImmediateDue(now)
		job.CustomerPhoneType = true
		responseType = "immediate"
	} else {
		due, err := time.ParseInLocation(dueLayout, req.DueDate+" "+req.DueTime, now.Location())
		if err != nil {
			return nil, apperrors.Validationf("invalid due date/time %q %q", req.DueDate, req.DueTime)
		}
		if due.Before(now) {
			return nil, apperrors.Validation("Can't create booking in the past")
		}
		job.Due = due
	}
	job.WillExpireAt = timepolicy.WillExpireAt(job.Due, now)

	created, err := s.jobs.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.InfoContext(ctx, "booking created",
		"job_id", created.ID,
		"customer_id", customerID,
		"type", responseType,
		"due", created.Due,
	)

	return &CreateBookingResult{Job: created, Type: responseType}, nil
}

// StoreEmailParams groups parameters for StoreEmail.
type StoreEmailParams struct {
	JobID        string
	UserEmail    string
	Reference    string
	Address      string
	Instructions string
	Town         string
}

// StoreEmail records the billing contact for a booking, sends the customer
// the booking confirmation, and fans the new booking out to eligible
// translators by push and SMS. Fan-out failures are logged, never returned.
func (s *BookingService) StoreEmail(ctx context.Context, params StoreEmailParams) (*model.Job, error) {
	job, err := s.jobs.SetUserEmail(ctx, core.SetUserEmailParams{
		JobID:        params.JobID,
		UserEmail:    params.UserEmail,
		Reference:    params.Reference,
		Address:      params.Address,
		Instructions: params.Instructions,
		Town:         params.Town,
	})
	if err != nil {
		return nil, err
	}

	if user, err := s.directory.GetUser(ctx, job.CustomerID); err == nil {
		s.sendConfirmation(ctx, job, user)
	} else {
		s.logger.ErrorContext(ctx, "customer lookup failed", "job_id", job.ID, "error", err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyEligibleTranslators(ctx, job, ""); err != nil {
			s.logger.ErrorContext(ctx, "push fan-out failed", "job_id", job.ID, "error", err)
		}
		count, err := s.notifier.SMSEligibleTranslators(ctx, job)
		if err != nil {
			s.logger.ErrorContext(ctx, "sms fan-out failed", "job_id", job.ID, "error", err)
		} else {
			s.logger.InfoContext(ctx, "booking announced", "job_id", job.ID, "sms_recipients", count)
		}
	}

	return job, nil
}

func (s *BookingService) sendConfirmation(ctx context.Context, job *model.Job, user *model.User) {
	if s.mailer == nil {
		return
	}
	msg := core.EmailMessage{
		To:       job.ContactEmail(user.Email),
		ToName:   user.Name,
		Subject:  fmt.Sprintf("Vi har mottagit er tolkbokning. Bokningsnr: #%s", job.ID),
		Template: TemplateJobCreated,
		Data:     withJob(job, nil),
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
