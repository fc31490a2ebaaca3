package service

import (
	"context"

	"github.com/nordtolk/booking-api/internal/domain/model"
)

// Notifier is the slice of the notification dispatcher the lifecycle
// services use. Satisfied by *dispatch.Dispatcher.
type Notifier interface {
	NotifyEligibleTranslators(ctx context.Context, job *model.Job, excludeTranslatorID string) error
	SMSEligibleTranslators(ctx context.Context, job *model.Job) (int, error)
	SessionStartReminder(ctx context.Context, job *model.Job, target model.NotificationTarget) error
	AssignmentConfirmation(ctx context.Context, job *model.Job, target model.NotificationTarget) error
	AcceptedConfirmation(ctx context.Context, job *model.Job, target model.NotificationTarget) error
	CancellationToTranslator(ctx context.Context, job *model.Job, target model.NotificationTarget) error
	CancellationToCustomer(ctx context.Context, job *model.Job, target model.NotificationTarget) error
	ExpiredNotification(ctx context.Context, job *model.Job, target model.NotificationTarget) error
}

// Email template keys rendered by the mail relay.
const (
	TemplateJobCreated            = "job-created"
	TemplateJobAccepted           = "job-accepted"
	TemplateJobReopened           = "job-change-status-to-customer"
	TemplateStatusChangedCustomer = "status-changed-from-pending-or-assigned-customer"
	TemplateJobCancelTranslator   = "job-cancel-translator"
	TemplateSessionEnded          = "session-ended"
	TemplateChangedDate           = "job-changed-date"
	TemplateChangedLang           = "job-changed-lang"
	TemplateChangedTranslatorCust = "job-changed-translator-customer"
	TemplateChangedTranslatorOld  = "job-changed-translator-old-translator"
	TemplateChangedTranslatorNew  = "job-changed-translator-new-translator"
)
