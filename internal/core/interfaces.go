package core

import (
	"context"
	"time"

	"github.com/nordtolk/booking-api/internal/domain/model"
)

// This file contains the port definitions (hexagonal architecture) between
// the service layer and the data/adapter layers. Service implementations
// depend on these interfaces, never on concrete repositories or gateways.

// TimeProvider abstracts the clock so lifecycle and expiry decisions are
// testable with fixed times.
type TimeProvider interface {
	Now() time.Time
}

// JobRepository defines the interface for booking persistence.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	SetUserEmail(ctx context.Context, params SetUserEmailParams) (*model.Job, error)
	// ListPending returns pending bookings, newest first. Used to compute
	// the bookings a translator could accept.
	ListPending(ctx context.Context) ([]*model.Job, error)
	// ExpirePending marks pending bookings whose expiry passed as timedout
	// and returns them. Processes up to batchSize rows per call.
	ExpirePending(ctx context.Context, now time.Time, batchSize int) ([]*model.Job, error)
}

// SetUserEmailParams groups parameters for JobRepository.SetUserEmail to keep
// param count ≤3.
type SetUserEmailParams struct {
	JobID     string
	UserEmail string
	Reference string
	// Address, Instructions and Town update the booking when non-empty;
	// empty fields leave the stored values unchanged.
	Address      string
	Instructions string
	Town         string
}

// AssignParams groups parameters for RelationRepository.AssignIfUnassigned.
type AssignParams struct {
	JobID        string
	TranslatorID string
	At           time.Time
}

// CompleteParams groups parameters for RelationRepository.Complete.
type CompleteParams struct {
	JobID       string
	CompletedBy string
	At          time.Time
}

// OverlapParams groups parameters for RelationRepository.HasOverlappingAssignment.
type OverlapParams struct {
	TranslatorID string
	Due          time.Time
	Duration     time.Duration
}

// RelationRepository defines the interface for translator-booking assignment rows.
type RelationRepository interface {
	// GetActive returns the active (not cancelled, not completed) assignment
	// for a booking, or a not-found error when there is none.
	GetActive(ctx context.Context, jobID string) (*model.TranslatorJobRelation, error)
	// AssignIfUnassigned atomically inserts an assignment unless an active
	// one already exists. Returns false when another translator won the race.
	AssignIfUnassigned(ctx context.Context, params AssignParams) (bool, error)
	// Cancel marks the active assignment cancelled at the given time.
	Cancel(ctx context.Context, jobID string, at time.Time) error
	Complete(ctx context.Context, params CompleteParams) error
	// Delete removes the assignment row entirely. Used when a translator
	// withdraws and the booking goes back out for matching.
	Delete(ctx context.Context, jobID, translatorID string) error
	// HasOverlappingAssignment reports whether the translator already holds
	// an active assignment overlapping the given session window.
	HasOverlappingAssignment(ctx context.Context, params OverlapParams) (bool, error)
}

// TranslatorDirectory defines the interface for translator and customer lookups.
type TranslatorDirectory interface {
	GetProfile(ctx context.Context, translatorID string) (*model.TranslatorProfile, error)
	// ListActive returns every translator profile eligible for matching,
	// before the eligibility pipeline is applied.
	ListActive(ctx context.Context) ([]*model.TranslatorProfile, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// LanguageDirectory defines the interface for language name lookups.
type LanguageDirectory interface {
	LanguageName(ctx context.Context, languageID string) (string, error)
}

// EmailMessage is a templated outbound email.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	Template string
	Data     map[string]any
}

// Mailer defines the interface for outbound email delivery.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// PushNotification is a batched outbound push. Recipients are addressed by
// the email tag registered on their devices.
type PushNotification struct {
	Recipients []model.NotificationTarget
	Title      string
	Message    string
	// Emergency selects the emergency sound profile on delivery.
	Emergency bool
	// SendAfter delays delivery until the given time when set.
	SendAfter *time.Time
	Data      map[string]string
}

// PushGateway defines the interface for push delivery.
type PushGateway interface {
	SendBatch(ctx context.Context, n PushNotification) error
}

// SMSGateway defines the interface for outbound SMS delivery.
type SMSGateway interface {
	Send(ctx context.Context, to, message string) error
}
