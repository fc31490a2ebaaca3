// Package model defines the core data types for the interpretation-booking system.
package model

import (
	"errors"
	"strings"
	"time"
)

// JobStatus represents the lifecycle status of a booking.
type JobStatus string

// JobType represents the commercial type of a booking.
type JobType string

// Gender is a requested translator gender on a booking.
type Gender string

// Certified is the certification requirement of a booking.
type Certified string

const (
	// JobStatusPending indicates the booking is waiting for a translator.
	JobStatusPending JobStatus = "pending"
	// JobStatusAssigned indicates a translator holds the booking.
	JobStatusAssigned JobStatus = "assigned"
	// JobStatusStarted indicates the interpretation session is in progress.
	JobStatusStarted JobStatus = "started"
	// JobStatusCompleted indicates the session finished normally.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusTimedout indicates no translator accepted before expiry.
	JobStatusTimedout JobStatus = "timedout"
	// JobStatusWithdrawBefore24 indicates the customer withdrew 24h or more before due.
	JobStatusWithdrawBefore24 JobStatus = "withdrawbefore24"
	// JobStatusWithdrawAfter24 indicates the customer withdrew within 24h of due.
	JobStatusWithdrawAfter24 JobStatus = "withdrawafter24"
	// JobStatusNotCarriedOutCustomer indicates the customer did not show up or call.
	JobStatusNotCarriedOutCustomer JobStatus = "not_carried_out_customer"
)

const (
	// JobTypePaid is a booking from a paying consumer, served by professionals.
	JobTypePaid JobType = "paid"
	// JobTypeRWS is a booking from an RWS consumer, served by RWS translators.
	JobTypeRWS JobType = "rws"
	// JobTypeUnpaid is a booking from an NGO consumer, served by volunteers.
	JobTypeUnpaid JobType = "unpaid"
)

const (
	// GenderMale requests a male translator.
	GenderMale Gender = "male"
	// GenderFemale requests a female translator.
	GenderFemale Gender = "female"
)

const (
	// CertifiedNormal requests a layman-level translator.
	CertifiedNormal Certified = "normal"
	// CertifiedYes requests any certified translator.
	CertifiedYes Certified = "yes"
	// CertifiedBoth accepts both certified and layman translators.
	// The eligibility mapping treats it as the certified union.
	CertifiedBoth Certified = "both"
	// CertifiedLaw requests a law-specialised translator.
	CertifiedLaw Certified = "law"
	// CertifiedNLaw requests a law-specialised translator, layman acceptable upstream.
	CertifiedNLaw Certified = "n_law"
	// CertifiedHealth requests a health-care-specialised translator.
	CertifiedHealth Certified = "health"
	// CertifiedNHealth requests a health-care-specialised translator, layman acceptable upstream.
	CertifiedNHealth Certified = "n_health"
)

// Valid returns true if the JobStatus is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusAssigned, JobStatusStarted, JobStatusCompleted,
		JobStatusTimedout, JobStatusWithdrawBefore24, JobStatusWithdrawAfter24,
		JobStatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is permitted.
// Reopen is the only operation that may act on a terminal booking.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusWithdrawBefore24, JobStatusWithdrawAfter24,
		JobStatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// Valid returns true if the JobType is a known type.
func (t JobType) Valid() bool {
	return t == JobTypePaid || t == JobTypeRWS || t == JobTypeUnpaid
}

// JobTypeForConsumer derives the booking type from the customer's consumer type.
func JobTypeForConsumer(consumerType string) JobType {
	switch consumerType {
	case "rwsconsumer":
		return JobTypeRWS
	case "ngo":
		return JobTypeUnpaid
	case "paid":
		return JobTypePaid
	default:
		return JobTypeUnpaid
	}
}

// Valid returns true if the Gender is a known value.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Valid returns true if the Certified value is a known requirement.
func (c Certified) Valid() bool {
	switch c {
	case CertifiedNormal, CertifiedYes, CertifiedBoth, CertifiedLaw,
		CertifiedNLaw, CertifiedHealth, CertifiedNHealth:
		return true
	}
	return false
}

// Job represents a booking with all its lifecycle metadata.
type Job struct {
	ID             string     `json:"id"                         db:"id"`
	CustomerID     string     `json:"customer_id"                db:"customer_id"`
	Status         JobStatus  `json:"status"                     db:"status"`
	JobType        JobType    `json:"job_type"                   db:"job_type"`
	Immediate      bool       `json:"immediate"                  db:"immediate"`
	Due            time.Time  `json:"due"                        db:"due"`
	Duration       int        `json:"duration"                   db:"duration"`
	FromLanguageID string     `json:"from_language_id"           db:"from_language_id"`
	Gender         *Gender    `json:"gender,omitempty"           db:"gender"`
	Certified      *Certified `json:"certified,omitempty"        db:"certified"`

	CustomerPhoneType    bool   `json:"customer_phone_type"    db:"customer_phone_type"`
	CustomerPhysicalType bool   `json:"customer_physical_type" db:"customer_physical_type"`
	Town                 string `json:"town,omitempty"         db:"town"`

	// UserEmail overrides the customer's account email for booking mail when set.
	UserEmail    string `json:"user_email,omitempty"   db:"user_email"`
	Reference    string `json:"reference,omitempty"    db:"reference"`
	Address      string `json:"address,omitempty"      db:"address"`
	Instructions string `json:"instructions,omitempty" db:"instructions"`

	AdminComments string `json:"admin_comments,omitempty" db:"admin_comments"`
	Flagged       bool   `json:"flagged"                  db:"flagged"`
	ByAdmin       bool   `json:"by_admin"                 db:"by_admin"`

	// SpecificTranslatorID pre-designates the booking for one translator when set.
	SpecificTranslatorID *string `json:"specific_translator_id,omitempty" db:"specific_translator_id"`

	// SessionTime is the measured session duration, set on completion.
	SessionTime *time.Duration `json:"session_time,omitempty" db:"session_time"`

	// EmailSentCount and ReminderEmailCount track outbound booking mail.
	// Reopen resets both.
	EmailSentCount     int `json:"email_sent_count"     db:"email_sent_count"`
	ReminderEmailCount int `json:"reminder_email_count" db:"reminder_email_count"`

	CreatedAt    time.Time  `json:"created_at"               db:"created_at"`
	WillExpireAt time.Time  `json:"will_expire_at"           db:"will_expire_at"`
	EndAt        *time.Time `json:"end_at,omitempty"         db:"end_at"`
	WithdrawAt   *time.Time `json:"withdraw_at,omitempty"    db:"withdraw_at"`
	UpdatedAt    time.Time  `json:"updated_at"               db:"updated_at"`
}

// PhysicalOnly reports whether the booking requires on-site interpretation
// with no phone fallback. Town matching only applies to physical-only bookings.
func (j *Job) PhysicalOnly() bool {
	return !j.CustomerPhoneType && j.CustomerPhysicalType
}

// ContactEmail returns the booking's billing contact, falling back to the
// customer's account email.
func (j *Job) ContactEmail(accountEmail string) string {
	if j.UserEmail != "" {
		return j.UserEmail
	}
	return accountEmail
}

// CreateBookingRequest carries the fields needed to create a booking.
type CreateBookingRequest struct {
	FromLanguageID       string `json:"from_language_id"`
	Immediate            bool   `json:"immediate"`
	DueDate              string `json:"due_date,omitempty"`
	DueTime              string `json:"due_time,omitempty"`
	Duration             int    `json:"duration"`
	CustomerPhoneType    bool   `json:"customer_phone_type"`
	CustomerPhysicalType bool   `json:"customer_physical_type"`
	Town                 string `json:"town,omitempty"`
	ByAdmin              bool   `json:"by_admin,omitempty"`
	// JobFor lists requested translator attributes: "male", "female",
	// "normal", "certified", "certified_in_law", "certified_in_helth".
	JobFor []string `json:"job_for,omitempty"`
}

// Validate validates the CreateBookingRequest fields.
func (r *CreateBookingRequest) Validate() error {
	if strings.TrimSpace(r.FromLanguageID) == "" {
		return errors.New("from_language_id is required")
	}
	if !r.Immediate {
		if r.DueDate == "" {
			return errors.New("due_date is required")
		}
		if r.DueTime == "" {
			return errors.New("due_time is required")
		}
	}
	if !r.CustomerPhoneType && !r.CustomerPhysicalType {
		return errors.New("customer_phone_type or customer_physical_type is required")
	}
	if r.Duration <= 0 {
		return errors.New("duration is required")
	}
	return nil
}

// DerivedGender extracts the requested gender from the job_for list.
func (r *CreateBookingRequest) DerivedGender() *Gender {
	for _, v := range r.JobFor {
		switch v {
		case "male":
			g := GenderMale
			return &g
		case "female":
			g := GenderFemale
			return &g
		}
	}
	return nil
}

// DerivedCertified extracts the certification requirement from the job_for
// list, including the combined normal+certified variants.
func (r *CreateBookingRequest) DerivedCertified() *Certified {
	has := func(want string) bool {
		for _, v := range r.JobFor {
			if v == want {
				return true
			}
		}
		return false
	}

	var c Certified
	switch {
	case has("normal") && has("certified"):
		c = CertifiedBoth
	case has("normal") && has("certified_in_law"):
		c = CertifiedNLaw
	case has("normal") && has("certified_in_helth"):
		c = CertifiedNHealth
	case has("normal"):
		c = CertifiedNormal
	case has("certified"):
		c = CertifiedYes
	case has("certified_in_law"):
		c = CertifiedLaw
	case has("certified_in_helth"):
		c = CertifiedHealth
	default:
		return nil
	}
	return &c
}

// JobUpdate carries an admin edit of a booking. Zero values mean "unchanged"
// except Due and FromLanguageID, which are always compared against the job.
type JobUpdate struct {
	Due             time.Time `json:"due"`
	FromLanguageID  string    `json:"from_language_id"`
	Status          JobStatus `json:"status"`
	AdminComments   string    `json:"admin_comments"`
	Reference       string    `json:"reference"`
	SessionTime     string    `json:"session_time,omitempty"`
	TranslatorID    string    `json:"translator,omitempty"`
	TranslatorEmail string    `json:"translator_email,omitempty"`
}
