// Package timepolicy holds pure time decisions for the booking lifecycle:
// expiry windows, the night-time push-delay window, and the cancellation split.
package timepolicy

import "time"

// Expiry window thresholds.
const (
	shortNoticeWindow = 90 * time.Minute
	dayWindow         = 24 * time.Hour
	longWindow        = 72 * time.Hour
	longLeadCutback   = 48 * time.Hour
	dayLeadExpiry     = 16 * time.Hour
)

// Night window and business hours. Pushes to translators who opted out of
// night-time notifications are deferred to the next business time.
const (
	nightStartHour    = 21
	nightEndHour      = 7
	businessStartHour = 9
)

// ImmediateLeadTime is the due offset applied to immediate bookings.
const ImmediateLeadTime = 5 * time.Minute

// CancellationWindow is the minimum lead time for a translator-initiated
// cancellation, and the customer withdraw-before/after split point.
const CancellationWindow = 24 * time.Hour

// WillExpireAt computes when an unaccepted booking stops being offered.
// Short-notice bookings stay open until due; bookings within a day expire
// 90 minutes after creation; within three days, 16 hours after creation;
// anything further out expires 48 hours before due.
func WillExpireAt(due, createdAt time.Time) time.Time {
	diff := due.Sub(createdAt)

	switch {
	case diff <= shortNoticeWindow:
		return due
	case diff <= dayWindow:
		return createdAt.Add(shortNoticeWindow)
	case diff <= longWindow:
		return createdAt.Add(dayLeadExpiry)
	default:
		return due.Add(-longLeadCutback)
	}
}

// IsNightTime reports whether the given wall-clock time falls in the
// night window [21:00, 07:00).
func IsNightTime(now time.Time) bool {
	h := now.Hour()
	return h >= nightStartHour || h < nightEndHour
}

// NextBusinessTime returns the next 09:00 at or after now.
func NextBusinessTime(now time.Time) time.Time {
	business := time.Date(now.Year(), now.Month(), now.Day(), businessStartHour, 0, 0, 0, now.Location())
	if now.Before(business) {
		return business
	}
	return business.AddDate(0, 0, 1)
}

// WithinCancellationWindow reports whether due is less than 24 hours away.
// Translator-initiated cancellations inside the window are rejected.
func WithinCancellationWindow(now, due time.Time) bool {
	return due.Sub(now) < CancellationWindow
}

// WithdrawStatusIsBefore24 reports whether a customer withdrawal at the
// given time counts as "before 24 hours", i.e. due is at least 24h away.
func WithdrawStatusIsBefore24(withdrawAt, due time.Time) bool {
	return due.Sub(withdrawAt) >= CancellationWindow
}

// ImmediateDue computes the due time for an immediate booking.
func ImmediateDue(now time.Time) time.Time {
	return now.Add(ImmediateLeadTime)
}
