package timepolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWillExpireAt(t *testing.T) {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("within 90 minutes expires at due", func(t *testing.T) {
		due := created.Add(60 * time.Minute)
		assert.Equal(t, due, WillExpireAt(due, created))
	})

	t.Run("within 24 hours expires 90 minutes after creation", func(t *testing.T) {
		due := created.Add(10 * time.Hour)
		assert.Equal(t, created.Add(90*time.Minute), WillExpireAt(due, created))
	})

	t.Run("within 72 hours expires 16 hours after creation", func(t *testing.T) {
		due := created.Add(60 * time.Hour)
		assert.Equal(t, created.Add(16*time.Hour), WillExpireAt(due, created))
	})

	t.Run("more than 72 hours expires 48 hours before due", func(t *testing.T) {
		due := created.Add(100 * time.Hour)
		assert.Equal(t, due.Add(-48*time.Hour), WillExpireAt(due, created))
	})

	t.Run("exactly 90 minutes expires at due", func(t *testing.T) {
		due := created.Add(90 * time.Minute)
		assert.Equal(t, due, WillExpireAt(due, created))
	})
}

func TestIsNightTime(t *testing.T) {
	day := func(h int) time.Time {
		return time.Date(2026, 3, 10, h, 30, 0, 0, time.UTC)
	}

	assert.True(t, IsNightTime(day(21)))
	assert.True(t, IsNightTime(day(23)))
	assert.True(t, IsNightTime(day(0)))
	assert.True(t, IsNightTime(day(6)))

	assert.False(t, IsNightTime(day(7)))
	assert.False(t, IsNightTime(day(12)))
	assert.False(t, IsNightTime(day(20)))
}

func TestNextBusinessTime(t *testing.T) {
	t.Run("before nine same day", func(t *testing.T) {
		now := time.Date(2026, 3, 10, 6, 15, 0, 0, time.UTC)
		want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, want, NextBusinessTime(now))
	})

	t.Run("after nine rolls to next day", func(t *testing.T) {
		now := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
		want := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, want, NextBusinessTime(now))
	})

	t.Run("exactly nine rolls to next day", func(t *testing.T) {
		now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
		want := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, want, NextBusinessTime(now))
	})
}

func TestCancellationWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, WithinCancellationWindow(now, now.Add(23*time.Hour)))
	assert.False(t, WithinCancellationWindow(now, now.Add(25*time.Hour)))
	assert.False(t, WithinCancellationWindow(now, now.Add(24*time.Hour)))

	assert.True(t, WithdrawStatusIsBefore24(now, now.Add(24*time.Hour)))
	assert.True(t, WithdrawStatusIsBefore24(now, now.Add(48*time.Hour)))
	assert.False(t, WithdrawStatusIsBefore24(now, now.Add(2*time.Hour)))
}

func TestImmediateDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(5*time.Minute), ImmediateDue(now))
}
