package schedule

import (
	"fmt"
	"time"
)

// Weekday and month abbreviations, indexed by UTC calendar fields.
// Computed from UTC to keep job names and fire times independent of the
// host timezone.
var (
	weekDays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	months   = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// Timing holds the fire-time computation knobs
type Timing struct {
	TestDelay   time.Duration // fire delay when test mode is on
	RemoveDelay time.Duration // fire delay for remove actions
	AdvanceDays int           // RSVP this many days before the event
}

// DefaultTiming returns the production defaults
func DefaultTiming() Timing {
	return Timing{
		TestDelay:   5 * time.Second,
		RemoveDelay: 2500 * time.Millisecond,
		AdvanceDays: 7,
	}
}

// FireTime computes when an RSVP action should execute.
//
// Test mode fires almost immediately regardless of action or event time.
// Removals fire after a short delay. Additions fire a fixed number of days
// before the event, shifted by the live hour offset. The advance window and
// offset are applied in one absolute-time subtraction rather than mutating
// calendar fields, so month boundaries and day counts cannot drift.
func FireTime(now, eventTime time.Time, testMode bool, action Action, offsetHours int, t Timing) time.Time {
	if testMode {
		return now.Add(t.TestDelay)
	}
	if action == ActionRemove {
		return now.Add(t.RemoveDelay)
	}
	advance := time.Duration(t.AdvanceDays) * 24 * time.Hour
	return eventTime.Add(-advance + time.Duration(offsetHours)*time.Hour)
}

// FormatHuman formats a time as "Mon, 7 Jul, 18:00 UTC"
func FormatHuman(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%s, %d %s, %02d:%02d UTC",
		weekDays[u.Weekday()], u.Day(), months[u.Month()-1], u.Hour(), u.Minute())
}

// FormatEventDate formats a time as "Mon 7 Jul"
func FormatEventDate(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%s %d %s", weekDays[u.Weekday()], u.Day(), months[u.Month()-1])
}

// JobName derives the human-readable display name for a scheduled job.
// Collisions (same user, same formatted date, same marker) are possible by
// construction; the registry disambiguates them at registration time.
func JobName(userName string, eventTime time.Time, testMode bool, extras int) string {
	date := FormatEventDate(eventTime)
	if testMode {
		return fmt.Sprintf("%s %s _TEST_MODE", userName, date)
	}
	return fmt.Sprintf("%s %s Extras: %d", userName, date, extras)
}
