package engine

import (
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// Recurrence is the validated plan cadence: either a non-empty weekday
// set (recurring) or a single calendar date (one-time). The zero value is
// invalid; construct through ParseRecurrence.
type Recurrence struct {
	recurring bool
	weekdays  map[time.Weekday]bool
	names     []string
	date      time.Time
}

// ParseRecurrence builds a Recurrence from raw scheduling input. Exactly
// one of weekdays / date must be supplied; anything else fails with
// ErrInvalidRecurrence. Dates use the "2006-01-02" layout.
func ParseRecurrence(weekdays []string, date string) (Recurrence, error) {
	if len(weekdays) > 0 && date != "" {
		return Recurrence{}, ErrInvalidRecurrence
	}

	if len(weekdays) > 0 {
		set := make(map[time.Weekday]bool, len(weekdays))
		names := make([]string, 0, len(weekdays))
		for _, raw := range weekdays {
			name := strings.ToUpper(strings.TrimSpace(raw))
			day, ok := weekdayNames[name]
			if !ok {
				return Recurrence{}, ErrInvalidRecurrence
			}
			if !set[day] {
				set[day] = true
				names = append(names, name)
			}
		}
		return Recurrence{recurring: true, weekdays: set, names: names}, nil
	}

	if date != "" {
		d, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return Recurrence{}, ErrInvalidRecurrence
		}
		return Recurrence{date: d}, nil
	}

	return Recurrence{}, ErrInvalidRecurrence
}

// IsRecurring reports whether the recurrence is a weekday set.
func (r Recurrence) IsRecurring() bool { return r.recurring }

// Includes reports whether the weekday is part of a recurring set.
func (r Recurrence) Includes(day time.Weekday) bool { return r.weekdays[day] }

// WeekdayNames returns the uppercase weekday names for persistence.
func (r Recurrence) WeekdayNames() []string { return r.names }

// Date returns the one-time date; zero for recurring plans.
func (r Recurrence) Date() time.Time { return r.date }

// recurrenceFromStored rebuilds a Recurrence from a persisted schedule's
// weekday names. Stored rows were validated at creation, so an empty set
// simply means one-time.
func recurrenceFromStored(names []string) Recurrence {
	if len(names) == 0 {
		return Recurrence{}
	}
	rec, _ := ParseRecurrence(names, "")
	return rec
}

// combineDayTime anchors an HH:MM time-of-day onto a calendar day.
func combineDayTime(day time.Time, hhmm string) (time.Time, error) {
	tod, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		tod.Hour(), tod.Minute(), 0, 0, day.Location()), nil
}
